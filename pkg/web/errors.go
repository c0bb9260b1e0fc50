package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/loadbridge/loadbridge/pkg/engine"
	"github.com/loadbridge/loadbridge/pkg/persistence"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func conflict(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(409).
		WithInstance(c.Path()).
		WithType("conflict").
		WithDetail(detail)

	return c.Status(fiber.StatusConflict).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleRunError maps run failures onto problem responses. A *engine.RunError
// means the run itself failed after logging began, so the response points the
// caller at the execution log.
func handleRunError(c fiber.Ctx, err error) error {
	var runErr *engine.RunError

	switch {
	case persistence.IsWorkflowNotFound(err):
		return notFound(c, "workflow not found")

	case errors.Is(err, engine.ErrWorkflowInactive):
		return conflict(c, err.Error())

	case errors.As(err, &runErr):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"type":              "run_failed",
			"status":            fiber.StatusUnprocessableEntity,
			"instance":          c.Path(),
			"detail":            runErr.Err.Error(),
			"execution_log_id":  runErr.ExecutionLogID,
			"extraction_log_id": runErr.ExtractionLogID,
		})

	default:
		return internalError(c, err)
	}
}
