// Package web provides the REST handlers for workflow management, run
// orchestration and imaging intake.
package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/moogar0880/problems"

	"github.com/loadbridge/loadbridge/pkg/barcode"
	"github.com/loadbridge/loadbridge/pkg/engine"
	"github.com/loadbridge/loadbridge/pkg/eventbus"
	"github.com/loadbridge/loadbridge/pkg/events"
	"github.com/loadbridge/loadbridge/pkg/models"
	"github.com/loadbridge/loadbridge/pkg/persistence"
	"github.com/loadbridge/loadbridge/pkg/registry"
)

type APIHandlers struct {
	persistence persistence.Persistence
	runner      *engine.Runner
	bus         eventbus.EventBus
	barcodes    *barcode.Service
	validator   *validator.Validate
	registry    *registry.Registry
}

func NewAPIHandlers(
	persistence persistence.Persistence,
	runner *engine.Runner,
	bus eventbus.EventBus,
	barcodes *barcode.Service,
	validator *validator.Validate,
	registry *registry.Registry,
) *APIHandlers {
	return &APIHandlers{
		persistence: persistence,
		runner:      runner,
		bus:         bus,
		barcodes:    barcodes,
		validator:   validator,
		registry:    registry,
	}
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	workflows, err := h.persistence.Workflows(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflows":   workflows,
		"total_count": len(workflows),
	})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	workflow, err := h.persistence.WorkflowByID(c.Context(), id)
	if err != nil {
		if persistence.IsWorkflowNotFound(err) {
			return notFound(c, "Workflow not found")
		}

		return internalError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	workflow := &models.Workflow{
		ID:       req.ID,
		Name:     req.Name,
		Type:     req.Type,
		IsActive: isActive,
		Nodes:    req.Nodes,
		Edges:    req.Edges,
	}
	if workflow.ID == "" {
		workflow.ID = uuid.NewString()
	}

	if err := workflow.Validate(); err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.persistence.SaveWorkflow(c.Context(), workflow); err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(workflow)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	err := h.persistence.DeleteWorkflow(c.Context(), id)
	if err != nil {
		if persistence.IsWorkflowNotFound(err) {
			return notFound(c, "Workflow not found")
		}

		return internalError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// RunWorkflow executes the workflow synchronously and returns the final
// context.
func (h *APIHandlers) RunWorkflow(c fiber.Ctx) error {
	req := &engine.RunRequest{}
	if err := c.Bind().JSON(req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	req.WorkflowID = c.Params("id")

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.runner.Run(c.Context(), req)
	if err != nil {
		return handleRunError(c, err)
	}

	return c.JSON(result)
}

// EnqueueRun publishes a run-requested event and returns immediately. A worker
// picks the request up from the bus.
func (h *APIHandlers) EnqueueRun(c fiber.Ctx) error {
	req := engine.RunRequest{}
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	req.WorkflowID = c.Params("id")

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if _, err := h.persistence.WorkflowByID(c.Context(), req.WorkflowID); err != nil {
		if persistence.IsWorkflowNotFound(err) {
			return notFound(c, "Workflow not found")
		}

		return internalError(c, err)
	}

	event := events.RunRequested{
		BaseEvent: events.BaseEvent{
			ID:         h.bus.GenerateID(),
			Type:       events.RunRequestedEvent,
			Timestamp:  time.Now().UTC(),
			WorkflowID: req.WorkflowID,
		},
		Request: req,
	}

	if err := h.bus.Publish(c.Context(), req.WorkflowID, event); err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(EnqueueRunResponse{
		EventID:    event.ID,
		WorkflowID: req.WorkflowID,
		Status:     "queued",
	})
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution log ID is required")
	}

	log, err := h.persistence.ExecutionLogByID(c.Context(), id)
	if err != nil {
		if persistence.IsExecutionLogNotFound(err) {
			return notFound(c, "Execution log not found")
		}

		return internalError(c, err)
	}

	return c.JSON(log)
}

func (h *APIHandlers) GetExecutionSteps(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution log ID is required")
	}

	steps, err := h.persistence.StepLogsByExecutionID(c.Context(), id)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"execution_log_id": id,
		"steps":            steps,
	})
}

func (h *APIHandlers) GetWorkflowExecutions(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	limit := 0

	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil {
			return badRequest(c, "Invalid limit parameter")
		}

		limit = parsed
	}

	logs, err := h.persistence.ExecutionLogsByWorkflowID(c.Context(), id, limit)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflow_id": id,
		"executions":  logs,
	})
}

// IntakeBarcode decodes a scanned barcode; unmatched codes are queued for
// manual indexing and acknowledged with 202.
func (h *APIHandlers) IntakeBarcode(c fiber.Ctx) error {
	if h.barcodes == nil {
		problem := problems.NewStatusProblem(503).
			WithInstance(c.Path()).
			WithType("not_configured").
			WithDetail("imaging intake is not configured")

		return c.Status(fiber.StatusServiceUnavailable).JSON(problem)
	}

	var req BarcodeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	match, queued, err := h.barcodes.Process(c.Context(), req.Barcode, req.Filename, req.StoragePath)
	if err != nil {
		return internalError(c, err)
	}

	if queued {
		return c.Status(fiber.StatusAccepted).JSON(BarcodeResponse{Matched: false, Queued: true})
	}

	return c.JSON(BarcodeResponse{
		Matched:          true,
		DocumentTypeID:   match.DocumentTypeID,
		DocumentTypeName: match.DocumentTypeName,
		DetailLineID:     match.DetailLineID,
	})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	message := "Loadbridge API is healthy"
	httpStatus := http.StatusOK

	storageErr := h.persistence.HealthCheck(c.Context())
	if storageErr != nil {
		status = "unhealthy"
		message = "Loadbridge API is unhealthy"
		httpStatus = http.StatusInternalServerError
	}

	storage := "ok"
	if storageErr != nil {
		storage = storageErr.Error()
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"storage":    storage,
			"step_types": h.registry.StepTypes(),
		},
		"timestamp": time.Now().UTC(),
	})
}
