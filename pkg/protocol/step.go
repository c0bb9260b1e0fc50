// Package protocol defines the interfaces and contracts between the traversal
// engine, the step executors and their external collaborators.
package protocol

import (
	"context"
	"log/slog"
	"time"

	"github.com/loadbridge/loadbridge/pkg/models"
)

// Step executes one node's work against the mutable run state. A step's side
// effects are limited to mutating run.Context in place and making the single
// external call it represents. The engine performs no retries; a returned
// error aborts the whole run.
type Step interface {
	Execute(ctx context.Context, run *models.Run, logger *slog.Logger) (*StepResult, error)
}

// StepResult is what a completed step hands back to the engine.
type StepResult struct {
	// Output is the step's logged output snapshot.
	Output map[string]any

	// Handle selects the outgoing edge. Empty means "default"; only
	// conditional_check sets "success" or "failure".
	Handle string

	// SubSteps carries phase-level log entries for steps that log their own
	// breakdown (ai_decision, read_email). When non-empty the engine persists
	// these instead of the generic top-level step log.
	SubSteps []SubStep
}

// SubStep is one phase of a composite step, logged as its own step log row.
type SubStep struct {
	Label       string
	Status      models.StepStatus
	Input       map[string]any
	Output      map[string]any
	Error       string
	StartedAt   time.Time
	CompletedAt time.Time
}

// StepFactory creates step instances from a node's opaque config and provides
// metadata about the step type.
type StepFactory interface {
	// Create builds a step from a node's config document. Configuration
	// errors surface here, before any external call is made.
	Create(config map[string]any) (Step, error)

	// ID returns the step type identifier this factory handles.
	ID() string

	// Schema returns the JSON schema the config document is validated against.
	Schema() map[string]any
}
