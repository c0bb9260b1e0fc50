// Package persistence provides the data storage abstraction for workflows,
// execution logs and extraction group fields.
package persistence

import (
	"context"

	"github.com/loadbridge/loadbridge/pkg/models"
)

type Persistence interface {
	// Workflow graph storage. WorkflowByID returns ErrWorkflowNotFound when
	// no workflow exists for the id.
	Workflows(ctx context.Context) ([]*models.Workflow, error)
	SaveWorkflow(ctx context.Context, workflow *models.Workflow) error
	WorkflowByID(ctx context.Context, id string) (*models.Workflow, error)
	DeleteWorkflow(ctx context.Context, id string) error

	// Execution and step logs. The engine calls the three write methods
	// best-effort; the read methods serve the API.
	CreateExecutionLog(ctx context.Context, log *models.ExecutionLog) error
	UpdateExecutionLog(ctx context.Context, log *models.ExecutionLog) error
	CreateStepLog(ctx context.Context, log *models.StepLog) error
	ExecutionLogByID(ctx context.Context, id string) (*models.ExecutionLog, error)
	ExecutionLogsByWorkflowID(ctx context.Context, workflowID string, limit int) ([]*models.ExecutionLog, error)
	StepLogsByExecutionID(ctx context.Context, executionLogID string) ([]*models.StepLog, error)

	// Extraction group fields for multi-page sessions.
	SaveGroupFields(ctx context.Context, sessionID string, groupOrder int, fields map[string]any) error
	PriorGroupFields(ctx context.Context, sessionID string, beforeGroup int) ([]map[string]any, error)

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
