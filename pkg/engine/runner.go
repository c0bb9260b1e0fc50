package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/loadbridge/loadbridge/pkg/models"
	"github.com/loadbridge/loadbridge/pkg/protocol"
)

// ErrWorkflowInactive is returned when a run targets a deactivated workflow.
var ErrWorkflowInactive = errors.New("workflow is not active")

// RunRequest is the entry contract for one workflow run.
type RunRequest struct {
	WorkflowID string `json:"workflow_id" validate:"required"`

	// Extracted payload: either the parsed JSON object, the raw text (JSON or
	// CSV per FormatType), or a storage path the caller already uploaded to.
	ExtractedData            map[string]any `json:"extracted_data,omitempty"`
	RawExtractedData         string         `json:"raw_extracted_data,omitempty"`
	ExtractedDataStoragePath string         `json:"extracted_data_storage_path,omitempty"`
	FormatType               string         `json:"format_type,omitempty"`

	PDFFilename    string `json:"pdf_filename,omitempty"`
	PDFStoragePath string `json:"pdf_storage_path,omitempty"`
	UserID         string `json:"user_id,omitempty"`
	SenderEmail    string `json:"sender_email,omitempty"`
	SubmitterEmail string `json:"submitter_email,omitempty"`

	// Multi-group session fields. GroupOrder is 1-based; prior groups are
	// carried over only when GroupOrder > 1.
	SessionID  string `json:"session_id,omitempty"`
	GroupOrder int    `json:"group_order,omitempty"`

	// ContextData is merged over the seeded context before traversal.
	ContextData map[string]any `json:"context_data,omitempty"`

	// FieldMappings are evaluated pre-traversal in extraction mode.
	FieldMappings []FieldMapping `json:"field_mappings,omitempty"`

	// ExtractionLogID is the caller's extraction record, echoed back on both
	// success and failure so the caller can point at it.
	ExtractionLogID string `json:"extraction_log_id,omitempty"`
}

// RunResult is what a completed run hands back to the caller.
type RunResult struct {
	Success         bool           `json:"success"`
	FinalContext    map[string]any `json:"final_context"`
	LastAPIResponse any            `json:"last_api_response,omitempty"`
	ExecutionLogID  string         `json:"execution_log_id"`
	ExtractionLogID string         `json:"extraction_log_id,omitempty"`
}

// RunError annotates a failed run with its log identifiers so the caller can
// report "workflow failed, see log X" without re-deriving context.
type RunError struct {
	ExecutionLogID  string
	ExtractionLogID string
	Err             error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("workflow run failed (execution log %s): %v", e.ExecutionLogID, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// Runner ties the graph source, the context builder and the engine into the
// workflow-run entry contract.
type Runner struct {
	graphs  protocol.GraphSource
	builder *ContextBuilder
	engine  *Engine
	logger  *slog.Logger
}

func NewRunner(graphs protocol.GraphSource, builder *ContextBuilder, engine *Engine, logger *slog.Logger) *Runner {
	return &Runner{
		graphs:  graphs,
		builder: builder,
		engine:  engine,
		logger:  logger,
	}
}

// Run executes one workflow to completion or failure. Failures past context
// construction come back as *RunError carrying the log ids.
func (r *Runner) Run(ctx context.Context, req *RunRequest) (*RunResult, error) {
	workflow, err := r.graphs.WorkflowByID(ctx, req.WorkflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch workflow %s: %w", req.WorkflowID, err)
	}

	if !workflow.IsActive {
		return nil, fmt.Errorf("workflow %s: %w", req.WorkflowID, ErrWorkflowInactive)
	}

	built, err := r.builder.Build(ctx, workflow.Type, req)
	if err != nil {
		return nil, fmt.Errorf("failed to build context for workflow %s: %w", req.WorkflowID, err)
	}

	run := &models.Run{
		ExecutionID: newExecutionID(),
		WorkflowID:  workflow.ID,
		Mode:        workflow.Type,
		Context:     built,
	}

	r.logger.InfoContext(ctx, "Starting workflow run",
		"workflow_id", workflow.ID, "execution_id", run.ExecutionID, "mode", workflow.Type)

	execLog, err := r.engine.Execute(ctx, workflow, run)
	if err != nil {
		return nil, &RunError{
			ExecutionLogID:  execLog.ID,
			ExtractionLogID: req.ExtractionLogID,
			Err:             err,
		}
	}

	return &RunResult{
		Success:         true,
		FinalContext:    run.Context,
		LastAPIResponse: run.LastAPIResponse,
		ExecutionLogID:  execLog.ID,
		ExtractionLogID: req.ExtractionLogID,
	}, nil
}

func newExecutionID() string {
	return "exec-" + uuid.NewString()[:8]
}
