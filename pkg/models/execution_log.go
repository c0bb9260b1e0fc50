package models

import "time"

// ExecutionStatus is the lifecycle state of one traversal run.
type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
)

// StepStatus is the outcome of one node visit.
type StepStatus string

const (
	StepStatusCompleted StepStatus = "completed"
	StepStatusSkipped   StepStatus = "skipped"
	StepStatusFailed    StepStatus = "failed"
)

// ExecutionLog is the persisted audit record of one traversal run.
type ExecutionLog struct {
	ID               string          `json:"id"`
	WorkflowID       string          `json:"workflow_id"`
	WorkflowType     WorkflowType    `json:"workflow_type"`
	Status           ExecutionStatus `json:"status"`
	CurrentNodeID    string          `json:"current_node_id,omitempty"`
	CurrentNodeLabel string          `json:"current_node_label,omitempty"`
	ContextData      map[string]any  `json:"context_data,omitempty"`
	ErrorMessage     string          `json:"error_message,omitempty"`
	StartedAt        time.Time       `json:"started_at"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"`
}

// StepLog is the persisted audit record of one node visit within a run.
type StepLog struct {
	ID             string         `json:"id"`
	ExecutionLogID string         `json:"execution_log_id"`
	NodeID         string         `json:"node_id"`
	NodeLabel      string         `json:"node_label"`
	StepType       string         `json:"step_type"`
	Status         StepStatus     `json:"status"`
	InputData      map[string]any `json:"input_data,omitempty"`
	OutputData     map[string]any `json:"output_data,omitempty"`
	UserResponse   string         `json:"user_response,omitempty"`
	ErrorMessage   string         `json:"error_message,omitempty"`
	DurationMs     int64          `json:"duration_ms"`
	StartedAt      time.Time      `json:"started_at"`
	CompletedAt    time.Time      `json:"completed_at"`
}
