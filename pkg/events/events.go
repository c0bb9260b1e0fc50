// Package events defines the run lifecycle notifications published on the bus.
package events

import (
	"time"

	"github.com/loadbridge/loadbridge/pkg/engine"
	"github.com/loadbridge/loadbridge/pkg/models"
)

type EventType string

// Topic carries all run lifecycle events.
const Topic = "loadbridge.runs"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	RunRequestedEvent EventType = "run.requested"
	RunStartedEvent   EventType = "run.started"
	RunCompletedEvent EventType = "run.completed"
	RunFailedEvent    EventType = "run.failed"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id"`
	WorkerID   string         `json:"worker_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// RunRequested asks any worker to execute a workflow against a document.
type RunRequested struct {
	BaseEvent

	Request engine.RunRequest `json:"request"`
}

func (r RunRequested) GetType() EventType {
	return RunRequestedEvent
}

// RunStarted is published by the worker that claimed a requested run.
type RunStarted struct {
	BaseEvent

	ExecutionLogID string              `json:"execution_log_id,omitempty"`
	WorkflowType   models.WorkflowType `json:"workflow_type,omitempty"`
}

func (r RunStarted) GetType() EventType {
	return RunStartedEvent
}

type RunCompleted struct {
	BaseEvent

	ExecutionLogID  string         `json:"execution_log_id"`
	ExtractionLogID string         `json:"extraction_log_id,omitempty"`
	FinalContext    map[string]any `json:"final_context,omitempty"`
	Duration        time.Duration  `json:"duration"`
}

func (r RunCompleted) GetType() EventType {
	return RunCompletedEvent
}

type RunFailed struct {
	BaseEvent

	ExecutionLogID  string        `json:"execution_log_id"`
	ExtractionLogID string        `json:"extraction_log_id,omitempty"`
	Error           string        `json:"error"`
	Duration        time.Duration `json:"duration"`
}

func (r RunFailed) GetType() EventType {
	return RunFailedEvent
}
