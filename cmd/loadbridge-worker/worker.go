package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/loadbridge/loadbridge/pkg/engine"
	"github.com/loadbridge/loadbridge/pkg/eventbus"
	"github.com/loadbridge/loadbridge/pkg/events"
)

// Worker consumes run-requested events and executes them, reporting the
// outcome back on the bus.
type Worker struct {
	id     string
	runner *engine.Runner
	bus    eventbus.EventBus
	logger *slog.Logger
}

func NewWorker(id string, runner *engine.Runner, bus eventbus.EventBus, logger *slog.Logger) *Worker {
	return &Worker{
		id:     id,
		runner: runner,
		bus:    bus,
		logger: logger,
	}
}

// Start subscribes to the run topic and blocks until the context is
// cancelled.
func (w *Worker) Start(ctx context.Context) error {
	err := w.bus.Handle(events.RunRequestedEvent, w.handleRunRequested)
	if err != nil {
		return err
	}

	err = w.bus.Subscribe(ctx)
	if err != nil {
		return err
	}

	w.logger.InfoContext(ctx, "Worker started, waiting for run requests")

	<-ctx.Done()

	return nil
}

func (w *Worker) handleRunRequested(ctx context.Context, event any) error {
	requested, ok := event.(*events.RunRequested)
	if !ok {
		w.logger.WarnContext(ctx, "Ignoring unexpected event payload")

		return nil
	}

	w.logger.InfoContext(ctx, "Claimed run request",
		"event_id", requested.ID, "workflow_id", requested.Request.WorkflowID)

	w.publish(ctx, requested.Request.WorkflowID, events.RunStarted{
		BaseEvent: w.baseEvent(events.RunStartedEvent, requested.Request.WorkflowID),
	})

	started := time.Now()

	result, err := w.runner.Run(ctx, &requested.Request)
	if err != nil {
		w.logger.ErrorContext(ctx, "Run failed",
			"workflow_id", requested.Request.WorkflowID, "error", err)

		failed := events.RunFailed{
			BaseEvent:       w.baseEvent(events.RunFailedEvent, requested.Request.WorkflowID),
			ExtractionLogID: requested.Request.ExtractionLogID,
			Error:           err.Error(),
			Duration:        time.Since(started),
		}

		var runErr *engine.RunError
		if errors.As(err, &runErr) {
			failed.ExecutionLogID = runErr.ExecutionLogID
		}

		w.publish(ctx, requested.Request.WorkflowID, failed)

		// The failure is reported on the bus; nacking would only replay it.
		return nil
	}

	w.logger.InfoContext(ctx, "Run completed",
		"workflow_id", requested.Request.WorkflowID, "execution_log_id", result.ExecutionLogID)

	w.publish(ctx, requested.Request.WorkflowID, events.RunCompleted{
		BaseEvent:       w.baseEvent(events.RunCompletedEvent, requested.Request.WorkflowID),
		ExecutionLogID:  result.ExecutionLogID,
		ExtractionLogID: result.ExtractionLogID,
		FinalContext:    result.FinalContext,
		Duration:        time.Since(started),
	})

	return nil
}

func (w *Worker) baseEvent(eventType events.EventType, workflowID string) events.BaseEvent {
	return events.BaseEvent{
		ID:         w.bus.GenerateID(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
		WorkerID:   w.id,
	}
}

func (w *Worker) publish(ctx context.Context, key string, event eventbus.Event) {
	err := w.bus.Publish(ctx, key, event)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to publish event",
			"event_type", event.GetType(), "error", err)
	}
}
