// Package engine walks a workflow graph node by node, threading the mutable
// run state through each step executor and persisting execution and step logs
// along the way.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/loadbridge/loadbridge/pkg/graph"
	"github.com/loadbridge/loadbridge/pkg/models"
	"github.com/loadbridge/loadbridge/pkg/otelhelper"
	"github.com/loadbridge/loadbridge/pkg/protocol"
	"github.com/loadbridge/loadbridge/pkg/registry"
	"github.com/loadbridge/loadbridge/pkg/template"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// maxNodeVisits is the only defense against graphs with loops. The engine does
// not analyze the graph for cycles, it just counts visits.
const maxNodeVisits = 100

type Engine struct {
	registry *registry.Registry
	logs     protocol.LogSink
	tracer   trace.Tracer
	logger   *slog.Logger
}

func NewEngine(reg *registry.Registry, logs protocol.LogSink, tracer trace.Tracer, logger *slog.Logger) *Engine {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("engine")
	}

	return &Engine{
		registry: reg,
		logs:     logs,
		tracer:   tracer,
		logger:   logger,
	}
}

// Execute runs one traversal to completion or failure. The returned execution
// log carries the final status; on failure the error describes the node that
// aborted the run.
func (e *Engine) Execute(ctx context.Context, workflow *models.Workflow, run *models.Run) (*models.ExecutionLog, error) {
	logger := e.logger.With(
		"workflow_id", workflow.ID,
		"execution_id", run.ExecutionID,
	)

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.execute",
		attribute.String(otelhelper.WorkflowIDKey, workflow.ID),
		attribute.String(otelhelper.WorkflowTypeKey, string(workflow.Type)),
		attribute.String(otelhelper.ExecutionIDKey, run.ExecutionID),
	)
	defer span.End()

	execLog := &models.ExecutionLog{
		ID:           run.ExecutionID,
		WorkflowID:   workflow.ID,
		WorkflowType: workflow.Type,
		Status:       models.ExecutionStatusRunning,
		ContextData:  run.Snapshot(),
		StartedAt:    time.Now(),
	}
	e.logBestEffort(ctx, logger, "create execution log", func() error {
		return e.logs.CreateExecutionLog(ctx, execLog)
	})

	logger.InfoContext(ctx, "Starting workflow execution")

	err := e.traverse(ctx, logger, workflow, run, execLog)
	if err != nil {
		otelhelper.SetError(span, err)
		e.finishExecution(ctx, logger, run, execLog, models.ExecutionStatusFailed, err.Error())

		return execLog, err
	}

	e.finishExecution(ctx, logger, run, execLog, models.ExecutionStatusCompleted, "")
	logger.InfoContext(ctx, "Workflow execution completed")

	return execLog, nil
}

func (e *Engine) traverse(ctx context.Context, logger *slog.Logger, workflow *models.Workflow, run *models.Run, execLog *models.ExecutionLog) error {
	start, ok := workflow.StartNode()
	if !ok {
		return fmt.Errorf("workflow %s has no start node", workflow.ID)
	}

	edgeMap := graph.BuildEdgeMap(workflow.Edges)

	currentID, ok := edgeMap.NextNodeID(start.ID, models.DefaultHandle)
	if !ok {
		logger.InfoContext(ctx, "Workflow has no steps to execute")

		return nil
	}

	visits := 0

	for {
		visits++
		if visits > maxNodeVisits {
			return fmt.Errorf("traversal aborted after %d node visits: workflow %s likely contains a cycle", maxNodeVisits, workflow.ID)
		}

		node, found := workflow.NodeByID(currentID)
		if !found {
			return fmt.Errorf("node %s not found in workflow %s", currentID, workflow.ID)
		}

		// A start node reached mid-traversal is a pass-through.
		if node.IsStart() {
			next, ok := edgeMap.NextNodeID(node.ID, models.DefaultHandle)
			if !ok {
				return nil
			}

			currentID = next

			continue
		}

		execLog.CurrentNodeID = node.ID
		execLog.CurrentNodeLabel = node.Label
		execLog.ContextData = run.Snapshot()
		e.logBestEffort(ctx, logger, "update execution log", func() error {
			return e.logs.UpdateExecutionLog(ctx, execLog)
		})

		handle, err := e.visitNode(ctx, logger, node, run)
		if err != nil {
			return err
		}

		next, ok := edgeMap.NextNodeID(node.ID, handle)
		if !ok {
			return nil
		}

		currentID = next
	}
}

// visitNode runs one node and returns the routing handle to leave through.
func (e *Engine) visitNode(ctx context.Context, logger *slog.Logger, node *models.Node, run *models.Run) (string, error) {
	nodeLogger := logger.With("node_id", node.ID, "step_type", node.StepType)

	if skip, reason := shouldSkip(node.Config, run.Context); skip {
		nodeLogger.InfoContext(ctx, "Skipping step", "reason", reason)
		e.persistStepLog(ctx, nodeLogger, &models.StepLog{
			ID:             uuid.NewString(),
			ExecutionLogID: run.ExecutionID,
			NodeID:         node.ID,
			NodeLabel:      node.Label,
			StepType:       node.StepType,
			Status:         models.StepStatusSkipped,
			OutputData:     map[string]any{"reason": reason},
			StartedAt:      time.Now(),
			CompletedAt:    time.Now(),
		})

		return models.DefaultHandle, nil
	}

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "step."+node.StepType,
		attribute.String(otelhelper.NodeIDKey, node.ID),
		attribute.String(otelhelper.NodeLabelKey, node.Label),
		attribute.String(otelhelper.StepTypeKey, node.StepType),
	)
	defer span.End()

	started := time.Now()
	config := stepConfig(node)

	step, err := e.registry.CreateStep(node.StepType, config)
	if err != nil {
		e.persistFailure(ctx, nodeLogger, node, run, config, started, err)
		otelhelper.SetError(span, err)

		return "", fmt.Errorf("step '%s' (%s) configuration: %w", node.Label, node.StepType, err)
	}

	nodeLogger.InfoContext(ctx, "Executing step")

	result, err := step.Execute(ctx, run, nodeLogger)
	if err != nil {
		if result != nil && len(result.SubSteps) > 0 {
			e.persistSubSteps(ctx, nodeLogger, node, run, result.SubSteps)
		} else {
			e.persistFailure(ctx, nodeLogger, node, run, config, started, err)
		}

		otelhelper.SetError(span, err)

		return "", fmt.Errorf("step '%s' (%s) failed: %w", node.Label, node.StepType, err)
	}

	if len(result.SubSteps) > 0 {
		e.persistSubSteps(ctx, nodeLogger, node, run, result.SubSteps)
	} else {
		completed := time.Now()
		e.persistStepLog(ctx, nodeLogger, &models.StepLog{
			ID:             uuid.NewString(),
			ExecutionLogID: run.ExecutionID,
			NodeID:         node.ID,
			NodeLabel:      node.Label,
			StepType:       node.StepType,
			Status:         models.StepStatusCompleted,
			InputData:      config,
			OutputData:     result.Output,
			UserResponse:   userResponse(node, run.Context),
			DurationMs:     completed.Sub(started).Milliseconds(),
			StartedAt:      started,
			CompletedAt:    completed,
		})
	}

	if result.Handle == "" {
		return models.DefaultHandle, nil
	}

	return result.Handle, nil
}

// stepConfig copies the node's config and folds in the node-level flags the
// executors read from config.
func stepConfig(node *models.Node) map[string]any {
	config := make(map[string]any, len(node.Config)+1)
	for k, v := range node.Config {
		config[k] = v
	}

	if node.EscapeSingleQuotesInBody {
		config["escapeSingleQuotesInBody"] = true
	}

	return config
}

// shouldSkip evaluates the two optional skip predicates. skipIf wins over
// runIf when both are set.
func shouldSkip(config, ctx map[string]any) (bool, string) {
	if path, ok := config["skipIf"].(string); ok && path != "" {
		value, _ := template.Lookup(path, ctx)
		if truthy(value) {
			return true, fmt.Sprintf("skipIf '%s' is truthy", path)
		}
	}

	if path, ok := config["runIf"].(string); ok && path != "" {
		value, _ := template.Lookup(path, ctx)
		if !truthy(value) {
			return true, fmt.Sprintf("runIf '%s' is not truthy", path)
		}
	}

	return false, ""
}

func truthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != "" && v != "false" && v != "0"
	case float64:
		return v != 0
	case int:
		return v != 0
	case int64:
		return v != 0
	case map[string]any:
		return len(v) > 0
	case []any:
		return len(v) > 0
	default:
		return true
	}
}

// userResponse resolves the node's human-readable summary template against the
// current context. Unresolved placeholders stay verbatim, so a template that
// does not resolve still surfaces as written.
func userResponse(node *models.Node, ctx map[string]any) string {
	if node.UserResponseTemplate == "" {
		return ""
	}

	return template.ResolveSingle(node.UserResponseTemplate, ctx)
}

func (e *Engine) persistFailure(ctx context.Context, logger *slog.Logger, node *models.Node, run *models.Run, config map[string]any, started time.Time, stepErr error) {
	completed := time.Now()
	e.persistStepLog(ctx, logger, &models.StepLog{
		ID:             uuid.NewString(),
		ExecutionLogID: run.ExecutionID,
		NodeID:         node.ID,
		NodeLabel:      node.Label,
		StepType:       node.StepType,
		Status:         models.StepStatusFailed,
		InputData:      config,
		ErrorMessage:   stepErr.Error(),
		DurationMs:     completed.Sub(started).Milliseconds(),
		StartedAt:      started,
		CompletedAt:    completed,
	})
}

// persistSubSteps writes one step log row per phase of a composite step,
// replacing the generic top-level row.
func (e *Engine) persistSubSteps(ctx context.Context, logger *slog.Logger, node *models.Node, run *models.Run, subSteps []protocol.SubStep) {
	for _, sub := range subSteps {
		e.persistStepLog(ctx, logger, &models.StepLog{
			ID:             uuid.NewString(),
			ExecutionLogID: run.ExecutionID,
			NodeID:         node.ID,
			NodeLabel:      node.Label + ": " + sub.Label,
			StepType:       node.StepType,
			Status:         sub.Status,
			InputData:      sub.Input,
			OutputData:     sub.Output,
			ErrorMessage:   sub.Error,
			UserResponse:   userResponse(node, run.Context),
			DurationMs:     sub.CompletedAt.Sub(sub.StartedAt).Milliseconds(),
			StartedAt:      sub.StartedAt,
			CompletedAt:    sub.CompletedAt,
		})
	}
}

func (e *Engine) persistStepLog(ctx context.Context, logger *slog.Logger, stepLog *models.StepLog) {
	e.logBestEffort(ctx, logger, "create step log", func() error {
		return e.logs.CreateStepLog(ctx, stepLog)
	})
}

func (e *Engine) finishExecution(ctx context.Context, logger *slog.Logger, run *models.Run, execLog *models.ExecutionLog, status models.ExecutionStatus, errMsg string) {
	now := time.Now()
	execLog.Status = status
	execLog.ErrorMessage = errMsg
	execLog.ContextData = run.Snapshot()
	execLog.CompletedAt = &now

	e.logBestEffort(ctx, logger, "finalize execution log", func() error {
		return e.logs.UpdateExecutionLog(ctx, execLog)
	})
}

// logBestEffort runs one log write and swallows its error. A failed log write
// must never change the business outcome of a run.
func (e *Engine) logBestEffort(ctx context.Context, logger *slog.Logger, what string, write func() error) {
	err := write()
	if err != nil {
		logger.WarnContext(ctx, "Log write failed", "write", what, "error", err)
	}
}
