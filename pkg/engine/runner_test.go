package engine_test

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/loadbridge/loadbridge/pkg/engine"
	"github.com/loadbridge/loadbridge/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGraphSource struct {
	workflows map[string]*models.Workflow
}

func (f *fakeGraphSource) WorkflowByID(_ context.Context, id string) (*models.Workflow, error) {
	workflow, ok := f.workflows[id]
	if !ok {
		return nil, errors.New("workflow not found")
	}

	return workflow, nil
}

func newTestRunner(workflow *models.Workflow, sink *recordingLogSink) *engine.Runner {
	logger := slog.Default()

	graphs := &fakeGraphSource{workflows: map[string]*models.Workflow{workflow.ID: workflow}}
	builder := engine.NewContextBuilder(nil, nil, logger)
	eng := newTestEngine(sink, &fakeTransfer{}, &fakeSender{})

	return engine.NewRunner(graphs, builder, eng, logger)
}

func renameOnlyWorkflow() *models.Workflow {
	return &models.Workflow{
		ID:       "wf-rename",
		Type:     models.WorkflowTypeExtraction,
		IsActive: true,
		Nodes: []*models.Node{
			{ID: "start", Kind: models.NodeKindStart},
			stepNode("rename", models.StepTypeRenameFile, map[string]any{"template": "{{billNumber}}.pdf"}),
		},
		Edges: []*models.Edge{edge("e1", "start", "rename", "")},
	}
}

func TestRunReturnsFinalContextAndLogIDs(t *testing.T) {
	t.Parallel()

	sink := &recordingLogSink{}
	runner := newTestRunner(renameOnlyWorkflow(), sink)

	result, err := runner.Run(context.Background(), &engine.RunRequest{
		WorkflowID:      "wf-rename",
		FormatType:      engine.FormatJSON,
		ExtractedData:   map[string]any{"billNumber": "B-1"},
		ExtractionLogID: "extr-42",
	})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "B-1.pdf", result.FinalContext["newFileName"])
	assert.Equal(t, "extr-42", result.ExtractionLogID)
	assert.True(t, strings.HasPrefix(result.ExecutionLogID, "exec-"))

	require.Len(t, sink.executions, 1)
	assert.Equal(t, result.ExecutionLogID, sink.executions[0].ID)
}

func TestRunFailureCarriesLogIDs(t *testing.T) {
	t.Parallel()

	workflow := renameOnlyWorkflow()
	// Break the rename config so the step fails to build.
	workflow.Nodes[1].Config = map[string]any{}

	sink := &recordingLogSink{}
	runner := newTestRunner(workflow, sink)

	_, err := runner.Run(context.Background(), &engine.RunRequest{
		WorkflowID:      "wf-rename",
		FormatType:      engine.FormatJSON,
		ExtractedData:   map[string]any{},
		ExtractionLogID: "extr-43",
	})
	require.Error(t, err)

	var runErr *engine.RunError
	require.ErrorAs(t, err, &runErr)

	assert.Equal(t, "extr-43", runErr.ExtractionLogID)
	assert.True(t, strings.HasPrefix(runErr.ExecutionLogID, "exec-"))
}

func TestRunRejectsInactiveWorkflow(t *testing.T) {
	t.Parallel()

	workflow := renameOnlyWorkflow()
	workflow.IsActive = false

	runner := newTestRunner(workflow, &recordingLogSink{})

	_, err := runner.Run(context.Background(), &engine.RunRequest{
		WorkflowID:    "wf-rename",
		FormatType:    engine.FormatJSON,
		ExtractedData: map[string]any{},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not active")
}

func TestRunUnknownWorkflow(t *testing.T) {
	t.Parallel()

	runner := newTestRunner(renameOnlyWorkflow(), &recordingLogSink{})

	_, err := runner.Run(context.Background(), &engine.RunRequest{WorkflowID: "missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to fetch workflow")
}
