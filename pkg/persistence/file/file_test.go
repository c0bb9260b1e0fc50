package file_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loadbridge/loadbridge/pkg/models"
	"github.com/loadbridge/loadbridge/pkg/persistence"
	"github.com/loadbridge/loadbridge/pkg/persistence/file"
)

func newStore(t *testing.T) *file.Persistence {
	t.Helper()

	store, err := file.NewPersistence(t.TempDir())
	require.NoError(t, err)

	return store
}

func sampleWorkflow(id string) *models.Workflow {
	return &models.Workflow{
		ID:       id,
		Name:     "invoice extraction",
		Type:     models.WorkflowTypeExtraction,
		IsActive: true,
		Nodes: []*models.Node{
			{ID: "start", Kind: models.NodeKindStart},
			{
				ID:       "fetch",
				Kind:     models.NodeKindStep,
				StepType: "api_call",
				Label:    "Fetch order",
				Config:   map[string]any{"url": "https://api.example.com/orders", "method": "GET"},
			},
		},
		Edges: []*models.Edge{
			{ID: "e1", SourceNodeID: "start", TargetNodeID: "fetch", SourceHandle: "default"},
		},
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
}

func TestWorkflowRoundTrip(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveWorkflow(ctx, sampleWorkflow("wf-1")))

	loaded, err := store.WorkflowByID(ctx, "wf-1")
	require.NoError(t, err)

	assert.Equal(t, "invoice extraction", loaded.Name)
	require.Len(t, loaded.Nodes, 2)
	assert.Equal(t, "api_call", loaded.Nodes[1].StepType)
	assert.Equal(t, "GET", loaded.Nodes[1].Config["method"])
	require.Len(t, loaded.Edges, 1)
	assert.Equal(t, "fetch", loaded.Edges[0].TargetNodeID)
}

func TestWorkflowByIDNotFound(t *testing.T) {
	t.Parallel()

	store := newStore(t)

	_, err := store.WorkflowByID(context.Background(), "missing")
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestDeleteWorkflow(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveWorkflow(ctx, sampleWorkflow("wf-2")))
	require.NoError(t, store.DeleteWorkflow(ctx, "wf-2"))

	_, err := store.WorkflowByID(ctx, "wf-2")
	assert.True(t, persistence.IsWorkflowNotFound(err))

	err = store.DeleteWorkflow(ctx, "wf-2")
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestWorkflowsSortedByCreatedAtDescending(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	ctx := context.Background()

	older := sampleWorkflow("wf-old")
	older.CreatedAt = time.Now().UTC().Add(-time.Hour)
	newer := sampleWorkflow("wf-new")

	require.NoError(t, store.SaveWorkflow(ctx, older))
	require.NoError(t, store.SaveWorkflow(ctx, newer))

	workflows, err := store.Workflows(ctx)
	require.NoError(t, err)
	require.Len(t, workflows, 2)
	assert.Equal(t, "wf-new", workflows[0].ID)
	assert.Equal(t, "wf-old", workflows[1].ID)
}

func TestExecutionLogLifecycle(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	ctx := context.Background()

	log := &models.ExecutionLog{
		ID:           "exec-1",
		WorkflowID:   "wf-1",
		WorkflowType: models.WorkflowTypeExtraction,
		Status:       models.ExecutionStatusRunning,
		StartedAt:    time.Now().UTC(),
	}
	require.NoError(t, store.CreateExecutionLog(ctx, log))

	completed := time.Now().UTC()
	log.Status = models.ExecutionStatusCompleted
	log.CompletedAt = &completed
	log.ContextData = map[string]any{"orderId": "A1"}
	require.NoError(t, store.UpdateExecutionLog(ctx, log))

	loaded, err := store.ExecutionLogByID(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, loaded.Status)
	assert.Equal(t, "A1", loaded.ContextData["orderId"])
	require.NotNil(t, loaded.CompletedAt)
}

func TestUpdateExecutionLogNotFound(t *testing.T) {
	t.Parallel()

	store := newStore(t)

	err := store.UpdateExecutionLog(context.Background(), &models.ExecutionLog{ID: "exec-missing"})
	assert.ErrorIs(t, err, persistence.ErrExecutionLogNotFound)
}

func TestExecutionLogsByWorkflowIDFiltersAndLimits(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	ctx := context.Background()
	base := time.Now().UTC()

	for i, id := range []string{"exec-a", "exec-b", "exec-c"} {
		require.NoError(t, store.CreateExecutionLog(ctx, &models.ExecutionLog{
			ID:         id,
			WorkflowID: "wf-1",
			Status:     models.ExecutionStatusCompleted,
			StartedAt:  base.Add(time.Duration(i) * time.Minute),
		}))
	}

	require.NoError(t, store.CreateExecutionLog(ctx, &models.ExecutionLog{
		ID:         "exec-other",
		WorkflowID: "wf-2",
		Status:     models.ExecutionStatusCompleted,
		StartedAt:  base,
	}))

	logs, err := store.ExecutionLogsByWorkflowID(ctx, "wf-1", 2)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "exec-c", logs[0].ID)
	assert.Equal(t, "exec-b", logs[1].ID)
}

func TestStepLogsOrderedByStart(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	ctx := context.Background()
	base := time.Now().UTC()

	second := &models.StepLog{
		ID:             "step-2",
		ExecutionLogID: "exec-1",
		NodeID:         "upload",
		Status:         models.StepStatusCompleted,
		StartedAt:      base.Add(time.Second),
		CompletedAt:    base.Add(2 * time.Second),
	}
	first := &models.StepLog{
		ID:             "step-1",
		ExecutionLogID: "exec-1",
		NodeID:         "rename",
		Status:         models.StepStatusCompleted,
		StartedAt:      base,
		CompletedAt:    base.Add(time.Second),
	}

	require.NoError(t, store.CreateStepLog(ctx, second))
	require.NoError(t, store.CreateStepLog(ctx, first))

	logs, err := store.StepLogsByExecutionID(ctx, "exec-1")
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "rename", logs[0].NodeID)
	assert.Equal(t, "upload", logs[1].NodeID)
}

func TestStepLogsForUnknownExecutionIsEmpty(t *testing.T) {
	t.Parallel()

	store := newStore(t)

	logs, err := store.StepLogsByExecutionID(context.Background(), "exec-missing")
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestGroupFieldsPriorGroups(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveGroupFields(ctx, "session-1", 1, map[string]any{"po": "P-100"}))
	require.NoError(t, store.SaveGroupFields(ctx, "session-1", 2, map[string]any{"po": "P-200"}))
	require.NoError(t, store.SaveGroupFields(ctx, "session-1", 3, map[string]any{"po": "P-300"}))

	groups, err := store.PriorGroupFields(ctx, "session-1", 3)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "P-100", groups[0]["po"])
	assert.Equal(t, "P-200", groups[1]["po"])
}

func TestGroupFieldsUpsert(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveGroupFields(ctx, "session-2", 1, map[string]any{"po": "old"}))
	require.NoError(t, store.SaveGroupFields(ctx, "session-2", 1, map[string]any{"po": "new"}))

	groups, err := store.PriorGroupFields(ctx, "session-2", 2)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "new", groups[0]["po"])
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	store := newStore(t)

	assert.NoError(t, store.HealthCheck(context.Background()))
	assert.NoError(t, store.Close(context.Background()))
}
