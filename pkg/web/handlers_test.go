package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loadbridge/loadbridge/pkg/barcode"
	"github.com/loadbridge/loadbridge/pkg/channels/gochannel"
	"github.com/loadbridge/loadbridge/pkg/engine"
	"github.com/loadbridge/loadbridge/pkg/eventbus"
	"github.com/loadbridge/loadbridge/pkg/events"
	"github.com/loadbridge/loadbridge/pkg/models"
	"github.com/loadbridge/loadbridge/pkg/persistence/file"
	"github.com/loadbridge/loadbridge/pkg/protocol"
	"github.com/loadbridge/loadbridge/pkg/registry"
	"github.com/loadbridge/loadbridge/pkg/steps/renamefile"
	"github.com/loadbridge/loadbridge/pkg/web"
)

type fakeQueue struct {
	mu    sync.Mutex
	items []*protocol.ManualIndexItem
}

func (q *fakeQueue) Enqueue(_ context.Context, item *protocol.ManualIndexItem) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = append(q.items, item)

	return nil
}

type testServer struct {
	app   *fiber.App
	store *file.Persistence
	bus   eventbus.EventBus
	queue *fakeQueue
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := slog.Default()

	store, err := file.NewPersistence(t.TempDir())
	require.NoError(t, err)

	reg := registry.NewRegistry(logger)
	reg.RegisterStep(renamefile.NewFactory())

	eng := engine.NewEngine(reg, store, nil, logger)
	builder := engine.NewContextBuilder(store, nil, logger)
	runner := engine.NewRunner(store, builder, eng, logger)

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	t.Cleanup(func() { _ = bus.Close() })

	matcher, err := barcode.NewMatcher(barcode.Config{
		Template: "{documentType}-{detailLineId}",
		DocumentTypes: []barcode.DocumentType{
			{ID: "7", Name: "BOL"},
		},
	})
	require.NoError(t, err)

	queue := &fakeQueue{}
	barcodes := barcode.NewService(matcher, queue, logger)

	handlers := web.NewAPIHandlers(store, runner, bus, barcodes,
		validator.New(validator.WithRequiredStructEnabled()), reg)

	app := fiber.New()

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.CreateWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Delete("/:id", handlers.DeleteWorkflow)
	w.Post("/:id/run", handlers.RunWorkflow)
	w.Post("/:id/runs", handlers.EnqueueRun)
	w.Get("/:id/executions", handlers.GetWorkflowExecutions)

	app.Get("/executions/:id", handlers.GetExecution)
	app.Get("/executions/:id/steps", handlers.GetExecutionSteps)
	app.Post("/imaging/barcodes", handlers.IntakeBarcode)
	app.Get("/health", handlers.HealthCheck)

	return &testServer{app: app, store: store, bus: bus, queue: queue}
}

func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()

	var reader io.Reader

	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)

		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	return req
}

func decodeBody(t *testing.T, resp *http.Response, target any) {
	t.Helper()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(body, target))
}

func seedWorkflow(t *testing.T, server *testServer) *models.Workflow {
	t.Helper()

	workflow := &models.Workflow{
		ID:       "wf-rename",
		Name:     "rename inbound files",
		Type:     models.WorkflowTypeTransformation,
		IsActive: true,
		Nodes: []*models.Node{
			{ID: "start", Kind: models.NodeKindStart},
			{
				ID:       "rename",
				Kind:     models.NodeKindStep,
				StepType: models.StepTypeRenameFile,
				Label:    "Rename file",
				Config:   map[string]any{"template": "{{billNumber}}.pdf"},
			},
		},
		Edges: []*models.Edge{
			{ID: "e1", SourceNodeID: "start", TargetNodeID: "rename"},
		},
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, server.store.SaveWorkflow(context.Background(), workflow))

	return workflow
}

func TestCreateWorkflow(t *testing.T) {
	t.Parallel()

	server := setupTestServer(t)

	req := jsonRequest(t, http.MethodPost, "/workflows/", web.CreateWorkflowRequest{
		Name: "invoice extraction",
		Type: models.WorkflowTypeExtraction,
		Nodes: []*models.Node{
			{ID: "start", Kind: models.NodeKindStart},
			{ID: "fetch", Kind: models.NodeKindStep, StepType: models.StepTypeAPICall},
		},
		Edges: []*models.Edge{
			{ID: "e1", SourceNodeID: "start", TargetNodeID: "fetch"},
		},
	})

	resp, err := server.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var created models.Workflow

	decodeBody(t, resp, &created)
	assert.NotEmpty(t, created.ID)
	assert.True(t, created.IsActive)
	assert.Equal(t, "invoice extraction", created.Name)
}

func TestCreateWorkflowRejectsTwoStartNodes(t *testing.T) {
	t.Parallel()

	server := setupTestServer(t)

	req := jsonRequest(t, http.MethodPost, "/workflows/", web.CreateWorkflowRequest{
		Name: "broken graph",
		Type: models.WorkflowTypeExtraction,
		Nodes: []*models.Node{
			{ID: "start", Kind: models.NodeKindStart},
			{ID: "start2", Kind: models.NodeKindStart},
		},
	})

	resp, err := server.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetWorkflowNotFound(t *testing.T) {
	t.Parallel()

	server := setupTestServer(t)

	resp, err := server.app.Test(httptest.NewRequest(http.MethodGet, "/workflows/missing", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteWorkflow(t *testing.T) {
	t.Parallel()

	server := setupTestServer(t)
	seedWorkflow(t, server)

	resp, err := server.app.Test(httptest.NewRequest(http.MethodDelete, "/workflows/wf-rename", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = server.app.Test(httptest.NewRequest(http.MethodGet, "/workflows/wf-rename", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRunWorkflowSynchronously(t *testing.T) {
	t.Parallel()

	server := setupTestServer(t)
	seedWorkflow(t, server)

	req := jsonRequest(t, http.MethodPost, "/workflows/wf-rename/run", map[string]any{
		"format_type":    "json",
		"extracted_data": map[string]any{"billNumber": "B-77"},
	})

	resp, err := server.app.Test(req, fiber.TestConfig{Timeout: 10 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var result engine.RunResult

	decodeBody(t, resp, &result)
	assert.True(t, result.Success)
	assert.Equal(t, "B-77.pdf", result.FinalContext["newFileName"])
	assert.NotEmpty(t, result.ExecutionLogID)

	// The run's logs are queryable afterwards.
	resp, err = server.app.Test(httptest.NewRequest(http.MethodGet, "/executions/"+result.ExecutionLogID, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var execLog models.ExecutionLog

	decodeBody(t, resp, &execLog)
	assert.Equal(t, models.ExecutionStatusCompleted, execLog.Status)

	resp, err = server.app.Test(httptest.NewRequest(http.MethodGet, "/executions/"+result.ExecutionLogID+"/steps", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var steps struct {
		Steps []*models.StepLog `json:"steps"`
	}

	decodeBody(t, resp, &steps)
	require.Len(t, steps.Steps, 1)
	assert.Equal(t, "rename", steps.Steps[0].NodeID)
}

func TestRunWorkflowInactiveConflict(t *testing.T) {
	t.Parallel()

	server := setupTestServer(t)
	workflow := seedWorkflow(t, server)
	workflow.IsActive = false
	require.NoError(t, server.store.SaveWorkflow(context.Background(), workflow))

	req := jsonRequest(t, http.MethodPost, "/workflows/wf-rename/run", map[string]any{
		"format_type":    "json",
		"extracted_data": map[string]any{},
	})

	resp, err := server.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestRunWorkflowNotFound(t *testing.T) {
	t.Parallel()

	server := setupTestServer(t)

	req := jsonRequest(t, http.MethodPost, "/workflows/missing/run", map[string]any{
		"format_type": "json",
	})

	resp, err := server.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRunWorkflowFailureReturnsLogIDs(t *testing.T) {
	t.Parallel()

	server := setupTestServer(t)
	workflow := seedWorkflow(t, server)
	workflow.Nodes[1].Config = map[string]any{}
	require.NoError(t, server.store.SaveWorkflow(context.Background(), workflow))

	req := jsonRequest(t, http.MethodPost, "/workflows/wf-rename/run", map[string]any{
		"format_type":       "json",
		"extracted_data":    map[string]any{},
		"extraction_log_id": "extr-9",
	})

	resp, err := server.app.Test(req, fiber.TestConfig{Timeout: 10 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	var failure map[string]any

	decodeBody(t, resp, &failure)
	assert.Equal(t, "run_failed", failure["type"])
	assert.Equal(t, "extr-9", failure["extraction_log_id"])
	assert.NotEmpty(t, failure["execution_log_id"])
}

func TestEnqueueRunPublishesEvent(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	server := setupTestServer(t)
	seedWorkflow(t, server)

	received := make(chan *events.RunRequested, 1)

	require.NoError(t, server.bus.Handle(events.RunRequestedEvent, func(_ context.Context, event any) error {
		requested, ok := event.(*events.RunRequested)
		if ok {
			received <- requested
		}

		return nil
	}))
	require.NoError(t, server.bus.Subscribe(ctx))

	req := jsonRequest(t, http.MethodPost, "/workflows/wf-rename/runs", map[string]any{
		"format_type":    "json",
		"extracted_data": map[string]any{"billNumber": "B-5"},
	})

	resp, err := server.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	var ack web.EnqueueRunResponse

	decodeBody(t, resp, &ack)
	assert.Equal(t, "queued", ack.Status)
	assert.NotEmpty(t, ack.EventID)

	select {
	case event := <-received:
		assert.Equal(t, "wf-rename", event.Request.WorkflowID)
	case <-ctx.Done():
		t.Fatal("timed out waiting for run requested event")
	}
}

func TestIntakeBarcodeMatched(t *testing.T) {
	t.Parallel()

	server := setupTestServer(t)

	req := jsonRequest(t, http.MethodPost, "/imaging/barcodes", web.BarcodeRequest{
		Barcode:  "BOL-12345",
		Filename: "scan-001.pdf",
	})

	resp, err := server.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var result web.BarcodeResponse

	decodeBody(t, resp, &result)
	assert.True(t, result.Matched)
	assert.Equal(t, "7", result.DocumentTypeID)
	assert.Equal(t, "12345", result.DetailLineID)
}

func TestIntakeBarcodeUnmatchedIsQueued(t *testing.T) {
	t.Parallel()

	server := setupTestServer(t)

	req := jsonRequest(t, http.MethodPost, "/imaging/barcodes", web.BarcodeRequest{
		Barcode: "UNKNOWN-1",
	})

	resp, err := server.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	var result web.BarcodeResponse

	decodeBody(t, resp, &result)
	assert.False(t, result.Matched)
	assert.True(t, result.Queued)
	require.Len(t, server.queue.items, 1)
	assert.Equal(t, "UNKNOWN-1", server.queue.items[0].Barcode)
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	server := setupTestServer(t)

	resp, err := server.app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health map[string]any

	decodeBody(t, resp, &health)
	assert.Equal(t, "healthy", health["status"])
}
