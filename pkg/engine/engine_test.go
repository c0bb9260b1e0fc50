package engine_test

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/loadbridge/loadbridge/pkg/engine"
	"github.com/loadbridge/loadbridge/pkg/models"
	"github.com/loadbridge/loadbridge/pkg/protocol"
	"github.com/loadbridge/loadbridge/pkg/registry"
	"github.com/loadbridge/loadbridge/pkg/steps/apicall"
	"github.com/loadbridge/loadbridge/pkg/steps/conditional"
	"github.com/loadbridge/loadbridge/pkg/steps/emailaction"
	"github.com/loadbridge/loadbridge/pkg/steps/renamefile"
	"github.com/loadbridge/loadbridge/pkg/steps/sftpupload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogSink struct {
	mu         sync.Mutex
	executions []*models.ExecutionLog
	steps      []*models.StepLog
	failWrites bool
}

func (s *recordingLogSink) CreateExecutionLog(_ context.Context, log *models.ExecutionLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failWrites {
		return errors.New("log store unavailable")
	}

	s.executions = append(s.executions, log)

	return nil
}

func (s *recordingLogSink) UpdateExecutionLog(_ context.Context, _ *models.ExecutionLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failWrites {
		return errors.New("log store unavailable")
	}

	return nil
}

func (s *recordingLogSink) CreateStepLog(_ context.Context, log *models.StepLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failWrites {
		return errors.New("log store unavailable")
	}

	s.steps = append(s.steps, log)

	return nil
}

func (s *recordingLogSink) visitedNodeIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.steps))
	for _, step := range s.steps {
		ids = append(ids, step.NodeID)
	}

	return ids
}

type fakeTransfer struct {
	uploads map[string][]byte
}

func (f *fakeTransfer) Upload(_ context.Context, remotePath string, data []byte) error {
	if f.uploads == nil {
		f.uploads = make(map[string][]byte)
	}

	f.uploads[remotePath] = data

	return nil
}

type fakeSender struct {
	sent []*protocol.MailMessage
}

func (f *fakeSender) Send(_ context.Context, _ string, msg *protocol.MailMessage) error {
	f.sent = append(f.sent, msg)

	return nil
}

func newTestEngine(sink protocol.LogSink, transfer protocol.FileTransfer, sender protocol.MailSender) *engine.Engine {
	logger := slog.Default()

	reg := registry.NewRegistry(logger)
	reg.RegisterStep(apicall.NewFactory())
	reg.RegisterStep(conditional.NewFactory())
	reg.RegisterStep(renamefile.NewFactory())
	reg.RegisterStep(sftpupload.NewFactory(transfer))
	reg.RegisterStep(emailaction.NewFactory(sender))

	return engine.NewEngine(reg, sink, nil, logger)
}

func stepNode(id, stepType string, config map[string]any) *models.Node {
	return &models.Node{
		ID:       id,
		Kind:     models.NodeKindStep,
		StepType: stepType,
		Label:    id,
		Config:   config,
	}
}

func edge(id, source, target, handle string) *models.Edge {
	return &models.Edge{ID: id, SourceNodeID: source, TargetNodeID: target, SourceHandle: handle}
}

// orderWorkflow is the canonical scenario: fetch an order, branch on its
// status, rename and upload on success, notify by email on failure.
func orderWorkflow(apiURL string) *models.Workflow {
	return &models.Workflow{
		ID:       "wf-orders",
		Name:     "order processing",
		Type:     models.WorkflowTypeExtraction,
		IsActive: true,
		Nodes: []*models.Node{
			{ID: "start", Kind: models.NodeKindStart},
			stepNode("fetch-order", models.StepTypeAPICall, map[string]any{"url": apiURL}),
			stepNode("check-status", models.StepTypeConditionalCheck, map[string]any{
				"field":    "status",
				"operator": "equals",
				"value":    "approved",
			}),
			stepNode("rename", models.StepTypeRenameFile, map[string]any{
				"template": "{{orderId}}.pdf",
			}),
			stepNode("upload", models.StepTypeSFTPUpload, map[string]any{
				"remotePath": "/outbound/{{newFileName}}",
			}),
			stepNode("notify", models.StepTypeEmailAction, map[string]any{
				"to":      "ops@example.com",
				"subject": "Order {{orderId}} was not approved",
			}),
		},
		Edges: []*models.Edge{
			edge("e1", "start", "fetch-order", ""),
			edge("e2", "fetch-order", "check-status", ""),
			edge("e3", "check-status", "rename", models.SuccessHandle),
			edge("e4", "check-status", "notify", models.FailureHandle),
			edge("e5", "rename", "upload", ""),
		},
	}
}

func newRun(ctx map[string]any) *models.Run {
	return &models.Run{
		ExecutionID: "exec-test1234",
		WorkflowID:  "wf-orders",
		Mode:        models.WorkflowTypeExtraction,
		Context:     ctx,
	}
}

func TestExecuteApprovedOrderScenario(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"orderId": "A1", "carrier": "acme"}`))
	}))
	defer server.Close()

	sink := &recordingLogSink{}
	transfer := &fakeTransfer{}
	sender := &fakeSender{}
	eng := newTestEngine(sink, transfer, sender)

	run := newRun(map[string]any{
		"status":      "approved",
		"orderId":     "A1",
		"fileContent": []byte("pdf bytes"),
	})

	execLog, err := eng.Execute(context.Background(), orderWorkflow(server.URL), run)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, execLog.Status)
	require.NotNil(t, execLog.CompletedAt)

	assert.Equal(t, []string{"fetch-order", "check-status", "rename", "upload"}, sink.visitedNodeIDs())

	for _, step := range sink.steps {
		assert.Equal(t, models.StepStatusCompleted, step.Status)
	}

	assert.Equal(t, "A1.pdf", run.Context["newFileName"])
	assert.Equal(t, []byte("pdf bytes"), transfer.uploads["/outbound/A1.pdf"])
	assert.Empty(t, sender.sent)
	assert.NotNil(t, run.LastAPIResponse)
}

func TestExecuteRejectedOrderRoutesToFailureEdge(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	sink := &recordingLogSink{}
	sender := &fakeSender{}
	eng := newTestEngine(sink, &fakeTransfer{}, sender)

	run := newRun(map[string]any{"status": "rejected", "orderId": "A2"})

	execLog, err := eng.Execute(context.Background(), orderWorkflow(server.URL), run)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, execLog.Status)
	assert.Equal(t, []string{"fetch-order", "check-status", "notify"}, sink.visitedNodeIDs())

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "Order A2 was not approved", sender.sent[0].Subject)
}

func TestExecuteSkipIfAdvancesViaDefaultEdge(t *testing.T) {
	t.Parallel()

	workflow := &models.Workflow{
		ID:       "wf-skip",
		Type:     models.WorkflowTypeExtraction,
		IsActive: true,
		Nodes: []*models.Node{
			{ID: "start", Kind: models.NodeKindStart},
			stepNode("maybe-rename", models.StepTypeRenameFile, map[string]any{
				"template": "{{orderId}}.pdf",
				"skipIf":   "flagX",
			}),
			stepNode("rename", models.StepTypeRenameFile, map[string]any{
				"template": "final.pdf",
			}),
		},
		Edges: []*models.Edge{
			edge("e1", "start", "maybe-rename", ""),
			edge("e2", "maybe-rename", "rename", ""),
		},
	}

	sink := &recordingLogSink{}
	eng := newTestEngine(sink, &fakeTransfer{}, &fakeSender{})

	run := newRun(map[string]any{"flagX": true, "orderId": "A3"})

	_, err := eng.Execute(context.Background(), workflow, run)
	require.NoError(t, err)

	require.Len(t, sink.steps, 2)
	assert.Equal(t, models.StepStatusSkipped, sink.steps[0].Status)
	assert.Equal(t, models.StepStatusCompleted, sink.steps[1].Status)
	assert.Equal(t, "final.pdf", run.Context["newFileName"])
}

func TestExecuteRunIfSkipsWhenNotTruthy(t *testing.T) {
	t.Parallel()

	workflow := &models.Workflow{
		ID:       "wf-runif",
		Type:     models.WorkflowTypeExtraction,
		IsActive: true,
		Nodes: []*models.Node{
			{ID: "start", Kind: models.NodeKindStart},
			stepNode("guarded", models.StepTypeRenameFile, map[string]any{
				"template": "{{orderId}}.pdf",
				"runIf":    "hasOrder",
			}),
		},
		Edges: []*models.Edge{edge("e1", "start", "guarded", "")},
	}

	sink := &recordingLogSink{}
	eng := newTestEngine(sink, &fakeTransfer{}, &fakeSender{})

	run := newRun(map[string]any{})

	_, err := eng.Execute(context.Background(), workflow, run)
	require.NoError(t, err)

	require.Len(t, sink.steps, 1)
	assert.Equal(t, models.StepStatusSkipped, sink.steps[0].Status)
	assert.NotContains(t, run.Context, "newFileName")
}

func TestExecuteCycleGuardAbortsAtVisitCap(t *testing.T) {
	t.Parallel()

	workflow := &models.Workflow{
		ID:       "wf-cycle",
		Type:     models.WorkflowTypeExtraction,
		IsActive: true,
		Nodes: []*models.Node{
			{ID: "start", Kind: models.NodeKindStart},
			stepNode("loop", models.StepTypeRenameFile, map[string]any{"template": "same.pdf"}),
		},
		Edges: []*models.Edge{
			edge("e1", "start", "loop", ""),
			edge("e2", "loop", "loop", ""),
		},
	}

	sink := &recordingLogSink{}
	eng := newTestEngine(sink, &fakeTransfer{}, &fakeSender{})

	execLog, err := eng.Execute(context.Background(), workflow, newRun(map[string]any{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")

	assert.Equal(t, models.ExecutionStatusFailed, execLog.Status)
	assert.Len(t, sink.steps, 100)
}

func TestExecuteFailedStepAbortsRun(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	sink := &recordingLogSink{}
	sender := &fakeSender{}
	eng := newTestEngine(sink, &fakeTransfer{}, sender)

	run := newRun(map[string]any{"status": "approved"})

	execLog, err := eng.Execute(context.Background(), orderWorkflow(server.URL), run)
	require.Error(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, execLog.Status)
	assert.Contains(t, execLog.ErrorMessage, "500")

	// Exactly one step log, the failed one; nothing after it ran.
	require.Len(t, sink.steps, 1)
	assert.Equal(t, models.StepStatusFailed, sink.steps[0].Status)
	assert.Equal(t, "fetch-order", sink.steps[0].NodeID)
	assert.Empty(t, sender.sent)
}

func TestExecuteLogWriteFailuresDoNotAlterOutcome(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"orderId": "A1"}`))
	}))
	defer server.Close()

	sink := &recordingLogSink{failWrites: true}
	eng := newTestEngine(sink, &fakeTransfer{}, &fakeSender{})

	run := newRun(map[string]any{
		"status":      "approved",
		"orderId":     "A1",
		"fileContent": "payload",
	})

	execLog, err := eng.Execute(context.Background(), orderWorkflow(server.URL), run)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, execLog.Status)
	assert.Equal(t, "A1.pdf", run.Context["newFileName"])
}

func TestExecuteIsDeterministic(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"orderId": "A1"}`))
	}))
	defer server.Close()

	runOnce := func() ([]string, map[string]any) {
		sink := &recordingLogSink{}
		eng := newTestEngine(sink, &fakeTransfer{}, &fakeSender{})
		run := newRun(map[string]any{
			"status":      "approved",
			"orderId":     "A1",
			"fileContent": "payload",
		})

		_, err := eng.Execute(context.Background(), orderWorkflow(server.URL), run)
		require.NoError(t, err)

		return sink.visitedNodeIDs(), run.Context
	}

	firstVisits, firstContext := runOnce()
	secondVisits, secondContext := runOnce()

	assert.Equal(t, firstVisits, secondVisits)

	// The timestamp-free parts of the context must match exactly.
	assert.Equal(t, firstContext["newFileName"], secondContext["newFileName"])
	assert.Equal(t, firstContext["orderId"], secondContext["orderId"])
}

func TestExecuteUserResponseTemplate(t *testing.T) {
	t.Parallel()

	node := stepNode("rename", models.StepTypeRenameFile, map[string]any{"template": "{{orderId}}.pdf"})
	node.UserResponseTemplate = "Renamed the file to {newFileName}"

	workflow := &models.Workflow{
		ID:       "wf-summary",
		Type:     models.WorkflowTypeExtraction,
		IsActive: true,
		Nodes: []*models.Node{
			{ID: "start", Kind: models.NodeKindStart},
			node,
		},
		Edges: []*models.Edge{edge("e1", "start", "rename", "")},
	}

	sink := &recordingLogSink{}
	eng := newTestEngine(sink, &fakeTransfer{}, &fakeSender{})

	_, err := eng.Execute(context.Background(), workflow, newRun(map[string]any{"orderId": "A9"}))
	require.NoError(t, err)

	require.Len(t, sink.steps, 1)
	assert.Equal(t, "Renamed the file to A9.pdf", sink.steps[0].UserResponse)
}

func TestExecuteTerminatesWhenConditionalHasNoMatchingEdge(t *testing.T) {
	t.Parallel()

	// success edge only, condition false, no default: traversal ends cleanly.
	workflow := &models.Workflow{
		ID:       "wf-terminal",
		Type:     models.WorkflowTypeExtraction,
		IsActive: true,
		Nodes: []*models.Node{
			{ID: "start", Kind: models.NodeKindStart},
			stepNode("check", models.StepTypeConditionalCheck, map[string]any{
				"field":    "status",
				"operator": "equals",
				"value":    "approved",
			}),
			stepNode("rename", models.StepTypeRenameFile, map[string]any{"template": "x.pdf"}),
		},
		Edges: []*models.Edge{
			edge("e1", "start", "check", ""),
			edge("e2", "check", "rename", models.SuccessHandle),
		},
	}

	sink := &recordingLogSink{}
	eng := newTestEngine(sink, &fakeTransfer{}, &fakeSender{})

	execLog, err := eng.Execute(context.Background(), workflow, newRun(map[string]any{"status": "rejected"}))
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, execLog.Status)
	assert.Equal(t, []string{"check"}, sink.visitedNodeIDs())
}
