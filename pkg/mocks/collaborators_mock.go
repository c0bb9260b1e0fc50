// Package mocks provides testify mock implementations of the collaborator
// interfaces for use in tests.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/loadbridge/loadbridge/pkg/models"
	"github.com/loadbridge/loadbridge/pkg/protocol"
)

// MockAIClient is a mock implementation of protocol.AIClient.
type MockAIClient struct {
	mock.Mock
}

func (m *MockAIClient) Generate(ctx context.Context, parts []protocol.Part) (string, error) {
	args := m.Called(ctx, parts)

	return args.String(0), args.Error(1)
}

// MockDocumentStore is a mock implementation of protocol.DocumentStore.
type MockDocumentStore struct {
	mock.Mock
}

func (m *MockDocumentStore) Put(ctx context.Context, key protocol.DocumentKey, fileBytes []byte, filename string) (*protocol.Document, error) {
	args := m.Called(ctx, key, fileBytes, filename)

	doc, _ := args.Get(0).(*protocol.Document)

	return doc, args.Error(1)
}

func (m *MockDocumentStore) Get(ctx context.Context, key protocol.DocumentKey) (*protocol.Document, error) {
	args := m.Called(ctx, key)

	doc, _ := args.Get(0).(*protocol.Document)

	return doc, args.Error(1)
}

// MockMailSender is a mock implementation of protocol.MailSender.
type MockMailSender struct {
	mock.Mock
}

func (m *MockMailSender) Send(ctx context.Context, profile string, msg *protocol.MailMessage) error {
	args := m.Called(ctx, profile, msg)

	return args.Error(0)
}

// MockFileTransfer is a mock implementation of protocol.FileTransfer.
type MockFileTransfer struct {
	mock.Mock
}

func (m *MockFileTransfer) Upload(ctx context.Context, remotePath string, data []byte) error {
	args := m.Called(ctx, remotePath, data)

	return args.Error(0)
}

// MockGroupSource is a mock implementation of protocol.GroupSource.
type MockGroupSource struct {
	mock.Mock
}

func (m *MockGroupSource) PriorGroupFields(ctx context.Context, sessionID string, beforeGroup int) ([]map[string]any, error) {
	args := m.Called(ctx, sessionID, beforeGroup)

	groups, _ := args.Get(0).([]map[string]any)

	return groups, args.Error(1)
}

// MockManualIndexQueue is a mock implementation of protocol.ManualIndexQueue.
type MockManualIndexQueue struct {
	mock.Mock
}

func (m *MockManualIndexQueue) Enqueue(ctx context.Context, item *protocol.ManualIndexItem) error {
	args := m.Called(ctx, item)

	return args.Error(0)
}

// MockLogSink is a mock implementation of protocol.LogSink.
type MockLogSink struct {
	mock.Mock
}

func (m *MockLogSink) CreateExecutionLog(ctx context.Context, log *models.ExecutionLog) error {
	args := m.Called(ctx, log)

	return args.Error(0)
}

func (m *MockLogSink) UpdateExecutionLog(ctx context.Context, log *models.ExecutionLog) error {
	args := m.Called(ctx, log)

	return args.Error(0)
}

func (m *MockLogSink) CreateStepLog(ctx context.Context, log *models.StepLog) error {
	args := m.Called(ctx, log)

	return args.Error(0)
}

// MockGraphSource is a mock implementation of protocol.GraphSource.
type MockGraphSource struct {
	mock.Mock
}

func (m *MockGraphSource) WorkflowByID(ctx context.Context, id string) (*models.Workflow, error) {
	args := m.Called(ctx, id)

	workflow, _ := args.Get(0).(*models.Workflow)

	return workflow, args.Error(1)
}
