package imaging_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/loadbridge/loadbridge/pkg/models"
	"github.com/loadbridge/loadbridge/pkg/protocol"
	"github.com/loadbridge/loadbridge/pkg/steps/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	putKey  protocol.DocumentKey
	putData []byte
	doc     *protocol.Document
	err     error
}

func (f *fakeStore) Put(_ context.Context, key protocol.DocumentKey, data []byte, _ string) (*protocol.Document, error) {
	f.putKey = key
	f.putData = data

	return f.doc, f.err
}

func (f *fakeStore) Get(_ context.Context, key protocol.DocumentKey) (*protocol.Document, error) {
	f.putKey = key

	return f.doc, f.err
}

func TestPutResolvesKeyTemplatesAndStoresDocument(t *testing.T) {
	t.Parallel()

	store := &fakeStore{doc: &protocol.Document{
		DocumentID:  "doc-1",
		DocumentURL: "https://img.example.com/doc-1",
	}}

	step, err := imaging.NewStep(map[string]any{
		"mode":           "put",
		"bucketId":       "{{bucket}}",
		"documentTypeId": "{{docType}}",
		"detailLineId":   "{{lineId}}",
	}, store)
	require.NoError(t, err)

	run := &models.Run{Context: map[string]any{
		"bucket":      "B-1",
		"docType":     "POD",
		"lineId":      "L-42",
		"fileContent": []byte("%PDF-1.4"),
	}}

	result, err := step.Execute(context.Background(), run, slog.Default())
	require.NoError(t, err)

	assert.Equal(t, "B-1", store.putKey.BucketID)
	assert.Equal(t, "POD", store.putKey.DocumentTypeID)
	assert.Equal(t, "L-42", store.putKey.DetailLineID)
	assert.Equal(t, []byte("%PDF-1.4"), store.putData)
	assert.Equal(t, "doc-1", run.Context["documentId"])
	assert.Equal(t, "doc-1", result.Output["documentId"])
}

func TestMissingRequiredFieldFails(t *testing.T) {
	t.Parallel()

	store := &fakeStore{doc: &protocol.Document{}}

	step, err := imaging.NewStep(map[string]any{
		"bucketId":       "{{bucket}}",
		"documentTypeId": "{{docType}}",
		"detailLineId":   "{{lineId}}",
	}, store)
	require.NoError(t, err)

	// lineId resolves to the literal placeholder; docType is absent entirely.
	run := &models.Run{Context: map[string]any{"bucket": "B-1"}}

	_, err = step.Execute(context.Background(), run, slog.Default())
	assert.Error(t, err)
	assert.Empty(t, store.putData)
}
