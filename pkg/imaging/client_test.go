package imaging_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/loadbridge/loadbridge/pkg/imaging"
	"github.com/loadbridge/loadbridge/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutFilesDocument(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/buckets/bucket-1/documents", r.URL.Path)
		assert.Equal(t, "token-1", r.Header.Get("X-Api-Key"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "dt-2", r.FormValue("documentTypeId"))
		assert.Equal(t, "dl-3", r.FormValue("detailLineId"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer func() { _ = file.Close() }()
		assert.Equal(t, "bill.pdf", header.Filename)

		_ = json.NewEncoder(w).Encode(protocol.Document{
			DocumentID:  "doc-9",
			StoragePath: "bucket-1/dt-2/doc-9.pdf",
			DocumentURL: "https://imaging.example.com/doc-9",
		})
	}))
	defer server.Close()

	client, err := imaging.NewClient(imaging.Config{
		BaseURL:    server.URL,
		AuthHeader: "X-Api-Key",
		AuthToken:  "token-1",
	}, slog.Default())
	require.NoError(t, err)

	document, err := client.Put(context.Background(), protocol.DocumentKey{
		BucketID:       "bucket-1",
		DocumentTypeID: "dt-2",
		DetailLineID:   "dl-3",
	}, []byte("pdf bytes"), "bill.pdf")
	require.NoError(t, err)

	assert.Equal(t, "doc-9", document.DocumentID)
	assert.Equal(t, "https://imaging.example.com/doc-9", document.DocumentURL)
}

func TestGetReturnsNotFoundSentinel(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	client, err := imaging.NewClient(imaging.Config{BaseURL: server.URL}, slog.Default())
	require.NoError(t, err)

	_, err = client.Get(context.Background(), protocol.DocumentKey{
		BucketID:       "bucket-1",
		DocumentTypeID: "dt-2",
		DetailLineID:   "dl-3",
	})
	require.ErrorIs(t, err, protocol.ErrDocumentNotFound)
}

func TestGetPassesKeyAsQuery(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "dt-2", r.URL.Query().Get("documentTypeId"))
		assert.Equal(t, "dl-3", r.URL.Query().Get("detailLineId"))

		_ = json.NewEncoder(w).Encode(protocol.Document{DocumentID: "doc-1"})
	}))
	defer server.Close()

	client, err := imaging.NewClient(imaging.Config{BaseURL: server.URL}, slog.Default())
	require.NoError(t, err)

	document, err := client.Get(context.Background(), protocol.DocumentKey{
		BucketID:       "bucket-1",
		DocumentTypeID: "dt-2",
		DetailLineID:   "dl-3",
	})
	require.NoError(t, err)
	assert.Equal(t, "doc-1", document.DocumentID)
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	t.Parallel()

	_, err := imaging.NewClient(imaging.Config{}, slog.Default())
	require.Error(t, err)
}
