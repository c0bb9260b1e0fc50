// Package imaging provides the HTTP client for the document imaging store.
// Documents are keyed by bucket, document type and detail line.
package imaging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/loadbridge/loadbridge/pkg/protocol"
)

const defaultTimeout = 60 * time.Second

type Config struct {
	BaseURL    string
	AuthHeader string
	AuthToken  string
}

type Client struct {
	config Config
	client *http.Client
	logger *slog.Logger
}

func NewClient(config Config, logger *slog.Logger) (*Client, error) {
	if config.BaseURL == "" {
		return nil, errors.New("imaging base URL is required")
	}

	config.BaseURL = strings.TrimSuffix(config.BaseURL, "/")

	if config.AuthHeader == "" {
		config.AuthHeader = "Authorization"
	}

	return &Client{
		config: config,
		client: &http.Client{Timeout: defaultTimeout},
		logger: logger.With("module", "imaging_client"),
	}, nil
}

// Put files one document under the key and returns its id and URL.
func (c *Client) Put(ctx context.Context, key protocol.DocumentKey, fileBytes []byte, filename string) (*protocol.Document, error) {
	var body bytes.Buffer

	writer := multipart.NewWriter(&body)

	fields := map[string]string{
		"documentTypeId": key.DocumentTypeID,
		"detailLineId":   key.DetailLineID,
		"billNumber":     key.BillNumber,
		"storagePath":    key.StoragePath,
	}

	for field, value := range fields {
		if value == "" {
			continue
		}

		err := writer.WriteField(field, value)
		if err != nil {
			return nil, fmt.Errorf("failed to write field '%s': %w", field, err)
		}
	}

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create file part: %w", err)
	}

	_, err = part.Write(fileBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to write file part: %w", err)
	}

	err = writer.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	endpoint := fmt.Sprintf("%s/buckets/%s/documents", c.config.BaseURL, url.PathEscape(key.BucketID))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to build put request: %w", err)
	}

	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.authorize(req)

	c.logger.InfoContext(ctx, "Filing document",
		"bucket", key.BucketID, "document_type", key.DocumentTypeID, "filename", filename)

	return c.do(req)
}

// Get returns the most recent document for the key, or ErrDocumentNotFound.
func (c *Client) Get(ctx context.Context, key protocol.DocumentKey) (*protocol.Document, error) {
	endpoint := fmt.Sprintf("%s/buckets/%s/documents?documentTypeId=%s&detailLineId=%s",
		c.config.BaseURL,
		url.PathEscape(key.BucketID),
		url.QueryEscape(key.DocumentTypeID),
		url.QueryEscape(key.DetailLineID),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build get request: %w", err)
	}

	c.authorize(req)

	return c.do(req)
}

func (c *Client) authorize(req *http.Request) {
	if c.config.AuthToken != "" {
		req.Header.Set(c.config.AuthHeader, c.config.AuthToken)
	}
}

func (c *Client) do(req *http.Request) (*protocol.Document, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("imaging request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read imaging response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, protocol.ErrDocumentNotFound
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("imaging request returned %d %s: %s",
			resp.StatusCode, http.StatusText(resp.StatusCode), strings.TrimSpace(string(raw)))
	}

	var document protocol.Document

	err = json.Unmarshal(raw, &document)
	if err != nil {
		return nil, fmt.Errorf("malformed imaging response: %w", err)
	}

	if document.DocumentID == "" {
		return nil, errors.New("imaging response has no document id")
	}

	return &document, nil
}
