// Package ai provides the REST client for the generative-AI proxy used by
// AI decision matching, AI-extracted email fields and document barcode
// scanning.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/loadbridge/loadbridge/pkg/protocol"
)

const defaultTimeout = 120 * time.Second

type Config struct {
	Endpoint string
	APIKey   string
	Model    string
	Retry    RetryConfig
}

// Client calls the generative proxy endpoint with a list of content parts and
// returns the single text completion.
type Client struct {
	config Config
	client *http.Client
	logger *slog.Logger
}

func NewClient(config Config, logger *slog.Logger) (*Client, error) {
	if config.Endpoint == "" {
		return nil, errors.New("AI endpoint is required")
	}

	if config.Retry.Attempts == 0 {
		config.Retry = DefaultRetryConfig()
	}

	return &Client{
		config: config,
		client: &http.Client{Timeout: defaultTimeout},
		logger: logger.With("module", "ai_client"),
	}, nil
}

type generateRequest struct {
	Model string          `json:"model,omitempty"`
	Parts []protocol.Part `json:"parts"`
}

type generateResponse struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

func (c *Client) Generate(ctx context.Context, parts []protocol.Part) (string, error) {
	if len(parts) == 0 {
		return "", errors.New("at least one content part is required")
	}

	payload, err := json.Marshal(generateRequest{Model: c.config.Model, Parts: parts})
	if err != nil {
		return "", fmt.Errorf("failed to encode generate request: %w", err)
	}

	c.logger.InfoContext(ctx, "Calling generative endpoint", "parts", len(parts))

	return WithRetry(ctx, c.config.Retry, func() (string, error) {
		return c.generateOnce(ctx, payload)
	})
}

func (c *Client) generateOnce(ctx context.Context, payload []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build generate request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("generate request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read generate response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("generate request returned %d %s: %s",
			resp.StatusCode, http.StatusText(resp.StatusCode), strings.TrimSpace(string(raw)))
	}

	var parsed generateResponse

	err = json.Unmarshal(raw, &parsed)
	if err != nil {
		// A plain-text completion body is accepted as-is.
		return strings.TrimSpace(string(raw)), nil
	}

	if parsed.Error != "" {
		return "", fmt.Errorf("generate endpoint reported: %s", parsed.Error)
	}

	return parsed.Text, nil
}
