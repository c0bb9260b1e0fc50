// Package apicall provides the api_call step: one templated HTTP request whose
// parsed response becomes the run's last API response.
package apicall

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

	"github.com/loadbridge/loadbridge/pkg/models"
	"github.com/loadbridge/loadbridge/pkg/protocol"
	"github.com/loadbridge/loadbridge/pkg/template"
)

const defaultTimeout = 30 * time.Second

// Step issues a single HTTP request with URL, headers and body resolved
// against the execution context.
type Step struct {
	URL                string
	Method             string
	Headers            map[string]string
	Body               string
	EscapeSingleQuotes bool

	client *http.Client
}

// NewStep builds an api_call step from node config.
func NewStep(config map[string]any) (*Step, error) {
	step := &Step{
		Method:  http.MethodGet,
		Headers: make(map[string]string),
		client:  &http.Client{Timeout: defaultTimeout},
	}

	url, ok := config["url"].(string)
	if !ok || url == "" {
		return nil, errors.New("missing required field 'url'")
	}

	step.URL = url

	if method, ok := config["method"].(string); ok && method != "" {
		step.Method = strings.ToUpper(method)
	}

	if headers, ok := config["headers"].(map[string]any); ok {
		for k, v := range headers {
			if strVal, ok := v.(string); ok {
				step.Headers[k] = strVal
			}
		}
	}

	if body, ok := config["body"].(string); ok {
		step.Body = body
	}

	if escape, ok := config["escapeSingleQuotesInBody"].(bool); ok {
		step.EscapeSingleQuotes = escape
	}

	if timeout, ok := config["timeout"].(float64); ok && timeout > 0 {
		step.client.Timeout = time.Duration(timeout) * time.Second
	}

	return step, nil
}

func (s *Step) Execute(ctx context.Context, run *models.Run, logger *slog.Logger) (*protocol.StepResult, error) {
	url := template.Resolve(s.URL, run.Context)

	body := s.Body
	if body != "" {
		if s.EscapeSingleQuotes {
			escaped := escapeSingleQuotes(run.Context)
			body = template.Resolve(body, escaped)
		} else {
			body = template.Resolve(body, run.Context)
		}
	}

	headers := make(map[string]string, len(s.Headers))
	for k, v := range s.Headers {
		headers[k] = template.Resolve(v, run.Context)
	}

	logger.InfoContext(ctx, "Issuing API call", "method", s.Method, "url", url)

	response, err := Do(ctx, s.client, Request{
		Method:  s.Method,
		URL:     url,
		Headers: headers,
		Body:    body,
	})
	if err != nil {
		return nil, err
	}

	run.LastAPIResponse = response.Body

	return &protocol.StepResult{
		Output: map[string]any{
			"status":   response.Status,
			"response": response.Body,
		},
	}, nil
}

// Request is one resolved HTTP call.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    string
}

// Response carries the status and the parsed body of a successful call.
type Response struct {
	Status int
	Body   any
}

// Do performs the request and parses the response body as JSON, falling back
// to the raw text. Non-2xx responses fail with status, status text and body
// preserved for logging. Shared by api_endpoint and the ai_decision lookup.
func Do(ctx context.Context, client *http.Client, req Request) (*Response, error) {
	var bodyReader io.Reader
	if req.Body != "" {
		bodyReader = bytes.NewBufferString(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	if req.Body != "" && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", req.URL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	parsed := ParseBody(raw)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("request to %s returned %d %s: %s",
			req.URL, resp.StatusCode, http.StatusText(resp.StatusCode), strings.TrimSpace(string(raw)))
	}

	return &Response{Status: resp.StatusCode, Body: parsed}, nil
}

// ParseBody decodes a response body as JSON when possible, otherwise returns
// the trimmed text.
func ParseBody(raw []byte) any {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return nil
	}

	var parsed any
	if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil {
		return parsed
	}

	return trimmed
}

// escapeSingleQuotes returns a copy of the context with single quotes escaped
// in every string value, for bodies that embed values in SQL-ish literals.
func escapeSingleQuotes(ctx map[string]any) map[string]any {
	escaped := make(map[string]any, len(ctx))

	for k, v := range ctx {
		if s, ok := v.(string); ok {
			escaped[k] = strings.ReplaceAll(s, "'", "''")
		} else {
			escaped[k] = v
		}
	}

	return escaped
}
