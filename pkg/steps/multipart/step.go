// Package multipart provides the multipart_form_upload step: posting a
// multipart body assembled from configured field-to-context mappings.
package multipart

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	mp "mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/loadbridge/loadbridge/pkg/models"
	"github.com/loadbridge/loadbridge/pkg/protocol"
	"github.com/loadbridge/loadbridge/pkg/steps/apicall"
	"github.com/loadbridge/loadbridge/pkg/template"
)

type Step struct {
	URL     string
	Method  string
	Headers map[string]string
	Fields  map[string]string // form field -> context path or template

	FileField     string // form field name for the file part; empty means no file
	FileNameTmpl  string
	PayloadSource string // context field holding the payload

	client *http.Client
}

func NewStep(config map[string]any) (*Step, error) {
	url, ok := config["url"].(string)
	if !ok || url == "" {
		return nil, errors.New("missing required field 'url'")
	}

	step := &Step{
		URL:           url,
		Method:        http.MethodPost,
		Headers:       make(map[string]string),
		Fields:        make(map[string]string),
		PayloadSource: "fileContent",
		client:        &http.Client{Timeout: 60 * time.Second},
	}

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

	if fields, ok := config["fields"].(map[string]any); ok {
		for k, v := range fields {
			if strVal, ok := v.(string); ok {
				step.Fields[k] = strVal
			}
		}
	}

	if fileConfig, ok := config["file"].(map[string]any); ok {
		if name, ok := fileConfig["field"].(string); ok {
			step.FileField = name
		}

		if filename, ok := fileConfig["filename"].(string); ok {
			step.FileNameTmpl = filename
		}

		if source, ok := fileConfig["source"].(string); ok && source != "" {
			step.PayloadSource = source
		}
	}

	return step, nil
}

func (s *Step) Execute(ctx context.Context, run *models.Run, logger *slog.Logger) (*protocol.StepResult, error) {
	url := template.Resolve(s.URL, run.Context)

	var buf bytes.Buffer
	writer := mp.NewWriter(&buf)

	fieldValues := make(map[string]string, len(s.Fields))

	for field, pathOrTemplate := range s.Fields {
		value := resolveField(pathOrTemplate, run.Context)
		fieldValues[field] = value

		err := writer.WriteField(field, value)
		if err != nil {
			return nil, fmt.Errorf("failed to write form field '%s': %w", field, err)
		}
	}

	if s.FileField != "" {
		err := s.writeFilePart(writer, run.Context)
		if err != nil {
			return nil, err
		}
	}

	err := writer.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	logger.InfoContext(ctx, "Posting multipart form", "url", url, "fields", len(fieldValues))

	req, err := http.NewRequestWithContext(ctx, s.Method, url, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Content-Type", writer.FormDataContentType())

	for k, v := range s.Headers {
		req.Header.Set(k, template.Resolve(v, run.Context))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("multipart upload to %s failed: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	parsed := apicall.ParseBody(raw)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("multipart upload to %s returned %d %s: %s",
			url, resp.StatusCode, http.StatusText(resp.StatusCode), strings.TrimSpace(string(raw)))
	}

	return &protocol.StepResult{
		Output: map[string]any{
			"status":   resp.StatusCode,
			"fields":   fieldValues,
			"response": parsed,
		},
	}, nil
}

func (s *Step) writeFilePart(writer *mp.Writer, ctx map[string]any) error {
	payload, ok := ctx[s.PayloadSource]
	if !ok || payload == nil {
		return fmt.Errorf("context has no file payload under '%s'", s.PayloadSource)
	}

	var data []byte

	switch v := payload.(type) {
	case []byte:
		data = v
	case string:
		decoded, err := base64.StdEncoding.DecodeString(v)
		if err == nil {
			data = decoded
		} else {
			data = []byte(v)
		}
	default:
		return fmt.Errorf("file payload under '%s' has unsupported type %T", s.PayloadSource, payload)
	}

	filename := template.Resolve(s.FileNameTmpl, ctx)
	if filename == "" {
		filename = "upload.bin"
	}

	part, err := writer.CreateFormFile(s.FileField, filename)
	if err != nil {
		return fmt.Errorf("failed to create file part: %w", err)
	}

	_, err = part.Write(data)
	if err != nil {
		return fmt.Errorf("failed to write file part: %w", err)
	}

	return nil
}

// resolveField treats the mapping value as a context path first and as a
// template second, so configs can say either "order.number" or "{{order.number}}-suffix".
func resolveField(pathOrTemplate string, ctx map[string]any) string {
	if value, ok := template.Lookup(pathOrTemplate, ctx); ok {
		return template.Stringify(value)
	}

	return template.Resolve(pathOrTemplate, ctx)
}
