// Package imaging provides the imaging step: filing a document into the
// document store ("put") or retrieving the most recent one for a key ("get").
package imaging

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/loadbridge/loadbridge/pkg/models"
	"github.com/loadbridge/loadbridge/pkg/protocol"
	"github.com/loadbridge/loadbridge/pkg/template"
)

const (
	ModePut = "put"
	ModeGet = "get"
)

type Step struct {
	Mode           string
	BucketID       string
	DocumentTypeID string
	DetailLineID   string
	BillNumber     string
	StoragePath    string
	FilenameTmpl   string
	PayloadSource  string

	store protocol.DocumentStore
}

func NewStep(config map[string]any, store protocol.DocumentStore) (*Step, error) {
	if store == nil {
		return nil, errors.New("document store is not configured")
	}

	step := &Step{
		Mode:          ModePut,
		PayloadSource: "fileContent",
		store:         store,
	}

	if mode, ok := config["mode"].(string); ok && mode != "" {
		if mode != ModePut && mode != ModeGet {
			return nil, fmt.Errorf("mode must be 'put' or 'get', got '%s'", mode)
		}

		step.Mode = mode
	}

	step.BucketID, _ = config["bucketId"].(string)
	step.DocumentTypeID, _ = config["documentTypeId"].(string)
	step.DetailLineID, _ = config["detailLineId"].(string)
	step.BillNumber, _ = config["billNumber"].(string)
	step.StoragePath, _ = config["storagePath"].(string)
	step.FilenameTmpl, _ = config["filename"].(string)

	if source, ok := config["payloadSource"].(string); ok && source != "" {
		step.PayloadSource = source
	}

	return step, nil
}

func (s *Step) Execute(ctx context.Context, run *models.Run, logger *slog.Logger) (*protocol.StepResult, error) {
	key, err := s.resolveKey(run.Context)
	if err != nil {
		return nil, err
	}

	if s.Mode == ModeGet {
		return s.get(ctx, run, key, logger)
	}

	return s.put(ctx, run, key, logger)
}

// resolveKey resolves the templated key fields and validates that every
// required one is present before any external call.
func (s *Step) resolveKey(context map[string]any) (protocol.DocumentKey, error) {
	key := protocol.DocumentKey{
		BucketID:       template.Resolve(s.BucketID, context),
		DocumentTypeID: template.Resolve(s.DocumentTypeID, context),
		DetailLineID:   template.Resolve(s.DetailLineID, context),
		BillNumber:     template.Resolve(s.BillNumber, context),
		StoragePath:    template.Resolve(s.StoragePath, context),
	}

	missing := make([]string, 0, 3)

	// A value that still contains an unresolved placeholder is as absent as an
	// empty one.
	if unresolved(key.BucketID) {
		missing = append(missing, "bucketId")
	}

	if unresolved(key.DocumentTypeID) {
		missing = append(missing, "documentTypeId")
	}

	if unresolved(key.DetailLineID) {
		missing = append(missing, "detailLineId")
	}

	if len(missing) > 0 {
		return key, fmt.Errorf("imaging step is missing required fields: %v", missing)
	}

	return key, nil
}

func unresolved(value string) bool {
	return value == "" || strings.Contains(value, "{{")
}

func (s *Step) put(ctx context.Context, run *models.Run, key protocol.DocumentKey, logger *slog.Logger) (*protocol.StepResult, error) {
	data, err := payloadBytes(run.Context, s.PayloadSource)
	if err != nil {
		return nil, err
	}

	filename := template.Resolve(s.FilenameTmpl, run.Context)
	if filename == "" {
		if name, ok := run.Context["pdfFileName"].(string); ok {
			filename = name
		} else {
			filename = "document.pdf"
		}
	}

	logger.InfoContext(ctx, "Filing document",
		"bucket", key.BucketID, "document_type", key.DocumentTypeID, "detail_line", key.DetailLineID)

	document, err := s.store.Put(ctx, key, data, filename)
	if err != nil {
		return nil, fmt.Errorf("imaging put failed: %w", err)
	}

	run.Context["documentId"] = document.DocumentID
	run.Context["documentUrl"] = document.DocumentURL

	return &protocol.StepResult{
		Output: map[string]any{
			"mode":        ModePut,
			"documentId":  document.DocumentID,
			"documentUrl": document.DocumentURL,
			"storagePath": document.StoragePath,
		},
	}, nil
}

func (s *Step) get(ctx context.Context, run *models.Run, key protocol.DocumentKey, logger *slog.Logger) (*protocol.StepResult, error) {
	logger.InfoContext(ctx, "Fetching document",
		"bucket", key.BucketID, "document_type", key.DocumentTypeID, "detail_line", key.DetailLineID)

	document, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("imaging get failed: %w", err)
	}

	run.Context["documentId"] = document.DocumentID
	run.Context["documentUrl"] = document.DocumentURL

	return &protocol.StepResult{
		Output: map[string]any{
			"mode":        ModeGet,
			"documentId":  document.DocumentID,
			"documentUrl": document.DocumentURL,
			"storagePath": document.StoragePath,
		},
	}, nil
}

func payloadBytes(ctx map[string]any, field string) ([]byte, error) {
	value, ok := ctx[field]
	if !ok || value == nil {
		return nil, fmt.Errorf("context has no file payload under '%s'", field)
	}

	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		decoded, err := base64.StdEncoding.DecodeString(v)
		if err == nil {
			return decoded, nil
		}

		return []byte(v), nil
	default:
		return nil, fmt.Errorf("file payload under '%s' has unsupported type %T", field, value)
	}
}
