// Package sftpupload provides the sftp_upload step: uploading the current file
// payload to a templated remote path.
package sftpupload

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"

	"github.com/loadbridge/loadbridge/pkg/models"
	"github.com/loadbridge/loadbridge/pkg/protocol"
	"github.com/loadbridge/loadbridge/pkg/template"
)

type Step struct {
	RemotePath string
	FileField  string

	transfer protocol.FileTransfer
}

func NewStep(config map[string]any, transfer protocol.FileTransfer) (*Step, error) {
	if transfer == nil {
		return nil, errors.New("sftp transfer is not configured")
	}

	remotePath, ok := config["remotePath"].(string)
	if !ok || remotePath == "" {
		return nil, errors.New("missing required field 'remotePath'")
	}

	step := &Step{RemotePath: remotePath, FileField: "fileContent", transfer: transfer}

	if fileField, ok := config["fileField"].(string); ok && fileField != "" {
		step.FileField = fileField
	}

	return step, nil
}

func (s *Step) Execute(ctx context.Context, run *models.Run, logger *slog.Logger) (*protocol.StepResult, error) {
	remotePath := template.Resolve(s.RemotePath, run.Context)

	data, err := payloadBytes(run.Context, s.FileField)
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "Uploading file over SFTP", "remote_path", remotePath, "bytes", len(data))

	err = s.transfer.Upload(ctx, remotePath, data)
	if err != nil {
		return nil, fmt.Errorf("sftp upload to %s failed: %w", remotePath, err)
	}

	return &protocol.StepResult{
		Output: map[string]any{
			"remotePath": remotePath,
			"bytes":      len(data),
		},
	}, nil
}

// payloadBytes reads the current file payload from the context; it may be raw
// bytes or a base64 string, depending on how the caller seeded the run.
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
