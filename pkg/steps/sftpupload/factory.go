package sftpupload

import (
	"github.com/loadbridge/loadbridge/pkg/models"
	"github.com/loadbridge/loadbridge/pkg/protocol"
)

type Factory struct {
	transfer protocol.FileTransfer
}

func NewFactory(transfer protocol.FileTransfer) *Factory {
	return &Factory{transfer: transfer}
}

func (f *Factory) ID() string {
	return models.StepTypeSFTPUpload
}

func (f *Factory) Create(config map[string]any) (protocol.Step, error) {
	return NewStep(config, f.transfer)
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"remotePath": map[string]any{
				"type":        "string",
				"description": "Destination path on the SFTP server. Supports {{path}} placeholders.",
			},
			"fileField": map[string]any{
				"type":        "string",
				"description": "Context field holding the file payload. Defaults to 'fileContent'.",
			},
		},
		"required": []string{"remotePath"},
	}
}
