package multipart

import (
	"github.com/loadbridge/loadbridge/pkg/models"
	"github.com/loadbridge/loadbridge/pkg/protocol"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) ID() string {
	return models.StepTypeMultipartUpload
}

func (f *Factory) Create(config map[string]any) (protocol.Step, error) {
	return NewStep(config)
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url":    map[string]any{"type": "string"},
			"method": map[string]any{"type": "string"},
			"headers": map[string]any{
				"type": "object",
			},
			"fields": map[string]any{
				"type":        "object",
				"description": "Form field to context path (or template) mappings.",
			},
			"file": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"field":    map[string]any{"type": "string"},
					"filename": map[string]any{"type": "string"},
					"source":   map[string]any{"type": "string"},
				},
			},
		},
		"required": []string{"url"},
	}
}
