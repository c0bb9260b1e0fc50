package renamefile

import (
	"github.com/loadbridge/loadbridge/pkg/models"
	"github.com/loadbridge/loadbridge/pkg/protocol"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) ID() string {
	return models.StepTypeRenameFile
}

func (f *Factory) Create(config map[string]any) (protocol.Step, error) {
	return NewStep(config)
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"template": map[string]any{
				"type":        "string",
				"description": "Filename template resolved against the context, the last API response and the format type.",
			},
		},
		"required": []string{"template"},
	}
}
