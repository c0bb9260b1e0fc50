package reademail

import (
	"github.com/loadbridge/loadbridge/pkg/models"
	"github.com/loadbridge/loadbridge/pkg/protocol"
)

type Factory struct {
	ai protocol.AIClient
}

func NewFactory(ai protocol.AIClient) *Factory {
	return &Factory{ai: ai}
}

func (f *Factory) ID() string {
	return models.StepTypeReadEmail
}

func (f *Factory) Create(config map[string]any) (protocol.Step, error) {
	return NewStep(config, f.ai)
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"mappings": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"field": map[string]any{"type": "string"},
						"kind": map[string]any{
							"type": "string",
							"enum": []string{KindHardcoded, KindFunction, KindAI},
						},
						"value": map[string]any{"type": "string"},
						"type": map[string]any{
							"type": "string",
							"enum": []string{TypeString, TypeNumber, TypeInteger, TypeBoolean, TypeDateOnly, TypeDateTime, TypeRIN},
						},
					},
					"required": []string{"field", "kind"},
				},
			},
			"subjectField": map[string]any{"type": "string"},
			"bodyField":    map[string]any{"type": "string"},
		},
		"required": []string{"mappings"},
	}
}
