package conditional

import (
	"github.com/loadbridge/loadbridge/pkg/models"
	"github.com/loadbridge/loadbridge/pkg/protocol"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) ID() string {
	return models.StepTypeConditionalCheck
}

func (f *Factory) Create(config map[string]any) (protocol.Step, error) {
	return NewStep(config)
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"field": map[string]any{
				"type":        "string",
				"description": "Context path to evaluate.",
			},
			"operator": map[string]any{
				"type": "string",
				"enum": []string{
					OpExists, OpNotExists, OpIsNull, OpIsNotNull,
					OpEquals, OpNotEquals, OpContains, OpNotContains,
					OpGreaterThan, OpLessThan, OpGreaterThanOrEqual, OpLessThanOrEqual,
				},
			},
			"value": map[string]any{
				"description": "Expected value for comparison operators. Supports {{path}} placeholders.",
			},
			"outputVariable": map[string]any{
				"type":        "string",
				"description": "Context variable that receives the boolean result.",
			},
		},
		"required": []string{"field", "operator"},
	}
}
