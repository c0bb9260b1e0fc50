package aidecision

import (
	"github.com/loadbridge/loadbridge/pkg/models"
	"github.com/loadbridge/loadbridge/pkg/protocol"
)

type Factory struct {
	profiles map[string]models.APIProfile
	ai       protocol.AIClient
}

func NewFactory(profiles map[string]models.APIProfile, ai protocol.AIClient) *Factory {
	return &Factory{profiles: profiles, ai: ai}
}

func (f *Factory) ID() string {
	return models.StepTypeAIDecision
}

func (f *Factory) Create(config map[string]any) (protocol.Step, error) {
	return NewStep(config, f.profiles, f.ai)
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"sourceFields": map[string]any{
				"type":        "object",
				"description": "Field name to context path mappings resolved into the source record.",
			},
			"lookup": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"profile": map[string]any{"type": "string"},
					"url":     map[string]any{"type": "string"},
					"path":    map[string]any{"type": "string"},
					"method":  map[string]any{"type": "string"},
				},
			},
			"candidatesPath": map[string]any{
				"type":        "string",
				"description": "Path into the lookup response where the candidate array lives. Empty means the response root.",
			},
			"instructions":         map[string]any{"type": "string"},
			"skipAiIfSingleResult": map[string]any{"type": "boolean"},
			"failOnNoMatch":        map[string]any{"type": "boolean"},
			"outputVariable": map[string]any{
				"type":        "string",
				"description": "Context variable that receives the matched value.",
			},
			"returnFieldPath": map[string]any{
				"type":        "string",
				"description": "Candidate field stored as the matched value. Empty stores the whole candidate.",
			},
			"responseMappings": map[string]any{
				"type":        "object",
				"description": "Context field to candidate path mappings applied on success.",
			},
		},
		"required": []string{"sourceFields", "lookup", "outputVariable"},
	}
}
