package apiendpoint

import (
	"github.com/loadbridge/loadbridge/pkg/models"
	"github.com/loadbridge/loadbridge/pkg/protocol"
)

type Factory struct {
	profiles map[string]models.APIProfile
}

func NewFactory(profiles map[string]models.APIProfile) *Factory {
	return &Factory{profiles: profiles}
}

func (f *Factory) ID() string {
	return models.StepTypeAPIEndpoint
}

func (f *Factory) Create(config map[string]any) (protocol.Step, error) {
	return NewStep(config, f.profiles)
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"profile": map[string]any{
				"type":        "string",
				"enum":        []string{models.ProfileMain, models.ProfileSecondary},
				"description": "Named API profile supplying base URL and auth.",
			},
			"path": map[string]any{
				"type":        "string",
				"description": "Request path appended to the profile base URL. Supports {{path}} placeholders.",
			},
			"method": map[string]any{
				"type": "string",
				"enum": []string{"GET", "POST", "PUT", "PATCH", "DELETE", "get", "post", "put", "patch", "delete"},
			},
			"headers": map[string]any{"type": "object"},
			"body":    map[string]any{"type": "string"},
		},
		"required": []string{"path"},
	}
}
