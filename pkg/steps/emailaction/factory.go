package emailaction

import (
	"github.com/loadbridge/loadbridge/pkg/models"
	"github.com/loadbridge/loadbridge/pkg/protocol"
)

type Factory struct {
	sender protocol.MailSender
}

func NewFactory(sender protocol.MailSender) *Factory {
	return &Factory{sender: sender}
}

func (f *Factory) ID() string {
	return models.StepTypeEmailAction
}

func (f *Factory) Create(config map[string]any) (protocol.Step, error) {
	return NewStep(config, f.sender)
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"profile": map[string]any{
				"type":        "string",
				"description": "Email provider profile name. Defaults to 'default'.",
			},
			"to": map[string]any{
				"description": "Recipient address(es): comma-separated string or list. Supports {{path}} placeholders.",
			},
			"cc": map[string]any{
				"description": "CC address(es).",
			},
			"subject": map[string]any{"type": "string"},
			"body":    map[string]any{"type": "string"},
			"html":    map[string]any{"type": "boolean"},
		},
		"required": []string{"to", "subject"},
	}
}
