// Package emailaction provides the email_action step: sending one email
// through a configured provider profile with templated subject and body.
package emailaction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/loadbridge/loadbridge/pkg/models"
	"github.com/loadbridge/loadbridge/pkg/protocol"
	"github.com/loadbridge/loadbridge/pkg/template"
)

type Step struct {
	Profile string
	To      []string
	CC      []string
	Subject string
	Body    string
	HTML    bool

	sender protocol.MailSender
}

func NewStep(config map[string]any, sender protocol.MailSender) (*Step, error) {
	if sender == nil {
		return nil, errors.New("mail sender is not configured")
	}

	to, err := recipients(config["to"])
	if err != nil {
		return nil, err
	}

	if len(to) == 0 {
		return nil, errors.New("missing required field 'to'")
	}

	subject, ok := config["subject"].(string)
	if !ok || subject == "" {
		return nil, errors.New("missing required field 'subject'")
	}

	step := &Step{
		Profile: models.EmailProfileDefault,
		To:      to,
		Subject: subject,
		sender:  sender,
	}

	if profile, ok := config["profile"].(string); ok && profile != "" {
		step.Profile = profile
	}

	cc, err := recipients(config["cc"])
	if err != nil {
		return nil, err
	}

	step.CC = cc

	if body, ok := config["body"].(string); ok {
		step.Body = body
	}

	if html, ok := config["html"].(bool); ok {
		step.HTML = html
	}

	return step, nil
}

func (s *Step) Execute(ctx context.Context, run *models.Run, logger *slog.Logger) (*protocol.StepResult, error) {
	to := resolveAll(s.To, run.Context)
	cc := resolveAll(s.CC, run.Context)
	subject := template.Resolve(s.Subject, run.Context)
	body := template.Resolve(s.Body, run.Context)

	logger.InfoContext(ctx, "Sending email", "profile", s.Profile, "to", to, "subject", subject)

	err := s.sender.Send(ctx, s.Profile, &protocol.MailMessage{
		To:      to,
		CC:      cc,
		Subject: subject,
		Body:    body,
		HTML:    s.HTML,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to send email: %w", err)
	}

	return &protocol.StepResult{
		Output: map[string]any{
			"to":      to,
			"subject": subject,
		},
	}, nil
}

func recipients(value any) ([]string, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}

		parts := strings.Split(v, ",")
		addresses := make([]string, 0, len(parts))

		for _, part := range parts {
			addresses = append(addresses, strings.TrimSpace(part))
		}

		return addresses, nil
	case []any:
		addresses := make([]string, 0, len(v))

		for _, item := range v {
			address, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("recipient entries must be strings, got %T", item)
			}

			addresses = append(addresses, address)
		}

		return addresses, nil
	default:
		return nil, fmt.Errorf("recipients must be a string or list, got %T", value)
	}
}

func resolveAll(templates []string, ctx map[string]any) []string {
	if len(templates) == 0 {
		return nil
	}

	resolved := make([]string, 0, len(templates))
	for _, tmpl := range templates {
		resolved = append(resolved, template.Resolve(tmpl, ctx))
	}

	return resolved
}
