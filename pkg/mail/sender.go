// Package mail implements the MailSender port over SMTP with named provider
// profiles.
package mail

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/loadbridge/loadbridge/pkg/models"
	"github.com/loadbridge/loadbridge/pkg/protocol"
	gomail "github.com/wneessen/go-mail"
)

type Sender struct {
	profiles map[string]models.EmailProfile
	logger   *slog.Logger
}

func NewSender(profiles map[string]models.EmailProfile, logger *slog.Logger) *Sender {
	return &Sender{
		profiles: profiles,
		logger:   logger.With("module", "mail_sender"),
	}
}

func (s *Sender) Send(ctx context.Context, profile string, msg *protocol.MailMessage) error {
	cfg, ok := s.profiles[profile]
	if !ok {
		return fmt.Errorf("email profile '%s' is not configured", profile)
	}

	message := gomail.NewMsg()

	err := message.From(cfg.From)
	if err != nil {
		return fmt.Errorf("invalid from address '%s': %w", cfg.From, err)
	}

	err = message.To(msg.To...)
	if err != nil {
		return fmt.Errorf("invalid recipient: %w", err)
	}

	if len(msg.CC) > 0 {
		err = message.Cc(msg.CC...)
		if err != nil {
			return fmt.Errorf("invalid cc recipient: %w", err)
		}
	}

	message.Subject(msg.Subject)

	if msg.HTML {
		message.SetBodyString(gomail.TypeTextHTML, msg.Body)
	} else {
		message.SetBodyString(gomail.TypeTextPlain, msg.Body)
	}

	client, err := s.newClient(cfg)
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "Sending email", "profile", profile, "to", msg.To, "subject", msg.Subject)

	err = client.DialAndSendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("failed to send email via profile '%s': %w", profile, err)
	}

	return nil
}

func (s *Sender) newClient(cfg models.EmailProfile) (*gomail.Client, error) {
	opts := []gomail.Option{}

	if cfg.Port > 0 {
		opts = append(opts, gomail.WithPort(cfg.Port))
	}

	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}

	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build SMTP client for %s: %w", cfg.Host, err)
	}

	return client, nil
}
