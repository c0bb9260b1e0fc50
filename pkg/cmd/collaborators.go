package cmd

import (
	"fmt"
	"log/slog"

	"github.com/loadbridge/loadbridge/pkg/ai"
	"github.com/loadbridge/loadbridge/pkg/imaging"
	"github.com/loadbridge/loadbridge/pkg/mail"
	"github.com/loadbridge/loadbridge/pkg/models"
	"github.com/loadbridge/loadbridge/pkg/transfer"
)

// CollaboratorConfig carries the connection settings for the external services
// steps talk to. Empty sections leave the matching collaborator nil; steps
// that need it then fail at execution with a clear error instead of at boot.
type CollaboratorConfig struct {
	AIEndpoint string
	AIAPIKey   string
	AIModel    string

	ImagingBaseURL    string
	ImagingAuthHeader string
	ImagingAuthToken  string

	MainAPIBaseURL      string
	MainAPIToken        string
	SecondaryAPIBaseURL string
	SecondaryAPIToken   string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	SFTPHost     string
	SFTPPort     int
	SFTPUsername string
	SFTPPassword string
}

// NewCollaborators builds the collaborator set from config.
func NewCollaborators(logger *slog.Logger, cfg CollaboratorConfig) (Collaborators, error) {
	c := Collaborators{
		APIProfiles:   make(map[string]models.APIProfile),
		EmailProfiles: make(map[string]models.EmailProfile),
	}

	if cfg.MainAPIBaseURL != "" {
		c.APIProfiles[models.ProfileMain] = models.APIProfile{
			Name:      models.ProfileMain,
			BaseURL:   cfg.MainAPIBaseURL,
			AuthToken: cfg.MainAPIToken,
		}
	}

	if cfg.SecondaryAPIBaseURL != "" {
		c.APIProfiles[models.ProfileSecondary] = models.APIProfile{
			Name:      models.ProfileSecondary,
			BaseURL:   cfg.SecondaryAPIBaseURL,
			AuthToken: cfg.SecondaryAPIToken,
		}
	}

	if cfg.AIEndpoint != "" {
		client, err := ai.NewClient(ai.Config{
			Endpoint: cfg.AIEndpoint,
			APIKey:   cfg.AIAPIKey,
			Model:    cfg.AIModel,
		}, logger)
		if err != nil {
			return c, fmt.Errorf("failed to build AI client: %w", err)
		}

		c.AI = client
	}

	if cfg.ImagingBaseURL != "" {
		client, err := imaging.NewClient(imaging.Config{
			BaseURL:    cfg.ImagingBaseURL,
			AuthHeader: cfg.ImagingAuthHeader,
			AuthToken:  cfg.ImagingAuthToken,
		}, logger)
		if err != nil {
			return c, fmt.Errorf("failed to build imaging client: %w", err)
		}

		c.Documents = client
	}

	if cfg.SMTPHost != "" {
		c.EmailProfiles[models.EmailProfileDefault] = models.EmailProfile{
			Name:     models.EmailProfileDefault,
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		}
	}

	c.Mail = mail.NewSender(c.EmailProfiles, logger)

	if cfg.SFTPHost != "" {
		sftp, err := transfer.NewSFTPTransfer(transfer.Config{
			Host:     cfg.SFTPHost,
			Port:     cfg.SFTPPort,
			Username: cfg.SFTPUsername,
			Password: cfg.SFTPPassword,
		}, logger)
		if err != nil {
			return c, fmt.Errorf("failed to build SFTP transfer: %w", err)
		}

		c.Transfer = sftp
	}

	return c, nil
}
