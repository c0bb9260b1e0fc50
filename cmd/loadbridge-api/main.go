// Package main provides the Loadbridge API server.
package main

import (
	"context"
	"log/slog"
	"os"

	cli "github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/trace"

	"github.com/loadbridge/loadbridge/pkg/barcode"
	"github.com/loadbridge/loadbridge/pkg/cmd"
	"github.com/loadbridge/loadbridge/pkg/log"
	"github.com/loadbridge/loadbridge/pkg/otelhelper"
	"github.com/loadbridge/loadbridge/pkg/protocol"
	"github.com/loadbridge/loadbridge/pkg/queue"
)

const defaultPort = 9090

func main() {
	command := &cli.Command{
		Name:                  "loadbridge-api",
		Usage:                 "Manage workflows and run them against documents",
		EnableShellCompletion: true,
		Flags:                 apiFlags(),
		Action:                runAPI,
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}

func apiFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:    "port",
			Aliases: []string{"p"},
			Usage:   "Port to run the API server on",
			Value:   defaultPort,
			Sources: cli.EnvVars("PORT"),
		},
		&cli.StringFlag{
			Name:     "database-url",
			Usage:    "Database connection URL (postgres://... or a file path)",
			Required: true,
			Sources:  cli.EnvVars("DATABASE_URL"),
		},
		&cli.StringFlag{
			Name:    "event-bus",
			Usage:   "Event bus provider (kafka, gochannel)",
			Value:   "gochannel",
			Sources: cli.EnvVars("EVENT_BUS_TYPE"),
		},
		&cli.StringFlag{
			Name:    "kafka-brokers",
			Usage:   "Comma-separated Kafka broker addresses",
			Sources: cli.EnvVars("KAFKA_BROKERS"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level (debug, info, warn, error)",
			Value:   "info",
			Sources: cli.EnvVars("LOG_LEVEL"),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Usage:   "Log format (text, json)",
			Value:   "text",
			Sources: cli.EnvVars("LOG_FORMAT"),
		},
		&cli.BoolFlag{
			Name:    "tracing",
			Usage:   "Enable OTLP trace export",
			Sources: cli.EnvVars("ENABLE_TRACING"),
		},
		&cli.StringFlag{
			Name:    "ai-endpoint",
			Usage:   "Generative AI proxy endpoint",
			Sources: cli.EnvVars("AI_ENDPOINT"),
		},
		&cli.StringFlag{
			Name:    "ai-api-key",
			Usage:   "Generative AI API key",
			Sources: cli.EnvVars("AI_API_KEY"),
		},
		&cli.StringFlag{
			Name:    "ai-model",
			Usage:   "Generative AI model name",
			Sources: cli.EnvVars("AI_MODEL"),
		},
		&cli.StringFlag{
			Name:    "imaging-url",
			Usage:   "Imaging service base URL",
			Sources: cli.EnvVars("IMAGING_URL"),
		},
		&cli.StringFlag{
			Name:    "imaging-auth-header",
			Usage:   "Imaging service auth header name",
			Sources: cli.EnvVars("IMAGING_AUTH_HEADER"),
		},
		&cli.StringFlag{
			Name:    "imaging-auth-token",
			Usage:   "Imaging service auth token",
			Sources: cli.EnvVars("IMAGING_AUTH_TOKEN"),
		},
		&cli.StringFlag{
			Name:    "main-api-url",
			Usage:   "Base URL for the main API profile",
			Sources: cli.EnvVars("MAIN_API_URL"),
		},
		&cli.StringFlag{
			Name:    "main-api-token",
			Usage:   "Auth token for the main API profile",
			Sources: cli.EnvVars("MAIN_API_TOKEN"),
		},
		&cli.StringFlag{
			Name:    "secondary-api-url",
			Usage:   "Base URL for the secondary API profile",
			Sources: cli.EnvVars("SECONDARY_API_URL"),
		},
		&cli.StringFlag{
			Name:    "secondary-api-token",
			Usage:   "Auth token for the secondary API profile",
			Sources: cli.EnvVars("SECONDARY_API_TOKEN"),
		},
		&cli.StringFlag{
			Name:    "smtp-host",
			Sources: cli.EnvVars("SMTP_HOST"),
		},
		&cli.IntFlag{
			Name:    "smtp-port",
			Value:   587,
			Sources: cli.EnvVars("SMTP_PORT"),
		},
		&cli.StringFlag{
			Name:    "smtp-username",
			Sources: cli.EnvVars("SMTP_USERNAME"),
		},
		&cli.StringFlag{
			Name:    "smtp-password",
			Sources: cli.EnvVars("SMTP_PASSWORD"),
		},
		&cli.StringFlag{
			Name:    "smtp-from",
			Sources: cli.EnvVars("SMTP_FROM"),
		},
		&cli.StringFlag{
			Name:    "sftp-host",
			Sources: cli.EnvVars("SFTP_HOST"),
		},
		&cli.IntFlag{
			Name:    "sftp-port",
			Value:   22,
			Sources: cli.EnvVars("SFTP_PORT"),
		},
		&cli.StringFlag{
			Name:    "sftp-username",
			Sources: cli.EnvVars("SFTP_USERNAME"),
		},
		&cli.StringFlag{
			Name:    "sftp-password",
			Sources: cli.EnvVars("SFTP_PASSWORD"),
		},
		&cli.StringFlag{
			Name:    "redis-addr",
			Usage:   "Redis address for the manual indexing queue",
			Sources: cli.EnvVars("REDIS_ADDR"),
		},
		&cli.StringFlag{
			Name:    "redis-password",
			Sources: cli.EnvVars("REDIS_PASSWORD"),
		},
		&cli.StringFlag{
			Name:    "barcode-template",
			Usage:   "Barcode template, e.g. {documentType}-{detailLineId}",
			Sources: cli.EnvVars("BARCODE_TEMPLATE"),
		},
		&cli.StringFlag{
			Name:    "barcode-separator",
			Value:   "-",
			Sources: cli.EnvVars("BARCODE_SEPARATOR"),
		},
		&cli.StringFlag{
			Name:    "barcode-fixed-type",
			Usage:   "Treat every barcode as a detail line of this document type",
			Sources: cli.EnvVars("BARCODE_FIXED_TYPE"),
		},
		&cli.StringFlag{
			Name:    "document-types",
			Usage:   "Known document types as comma-separated id=name pairs",
			Sources: cli.EnvVars("DOCUMENT_TYPES"),
		},
	}
}

func runAPI(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"), command.String("log-format"))

	logger := log.WithModule("api")
	logger.InfoContext(ctx, "Initializing Loadbridge API")

	collaborators, err := cmd.NewCollaborators(logger, collaboratorConfig(command))
	if err != nil {
		return err
	}

	registry := cmd.NewRegistry(logger, collaborators)

	persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return err
	}

	defer func() {
		err := persistence.Close(ctx)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	eventBus, err := cmd.NewEventBus(command.String("event-bus"), "loadbridge-api",
		command.String("kafka-brokers"), logger)
	if err != nil {
		return err
	}

	defer func() {
		err := eventBus.Close()
		if err != nil {
			logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}
	}()

	barcodes, err := newBarcodeService(ctx, command, logger)
	if err != nil {
		return err
	}

	var tracer trace.Tracer

	if command.Bool("tracing") {
		tracer, err = otelhelper.NewTracer(ctx, "loadbridge-api")
		if err != nil {
			return err
		}
	}

	api := NewAPI(logger, persistence, registry, eventBus, barcodes, collaborators.AI, tracer)

	err = api.Start(command.Int("port"))
	if err != nil {
		logger.ErrorContext(ctx, "API server stopped", "error", err)
	}

	return err
}

func collaboratorConfig(command *cli.Command) cmd.CollaboratorConfig {
	return cmd.CollaboratorConfig{
		AIEndpoint:          command.String("ai-endpoint"),
		AIAPIKey:            command.String("ai-api-key"),
		AIModel:             command.String("ai-model"),
		ImagingBaseURL:      command.String("imaging-url"),
		ImagingAuthHeader:   command.String("imaging-auth-header"),
		ImagingAuthToken:    command.String("imaging-auth-token"),
		MainAPIBaseURL:      command.String("main-api-url"),
		MainAPIToken:        command.String("main-api-token"),
		SecondaryAPIBaseURL: command.String("secondary-api-url"),
		SecondaryAPIToken:   command.String("secondary-api-token"),
		SMTPHost:            command.String("smtp-host"),
		SMTPPort:            command.Int("smtp-port"),
		SMTPUsername:        command.String("smtp-username"),
		SMTPPassword:        command.String("smtp-password"),
		SMTPFrom:            command.String("smtp-from"),
		SFTPHost:            command.String("sftp-host"),
		SFTPPort:            command.Int("sftp-port"),
		SFTPUsername:        command.String("sftp-username"),
		SFTPPassword:        command.String("sftp-password"),
	}
}

// newBarcodeService wires the barcode matcher when document types are
// configured; without them the imaging intake endpoint rejects every code.
func newBarcodeService(ctx context.Context, command *cli.Command, logger *slog.Logger) (*barcode.Service, error) {
	documentTypes, err := barcode.ParseDocumentTypes(command.String("document-types"))
	if err != nil {
		return nil, err
	}

	if len(documentTypes) == 0 {
		return nil, nil
	}

	matcher, err := barcode.NewMatcher(barcode.Config{
		Separator:         command.String("barcode-separator"),
		Template:          command.String("barcode-template"),
		FixedDocumentType: command.String("barcode-fixed-type"),
		DocumentTypes:     documentTypes,
	})
	if err != nil {
		return nil, err
	}

	var manualQueue protocol.ManualIndexQueue

	if command.String("redis-addr") != "" {
		redisQueue, err := queue.NewRedisQueue(ctx, queue.Config{
			Addr:     command.String("redis-addr"),
			Password: command.String("redis-password"),
		}, logger)
		if err != nil {
			return nil, err
		}

		manualQueue = redisQueue
	}

	return barcode.NewService(matcher, manualQueue, logger), nil
}
