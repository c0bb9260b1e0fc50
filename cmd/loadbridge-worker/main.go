// Package main provides the Loadbridge worker, which executes workflow runs
// requested over the event bus.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/trace"

	"github.com/loadbridge/loadbridge/pkg/cmd"
	"github.com/loadbridge/loadbridge/pkg/engine"
	"github.com/loadbridge/loadbridge/pkg/log"
	"github.com/loadbridge/loadbridge/pkg/otelhelper"
)

func main() {
	command := &cli.Command{
		Name:                  "loadbridge-worker",
		Usage:                 "Execute workflow runs requested on the event bus",
		EnableShellCompletion: true,
		Flags:                 workerFlags(),
		Action:                runWorker,
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}

func workerFlags() []cli.Flag {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:    "worker-id",
			Aliases: []string{"id"},
			Usage:   "Custom worker ID (auto-generated if not provided)",
			Sources: cli.EnvVars("WORKER_ID"),
		},
		&cli.StringFlag{
			Name:     "database-url",
			Usage:    "Database connection URL (postgres://... or a file path)",
			Required: true,
			Sources:  cli.EnvVars("DATABASE_URL"),
		},
		&cli.StringFlag{
			Name:     "event-bus",
			Usage:    "Event bus provider (kafka, gochannel)",
			Required: true,
			Sources:  cli.EnvVars("EVENT_BUS_TYPE"),
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
	}

	return append(flags, collaboratorFlags()...)
}

func collaboratorFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "ai-endpoint", Sources: cli.EnvVars("AI_ENDPOINT")},
		&cli.StringFlag{Name: "ai-api-key", Sources: cli.EnvVars("AI_API_KEY")},
		&cli.StringFlag{Name: "ai-model", Sources: cli.EnvVars("AI_MODEL")},
		&cli.StringFlag{Name: "imaging-url", Sources: cli.EnvVars("IMAGING_URL")},
		&cli.StringFlag{Name: "imaging-auth-header", Sources: cli.EnvVars("IMAGING_AUTH_HEADER")},
		&cli.StringFlag{Name: "imaging-auth-token", Sources: cli.EnvVars("IMAGING_AUTH_TOKEN")},
		&cli.StringFlag{Name: "main-api-url", Sources: cli.EnvVars("MAIN_API_URL")},
		&cli.StringFlag{Name: "main-api-token", Sources: cli.EnvVars("MAIN_API_TOKEN")},
		&cli.StringFlag{Name: "secondary-api-url", Sources: cli.EnvVars("SECONDARY_API_URL")},
		&cli.StringFlag{Name: "secondary-api-token", Sources: cli.EnvVars("SECONDARY_API_TOKEN")},
		&cli.StringFlag{Name: "smtp-host", Sources: cli.EnvVars("SMTP_HOST")},
		&cli.IntFlag{Name: "smtp-port", Value: 587, Sources: cli.EnvVars("SMTP_PORT")},
		&cli.StringFlag{Name: "smtp-username", Sources: cli.EnvVars("SMTP_USERNAME")},
		&cli.StringFlag{Name: "smtp-password", Sources: cli.EnvVars("SMTP_PASSWORD")},
		&cli.StringFlag{Name: "smtp-from", Sources: cli.EnvVars("SMTP_FROM")},
		&cli.StringFlag{Name: "sftp-host", Sources: cli.EnvVars("SFTP_HOST")},
		&cli.IntFlag{Name: "sftp-port", Value: 22, Sources: cli.EnvVars("SFTP_PORT")},
		&cli.StringFlag{Name: "sftp-username", Sources: cli.EnvVars("SFTP_USERNAME")},
		&cli.StringFlag{Name: "sftp-password", Sources: cli.EnvVars("SFTP_PASSWORD")},
	}
}

func runWorker(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"), command.String("log-format"))

	workerID := command.String("worker-id")
	if workerID == "" {
		workerID = "worker-" + uuid.NewString()[:8]
	}

	logger := log.WithModule("worker").With("worker_id", workerID)
	logger.InfoContext(ctx, "Initializing Loadbridge worker")

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	collaborators, err := cmd.NewCollaborators(logger, cmd.CollaboratorConfig{
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
	})
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

	eventBus, err := cmd.NewEventBus(command.String("event-bus"), "loadbridge-worker",
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

	var tracer trace.Tracer

	if command.Bool("tracing") {
		tracer, err = otelhelper.NewTracer(ctx, "loadbridge-worker")
		if err != nil {
			return err
		}
	}

	eng := engine.NewEngine(registry, persistence, tracer, logger)
	builder := engine.NewContextBuilder(persistence, collaborators.AI, logger)
	runner := engine.NewRunner(persistence, builder, eng, logger)

	worker := NewWorker(workerID, runner, eventBus, logger)

	return worker.Start(ctx)
}
