package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"go.opentelemetry.io/otel/trace"

	"github.com/loadbridge/loadbridge/pkg/barcode"
	"github.com/loadbridge/loadbridge/pkg/engine"
	"github.com/loadbridge/loadbridge/pkg/eventbus"
	"github.com/loadbridge/loadbridge/pkg/persistence"
	"github.com/loadbridge/loadbridge/pkg/protocol"
	"github.com/loadbridge/loadbridge/pkg/registry"
	"github.com/loadbridge/loadbridge/pkg/web"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	registry    *registry.Registry
	eventBus    eventbus.EventBus
	barcodes    *barcode.Service
	ai          protocol.AIClient
	tracer      trace.Tracer
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	registry *registry.Registry,
	eventBus eventbus.EventBus,
	barcodes *barcode.Service,
	ai protocol.AIClient,
	tracer trace.Tracer,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		registry:    registry,
		eventBus:    eventBus,
		barcodes:    barcodes,
		ai:          ai,
		tracer:      tracer,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	eng := engine.NewEngine(a.registry, a.persistence, a.tracer, a.logger)
	builder := engine.NewContextBuilder(a.persistence, a.ai, a.logger)
	runner := engine.NewRunner(a.persistence, builder, eng, a.logger)

	handlers := web.NewAPIHandlers(a.persistence, runner, a.eventBus, a.barcodes, a.validate, a.registry)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Loadbridge API")
	})

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.CreateWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Delete("/:id", handlers.DeleteWorkflow)
	w.Post("/:id/run", handlers.RunWorkflow)
	w.Post("/:id/runs", handlers.EnqueueRun)
	w.Get("/:id/executions", handlers.GetWorkflowExecutions)

	app.Get("/executions/:id", handlers.GetExecution)
	app.Get("/executions/:id/steps", handlers.GetExecutionSteps)

	app.Post("/imaging/barcodes", handlers.IntakeBarcode)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	return a.App().Listen(":" + strconv.Itoa(port))
}
