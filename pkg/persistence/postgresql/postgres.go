// Package postgresql provides the PostgreSQL persistence implementation for
// workflows, execution logs and extraction groups.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	// Registers the postgres driver.
	_ "github.com/lib/pq"
	"github.com/loadbridge/loadbridge/pkg/models"
	"github.com/loadbridge/loadbridge/pkg/persistence/sqlbase"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db           *sql.DB
	logger       *slog.Logger
	workflowRepo *WorkflowRepository
	logRepo      *LogRepository
	groupRepo    *GroupRepository
}

// NewPersistence connects, runs migrations and wires the repositories.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:           database,
		logger:       logger,
		workflowRepo: NewWorkflowRepository(database, logger),
		logRepo:      NewLogRepository(database, logger),
		groupRepo:    NewGroupRepository(database, logger),
	}, nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

func (p *Persistence) Workflows(ctx context.Context) ([]*models.Workflow, error) {
	return p.workflowRepo.GetAll(ctx)
}

func (p *Persistence) WorkflowByID(ctx context.Context, id string) (*models.Workflow, error) {
	return p.workflowRepo.GetByID(ctx, id)
}

func (p *Persistence) SaveWorkflow(ctx context.Context, workflow *models.Workflow) error {
	return p.workflowRepo.Save(ctx, workflow)
}

// DeleteWorkflow soft deletes a workflow by setting deleted_at.
func (p *Persistence) DeleteWorkflow(ctx context.Context, id string) error {
	return p.workflowRepo.Delete(ctx, id)
}

func (p *Persistence) CreateExecutionLog(ctx context.Context, log *models.ExecutionLog) error {
	return p.logRepo.CreateExecutionLog(ctx, log)
}

func (p *Persistence) UpdateExecutionLog(ctx context.Context, log *models.ExecutionLog) error {
	return p.logRepo.UpdateExecutionLog(ctx, log)
}

func (p *Persistence) CreateStepLog(ctx context.Context, log *models.StepLog) error {
	return p.logRepo.CreateStepLog(ctx, log)
}

func (p *Persistence) ExecutionLogByID(ctx context.Context, id string) (*models.ExecutionLog, error) {
	return p.logRepo.ExecutionLogByID(ctx, id)
}

func (p *Persistence) ExecutionLogsByWorkflowID(ctx context.Context, workflowID string, limit int) ([]*models.ExecutionLog, error) {
	return p.logRepo.ExecutionLogsByWorkflowID(ctx, workflowID, limit)
}

func (p *Persistence) StepLogsByExecutionID(ctx context.Context, executionLogID string) ([]*models.StepLog, error) {
	return p.logRepo.StepLogsByExecutionID(ctx, executionLogID)
}

func (p *Persistence) SaveGroupFields(ctx context.Context, sessionID string, groupOrder int, fields map[string]any) error {
	return p.groupRepo.Save(ctx, sessionID, groupOrder, fields)
}

func (p *Persistence) PriorGroupFields(ctx context.Context, sessionID string, beforeGroup int) ([]map[string]any, error) {
	return p.groupRepo.PriorGroupFields(ctx, sessionID, beforeGroup)
}
