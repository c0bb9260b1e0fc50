package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/loadbridge/loadbridge/pkg/models"
	"github.com/loadbridge/loadbridge/pkg/persistence"
)

const defaultExecutionLogLimit = 50

// LogRepository persists execution and step audit logs.
type LogRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewLogRepository(db *sql.DB, logger *slog.Logger) *LogRepository {
	return &LogRepository{db: db, logger: logger}
}

func (r *LogRepository) CreateExecutionLog(ctx context.Context, log *models.ExecutionLog) error {
	contextJSON, err := json.Marshal(log.ContextData)
	if err != nil {
		return fmt.Errorf("failed to marshal context data: %w", err)
	}

	query := `
		INSERT INTO execution_logs
			(id, workflow_id, workflow_type, status, current_node_id, current_node_label,
			 context_data, error_message, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = r.db.ExecContext(ctx, query,
		log.ID, log.WorkflowID, log.WorkflowType, log.Status,
		nullString(log.CurrentNodeID), nullString(log.CurrentNodeLabel),
		contextJSON, nullString(log.ErrorMessage), log.StartedAt, log.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to insert execution log %s: %w", log.ID, err)
	}

	return nil
}

func (r *LogRepository) UpdateExecutionLog(ctx context.Context, log *models.ExecutionLog) error {
	contextJSON, err := json.Marshal(log.ContextData)
	if err != nil {
		return fmt.Errorf("failed to marshal context data: %w", err)
	}

	query := `
		UPDATE execution_logs
		SET status = $2,
			current_node_id = $3,
			current_node_label = $4,
			context_data = $5,
			error_message = $6,
			completed_at = $7
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		log.ID, log.Status, nullString(log.CurrentNodeID), nullString(log.CurrentNodeLabel),
		contextJSON, nullString(log.ErrorMessage), log.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to update execution log %s: %w", log.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		return persistence.ErrExecutionLogNotFound
	}

	return nil
}

func (r *LogRepository) CreateStepLog(ctx context.Context, log *models.StepLog) error {
	inputJSON, err := json.Marshal(log.InputData)
	if err != nil {
		return fmt.Errorf("failed to marshal input data: %w", err)
	}

	outputJSON, err := json.Marshal(log.OutputData)
	if err != nil {
		return fmt.Errorf("failed to marshal output data: %w", err)
	}

	query := `
		INSERT INTO step_logs
			(id, execution_log_id, node_id, node_label, step_type, status, input_data,
			 output_data, user_response, error_message, duration_ms, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err = r.db.ExecContext(ctx, query,
		log.ID, log.ExecutionLogID, log.NodeID, nullString(log.NodeLabel),
		nullString(log.StepType), log.Status, inputJSON, outputJSON,
		nullString(log.UserResponse), nullString(log.ErrorMessage),
		log.DurationMs, log.StartedAt, log.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to insert step log %s: %w", log.ID, err)
	}

	return nil
}

func (r *LogRepository) ExecutionLogByID(ctx context.Context, id string) (*models.ExecutionLog, error) {
	query := `
		SELECT id, workflow_id, workflow_type, status, current_node_id, current_node_label,
			   context_data, error_message, started_at, completed_at
		FROM execution_logs
		WHERE id = $1
	`

	log, err := scanExecutionLog(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrExecutionLogNotFound
		}

		return nil, fmt.Errorf("failed to scan execution log: %w", err)
	}

	return log, nil
}

func (r *LogRepository) ExecutionLogsByWorkflowID(ctx context.Context, workflowID string, limit int) ([]*models.ExecutionLog, error) {
	if limit <= 0 {
		limit = defaultExecutionLogLimit
	}

	query := `
		SELECT id, workflow_id, workflow_type, status, current_node_id, current_node_label,
			   context_data, error_message, started_at, completed_at
		FROM execution_logs
		WHERE workflow_id = $1
		ORDER BY started_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, workflowID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query execution logs: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	logs := make([]*models.ExecutionLog, 0)

	for rows.Next() {
		log, err := scanExecutionLog(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution log: %w", err)
		}

		logs = append(logs, log)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating execution logs: %w", err)
	}

	return logs, nil
}

func (r *LogRepository) StepLogsByExecutionID(ctx context.Context, executionLogID string) ([]*models.StepLog, error) {
	query := `
		SELECT id, execution_log_id, node_id, node_label, step_type, status, input_data,
			   output_data, user_response, error_message, duration_ms, started_at, completed_at
		FROM step_logs
		WHERE execution_log_id = $1
		ORDER BY started_at, id
	`

	rows, err := r.db.QueryContext(ctx, query, executionLogID)
	if err != nil {
		return nil, fmt.Errorf("failed to query step logs: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	logs := make([]*models.StepLog, 0)

	for rows.Next() {
		log := &models.StepLog{}

		var (
			nodeLabel, stepType, userResponse, errorMessage sql.NullString
			inputJSON, outputJSON                           []byte
		)

		err := rows.Scan(&log.ID, &log.ExecutionLogID, &log.NodeID, &nodeLabel,
			&stepType, &log.Status, &inputJSON, &outputJSON, &userResponse,
			&errorMessage, &log.DurationMs, &log.StartedAt, &log.CompletedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan step log: %w", err)
		}

		log.NodeLabel = nodeLabel.String
		log.StepType = stepType.String
		log.UserResponse = userResponse.String
		log.ErrorMessage = errorMessage.String

		err = unmarshalData(inputJSON, &log.InputData)
		if err != nil {
			return nil, fmt.Errorf("malformed input data for step log %s: %w", log.ID, err)
		}

		err = unmarshalData(outputJSON, &log.OutputData)
		if err != nil {
			return nil, fmt.Errorf("malformed output data for step log %s: %w", log.ID, err)
		}

		logs = append(logs, log)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating step logs: %w", err)
	}

	return logs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExecutionLog(row rowScanner) (*models.ExecutionLog, error) {
	log := &models.ExecutionLog{}

	var (
		currentNodeID, currentNodeLabel, errorMessage sql.NullString
		contextJSON                                   []byte
	)

	err := row.Scan(&log.ID, &log.WorkflowID, &log.WorkflowType, &log.Status,
		&currentNodeID, &currentNodeLabel, &contextJSON, &errorMessage,
		&log.StartedAt, &log.CompletedAt)
	if err != nil {
		return nil, err
	}

	log.CurrentNodeID = currentNodeID.String
	log.CurrentNodeLabel = currentNodeLabel.String
	log.ErrorMessage = errorMessage.String

	err = unmarshalData(contextJSON, &log.ContextData)
	if err != nil {
		return nil, fmt.Errorf("malformed context data for execution log %s: %w", log.ID, err)
	}

	return log, nil
}

func unmarshalData(raw []byte, target *map[string]any) error {
	if len(raw) == 0 {
		return nil
	}

	return json.Unmarshal(raw, target)
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}
