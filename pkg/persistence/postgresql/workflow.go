package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/loadbridge/loadbridge/pkg/models"
	"github.com/loadbridge/loadbridge/pkg/persistence"
)

// WorkflowRepository handles workflow graph database operations.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

// GetAll returns all workflows with their nodes and edges.
func (r *WorkflowRepository) GetAll(ctx context.Context) ([]*models.Workflow, error) {
	query := `
		SELECT
			id
		  , name
		  , type
		  , is_active
		  , created_at
		  , updated_at
		FROM workflows
		WHERE deleted_at IS NULL
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	workflows := make([]*models.Workflow, 0)

	for rows.Next() {
		workflow := &models.Workflow{}

		err := rows.Scan(&workflow.ID, &workflow.Name, &workflow.Type,
			&workflow.IsActive, &workflow.CreatedAt, &workflow.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		err = r.loadGraph(ctx, workflow)
		if err != nil {
			return nil, err
		}

		workflows = append(workflows, workflow)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	return workflows, nil
}

func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	query := `
		SELECT
			id
		  , name
		  , type
		  , is_active
		  , created_at
		  , updated_at
		FROM workflows
		WHERE id = $1 AND deleted_at IS NULL
	`

	workflow := &models.Workflow{}

	err := r.db.QueryRowContext(ctx, query, id).Scan(&workflow.ID, &workflow.Name,
		&workflow.Type, &workflow.IsActive, &workflow.CreatedAt, &workflow.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}

	err = r.loadGraph(ctx, workflow)
	if err != nil {
		return nil, err
	}

	return workflow, nil
}

// Save upserts the workflow row and replaces its nodes and edges in one
// transaction, matching the editor's diff-and-replace save semantics.
func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	now := time.Now().UTC()

	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	if workflow.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate workflow ID: %w", err)
		}

		workflow.ID = id.String()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	workflowQuery := `
		INSERT INTO workflows (id, name, type, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			type = EXCLUDED.type,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at
	`

	_, err = tx.ExecContext(ctx, workflowQuery,
		workflow.ID, workflow.Name, workflow.Type, workflow.IsActive,
		workflow.CreatedAt, workflow.UpdatedAt)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	err = r.replaceNodes(ctx, tx, workflow)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	err = r.replaceEdges(ctx, tx, workflow)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit workflow save: %w", err)
	}

	return nil
}

// Delete soft deletes a workflow by setting deleted_at.
func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE workflows SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL", id)
	if err != nil {
		return persistence.NewWorkflowError("Delete", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		return persistence.NewWorkflowError("Delete", id, persistence.ErrWorkflowNotFound)
	}

	return nil
}

func (r *WorkflowRepository) replaceNodes(ctx context.Context, tx *sql.Tx, workflow *models.Workflow) error {
	_, err := tx.ExecContext(ctx, "DELETE FROM workflow_nodes WHERE workflow_id = $1", workflow.ID)
	if err != nil {
		return fmt.Errorf("failed to clear workflow nodes: %w", err)
	}

	nodeQuery := `
		INSERT INTO workflow_nodes
			(workflow_id, id, kind, step_type, label, config, escape_single_quotes_in_body, user_response_template)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	for _, node := range workflow.Nodes {
		configJSON, err := json.Marshal(node.Config)
		if err != nil {
			return fmt.Errorf("failed to marshal config for node %s: %w", node.ID, err)
		}

		_, err = tx.ExecContext(ctx, nodeQuery,
			workflow.ID, node.ID, node.Kind, node.StepType, node.Label,
			configJSON, node.EscapeSingleQuotesInBody, node.UserResponseTemplate)
		if err != nil {
			return fmt.Errorf("failed to insert node %s: %w", node.ID, err)
		}
	}

	return nil
}

func (r *WorkflowRepository) replaceEdges(ctx context.Context, tx *sql.Tx, workflow *models.Workflow) error {
	_, err := tx.ExecContext(ctx, "DELETE FROM workflow_edges WHERE workflow_id = $1", workflow.ID)
	if err != nil {
		return fmt.Errorf("failed to clear workflow edges: %w", err)
	}

	edgeQuery := `
		INSERT INTO workflow_edges
			(workflow_id, id, source_node_id, target_node_id, source_handle, target_handle, label, animated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	for _, edge := range workflow.Edges {
		_, err = tx.ExecContext(ctx, edgeQuery,
			workflow.ID, edge.ID, edge.SourceNodeID, edge.TargetNodeID,
			edge.Handle(), edge.TargetHandle, edge.Label, edge.Animated)
		if err != nil {
			return fmt.Errorf("failed to insert edge %s: %w", edge.ID, err)
		}
	}

	return nil
}

// loadGraph loads nodes and edges ordered by creation, which fixes the
// first-registered-wins routing order.
func (r *WorkflowRepository) loadGraph(ctx context.Context, workflow *models.Workflow) error {
	nodeRows, err := r.db.QueryContext(ctx, `
		SELECT id, kind, step_type, label, config, escape_single_quotes_in_body, user_response_template
		FROM workflow_nodes
		WHERE workflow_id = $1
		ORDER BY created_at, id
	`, workflow.ID)
	if err != nil {
		return fmt.Errorf("failed to query workflow nodes: %w", err)
	}

	defer func() { _ = nodeRows.Close() }()

	workflow.Nodes = make([]*models.Node, 0)

	for nodeRows.Next() {
		node := &models.Node{WorkflowID: workflow.ID}

		var (
			stepType, label, userResponse sql.NullString
			configJSON                    []byte
		)

		err := nodeRows.Scan(&node.ID, &node.Kind, &stepType, &label,
			&configJSON, &node.EscapeSingleQuotesInBody, &userResponse)
		if err != nil {
			return fmt.Errorf("failed to scan node: %w", err)
		}

		node.StepType = stepType.String
		node.Label = label.String
		node.UserResponseTemplate = userResponse.String

		if len(configJSON) > 0 {
			err = json.Unmarshal(configJSON, &node.Config)
			if err != nil {
				return fmt.Errorf("malformed config for node %s: %w", node.ID, err)
			}
		}

		workflow.Nodes = append(workflow.Nodes, node)
	}

	err = nodeRows.Err()
	if err != nil {
		return fmt.Errorf("error iterating nodes: %w", err)
	}

	edgeRows, err := r.db.QueryContext(ctx, `
		SELECT id, source_node_id, target_node_id, source_handle, target_handle, label, animated
		FROM workflow_edges
		WHERE workflow_id = $1
		ORDER BY created_at, id
	`, workflow.ID)
	if err != nil {
		return fmt.Errorf("failed to query workflow edges: %w", err)
	}

	defer func() { _ = edgeRows.Close() }()

	workflow.Edges = make([]*models.Edge, 0)

	for edgeRows.Next() {
		edge := &models.Edge{WorkflowID: workflow.ID}

		var targetHandle, label sql.NullString

		err := edgeRows.Scan(&edge.ID, &edge.SourceNodeID, &edge.TargetNodeID,
			&edge.SourceHandle, &targetHandle, &label, &edge.Animated)
		if err != nil {
			return fmt.Errorf("failed to scan edge: %w", err)
		}

		edge.TargetHandle = targetHandle.String
		edge.Label = label.String

		workflow.Edges = append(workflow.Edges, edge)
	}

	err = edgeRows.Err()
	if err != nil {
		return fmt.Errorf("error iterating edges: %w", err)
	}

	return nil
}
