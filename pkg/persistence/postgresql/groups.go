package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
)

// GroupRepository stores extracted field sets per session group so later
// groups in a multi-page session can inherit earlier values.
type GroupRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewGroupRepository(db *sql.DB, logger *slog.Logger) *GroupRepository {
	return &GroupRepository{db: db, logger: logger}
}

func (r *GroupRepository) Save(ctx context.Context, sessionID string, groupOrder int, fields map[string]any) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to marshal group fields: %w", err)
	}

	query := `
		INSERT INTO extraction_groups (session_id, group_order, fields)
		VALUES ($1, $2, $3)
		ON CONFLICT (session_id, group_order) DO UPDATE SET fields = EXCLUDED.fields
	`

	_, err = r.db.ExecContext(ctx, query, sessionID, groupOrder, fieldsJSON)
	if err != nil {
		return fmt.Errorf("failed to save group %d for session %s: %w", groupOrder, sessionID, err)
	}

	return nil
}

// PriorGroupFields returns the field sets of all groups before the given one,
// ordered by group ascending.
func (r *GroupRepository) PriorGroupFields(ctx context.Context, sessionID string, beforeGroup int) ([]map[string]any, error) {
	query := `
		SELECT fields
		FROM extraction_groups
		WHERE session_id = $1 AND group_order < $2
		ORDER BY group_order ASC
	`

	rows, err := r.db.QueryContext(ctx, query, sessionID, beforeGroup)
	if err != nil {
		return nil, fmt.Errorf("failed to query prior groups: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	groups := make([]map[string]any, 0)

	for rows.Next() {
		var fieldsJSON []byte

		err := rows.Scan(&fieldsJSON)
		if err != nil {
			return nil, fmt.Errorf("failed to scan group fields: %w", err)
		}

		fields := make(map[string]any)

		err = json.Unmarshal(fieldsJSON, &fields)
		if err != nil {
			return nil, fmt.Errorf("malformed group fields for session %s: %w", sessionID, err)
		}

		groups = append(groups, fields)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating groups: %w", err)
	}

	return groups, nil
}
