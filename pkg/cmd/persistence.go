package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/loadbridge/loadbridge/pkg/persistence"
	"github.com/loadbridge/loadbridge/pkg/persistence/file"
	"github.com/loadbridge/loadbridge/pkg/persistence/postgresql"
)

// NewPersistence selects the storage backend from the database URL scheme.
// postgres:// URLs get the PostgreSQL store; anything else is treated as a
// file path for the JSON store.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	if strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://") {
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	}

	return file.NewPersistence(databaseURL)
}
