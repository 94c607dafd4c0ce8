package store

import (
	"context"
	"errors"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS pacing_markers (
		scope TEXT NOT NULL,
		verb TEXT NOT NULL,
		last_dispatch_at INTEGER NOT NULL,
		PRIMARY KEY (scope, verb)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_pacing_markers_verb ON pacing_markers(verb);`,
}

// Migrate ensures the required database tables exist.
func (s *Store) Migrate(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	for _, stmt := range schemaStatements {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store migration failed: %w", err)
		}
	}

	return nil
}
