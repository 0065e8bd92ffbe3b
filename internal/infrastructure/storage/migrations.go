package storage

import (
	"context"
	"fmt"

	"NewsAgent/internal/domain"
)

// Migrate creates one table per item kind when missing.
func (r *Repository) Migrate(ctx context.Context) error {
	for _, kind := range domain.Kinds() {
		for _, stmt := range r.schema(kind.Table()) {
			if _, err := r.db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("migrate %s: %w", kind.Table(), err)
			}
		}
	}
	return nil
}

func (r *Repository) schema(table string) []string {
	d := r.dialect
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %[1]s (
  id %[2]s,
  title TEXT NOT NULL,
  url TEXT NOT NULL UNIQUE,
  source TEXT NOT NULL DEFAULT '',
  published_at %[3]s NULL,
  description TEXT NULL,
  summary TEXT NULL,
  content_hash TEXT NOT NULL DEFAULT '',
  created_at %[3]s NOT NULL,
  updated_at %[3]s NOT NULL
)`, table, d.idColumn, d.timeType),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%[1]s_source ON %[1]s(source)`, table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%[1]s_published_at ON %[1]s(published_at)`, table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%[1]s_pending ON %[1]s(published_at) WHERE summary IS NULL`, table),
	}
}
