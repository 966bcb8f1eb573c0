package postgres

import "context"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS pipelines (
    id         TEXT PRIMARY KEY,
    name       TEXT NOT NULL DEFAULT '',
    document   JSONB NOT NULL DEFAULT '{}',
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS validation_jobs (
    id           TEXT PRIMARY KEY,
    status       TEXT NOT NULL,
    payload      JSONB NOT NULL,
    submitted_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_validation_jobs_status ON validation_jobs(status);
`

// CreateSchema creates the pipelines and validation_jobs tables if they don't exist.
func (s *Storage) CreateSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, schemaSQL)
	return err
}

// DropSchema drops the validation_jobs and pipelines tables.
func (s *Storage) DropSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `DROP TABLE IF EXISTS validation_jobs, pipelines CASCADE;`)
	return err
}
