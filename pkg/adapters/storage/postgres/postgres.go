package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aescanero/dagflow/pkg/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Storage implements PipelineStorage using PostgreSQL via pgx.
type Storage struct {
	db *pgxpool.Pool
}

// New creates a new Storage backed by the given pgx connection pool.
func New(db *pgxpool.Pool) *Storage {
	return &Storage{db: db}
}

// SavePipeline upserts a saved pipeline.
func (s *Storage) SavePipeline(ctx context.Context, p *domain.SavedPipeline) error {
	doc, err := json.Marshal(p.Document)
	if err != nil {
		return fmt.Errorf("postgres: marshal document: %w", err)
	}

	_, err = s.db.Exec(ctx, `
INSERT INTO pipelines (id, name, document, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE
SET name = EXCLUDED.name, document = EXCLUDED.document, updated_at = EXCLUDED.updated_at`,
		p.ID, p.Name, doc, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: save pipeline %s: %w", p.ID, err)
	}
	return nil
}

// GetPipeline fetches a saved pipeline by id.
func (s *Storage) GetPipeline(ctx context.Context, id string) (*domain.SavedPipeline, error) {
	p := &domain.SavedPipeline{ID: id}
	var doc []byte

	err := s.db.QueryRow(ctx,
		`SELECT name, document, updated_at FROM pipelines WHERE id = $1`, id,
	).Scan(&p.Name, &doc, &p.UpdatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrPipelineNotFound, id)
		}
		return nil, fmt.Errorf("postgres: get pipeline: %w", err)
	}

	if err := json.Unmarshal(doc, &p.Document); err != nil {
		return nil, fmt.Errorf("postgres: unmarshal document: %w", err)
	}
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}

// DeletePipeline removes a saved pipeline.
func (s *Storage) DeletePipeline(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM pipelines WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: delete pipeline: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", domain.ErrPipelineNotFound, id)
	}
	return nil
}

// ListPipelines returns all saved pipeline ids in sorted order.
func (s *Storage) ListPipelines(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT id FROM pipelines ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list pipelines: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("postgres: scan pipeline id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows pipelines: %w", err)
	}
	return ids, nil
}

// SaveJob upserts a validation job. The full job is kept as JSONB and the
// status column mirrors it for querying.
func (s *Storage) SaveJob(ctx context.Context, job *domain.ValidationJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("postgres: marshal job: %w", err)
	}

	_, err = s.db.Exec(ctx, `
INSERT INTO validation_jobs (id, status, payload, submitted_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE
SET status = EXCLUDED.status, payload = EXCLUDED.payload`,
		job.ID, string(job.Status), payload, job.SubmittedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: save job %s: %w", job.ID, err)
	}
	return nil
}

// GetJob fetches a validation job by id.
func (s *Storage) GetJob(ctx context.Context, id string) (*domain.ValidationJob, error) {
	var payload []byte
	err := s.db.QueryRow(ctx,
		`SELECT payload FROM validation_jobs WHERE id = $1`, id,
	).Scan(&payload)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
		}
		return nil, fmt.Errorf("postgres: get job: %w", err)
	}

	var job domain.ValidationJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return nil, fmt.Errorf("postgres: unmarshal job: %w", err)
	}
	return &job, nil
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
