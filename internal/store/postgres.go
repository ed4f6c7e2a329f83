package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/makeasinger/songgen/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS generation_jobs (
	id             TEXT PRIMARY KEY,
	owner_id       TEXT NOT NULL,
	title          TEXT NOT NULL,
	inputs         JSONB NOT NULL,
	guidance_scale DOUBLE PRECISION NOT NULL,
	status         TEXT NOT NULL,
	audio_ref      TEXT NOT NULL DEFAULT '',
	audio_url      TEXT NOT NULL DEFAULT '',
	cover_ref      TEXT NOT NULL DEFAULT '',
	cover_url      TEXT NOT NULL DEFAULT '',
	listen_count   BIGINT NOT NULL DEFAULT 0,
	published      BOOLEAN NOT NULL DEFAULT FALSE,
	error          TEXT,
	created_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS generation_jobs_owner_idx ON generation_jobs (owner_id, created_at DESC);
`

const selectColumns = `id, owner_id, title, inputs, guidance_scale, status, audio_ref, audio_url,
cover_ref, cover_url, listen_count, published, error, created_at, updated_at`

// PostgresStore keeps jobs in the generation_jobs table. Each update is a
// single conditional UPDATE, so the row lock serializes writers.
type PostgresStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, now: time.Now}
}

// Migrate creates the table and index if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, job *model.Job) (string, error) {
	if err := prepareNew(job, s.now()); err != nil {
		return "", err
	}

	inputs, err := json.Marshal(job.Inputs)
	if err != nil {
		return "", fmt.Errorf("failed to marshal inputs: %w", err)
	}

	const q = `
INSERT INTO generation_jobs (id, owner_id, title, inputs, guidance_scale, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7);
`
	if _, err := s.pool.Exec(ctx, q, job.ID, job.OwnerID, job.Title, inputs,
		job.GuidanceScale, string(job.Status), job.CreatedAt); err != nil {
		return "", fmt.Errorf("failed to save job: %w", err)
	}
	return job.ID, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*model.Job, error) {
	q := `SELECT ` + selectColumns + ` FROM generation_jobs WHERE id = $1;`
	job, err := scanJob(s.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load job: %w", err)
	}
	return job, nil
}

func (s *PostgresStore) Update(ctx context.Context, id string, upd model.JobUpdate) error {
	if err := validateUpdate(upd); err != nil {
		return err
	}

	var status *string
	if upd.Status != nil {
		v := string(*upd.Status)
		status = &v
	}

	// A status change only lands while the row is still processing or
	// already carries that status.
	const q = `
UPDATE generation_jobs SET
	status     = COALESCE($2, status),
	audio_ref  = COALESCE($3, audio_ref),
	audio_url  = COALESCE($4, audio_url),
	cover_ref  = COALESCE($5, cover_ref),
	cover_url  = COALESCE($6, cover_url),
	published  = COALESCE($7, published),
	error      = COALESCE($8, error),
	updated_at = $9
WHERE id = $1
  AND ($2::text IS NULL OR status = $2::text OR status = 'processing');
`
	tag, err := s.pool.Exec(ctx, q, id, status, upd.AudioRef, upd.AudioURL,
		upd.CoverRef, upd.CoverURL, upd.Published, upd.Error, s.now())
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// Nothing matched: tell a missing row apart from a refused transition.
	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	return checkTransition(current.Status, upd)
}

func (s *PostgresStore) IncrementListens(ctx context.Context, id string) (int64, error) {
	const q = `UPDATE generation_jobs SET listen_count = listen_count + 1 WHERE id = $1 RETURNING listen_count;`

	var count int64
	if err := s.pool.QueryRow(ctx, q, id).Scan(&count); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("failed to increment listens: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) ListByOwner(ctx context.Context, ownerID string, limit int) ([]*model.Job, error) {
	q := `SELECT ` + selectColumns + ` FROM generation_jobs WHERE owner_id = $1 ORDER BY created_at DESC LIMIT $2;`

	rows, err := s.pool.Query(ctx, q, ownerID, normalizeListLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*model.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func scanJob(row pgx.Row) (*model.Job, error) {
	var (
		job        model.Job
		inputBytes []byte
		statusText string
		errText    *string
		updatedAt  *time.Time
	)

	if err := row.Scan(
		&job.ID,
		&job.OwnerID,
		&job.Title,
		&inputBytes,
		&job.GuidanceScale,
		&statusText,
		&job.AudioRef,
		&job.AudioURL,
		&job.CoverRef,
		&job.CoverURL,
		&job.ListenCount,
		&job.Published,
		&errText,
		&job.CreatedAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(inputBytes, &job.Inputs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal inputs: %w", err)
	}
	job.Status = model.JobStatus(statusText)
	job.Error = errText
	job.UpdatedAt = updatedAt
	return &job, nil
}
