package repository

import (
	"context"
	"fmt"

	"github.com/fortuna/kitscout/internal/apperrors"
	"github.com/fortuna/kitscout/internal/store"
)

// ScrapeJobRepository records acquisition runs.
type ScrapeJobRepository struct {
	db *store.Database
}

// NewScrapeJobRepository creates a new scrape job repository
func NewScrapeJobRepository(db *store.Database) *ScrapeJobRepository {
	return &ScrapeJobRepository{db: db}
}

// Start inserts a running job.
func (r *ScrapeJobRepository) Start(ctx context.Context, source, query string) (*store.ScrapeJob, error) {
	started := now()
	job := &store.ScrapeJob{Source: source, Query: query, Status: store.JobRunning, StartedAt: &started}

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO scrape_jobs (source, query, status, started_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, source, query, string(job.Status), started).Scan(&job.ID)
	if err != nil {
		return nil, fmt.Errorf("inserting scrape job: %w", err)
	}
	return job, nil
}

// Complete finishes a job. A non-empty errMsg marks it failed.
func (r *ScrapeJobRepository) Complete(ctx context.Context, id int64, found, valid int, errMsg string) error {
	status := store.JobCompleted
	if errMsg != "" {
		status = store.JobFailed
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE scrape_jobs
		SET status = $1, total_found = $2, total_valid = $3, error = $4, completed_at = $5
		WHERE id = $6
	`, string(status), found, valid, errMsg, now(), id)
	if err != nil {
		return fmt.Errorf("completing scrape job: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperrors.NotFound("complete scrape job", fmt.Sprintf("scrape job %d not found", id))
	}
	return nil
}

// List returns the most recent jobs first.
func (r *ScrapeJobRepository) List(ctx context.Context, limit int) ([]*store.ScrapeJob, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, source, query, status, total_found, total_valid, error, started_at, completed_at
		FROM scrape_jobs
		ORDER BY id DESC
		LIMIT $1
	`, limitOrDefault(limit))
	if err != nil {
		return nil, fmt.Errorf("querying scrape jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*store.ScrapeJob
	for rows.Next() {
		job := &store.ScrapeJob{}
		if err := rows.Scan(&job.ID, &job.Source, &job.Query, &job.Status, &job.TotalFound, &job.TotalValid,
			&job.Error, &job.StartedAt, &job.CompletedAt); err != nil {
			return nil, fmt.Errorf("scanning scrape job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}
