package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lms-portal-api/internal/models"
)

// ExportRepository handles persistence of asynchronous export jobs.
type ExportRepository struct {
	db *sqlx.DB
}

// NewExportRepository constructs the repository.
func NewExportRepository(db *sqlx.DB) *ExportRepository {
	return &ExportRepository{db: db}
}

// Create persists a queued export job.
func (r *ExportRepository) Create(ctx context.Context, job *models.ExportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	if job.Status == "" {
		job.Status = models.ExportStatusQueued
	}
	const query = `INSERT INTO export_jobs (id, type, params, status, result_url, created_by, created_at, finished_at, error_message)
        VALUES (:id, :type, :params, :status, :result_url, :created_by, :created_at, :finished_at, :error_message)`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("create export job: %w", err)
	}
	return nil
}

// FindByID returns an export job by its ID.
func (r *ExportRepository) FindByID(ctx context.Context, id string) (*models.ExportJob, error) {
	const query = `SELECT id, type, params, status, result_url, created_by, created_at, finished_at, error_message
        FROM export_jobs WHERE id = $1`
	var job models.ExportJob
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		return nil, err
	}
	return &job, nil
}

// ListByUser returns the user's export jobs, newest first.
func (r *ExportRepository) ListByUser(ctx context.Context, userID string, limit int) ([]models.ExportJob, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query := fmt.Sprintf(`SELECT id, type, params, status, result_url, created_by, created_at, finished_at, error_message
        FROM export_jobs WHERE created_by = $1 ORDER BY created_at DESC LIMIT %d`, limit)
	var jobs []models.ExportJob
	if err := r.db.SelectContext(ctx, &jobs, query, userID); err != nil {
		return nil, fmt.Errorf("list export jobs: %w", err)
	}
	return jobs, nil
}

// MarkProcessing transitions a job to PROCESSING.
func (r *ExportRepository) MarkProcessing(ctx context.Context, id string) error {
	const query = `UPDATE export_jobs SET status = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.ExportStatusProcessing); err != nil {
		return fmt.Errorf("mark export processing: %w", err)
	}
	return nil
}

// MarkFinished records the result location and completion time.
func (r *ExportRepository) MarkFinished(ctx context.Context, id, resultURL string, finishedAt time.Time) error {
	const query = `UPDATE export_jobs SET status = $2, result_url = $3, finished_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.ExportStatusFinished, resultURL, finishedAt); err != nil {
		return fmt.Errorf("mark export finished: %w", err)
	}
	return nil
}

// MarkFailed records the failure reason and completion time.
func (r *ExportRepository) MarkFailed(ctx context.Context, id, message string, finishedAt time.Time) error {
	const query = `UPDATE export_jobs SET status = $2, error_message = $3, finished_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.ExportStatusFailed, message, finishedAt); err != nil {
		return fmt.Errorf("mark export failed: %w", err)
	}
	return nil
}

// ListFinishedBefore returns finished jobs past the retention cutoff.
func (r *ExportRepository) ListFinishedBefore(ctx context.Context, cutoff time.Time) ([]models.ExportJob, error) {
	const query = `SELECT id, type, params, status, result_url, created_by, created_at, finished_at, error_message
        FROM export_jobs WHERE status = $1 AND finished_at < $2`
	var jobs []models.ExportJob
	if err := r.db.SelectContext(ctx, &jobs, query, models.ExportStatusFinished, cutoff); err != nil {
		return nil, fmt.Errorf("list finished export jobs: %w", err)
	}
	return jobs, nil
}

// Delete removes an export job row.
func (r *ExportRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM export_jobs WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete export job: %w", err)
	}
	return nil
}
