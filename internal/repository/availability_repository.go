package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lms-portal-api/internal/models"
)

// AvailabilityRepository handles teacher availability windows and blackouts.
type AvailabilityRepository struct {
	db *sqlx.DB
}

// NewAvailabilityRepository constructs the repository.
func NewAvailabilityRepository(db *sqlx.DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

// ListWindows returns the teacher's weekly windows ordered by day and start.
func (r *AvailabilityRepository) ListWindows(ctx context.Context, teacherID string) ([]models.AvailabilityWindow, error) {
	const query = `SELECT id, teacher_id, day_of_week, start_minutes, end_minutes, created_at
        FROM availability_windows WHERE teacher_id = $1
        ORDER BY day_of_week ASC, start_minutes ASC`
	var windows []models.AvailabilityWindow
	if err := r.db.SelectContext(ctx, &windows, query, teacherID); err != nil {
		return nil, fmt.Errorf("list availability windows: %w", err)
	}
	return windows, nil
}

// CreateWindow persists a weekly availability slot.
func (r *AvailabilityRepository) CreateWindow(ctx context.Context, window *models.AvailabilityWindow) error {
	if window.ID == "" {
		window.ID = uuid.NewString()
	}
	if window.CreatedAt.IsZero() {
		window.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO availability_windows (id, teacher_id, day_of_week, start_minutes, end_minutes, created_at)
        VALUES (:id, :teacher_id, :day_of_week, :start_minutes, :end_minutes, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, window); err != nil {
		return fmt.Errorf("create availability window: %w", err)
	}
	return nil
}

// DeleteWindow removes a weekly slot owned by the teacher.
func (r *AvailabilityRepository) DeleteWindow(ctx context.Context, id, teacherID string) (bool, error) {
	const query = `DELETE FROM availability_windows WHERE id = $1 AND teacher_id = $2`
	res, err := r.db.ExecContext(ctx, query, id, teacherID)
	if err != nil {
		return false, fmt.Errorf("delete availability window: %w", err)
	}
	affected, _ := res.RowsAffected()
	return affected > 0, nil
}

// ListBlackouts returns the teacher's blackout dates from the given day on.
func (r *AvailabilityRepository) ListBlackouts(ctx context.Context, teacherID string, from time.Time) ([]models.BlackoutDate, error) {
	const query = `SELECT id, teacher_id, date, reason, created_at
        FROM blackout_dates WHERE teacher_id = $1 AND date >= $2 ORDER BY date ASC`
	var blackouts []models.BlackoutDate
	if err := r.db.SelectContext(ctx, &blackouts, query, teacherID, from); err != nil {
		return nil, fmt.Errorf("list blackout dates: %w", err)
	}
	return blackouts, nil
}

// CreateBlackout persists a blackout date.
func (r *AvailabilityRepository) CreateBlackout(ctx context.Context, blackout *models.BlackoutDate) error {
	if blackout.ID == "" {
		blackout.ID = uuid.NewString()
	}
	if blackout.CreatedAt.IsZero() {
		blackout.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO blackout_dates (id, teacher_id, date, reason, created_at)
        VALUES (:id, :teacher_id, :date, :reason, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, blackout); err != nil {
		return fmt.Errorf("create blackout date: %w", err)
	}
	return nil
}

// DeleteBlackout removes a blackout date owned by the teacher.
func (r *AvailabilityRepository) DeleteBlackout(ctx context.Context, id, teacherID string) (bool, error) {
	const query = `DELETE FROM blackout_dates WHERE id = $1 AND teacher_id = $2`
	res, err := r.db.ExecContext(ctx, query, id, teacherID)
	if err != nil {
		return false, fmt.Errorf("delete blackout date: %w", err)
	}
	affected, _ := res.RowsAffected()
	return affected > 0, nil
}

// HasBlackout reports whether the teacher blocked out the given day.
func (r *AvailabilityRepository) HasBlackout(ctx context.Context, teacherID string, day time.Time) (bool, error) {
	const query = `SELECT COUNT(*) FROM blackout_dates WHERE teacher_id = $1 AND date = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, teacherID, day); err != nil {
		return false, fmt.Errorf("check blackout date: %w", err)
	}
	return count > 0, nil
}

// WeeklyMinutes sums the teacher's recurring availability per week.
func (r *AvailabilityRepository) WeeklyMinutes(ctx context.Context, teacherID string) (int, error) {
	const query = `SELECT COALESCE(SUM(end_minutes - start_minutes), 0) FROM availability_windows WHERE teacher_id = $1`
	var minutes int
	if err := r.db.GetContext(ctx, &minutes, query, teacherID); err != nil {
		return 0, fmt.Errorf("sum availability minutes: %w", err)
	}
	return minutes, nil
}
