package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lms-portal-api/internal/models"
)

// WaitlistRepository handles persistence of waitlist entries.
type WaitlistRepository struct {
	db *sqlx.DB
}

// NewWaitlistRepository constructs the repository.
func NewWaitlistRepository(db *sqlx.DB) *WaitlistRepository {
	return &WaitlistRepository{db: db}
}

// Create persists a new waitlist entry.
func (r *WaitlistRepository) Create(ctx context.Context, entry *models.WaitlistEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.Status == "" {
		entry.Status = models.WaitlistStatusWaiting
	}
	const query = `INSERT INTO waitlist_entries (id, class_id, student_id, status, promoted_at, created_at)
        VALUES (:id, :class_id, :student_id, :status, :promoted_at, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create waitlist entry: %w", err)
	}
	return nil
}

// FindByID returns an entry by its ID.
func (r *WaitlistRepository) FindByID(ctx context.Context, id string) (*models.WaitlistEntry, error) {
	const query = `SELECT id, class_id, student_id, status, promoted_at, created_at FROM waitlist_entries WHERE id = $1`
	var entry models.WaitlistEntry
	if err := r.db.GetContext(ctx, &entry, query, id); err != nil {
		return nil, err
	}
	return &entry, nil
}

// ExistsWaiting checks whether the student already waits for the class.
func (r *WaitlistRepository) ExistsWaiting(ctx context.Context, studentID, classID string) (bool, error) {
	const query = `SELECT 1 FROM waitlist_entries WHERE student_id = $1 AND class_id = $2 AND status = $3 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, classID, models.WaitlistStatusWaiting); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check waitlist entry: %w", err)
	}
	return true, nil
}

// ListWaitingByClass returns waiting entries with computed FIFO positions.
func (r *WaitlistRepository) ListWaitingByClass(ctx context.Context, classID string) ([]models.WaitlistEntryDetail, error) {
	const query = `SELECT w.id, w.class_id, w.student_id, w.status, w.promoted_at, w.created_at,
        s.full_name AS student_name,
        ROW_NUMBER() OVER (ORDER BY w.created_at ASC) AS position
        FROM waitlist_entries w
        LEFT JOIN users s ON s.id = w.student_id
        WHERE w.class_id = $1 AND w.status = $2
        ORDER BY w.created_at ASC`
	var entries []models.WaitlistEntryDetail
	if err := r.db.SelectContext(ctx, &entries, query, classID, models.WaitlistStatusWaiting); err != nil {
		return nil, fmt.Errorf("list waitlist entries: %w", err)
	}
	return entries, nil
}

// FindNextWaiting returns the oldest waiting entry for a class.
func (r *WaitlistRepository) FindNextWaiting(ctx context.Context, classID string) (*models.WaitlistEntry, error) {
	const query = `SELECT id, class_id, student_id, status, promoted_at, created_at
        FROM waitlist_entries WHERE class_id = $1 AND status = $2
        ORDER BY created_at ASC LIMIT 1`
	var entry models.WaitlistEntry
	if err := r.db.GetContext(ctx, &entry, query, classID, models.WaitlistStatusWaiting); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Position computes the ordinal rank of an entry: 1 + earlier waiting entries.
func (r *WaitlistRepository) Position(ctx context.Context, entry *models.WaitlistEntry) (int, error) {
	const query = `SELECT COUNT(*) FROM waitlist_entries
        WHERE class_id = $1 AND status = $2 AND created_at < $3`
	var earlier int
	if err := r.db.GetContext(ctx, &earlier, query, entry.ClassID, models.WaitlistStatusWaiting, entry.CreatedAt); err != nil {
		return 0, fmt.Errorf("compute waitlist position: %w", err)
	}
	return earlier + 1, nil
}

// UpdateStatus transitions a waitlist entry.
func (r *WaitlistRepository) UpdateStatus(ctx context.Context, id string, status models.WaitlistStatus, promotedAt *time.Time) error {
	const query = `UPDATE waitlist_entries SET status = $2, promoted_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, promotedAt); err != nil {
		return fmt.Errorf("update waitlist status: %w", err)
	}
	return nil
}

// ListWaitingByStudent returns the student's waiting entries with positions.
func (r *WaitlistRepository) ListWaitingByStudent(ctx context.Context, studentID string) ([]models.WaitlistEntryDetail, error) {
	const query = `SELECT w.id, w.class_id, w.student_id, w.status, w.promoted_at, w.created_at,
        s.full_name AS student_name,
        (SELECT COUNT(*) + 1 FROM waitlist_entries e
         WHERE e.class_id = w.class_id AND e.status = w.status AND e.created_at < w.created_at) AS position
        FROM waitlist_entries w
        LEFT JOIN users s ON s.id = w.student_id
        WHERE w.student_id = $1 AND w.status = $2
        ORDER BY w.created_at ASC`
	var entries []models.WaitlistEntryDetail
	if err := r.db.SelectContext(ctx, &entries, query, studentID, models.WaitlistStatusWaiting); err != nil {
		return nil, fmt.Errorf("list student waitlist entries: %w", err)
	}
	return entries, nil
}

// ExpireOlderThan marks stale waiting entries as expired, returning the count.
func (r *WaitlistRepository) ExpireOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `UPDATE waitlist_entries SET status = $1 WHERE status = $2 AND created_at < $3`
	res, err := r.db.ExecContext(ctx, query, models.WaitlistStatusExpired, models.WaitlistStatusWaiting, cutoff)
	if err != nil {
		return 0, fmt.Errorf("expire waitlist entries: %w", err)
	}
	affected, _ := res.RowsAffected()
	return affected, nil
}

// CountWaiting returns the total queue depth across classes.
func (r *WaitlistRepository) CountWaiting(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM waitlist_entries WHERE status = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, models.WaitlistStatusWaiting); err != nil {
		return 0, fmt.Errorf("count waitlist entries: %w", err)
	}
	return count, nil
}
