package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lms-portal-api/internal/models"
)

// ClassRepository handles persistence of scheduled classes.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs the repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// List returns classes filtered by the provided criteria.
func (r *ClassRepository) List(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, int, error) {
	base := `FROM classes cl
LEFT JOIN courses c ON c.id = cl.course_id
LEFT JOIN users t ON t.id = cl.teacher_id`
	var conditions []string
	var args []interface{}

	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("cl.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("cl.teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("cl.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("cl.start_time >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("cl.start_time < $%d", len(args)+1))
		args = append(args, *filter.To)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"start_time":   "cl.start_time",
		"course_title": "c.title",
		"teacher_name": "t.full_name",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "cl.start_time"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT cl.id, cl.course_id, cl.teacher_id, cl.start_time, cl.end_time, cl.max_capacity,
        cl.enrolled_count, cl.status, cl.created_at, cl.updated_at, c.title AS course_title, t.full_name AS teacher_name
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var classes []models.ClassDetail
	if err := r.db.SelectContext(ctx, &classes, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list classes: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count classes: %w", err)
	}
	return classes, total, nil
}

// FindByID returns a class by its ID.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.Class, error) {
	const query = `SELECT id, course_id, teacher_id, start_time, end_time, max_capacity, enrolled_count, status, created_at, updated_at
        FROM classes WHERE id = $1`
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		return nil, err
	}
	return &class, nil
}

// FindDetailByID returns a class with course and teacher context.
func (r *ClassRepository) FindDetailByID(ctx context.Context, id string) (*models.ClassDetail, error) {
	const query = `SELECT cl.id, cl.course_id, cl.teacher_id, cl.start_time, cl.end_time, cl.max_capacity,
        cl.enrolled_count, cl.status, cl.created_at, cl.updated_at, c.title AS course_title, t.full_name AS teacher_name
        FROM classes cl
        LEFT JOIN courses c ON c.id = cl.course_id
        LEFT JOIN users t ON t.id = cl.teacher_id
        WHERE cl.id = $1`
	var detail models.ClassDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// Create persists a new class record.
func (r *ClassRepository) Create(ctx context.Context, class *models.Class) error {
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if class.CreatedAt.IsZero() {
		class.CreatedAt = now
	}
	class.UpdatedAt = now
	if class.Status == "" {
		class.Status = models.ClassStatusScheduled
	}
	const query = `INSERT INTO classes (id, course_id, teacher_id, start_time, end_time, max_capacity, enrolled_count, status, created_at, updated_at)
        VALUES (:id, :course_id, :teacher_id, :start_time, :end_time, :max_capacity, :enrolled_count, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("create class: %w", err)
	}
	return nil
}

// Update persists mutable class fields.
func (r *ClassRepository) Update(ctx context.Context, class *models.Class) error {
	class.UpdatedAt = time.Now().UTC()
	const query = `UPDATE classes SET start_time = :start_time, end_time = :end_time, max_capacity = :max_capacity,
        teacher_id = :teacher_id, status = :status, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("update class: %w", err)
	}
	return nil
}

// UpdateStatus transitions a class lifecycle state.
func (r *ClassRepository) UpdateStatus(ctx context.Context, id string, status models.ClassStatus) error {
	const query = `UPDATE classes SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update class status: %w", err)
	}
	return nil
}

// AdjustEnrolledCount changes the seat counter, guarded so it never exceeds
// capacity or drops below zero. Returns true when the adjustment applied.
func (r *ClassRepository) AdjustEnrolledCount(ctx context.Context, id string, delta int) (bool, error) {
	const query = `UPDATE classes SET enrolled_count = enrolled_count + $2, updated_at = $3
        WHERE id = $1 AND enrolled_count + $2 >= 0 AND enrolled_count + $2 <= max_capacity`
	res, err := r.db.ExecContext(ctx, query, id, delta, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("adjust enrolled count: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("adjust enrolled count result: %w", err)
	}
	return affected > 0, nil
}

// ListEndedBefore returns scheduled classes whose end time passed the cutoff.
func (r *ClassRepository) ListEndedBefore(ctx context.Context, cutoff time.Time) ([]models.Class, error) {
	const query = `SELECT id, course_id, teacher_id, start_time, end_time, max_capacity, enrolled_count, status, created_at, updated_at
        FROM classes WHERE status = $1 AND end_time < $2`
	var classes []models.Class
	if err := r.db.SelectContext(ctx, &classes, query, models.ClassStatusScheduled, cutoff); err != nil {
		return nil, fmt.Errorf("list ended classes: %w", err)
	}
	return classes, nil
}

// CountBetween counts scheduled classes starting inside the range.
func (r *ClassRepository) CountBetween(ctx context.Context, from, to time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM classes WHERE status = $1 AND start_time >= $2 AND start_time < $3`
	var count int
	if err := r.db.GetContext(ctx, &count, query, models.ClassStatusScheduled, from, to); err != nil {
		return 0, fmt.Errorf("count classes: %w", err)
	}
	return count, nil
}
