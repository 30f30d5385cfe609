package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lms-portal-api/internal/models"
)

const bookingDetailColumns = `b.id, b.student_id, b.class_id, b.status, b.rescheduled_from, b.booked_at,
        b.cancelled_at, b.completed_at, b.created_at, b.updated_at,
        s.full_name AS student_name, s.email AS student_email, c.title AS course_title,
        cl.teacher_id AS teacher_id, t.full_name AS teacher_name,
        cl.start_time AS class_start_time, cl.end_time AS class_end_time, c.duration_minutes AS duration_minutes`

const bookingDetailJoins = `FROM bookings b
LEFT JOIN users s ON s.id = b.student_id
LEFT JOIN classes cl ON cl.id = b.class_id
LEFT JOIN courses c ON c.id = cl.course_id
LEFT JOIN users t ON t.id = cl.teacher_id`

// BookingRepository handles persistence of bookings.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository constructs the repository.
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// List returns bookings filtered by the provided criteria.
func (r *BookingRepository) List(ctx context.Context, filter models.BookingFilter) ([]models.BookingDetail, int, error) {
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("b.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("cl.teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("b.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("cl.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("b.status = $%d", len(args)+1))
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
		"booked_at":    "b.booked_at",
		"start_time":   "cl.start_time",
		"student_name": "s.full_name",
		"status":       "b.status",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "b.booked_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
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

	query := fmt.Sprintf(`SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d`,
		bookingDetailColumns, bookingDetailJoins+clause, orderBy, order, size, offset)

	var bookings []models.BookingDetail
	if err := r.db.SelectContext(ctx, &bookings, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list bookings: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", bookingDetailJoins+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count bookings: %w", err)
	}
	return bookings, total, nil
}

// FindByID returns a booking by its ID.
func (r *BookingRepository) FindByID(ctx context.Context, id string) (*models.Booking, error) {
	const query = `SELECT id, student_id, class_id, status, rescheduled_from, booked_at, cancelled_at, completed_at, created_at, updated_at
        FROM bookings WHERE id = $1`
	var booking models.Booking
	if err := r.db.GetContext(ctx, &booking, query, id); err != nil {
		return nil, err
	}
	return &booking, nil
}

// FindDetailByID returns a booking with student, class and course context.
func (r *BookingRepository) FindDetailByID(ctx context.Context, id string) (*models.BookingDetail, error) {
	query := fmt.Sprintf("SELECT %s %s WHERE b.id = $1", bookingDetailColumns, bookingDetailJoins)
	var detail models.BookingDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ExistsActive checks whether the student already holds a seat in the class.
func (r *BookingRepository) ExistsActive(ctx context.Context, studentID, classID string) (bool, error) {
	const query = `SELECT 1 FROM bookings WHERE student_id = $1 AND class_id = $2 AND status IN ($3, $4) LIMIT 1`
	var exists int
	err := r.db.GetContext(ctx, &exists, query, studentID, classID, models.BookingStatusPending, models.BookingStatusConfirmed)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check active booking: %w", err)
	}
	return true, nil
}

// ListActiveNear returns the student's active bookings whose class starts
// inside the window around the reference time. Used by the duplicate guard.
func (r *BookingRepository) ListActiveNear(ctx context.Context, studentID string, start time.Time, window time.Duration) ([]models.BookingDetail, error) {
	query := fmt.Sprintf(`SELECT %s %s
        WHERE b.student_id = $1 AND b.status IN ($2, $3) AND cl.start_time BETWEEN $4 AND $5`,
		bookingDetailColumns, bookingDetailJoins)
	var bookings []models.BookingDetail
	err := r.db.SelectContext(ctx, &bookings, query, studentID,
		models.BookingStatusPending, models.BookingStatusConfirmed,
		start.Add(-window), start.Add(window))
	if err != nil {
		return nil, fmt.Errorf("list nearby bookings: %w", err)
	}
	return bookings, nil
}

// Create persists a new booking record.
func (r *BookingRepository) Create(ctx context.Context, booking *models.Booking) error {
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if booking.BookedAt.IsZero() {
		booking.BookedAt = now
	}
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = now
	}
	booking.UpdatedAt = now
	if booking.Status == "" {
		booking.Status = models.BookingStatusPending
	}
	const query = `INSERT INTO bookings (id, student_id, class_id, status, rescheduled_from, booked_at, cancelled_at, completed_at, created_at, updated_at)
        VALUES (:id, :student_id, :class_id, :status, :rescheduled_from, :booked_at, :cancelled_at, :completed_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, booking); err != nil {
		return fmt.Errorf("create booking: %w", err)
	}
	return nil
}

// UpdateStatus transitions a booking and stamps the relevant timestamp.
func (r *BookingRepository) UpdateStatus(ctx context.Context, id string, status models.BookingStatus, at time.Time) error {
	var query string
	switch status {
	case models.BookingStatusCancelled:
		query = `UPDATE bookings SET status = $2, cancelled_at = $3, updated_at = $3 WHERE id = $1`
	case models.BookingStatusCompleted, models.BookingStatusNoShow:
		query = `UPDATE bookings SET status = $2, completed_at = $3, updated_at = $3 WHERE id = $1`
	default:
		query = `UPDATE bookings SET status = $2, updated_at = $3 WHERE id = $1`
	}
	if _, err := r.db.ExecContext(ctx, query, id, status, at); err != nil {
		return fmt.Errorf("update booking status: %w", err)
	}
	return nil
}

// ListByClass returns active bookings for a class.
func (r *BookingRepository) ListByClass(ctx context.Context, classID string) ([]models.BookingDetail, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE b.class_id = $1 AND b.status IN ($2, $3)`,
		bookingDetailColumns, bookingDetailJoins)
	var bookings []models.BookingDetail
	err := r.db.SelectContext(ctx, &bookings, query, classID, models.BookingStatusPending, models.BookingStatusConfirmed)
	if err != nil {
		return nil, fmt.Errorf("list class bookings: %w", err)
	}
	return bookings, nil
}

// ListOverdue returns active bookings whose class ended before the cutoff.
func (r *BookingRepository) ListOverdue(ctx context.Context, cutoff time.Time) ([]models.BookingDetail, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE b.status IN ($1, $2) AND cl.end_time < $3`,
		bookingDetailColumns, bookingDetailJoins)
	var bookings []models.BookingDetail
	err := r.db.SelectContext(ctx, &bookings, query, models.BookingStatusPending, models.BookingStatusConfirmed, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list overdue bookings: %w", err)
	}
	return bookings, nil
}

// CountByStatus counts bookings currently in the given state.
func (r *BookingRepository) CountByStatus(ctx context.Context, status models.BookingStatus) (int, error) {
	const query = `SELECT COUNT(*) FROM bookings WHERE status = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, status); err != nil {
		return 0, fmt.Errorf("count bookings by status: %w", err)
	}
	return count, nil
}

// ListUpcomingByStudent returns the student's next active bookings.
func (r *BookingRepository) ListUpcomingByStudent(ctx context.Context, studentID string, limit int) ([]models.BookingDetail, error) {
	if limit <= 0 {
		limit = 5
	}
	query := fmt.Sprintf(`SELECT %s %s
        WHERE b.student_id = $1 AND b.status IN ($2, $3) AND cl.start_time >= $4
        ORDER BY cl.start_time ASC LIMIT %d`, bookingDetailColumns, bookingDetailJoins, limit)
	var bookings []models.BookingDetail
	err := r.db.SelectContext(ctx, &bookings, query, studentID,
		models.BookingStatusPending, models.BookingStatusConfirmed, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("list upcoming bookings: %w", err)
	}
	return bookings, nil
}
