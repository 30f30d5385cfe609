package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lms-portal-api/internal/models"
)

// AnalyticsRepository runs aggregate queries for reports and dashboards.
type AnalyticsRepository struct {
	db *sqlx.DB
}

// NewAnalyticsRepository constructs the repository.
func NewAnalyticsRepository(db *sqlx.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// StudentHourUsage aggregates consumed hours per student over a period.
// Completed and no-show hours are reported separately so the caller can
// apply the no-show consumption policy.
func (r *AnalyticsRepository) StudentHourUsage(ctx context.Context, from, to time.Time) ([]models.StudentHourUsage, error) {
	const query = `SELECT u.id AS student_id, u.full_name AS student_name, u.purchased_hours,
        COALESCE(SUM(CASE WHEN b.status = $3 THEN c.duration_minutes ELSE 0 END), 0) / 60.0 AS completed_hours,
        COALESCE(SUM(CASE WHEN b.status = $4 THEN c.duration_minutes ELSE 0 END), 0) / 60.0 AS no_show_hours
        FROM users u
        LEFT JOIN bookings b ON b.student_id = u.id AND b.completed_at >= $1 AND b.completed_at < $2
        LEFT JOIN classes cl ON cl.id = b.class_id
        LEFT JOIN courses c ON c.id = cl.course_id
        WHERE u.role = $5 AND u.active = TRUE
        GROUP BY u.id, u.full_name, u.purchased_hours
        ORDER BY completed_hours DESC`
	var usage []models.StudentHourUsage
	err := r.db.SelectContext(ctx, &usage, query, from, to,
		models.BookingStatusCompleted, models.BookingStatusNoShow, models.RoleStudent)
	if err != nil {
		return nil, fmt.Errorf("aggregate student hours: %w", err)
	}
	return usage, nil
}

// StudentHourUsageByID aggregates consumed hours for one student over a period.
func (r *AnalyticsRepository) StudentHourUsageByID(ctx context.Context, studentID string, from, to time.Time) (*models.StudentHourUsage, error) {
	const query = `SELECT u.id AS student_id, u.full_name AS student_name, u.purchased_hours,
        COALESCE(SUM(CASE WHEN b.status = $4 THEN c.duration_minutes ELSE 0 END), 0) / 60.0 AS completed_hours,
        COALESCE(SUM(CASE WHEN b.status = $5 THEN c.duration_minutes ELSE 0 END), 0) / 60.0 AS no_show_hours
        FROM users u
        LEFT JOIN bookings b ON b.student_id = u.id AND b.completed_at >= $2 AND b.completed_at < $3
        LEFT JOIN classes cl ON cl.id = b.class_id
        LEFT JOIN courses c ON c.id = cl.course_id
        WHERE u.id = $1
        GROUP BY u.id, u.full_name, u.purchased_hours`
	var usage models.StudentHourUsage
	err := r.db.GetContext(ctx, &usage, query, studentID, from, to,
		models.BookingStatusCompleted, models.BookingStatusNoShow)
	if err != nil {
		return nil, err
	}
	return &usage, nil
}

// TeacherHourUsage aggregates taught hours per teacher over a period.
func (r *AnalyticsRepository) TeacherHourUsage(ctx context.Context, from, to time.Time) ([]models.TeacherHourUsage, error) {
	const query = `SELECT u.id AS teacher_id, u.full_name AS teacher_name,
        COALESCE(SUM(CASE WHEN b.status = $3 THEN c.duration_minutes ELSE 0 END), 0) / 60.0 AS taught_hours
        FROM users u
        LEFT JOIN classes cl ON cl.teacher_id = u.id
        LEFT JOIN bookings b ON b.class_id = cl.id AND b.completed_at >= $1 AND b.completed_at < $2
        LEFT JOIN courses c ON c.id = cl.course_id
        WHERE u.role = $4 AND u.active = TRUE
        GROUP BY u.id, u.full_name
        ORDER BY taught_hours DESC`
	var usage []models.TeacherHourUsage
	err := r.db.SelectContext(ctx, &usage, query, from, to, models.BookingStatusCompleted, models.RoleTeacher)
	if err != nil {
		return nil, fmt.Errorf("aggregate teacher hours: %w", err)
	}
	return usage, nil
}

// BookingStatusBreakdown counts bookings per status inside a period.
func (r *AnalyticsRepository) BookingStatusBreakdown(ctx context.Context, from, to time.Time) ([]models.BookingStatusCount, error) {
	const query = `SELECT b.status, COUNT(*) AS count
        FROM bookings b
        WHERE b.booked_at >= $1 AND b.booked_at < $2
        GROUP BY b.status ORDER BY count DESC`
	var counts []models.BookingStatusCount
	if err := r.db.SelectContext(ctx, &counts, query, from, to); err != nil {
		return nil, fmt.Errorf("aggregate booking statuses: %w", err)
	}
	return counts, nil
}

// WaitlistPressure reports waiting queue depth per course.
func (r *AnalyticsRepository) WaitlistPressure(ctx context.Context) ([]models.CourseWaitlistPressure, error) {
	const query = `SELECT c.id AS course_id, c.title AS course_title, COUNT(w.id) AS waiting
        FROM waitlist_entries w
        LEFT JOIN classes cl ON cl.id = w.class_id
        LEFT JOIN courses c ON c.id = cl.course_id
        WHERE w.status = $1
        GROUP BY c.id, c.title
        ORDER BY waiting DESC`
	var pressure []models.CourseWaitlistPressure
	if err := r.db.SelectContext(ctx, &pressure, query, models.WaitlistStatusWaiting); err != nil {
		return nil, fmt.Errorf("aggregate waitlist pressure: %w", err)
	}
	return pressure, nil
}
