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

// FeedbackRepository handles persistence of booking feedback.
type FeedbackRepository struct {
	db *sqlx.DB
}

// NewFeedbackRepository constructs the repository.
func NewFeedbackRepository(db *sqlx.DB) *FeedbackRepository {
	return &FeedbackRepository{db: db}
}

// Create persists a feedback record.
func (r *FeedbackRepository) Create(ctx context.Context, feedback *models.Feedback) error {
	if feedback.ID == "" {
		feedback.ID = uuid.NewString()
	}
	if feedback.CreatedAt.IsZero() {
		feedback.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO feedback (id, booking_id, author_id, rating, comment, created_at)
        VALUES (:id, :booking_id, :author_id, :rating, :comment, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, feedback); err != nil {
		return fmt.Errorf("create feedback: %w", err)
	}
	return nil
}

// ExistsForBooking reports whether the author already left feedback on the
// booking. Uniqueness is per (booking, author) so the student and the teacher
// can each rate the same session once.
func (r *FeedbackRepository) ExistsForBooking(ctx context.Context, bookingID, authorID string) (bool, error) {
	const query = `SELECT 1 FROM feedback WHERE booking_id = $1 AND author_id = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, bookingID, authorID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check feedback: %w", err)
	}
	return true, nil
}

// ListByTeacher returns feedback left on a teacher's classes, newest first.
func (r *FeedbackRepository) ListByTeacher(ctx context.Context, teacherID string, limit int) ([]models.FeedbackDetail, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query := fmt.Sprintf(`SELECT f.id, f.booking_id, f.author_id, f.rating, f.comment, f.created_at,
        s.full_name AS student_name, c.title AS course_title, cl.teacher_id AS teacher_id
        FROM feedback f
        LEFT JOIN bookings b ON b.id = f.booking_id
        LEFT JOIN users s ON s.id = f.author_id
        LEFT JOIN classes cl ON cl.id = b.class_id
        LEFT JOIN courses c ON c.id = cl.course_id
        WHERE cl.teacher_id = $1
        ORDER BY f.created_at DESC LIMIT %d`, limit)
	var feedback []models.FeedbackDetail
	if err := r.db.SelectContext(ctx, &feedback, query, teacherID); err != nil {
		return nil, fmt.Errorf("list teacher feedback: %w", err)
	}
	return feedback, nil
}

// SummaryByTeacher aggregates ratings for a single teacher.
func (r *FeedbackRepository) SummaryByTeacher(ctx context.Context, teacherID string) (*models.FeedbackSummary, error) {
	const query = `SELECT cl.teacher_id AS subject_id,
        COALESCE(AVG(f.rating), 0) AS average_rating, COUNT(f.id) AS rating_count
        FROM feedback f
        LEFT JOIN bookings b ON b.id = f.booking_id
        LEFT JOIN classes cl ON cl.id = b.class_id
        WHERE cl.teacher_id = $1
        GROUP BY cl.teacher_id`
	var summary models.FeedbackSummary
	if err := r.db.GetContext(ctx, &summary, query, teacherID); err != nil {
		if err == sql.ErrNoRows {
			return &models.FeedbackSummary{SubjectID: teacherID}, nil
		}
		return nil, fmt.Errorf("summarise teacher feedback: %w", err)
	}
	return &summary, nil
}

// SummaryOverall aggregates ratings across the whole portal.
func (r *FeedbackRepository) SummaryOverall(ctx context.Context) (*models.FeedbackSummary, error) {
	const query = `SELECT COALESCE(AVG(rating), 0) AS average_rating, COUNT(id) AS rating_count FROM feedback`
	summary := models.FeedbackSummary{SubjectID: "overall"}
	if err := r.db.GetContext(ctx, &summary, query); err != nil {
		return nil, fmt.Errorf("summarise feedback: %w", err)
	}
	return &summary, nil
}

// SummaryByCourse aggregates ratings for a single course.
func (r *FeedbackRepository) SummaryByCourse(ctx context.Context, courseID string) (*models.FeedbackSummary, error) {
	const query = `SELECT cl.course_id AS subject_id,
        COALESCE(AVG(f.rating), 0) AS average_rating, COUNT(f.id) AS rating_count
        FROM feedback f
        LEFT JOIN bookings b ON b.id = f.booking_id
        LEFT JOIN classes cl ON cl.id = b.class_id
        WHERE cl.course_id = $1
        GROUP BY cl.course_id`
	var summary models.FeedbackSummary
	if err := r.db.GetContext(ctx, &summary, query, courseID); err != nil {
		if err == sql.ErrNoRows {
			return &models.FeedbackSummary{SubjectID: courseID}, nil
		}
		return nil, fmt.Errorf("summarise course feedback: %w", err)
	}
	return &summary, nil
}
