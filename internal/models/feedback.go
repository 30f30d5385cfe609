package models

import "time"

// Feedback is a student's rating for a completed booking.
type Feedback struct {
	ID        string    `db:"id" json:"id"`
	BookingID string    `db:"booking_id" json:"booking_id"`
	AuthorID  string    `db:"author_id" json:"author_id"`
	Rating    int       `db:"rating" json:"rating"`
	Comment   *string   `db:"comment" json:"comment,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// FeedbackDetail joins booking context onto a feedback row.
type FeedbackDetail struct {
	Feedback
	StudentName string `db:"student_name" json:"student_name"`
	CourseTitle string `db:"course_title" json:"course_title"`
	TeacherID   string `db:"teacher_id" json:"teacher_id"`
}

// FeedbackSummary aggregates ratings for a teacher or course.
type FeedbackSummary struct {
	SubjectID     string  `db:"subject_id" json:"subject_id"`
	AverageRating float64 `db:"average_rating" json:"average_rating"`
	RatingCount   int     `db:"rating_count" json:"rating_count"`
}
