package models

import "time"

// BookingStatus enumerates booking lifecycle states.
type BookingStatus string

const (
	BookingStatusPending     BookingStatus = "PENDING"
	BookingStatusConfirmed   BookingStatus = "CONFIRMED"
	BookingStatusCancelled   BookingStatus = "CANCELLED"
	BookingStatusCompleted   BookingStatus = "COMPLETED"
	BookingStatusNoShow      BookingStatus = "NO_SHOW"
	BookingStatusRescheduled BookingStatus = "RESCHEDULED"
)

// ActiveBookingStatuses are the states that occupy a class seat.
var ActiveBookingStatuses = []BookingStatus{BookingStatusPending, BookingStatusConfirmed}

// Booking ties a student to a class.
type Booking struct {
	ID              string        `db:"id" json:"id"`
	StudentID       string        `db:"student_id" json:"student_id"`
	ClassID         string        `db:"class_id" json:"class_id"`
	Status          BookingStatus `db:"status" json:"status"`
	RescheduledFrom *string       `db:"rescheduled_from" json:"rescheduled_from,omitempty"`
	BookedAt        time.Time     `db:"booked_at" json:"booked_at"`
	CancelledAt     *time.Time    `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CompletedAt     *time.Time    `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updated_at"`
}

// BookingDetail joins student, class and course context onto a booking row.
type BookingDetail struct {
	Booking
	StudentName     string    `db:"student_name" json:"student_name"`
	StudentEmail    string    `db:"student_email" json:"student_email"`
	CourseTitle     string    `db:"course_title" json:"course_title"`
	TeacherID       string    `db:"teacher_id" json:"teacher_id"`
	TeacherName     string    `db:"teacher_name" json:"teacher_name"`
	ClassStartTime  time.Time `db:"class_start_time" json:"class_start_time"`
	ClassEndTime    time.Time `db:"class_end_time" json:"class_end_time"`
	DurationMinutes int       `db:"duration_minutes" json:"duration_minutes"`
}

// BookingFilter captures list criteria for bookings.
type BookingFilter struct {
	StudentID string
	TeacherID string
	ClassID   string
	CourseID  string
	Status    BookingStatus
	From      *time.Time
	To        *time.Time
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
