package models

import "time"

// ClassStatus enumerates class lifecycle states.
type ClassStatus string

const (
	ClassStatusScheduled ClassStatus = "SCHEDULED"
	ClassStatusCompleted ClassStatus = "COMPLETED"
	ClassStatusCancelled ClassStatus = "CANCELLED"
)

// Class is a scheduled session of a course.
type Class struct {
	ID            string      `db:"id" json:"id"`
	CourseID      string      `db:"course_id" json:"course_id"`
	TeacherID     string      `db:"teacher_id" json:"teacher_id"`
	StartTime     time.Time   `db:"start_time" json:"start_time"`
	EndTime       time.Time   `db:"end_time" json:"end_time"`
	MaxCapacity   int         `db:"max_capacity" json:"max_capacity"`
	EnrolledCount int         `db:"enrolled_count" json:"enrolled_count"`
	Status        ClassStatus `db:"status" json:"status"`
	CreatedAt     time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at" json:"updated_at"`
}

// ClassDetail joins course and teacher context onto a class row.
type ClassDetail struct {
	Class
	CourseTitle string `db:"course_title" json:"course_title"`
	TeacherName string `db:"teacher_name" json:"teacher_name"`
}

// ClassFilter captures list criteria for classes.
type ClassFilter struct {
	CourseID  string
	TeacherID string
	Status    ClassStatus
	From      *time.Time
	To        *time.Time
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
