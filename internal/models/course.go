package models

import "time"

// Course represents a catalog entry students can book classes for.
type Course struct {
	ID              string    `db:"id" json:"id"`
	Title           string    `db:"title" json:"title"`
	Slug            string    `db:"slug" json:"slug"`
	Description     *string   `db:"description" json:"description,omitempty"`
	SubjectArea     string    `db:"subject_area" json:"subject_area"`
	DurationMinutes int       `db:"duration_minutes" json:"duration_minutes"`
	HourlyPrice     float64   `db:"hourly_price" json:"hourly_price"`
	TeacherID       string    `db:"teacher_id" json:"teacher_id"`
	Active          bool      `db:"active" json:"active"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// CourseDetail joins teacher context onto a course row.
type CourseDetail struct {
	Course
	TeacherName string `db:"teacher_name" json:"teacher_name"`
}

// CourseFilter captures list criteria for courses.
type CourseFilter struct {
	TeacherID   string
	SubjectArea string
	Active      *bool
	Search      string
	Page        int
	PageSize    int
	SortBy      string
	SortOrder   string
}
