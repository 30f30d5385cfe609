package models

import "time"

// Weekday mirrors time.Weekday but persists as an int column.
type Weekday int

// AvailabilityWindow is a weekly recurring slot a teacher accepts classes in.
// Start and End are minutes from midnight in the portal timezone.
type AvailabilityWindow struct {
	ID           string    `db:"id" json:"id"`
	TeacherID    string    `db:"teacher_id" json:"teacher_id"`
	DayOfWeek    Weekday   `db:"day_of_week" json:"day_of_week"`
	StartMinutes int       `db:"start_minutes" json:"start_minutes"`
	EndMinutes   int       `db:"end_minutes" json:"end_minutes"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// BlackoutDate removes a single day from a teacher's weekly availability.
type BlackoutDate struct {
	ID        string    `db:"id" json:"id"`
	TeacherID string    `db:"teacher_id" json:"teacher_id"`
	Date      time.Time `db:"date" json:"date"`
	Reason    *string   `db:"reason" json:"reason,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
