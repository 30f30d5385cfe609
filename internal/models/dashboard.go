package models

import "time"

// AdminDashboard is the cached admin landing summary.
type AdminDashboard struct {
	Students        int       `json:"students"`
	Teachers        int       `json:"teachers"`
	ClassesToday    int       `json:"classes_today"`
	PendingBookings int       `json:"pending_bookings"`
	WaitlistDepth   int       `json:"waitlist_depth"`
	AverageRating   float64   `json:"average_rating"`
	GeneratedAt     time.Time `json:"generated_at"`
}

// TeacherDashboard summarises a teacher's day and month.
type TeacherDashboard struct {
	TeacherID            string        `json:"teacher_id"`
	ClassesToday         []ClassDetail `json:"classes_today"`
	PendingConfirmations int           `json:"pending_confirmations"`
	TaughtHoursThisMonth float64       `json:"taught_hours_this_month"`
	GeneratedAt          time.Time     `json:"generated_at"`
}

// StudentDashboard summarises a student's bookings and balance.
type StudentDashboard struct {
	StudentID         string                `json:"student_id"`
	UpcomingBookings  []BookingDetail       `json:"upcoming_bookings"`
	RemainingHours    float64               `json:"remaining_hours"`
	WaitlistPositions []WaitlistEntryDetail `json:"waitlist_positions"`
	GeneratedAt       time.Time             `json:"generated_at"`
}
