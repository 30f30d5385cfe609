package models

import "time"

// StudentHourUsage aggregates hour consumption for a single student.
type StudentHourUsage struct {
	StudentID      string  `db:"student_id" json:"student_id"`
	StudentName    string  `db:"student_name" json:"student_name"`
	CompletedHours float64 `db:"completed_hours" json:"completed_hours"`
	NoShowHours    float64 `db:"no_show_hours" json:"no_show_hours"`
	ConsumedHours  float64 `json:"consumed_hours"`
	PurchasedHours float64 `db:"purchased_hours" json:"purchased_hours"`
	RemainingHours float64 `json:"remaining_hours"`
}

// TeacherHourUsage aggregates taught hours and availability utilisation.
type TeacherHourUsage struct {
	TeacherID      string  `db:"teacher_id" json:"teacher_id"`
	TeacherName    string  `db:"teacher_name" json:"teacher_name"`
	TaughtHours    float64 `db:"taught_hours" json:"taught_hours"`
	AvailableHours float64 `json:"available_hours"`
	Utilisation    float64 `json:"utilisation"`
}

// BookingStatusCount is one slice of the status breakdown.
type BookingStatusCount struct {
	Status BookingStatus `db:"status" json:"status"`
	Count  int           `db:"count" json:"count"`
}

// CourseWaitlistPressure reports queue depth per course.
type CourseWaitlistPressure struct {
	CourseID    string `db:"course_id" json:"course_id"`
	CourseTitle string `db:"course_title" json:"course_title"`
	Waiting     int    `db:"waiting" json:"waiting"`
}

// BookingAnalytics is the cached analytics payload for a date range.
type BookingAnalytics struct {
	From            time.Time                `json:"from"`
	To              time.Time                `json:"to"`
	StatusBreakdown []BookingStatusCount     `json:"status_breakdown"`
	Waitlist        []CourseWaitlistPressure `json:"waitlist"`
	GeneratedAt     time.Time                `json:"generated_at"`
}

// AnalyticsSystemMetrics summarises runtime behaviour for ops dashboards.
type AnalyticsSystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	DBQueryCount             uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs float64   `json:"average_db_query_duration_ms"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
