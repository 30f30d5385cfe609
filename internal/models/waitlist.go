package models

import "time"

// WaitlistStatus enumerates waitlist entry states.
type WaitlistStatus string

const (
	WaitlistStatusWaiting   WaitlistStatus = "WAITING"
	WaitlistStatusPromoted  WaitlistStatus = "PROMOTED"
	WaitlistStatusCancelled WaitlistStatus = "CANCELLED"
	WaitlistStatusExpired   WaitlistStatus = "EXPIRED"
)

// WaitlistEntry queues a student for a full class.
type WaitlistEntry struct {
	ID         string         `db:"id" json:"id"`
	ClassID    string         `db:"class_id" json:"class_id"`
	StudentID  string         `db:"student_id" json:"student_id"`
	Status     WaitlistStatus `db:"status" json:"status"`
	PromotedAt *time.Time     `db:"promoted_at" json:"promoted_at,omitempty"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
}

// WaitlistEntryDetail adds the computed position and student context.
type WaitlistEntryDetail struct {
	WaitlistEntry
	StudentName string `db:"student_name" json:"student_name"`
	Position    int    `db:"position" json:"position"`
}
