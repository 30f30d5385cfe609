package models

import "time"

// NotificationType enumerates emit reasons used by domain flows.
type NotificationType string

const (
	NotificationBookingConfirmed  NotificationType = "BOOKING_CONFIRMED"
	NotificationBookingCancelled  NotificationType = "BOOKING_CANCELLED"
	NotificationClassCancelled    NotificationType = "CLASS_CANCELLED"
	NotificationWaitlistPromoted  NotificationType = "WAITLIST_PROMOTED"
	NotificationPasswordReset     NotificationType = "PASSWORD_RESET"
	NotificationBookingReschedule NotificationType = "BOOKING_RESCHEDULED"
)

// Notification is an in-app message for a user, optionally mirrored by email.
type Notification struct {
	ID        string           `db:"id" json:"id"`
	UserID    string           `db:"user_id" json:"user_id"`
	Type      NotificationType `db:"type" json:"type"`
	Title     string           `db:"title" json:"title"`
	Body      string           `db:"body" json:"body"`
	Read      bool             `db:"read" json:"read"`
	ReadAt    *time.Time       `db:"read_at" json:"read_at,omitempty"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
}

// NotificationFilter captures list criteria for a user's notifications.
type NotificationFilter struct {
	UserID     string
	UnreadOnly bool
	Page       int
	PageSize   int
}
