package models

import "time"

// SettingType defines supported types for system setting values.
type SettingType string

const (
	SettingTypeString SettingType = "STRING"
	SettingTypeInt    SettingType = "INT"
	SettingTypeBool   SettingType = "BOOL"
	SettingTypeFloat  SettingType = "FLOAT"
)

// Well-known setting keys seeded at startup.
const (
	SettingDuplicateWindowMinutes = "booking.duplicate_window_minutes"
	SettingSimilarityThreshold    = "booking.similarity_threshold"
	SettingNoShowConsumesHours    = "booking.no_show_consumes_hours"
	SettingWaitlistAutoPromote    = "waitlist.auto_promote"
)

// SystemSetting represents a persisted settings entry.
type SystemSetting struct {
	Key         string      `db:"key" json:"key"`
	Value       string      `db:"value" json:"value"`
	Type        SettingType `db:"type" json:"type"`
	Description *string     `db:"description" json:"description,omitempty"`
	UpdatedBy   *string     `db:"updated_by" json:"updated_by,omitempty"`
	UpdatedAt   time.Time   `db:"updated_at" json:"updated_at"`
}
