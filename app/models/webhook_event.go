package models

import "time"

// Outcomes recorded on a processed webhook event.
const (
	OutcomeApplied = "applied"
	OutcomeIgnored = "ignored"
)

// WebhookEvent is the dedup barrier for webhook processing. A row is claimed
// with an insert-if-absent on EventID before any side effect runs; the unique
// index is what enforces at-most-once application under concurrent delivery.
// Rows are never mutated after ProcessedAt is set.
type WebhookEvent struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	EventID     string     `gorm:"type:varchar(191);not null;uniqueIndex:ux_webhook_events_event_id" json:"event_id"`
	EventType   string     `gorm:"type:varchar(100);not null;index" json:"event_type"`
	PayloadJSON string     `gorm:"type:longtext;not null" json:"payload_json"`
	Outcome     string     `gorm:"type:varchar(16);default:''" json:"outcome"`
	ProcessedAt *time.Time `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	CreatedAt   time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
}
