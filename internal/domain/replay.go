package domain

import "time"

// ReplayRecord remembers that a caller already triggered a delivery under an
// Idempotency-Key. Scope is the event kind (or route) so one client key can
// be reused across kinds. LogID is the DeliveryLog answered on replay.
type ReplayRecord struct {
	ID        string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	CallerID  string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_replay_caller_scope_key,priority:1"`
	Scope     string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_replay_caller_scope_key,priority:2"`
	Key       string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_replay_caller_scope_key,priority:3"`
	LogID     string    `gorm:"type:TEXT NOT NULL;index"`
	CreatedAt time.Time `gorm:"type:DATETIME NOT NULL"`
	ExpiresAt time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (ReplayRecord) TableName() string { return "replay_records" }

// Live reports whether the record may still be replayed at now.
func (r ReplayRecord) Live(now time.Time) bool { return now.Before(r.ExpiresAt) }
