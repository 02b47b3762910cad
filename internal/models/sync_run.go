package models

import "time"

const (
	SyncRunStatusRunning = "running"
	SyncRunStatusSuccess = "success"
	SyncRunStatusPartial = "partial"
	SyncRunStatusFailed  = "failed"
)

// SyncRun is the audit record for one pull-based reconciliation run.
type SyncRun struct {
	ID       uint   `gorm:"primaryKey"`
	TenantID string `gorm:"index"`

	BeginTime time.Time
	EndTime   time.Time

	Processed int
	Updated   int
	Skipped   int
	Unmatched int
	Failed    int

	Status      string `gorm:"index"`
	TriggeredBy string

	StartedAt  time.Time
	FinishedAt *time.Time
	DurationMs int64

	CreatedAt time.Time
}
