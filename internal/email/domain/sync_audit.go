package domain

import "time"

// Sync audit kinds
const (
	SyncKindFull   = "full"
	SyncKindSingle = "single"
)

// Sync audit statuses
const (
	SyncStatusRunning   = "running"
	SyncStatusSuccess   = "success"
	SyncStatusFailed    = "failed"
	SyncStatusCancelled = "cancelled"
)

// SyncAudit is an append-only record of one sync cycle
type SyncAudit struct {
	ID                string     `json:"id" gorm:"primaryKey"`
	UserID            string     `json:"user_id" gorm:"index;not null"`
	Kind              string     `json:"kind" gorm:"not null"`
	Status            string     `json:"status" gorm:"index;not null"`
	StartedAt         time.Time  `json:"started_at"`
	FinishedAt        *time.Time `json:"finished_at"`
	ThreadsSynced     int        `json:"threads_synced"`
	MessagesSynced    int        `json:"messages_synced"`
	AttachmentsSynced int        `json:"attachments_synced"`
	// FullListing records whether the remote listing was exhausted; pruning
	// of unseen threads only happens after a complete listing.
	FullListing  bool   `json:"full_listing"`
	ErrorMessage string `json:"error_message,omitempty" gorm:"type:text"`
	// Cancelled is the cooperative cancel flag polled by the running cycle
	Cancelled bool `json:"cancelled"`
}

// TableName specifies the table name for GORM
func (SyncAudit) TableName() string {
	return "sync_audits"
}
