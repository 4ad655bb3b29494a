package repository

import (
	emaildomain "mailmirror-backend/internal/email/domain"
)

// SyncAuditRepository defines the interface for sync audit operations.
// Audit rows are append-only: they are created at cycle start and finalized
// exactly once.
type SyncAuditRepository interface {
	Create(audit *emaildomain.SyncAudit) error
	// FindByID returns (nil, nil) when the audit does not exist
	FindByID(id string) (*emaildomain.SyncAudit, error)
	// Finish finalizes a running audit with its terminal status and counts
	Finish(id, status string, threads, messages, attachments int, fullListing bool, errorMessage string) error
	// RequestCancel sets the cooperative cancel flag on a running audit
	RequestCancel(id string) error
	// IsCancelRequested polls the cancel flag
	IsCancelRequested(id string) (bool, error)
	// ListRecentByUser returns the newest audits first
	ListRecentByUser(userID string, limit int) ([]emaildomain.SyncAudit, error)
}
