package dto

import "time"

// SyncResult is the outcome of one reconciliation cycle
type SyncResult struct {
	Success           bool   `json:"success"`
	UserID            string `json:"user_id,omitempty"`
	AuditID           string `json:"audit_id,omitempty"`
	ThreadsSynced     int    `json:"threads_synced"`
	MessagesSynced    int    `json:"messages_synced"`
	AttachmentsSynced int    `json:"attachments_synced"`
	Error             string `json:"error,omitempty"`
}

// ScheduledSyncResult summarizes one scheduled batch run over all due users
type ScheduledSyncResult struct {
	TotalUsers   int          `json:"total_users"`
	SuccessCount int          `json:"success_count"`
	ErrorCount   int          `json:"error_count"`
	Results      []SyncResult `json:"results"`
}

// SyncAuditResponse is one audit row as returned by the status endpoints
type SyncAuditResponse struct {
	ID                string     `json:"id"`
	Kind              string     `json:"kind"`
	Status            string     `json:"status"`
	StartedAt         time.Time  `json:"started_at"`
	FinishedAt        *time.Time `json:"finished_at,omitempty"`
	ThreadsSynced     int        `json:"threads_synced"`
	MessagesSynced    int        `json:"messages_synced"`
	AttachmentsSynced int        `json:"attachments_synced"`
	FullListing       bool       `json:"full_listing"`
	Error             string     `json:"error,omitempty"`
}

// TriggerSyncResponse returns the audit created for a triggered cycle
type TriggerSyncResponse struct {
	AuditID string `json:"audit_id"`
	Status  string `json:"status"`
}

// SignedURLResponse carries a time-limited content URL
type SignedURLResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SendEmailRequest is the payload for composing a new email
type SendEmailRequest struct {
	To      []string `json:"to" binding:"required,min=1"`
	Cc      []string `json:"cc"`
	Bcc     []string `json:"bcc"`
	Subject string   `json:"subject" binding:"required"`
	Body    string   `json:"body" binding:"required"`
}

// ReplyEmailRequest is the payload for replying to a stored message
type ReplyEmailRequest struct {
	MessageID string   `json:"message_id" binding:"required"`
	To        []string `json:"to" binding:"required,min=1"`
	Cc        []string `json:"cc"`
	Bcc       []string `json:"bcc"`
	Body      string   `json:"body" binding:"required"`
}

// ForwardEmailRequest is the payload for forwarding a stored message
type ForwardEmailRequest struct {
	MessageID string   `json:"message_id" binding:"required"`
	To        []string `json:"to" binding:"required,min=1"`
	Cc        []string `json:"cc"`
	Bcc       []string `json:"bcc"`
	Body      string   `json:"body"`
}
