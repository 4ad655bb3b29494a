package usecase

import (
	"context"
	"encoding/json"

	emaildomain "mailmirror-backend/internal/email/domain"
	"mailmirror-backend/internal/email/dto"
)

// EmailUsecase defines the interface for mailbox sync and read operations
type EmailUsecase interface {
	// TriggerSync starts a full sync cycle in the background and returns
	// the audit created for it
	TriggerSync(ctx context.Context, userID string) (*dto.TriggerSyncResponse, error)
	// RunFullSync runs a full reconciliation cycle to completion
	RunFullSync(ctx context.Context, userID string) *dto.SyncResult
	// SyncSingleThread re-syncs one remote thread after a short delay,
	// swallowing all errors
	SyncSingleThread(ctx context.Context, userID, gmailThreadID string)
	GetSyncStatus(ctx context.Context, userID string) ([]dto.SyncAuditResponse, error)
	GetSyncProgress(ctx context.Context, auditID string) (*dto.SyncAuditResponse, error)
	CancelSync(ctx context.Context, auditID string) error
	// RunScheduledSyncForAllUsers syncs every user due for a cycle, with a
	// fixed delay between users, and returns the per-user outcomes
	RunScheduledSyncForAllUsers(ctx context.Context) *dto.ScheduledSyncResult

	ListThreads(ctx context.Context, userID string, limit, offset int) (json.RawMessage, error)
	GetThread(ctx context.Context, userID, threadID string) (*emaildomain.Thread, error)
	GetBodyURL(ctx context.Context, userID, messageID string) (*dto.SignedURLResponse, error)
	GetAttachmentURL(ctx context.Context, userID, messageID, attachmentID string) (*dto.SignedURLResponse, error)
	MarkThreadRead(ctx context.Context, userID, threadID string, read bool) error
	ToggleStar(ctx context.Context, userID, threadID string) error

	SendEmail(ctx context.Context, userID string, req dto.SendEmailRequest) error
	ReplyEmail(ctx context.Context, userID string, req dto.ReplyEmailRequest) error
	ForwardEmail(ctx context.Context, userID string, req dto.ForwardEmailRequest) error
}

// mailSender sends composed messages and reports the remote thread they
// landed in, so the engine can re-sync that thread.
type mailSender interface {
	Send(ctx context.Context, userID string, req dto.SendEmailRequest) (string, error)
	Reply(ctx context.Context, userID, originalGmailMessageID string, req dto.ReplyEmailRequest) (string, error)
	Forward(ctx context.Context, userID, originalGmailMessageID string, req dto.ForwardEmailRequest) (string, error)
}
