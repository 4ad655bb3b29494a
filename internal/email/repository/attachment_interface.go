package repository

import (
	emaildomain "mailmirror-backend/internal/email/domain"
)

// AttachmentRepository defines the interface for attachment operations
type AttachmentRepository interface {
	Create(attachment *emaildomain.Attachment) error
	// Lookup by the remote identity pair; returns (nil, nil) when absent
	FindByGmailID(messageID, gmailAttachmentID string) (*emaildomain.Attachment, error)
	FindByID(id string) (*emaildomain.Attachment, error)
	ListByMessage(messageID string) ([]emaildomain.Attachment, error)
}
