package repository

import (
	emaildomain "mailmirror-backend/internal/email/domain"
)

// MessageRepository defines the interface for message operations
type MessageRepository interface {
	Create(message *emaildomain.Message) error
	// Lookup by the remote identity pair; returns (nil, nil) when absent
	FindByGmailID(threadID, gmailMessageID string) (*emaildomain.Message, error)
	FindByID(id string) (*emaildomain.Message, error)
	ListByThread(threadID string) ([]emaildomain.Message, error)
	// UpdateFlags refreshes the read state flags of an observed message
	UpdateFlags(id string, isUnread, isStarred, isDraft bool) error
	// SetBodyObjectKey fills a body key that was null after an upload failure
	SetBodyObjectKey(id, objectKey string) error
	// SetUnreadByThread flips the unread flag on all messages of a thread
	SetUnreadByThread(threadID string, isUnread bool) error
}
