package repository

import (
	"time"

	emaildomain "mailmirror-backend/internal/email/domain"
)

// ThreadRepository defines the interface for thread operations
type ThreadRepository interface {
	Create(thread *emaildomain.Thread) error
	// Lookup by the remote identity pair; returns (nil, nil) when absent
	FindByGmailID(userID, gmailThreadID string) (*emaildomain.Thread, error)
	// FindByID loads a thread with its messages, attachments and labels
	FindByID(id string) (*emaildomain.Thread, error)
	ListByUser(userID string, limit, offset int) ([]emaildomain.Thread, error)
	// UpdateObserved refreshes the mutable fields of a thread seen again
	// remotely and stamps LastSeenAt
	UpdateObserved(id string, flags emaildomain.ThreadFlags, historyID uint64, lastMessageAt, seenAt time.Time) error
	// ReplaceLabels swaps the thread's label association set
	ReplaceLabels(threadID string, labelIDs []string) error
	// PruneNotSeenSince deletes the user's threads last seen before the
	// cutoff, cascading to messages and label links. Returns the object
	// keys of the deleted content and the number of threads removed.
	PruneNotSeenSince(userID string, cutoff time.Time) (int64, []string, error)
	SetUnread(id string, isUnread bool) error
	SetStarred(id string, isStarred bool) error
}
