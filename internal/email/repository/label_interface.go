package repository

import (
	emaildomain "mailmirror-backend/internal/email/domain"
)

// LabelRepository defines the interface for label operations
type LabelRepository interface {
	// EnsureLabel inserts the label if the (user, gmail label) pair is new
	// and returns the stored row either way. Existing rows are not rewritten.
	EnsureLabel(userID, gmailLabelID, name, labelType string) (*emaildomain.Label, error)
	// Lookup by the remote identity pair; returns (nil, nil) when absent
	FindByGmailID(userID, gmailLabelID string) (*emaildomain.Label, error)
	ListByUser(userID string) ([]emaildomain.Label, error)
}
