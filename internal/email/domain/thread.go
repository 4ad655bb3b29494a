package domain

import "time"

// Thread mirrors a Gmail conversation for one user
type Thread struct {
	ID            string    `json:"id" gorm:"primaryKey"`
	UserID        string    `json:"user_id" gorm:"uniqueIndex:idx_user_gmail_thread;not null"`
	GmailThreadID string    `json:"gmail_thread_id" gorm:"uniqueIndex:idx_user_gmail_thread;not null"`
	HistoryID     uint64    `json:"history_id"`
	LastMessageAt time.Time `json:"last_message_at" gorm:"index"`
	IsUnread      bool      `json:"is_unread"`
	IsStarred     bool      `json:"is_starred"`
	IsImportant   bool      `json:"is_important"`
	HasDraft      bool      `json:"has_draft"`
	// LastSeenAt is touched on every cycle that observes the thread remotely;
	// rows older than the cycle start are pruned after a complete listing.
	LastSeenAt time.Time `json:"last_seen_at" gorm:"index"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	Messages []Message     `json:"messages,omitempty" gorm:"foreignKey:ThreadID;constraint:OnDelete:CASCADE"`
	Labels   []ThreadLabel `json:"-" gorm:"foreignKey:ThreadID;constraint:OnDelete:CASCADE"`
}

// ThreadLabel links a thread to one of the user's labels.
// The association set is recomputed on every sync cycle.
type ThreadLabel struct {
	ThreadID  string    `json:"thread_id" gorm:"primaryKey"`
	LabelID   string    `json:"label_id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	Label Label `json:"label" gorm:"foreignKey:LabelID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for GORM
func (ThreadLabel) TableName() string {
	return "thread_labels"
}
