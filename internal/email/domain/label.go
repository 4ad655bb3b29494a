package domain

import "time"

// Label types as reported by Gmail
const (
	LabelTypeSystem = "system"
	LabelTypeUser   = "user"
)

// Label mirrors a Gmail label for one user. Rows are insert-only: once
// recorded, name and type are never rewritten by the sync.
type Label struct {
	ID           string    `json:"id" gorm:"primaryKey"`
	UserID       string    `json:"user_id" gorm:"uniqueIndex:idx_user_gmail_label;not null"`
	GmailLabelID string    `json:"gmail_label_id" gorm:"uniqueIndex:idx_user_gmail_label;not null"`
	Name         string    `json:"name"`
	Type         string    `json:"type"`
	CreatedAt    time.Time `json:"created_at"`
}
