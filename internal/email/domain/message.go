package domain

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// StringArray is a custom type to handle JSON array in GORM
type StringArray []string

// Value implements driver.Valuer
func (a StringArray) Value() (driver.Value, error) {
	if len(a) == 0 {
		return "[]", nil
	}
	return json.Marshal(a)
}

// Scan implements sql.Scanner
func (a *StringArray) Scan(value interface{}) error {
	if value == nil {
		*a = []string{}
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}
	return json.Unmarshal(bytes, a)
}

// HeaderMap is a custom type to store selected RFC822 headers as JSON
type HeaderMap map[string]string

// Value implements driver.Valuer
func (h HeaderMap) Value() (driver.Value, error) {
	if len(h) == 0 {
		return "{}", nil
	}
	return json.Marshal(h)
}

// Scan implements sql.Scanner
func (h *HeaderMap) Scan(value interface{}) error {
	if value == nil {
		*h = HeaderMap{}
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}
	return json.Unmarshal(bytes, h)
}

// Message mirrors one Gmail message inside a thread. Identity fields are
// write-once; the read flags are refreshed whenever the message is observed
// again remotely.
type Message struct {
	ID             string      `json:"id" gorm:"primaryKey"`
	ThreadID       string      `json:"thread_id" gorm:"uniqueIndex:idx_thread_gmail_message;not null"`
	GmailMessageID string      `json:"gmail_message_id" gorm:"uniqueIndex:idx_thread_gmail_message;not null"`
	From           string      `json:"from" gorm:"column:from_address"`
	To             StringArray `json:"to" gorm:"type:text"`
	Cc             StringArray `json:"cc" gorm:"type:text"`
	Bcc            StringArray `json:"bcc" gorm:"type:text"`
	Subject        string      `json:"subject"`
	Snippet        string      `json:"snippet" gorm:"type:text"`
	Headers        HeaderMap   `json:"headers" gorm:"type:text"`
	SentAt         time.Time   `json:"sent_at" gorm:"index"`
	IsUnread       bool        `json:"is_unread"`
	IsStarred      bool        `json:"is_starred"`
	IsDraft        bool        `json:"is_draft"`
	// BodyObjectKey is null while the body upload has not succeeded yet;
	// later cycles retry the upload for existing rows.
	BodyObjectKey *string   `json:"body_object_key"`
	SizeEstimate  int64     `json:"size_estimate"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	Attachments []Attachment `json:"attachments,omitempty" gorm:"foreignKey:MessageID;constraint:OnDelete:CASCADE"`
}
