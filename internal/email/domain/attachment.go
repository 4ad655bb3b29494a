package domain

import "time"

// Attachment records one stored attachment of a message
type Attachment struct {
	ID                string    `json:"id" gorm:"primaryKey"`
	MessageID         string    `json:"message_id" gorm:"uniqueIndex:idx_message_gmail_attachment;not null"`
	GmailAttachmentID string    `json:"gmail_attachment_id" gorm:"uniqueIndex:idx_message_gmail_attachment;not null"`
	Filename          string    `json:"filename"`
	MimeType          string    `json:"mime_type"`
	Size              int64     `json:"size"`
	ObjectKey         string    `json:"object_key" gorm:"not null"`
	IsInline          bool      `json:"is_inline"`
	CreatedAt         time.Time `json:"created_at"`
}
