package domain

import (
	"context"
	"time"
)

// RemoteLabel is a label as returned by the mail provider
type RemoteLabel struct {
	ID   string
	Name string
	Type string
}

// RemoteAttachment describes an attachment part of a remote message. The
// content itself is fetched separately through FetchAttachment.
type RemoteAttachment struct {
	ID       string
	Filename string
	MimeType string
	Size     int64
	IsInline bool
}

// RemoteMessage is one message of a remote thread with its extracted body
type RemoteMessage struct {
	ID           string
	From         string
	To           []string
	Cc           []string
	Bcc          []string
	Subject      string
	Snippet      string
	Headers      map[string]string
	LabelIDs     []string
	SentAt       time.Time
	BodyHTML     string
	SizeEstimate int64
	Attachments  []RemoteAttachment
}

// RemoteThread is a remote conversation with full message details
type RemoteThread struct {
	ID        string
	HistoryID uint64
	Messages  []RemoteMessage
}

// ThreadListing is the result of listing remote threads. Complete is false
// when the listing was cut off at the requested limit.
type ThreadListing struct {
	Threads  []RemoteThread
	Complete bool
}

// MailProvider is the remote mailbox the engine reconciles against
type MailProvider interface {
	ListLabels(ctx context.Context, userID string) ([]RemoteLabel, error)
	ListThreads(ctx context.Context, userID string, limit int) (*ThreadListing, error)
	GetThread(ctx context.Context, userID, threadID string) (*RemoteThread, error)
	FetchAttachment(ctx context.Context, userID, messageID, attachmentID string) ([]byte, error)
}

// BlobStore persists message bodies and attachment content
type BlobStore interface {
	PutBody(ctx context.Context, userID, gmailMessageID, html string) (string, error)
	PutAttachment(ctx context.Context, userID, gmailMessageID, attachmentID, filename, mimeType string, data []byte) (string, error)
	GetObject(ctx context.Context, key string) ([]byte, error)
	SignedURL(key string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
	DeleteUserData(ctx context.Context, userID string) error
}
