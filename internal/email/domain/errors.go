package domain

import "errors"

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrCredentialsMissing = errors.New("user has no mail credentials")
	ErrSyncAlreadyRunning = errors.New("a sync is already running for this user")
	ErrAuditNotFound      = errors.New("sync audit not found")
	ErrThreadNotFound     = errors.New("thread not found")
	ErrMessageNotFound    = errors.New("message not found")
	ErrAttachmentNotFound = errors.New("attachment not found")
	ErrBodyNotStored      = errors.New("message body is not stored yet")
)
