package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	emaildomain "mailmirror-backend/internal/email/domain"
	"mailmirror-backend/internal/email/dto"
	"mailmirror-backend/pkg/cache"
	"mailmirror-backend/pkg/logger"

	"github.com/google/uuid"
)

const (
	threadListCacheTTL = 2 * time.Minute
	cacheGenTTL        = 24 * time.Hour
)

// threadCacheGen returns the per-user cache generation token. Invalidation
// rotates the token, which orphans every key derived from the old one.
func (u *emailUsecase) threadCacheGen(ctx context.Context, userID string) string {
	genKey := "threads_gen:" + userID
	if gen, ok := u.cache.Get(ctx, genKey); ok {
		return string(gen)
	}
	gen := uuid.New().String()
	u.cache.Set(ctx, genKey, []byte(gen), cacheGenTTL)
	return gen
}

func (u *emailUsecase) invalidateThreadCache(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	u.cache.Set(ctx, "threads_gen:"+userID, []byte(uuid.New().String()), cacheGenTTL)
}

// ListThreads returns the user's thread list, cached per page
func (u *emailUsecase) ListThreads(ctx context.Context, userID string, limit, offset int) (json.RawMessage, error) {
	key := fmt.Sprintf("threads:%s:%s:%d:%d", userID, u.threadCacheGen(ctx, userID), limit, offset)
	return cache.GetOrLoad(ctx, u.cache, key, threadListCacheTTL, func() ([]byte, error) {
		threads, err := u.threads.ListByUser(userID, limit, offset)
		if err != nil {
			return nil, err
		}
		return json.Marshal(threads)
	})
}

// GetThread loads one thread with its messages and attachments
func (u *emailUsecase) GetThread(ctx context.Context, userID, threadID string) (*emaildomain.Thread, error) {
	thread, err := u.threads.FindByID(threadID)
	if err != nil {
		return nil, err
	}
	if thread == nil || thread.UserID != userID {
		return nil, emaildomain.ErrThreadNotFound
	}
	return thread, nil
}

// ownedMessage loads a message and verifies it belongs to the user
func (u *emailUsecase) ownedMessage(userID, messageID string) (*emaildomain.Message, error) {
	message, err := u.messages.FindByID(messageID)
	if err != nil {
		return nil, err
	}
	if message == nil {
		return nil, emaildomain.ErrMessageNotFound
	}
	thread, err := u.threads.FindByID(message.ThreadID)
	if err != nil {
		return nil, err
	}
	if thread == nil || thread.UserID != userID {
		return nil, emaildomain.ErrMessageNotFound
	}
	return message, nil
}

// GetBodyURL returns a signed URL for the stored body of a message
func (u *emailUsecase) GetBodyURL(ctx context.Context, userID, messageID string) (*dto.SignedURLResponse, error) {
	message, err := u.ownedMessage(userID, messageID)
	if err != nil {
		return nil, err
	}
	if message.BodyObjectKey == nil {
		return nil, emaildomain.ErrBodyNotStored
	}

	url, err := u.blobs.SignedURL(*message.BodyObjectKey, u.opts.SignedURLTTL)
	if err != nil {
		return nil, err
	}
	return &dto.SignedURLResponse{
		URL:       url,
		ExpiresAt: time.Now().Add(u.opts.SignedURLTTL),
	}, nil
}

// GetAttachmentURL returns a signed URL for a stored attachment
func (u *emailUsecase) GetAttachmentURL(ctx context.Context, userID, messageID, attachmentID string) (*dto.SignedURLResponse, error) {
	if _, err := u.ownedMessage(userID, messageID); err != nil {
		return nil, err
	}

	attachment, err := u.attachments.FindByID(attachmentID)
	if err != nil {
		return nil, err
	}
	if attachment == nil || attachment.MessageID != messageID {
		return nil, emaildomain.ErrAttachmentNotFound
	}

	url, err := u.blobs.SignedURL(attachment.ObjectKey, u.opts.SignedURLTTL)
	if err != nil {
		return nil, err
	}
	return &dto.SignedURLResponse{
		URL:       url,
		ExpiresAt: time.Now().Add(u.opts.SignedURLTTL),
	}, nil
}

// MarkThreadRead flips the unread flag on a thread and all its messages
func (u *emailUsecase) MarkThreadRead(ctx context.Context, userID, threadID string, read bool) error {
	thread, err := u.GetThread(ctx, userID, threadID)
	if err != nil {
		return err
	}

	if err := u.threads.SetUnread(thread.ID, !read); err != nil {
		return err
	}
	if err := u.messages.SetUnreadByThread(thread.ID, !read); err != nil {
		return err
	}
	u.invalidateThreadCache(userID)
	return nil
}

// ToggleStar flips the starred flag on a thread
func (u *emailUsecase) ToggleStar(ctx context.Context, userID, threadID string) error {
	thread, err := u.GetThread(ctx, userID, threadID)
	if err != nil {
		return err
	}

	if err := u.threads.SetStarred(thread.ID, !thread.IsStarred); err != nil {
		return err
	}
	u.invalidateThreadCache(userID)
	return nil
}

// SendEmail composes a new message and re-syncs the thread it lands in
func (u *emailUsecase) SendEmail(ctx context.Context, userID string, req dto.SendEmailRequest) error {
	threadID, err := u.sender.Send(ctx, userID, req)
	if err != nil {
		return fmt.Errorf("unable to send email: %w", err)
	}
	u.afterCompose(userID, threadID)
	return nil
}

// ReplyEmail replies to a stored message within its thread
func (u *emailUsecase) ReplyEmail(ctx context.Context, userID string, req dto.ReplyEmailRequest) error {
	message, err := u.ownedMessage(userID, req.MessageID)
	if err != nil {
		return err
	}

	threadID, err := u.sender.Reply(ctx, userID, message.GmailMessageID, req)
	if err != nil {
		return fmt.Errorf("unable to send reply: %w", err)
	}
	u.afterCompose(userID, threadID)
	return nil
}

// ForwardEmail forwards a stored message to new recipients
func (u *emailUsecase) ForwardEmail(ctx context.Context, userID string, req dto.ForwardEmailRequest) error {
	message, err := u.ownedMessage(userID, req.MessageID)
	if err != nil {
		return err
	}

	threadID, err := u.sender.Forward(ctx, userID, message.GmailMessageID, req)
	if err != nil {
		return fmt.Errorf("unable to forward email: %w", err)
	}
	u.afterCompose(userID, threadID)
	return nil
}

// afterCompose invalidates cached reads and schedules a re-sync of the
// thread the sent message landed in.
func (u *emailUsecase) afterCompose(userID, gmailThreadID string) {
	u.invalidateThreadCache(userID)
	if gmailThreadID == "" {
		return
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("[Sync] Panic in post-send re-sync: %v", r)
			}
		}()
		u.SyncSingleThread(context.Background(), userID, gmailThreadID)
	}()
}
