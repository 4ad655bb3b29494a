package repository

import (
	"errors"
	"time"

	emaildomain "mailmirror-backend/internal/email/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// threadRepository implements ThreadRepository interface
type threadRepository struct {
	db *gorm.DB
}

// NewThreadRepository creates a new instance of threadRepository
func NewThreadRepository(db *gorm.DB) ThreadRepository {
	return &threadRepository{
		db: db,
	}
}

func (r *threadRepository) Create(thread *emaildomain.Thread) error {
	thread.ID = uuid.New().String()
	thread.CreatedAt = time.Now()
	thread.UpdatedAt = time.Now()
	return r.db.Create(thread).Error
}

func (r *threadRepository) FindByGmailID(userID, gmailThreadID string) (*emaildomain.Thread, error) {
	var thread emaildomain.Thread
	err := r.db.Where("user_id = ? AND gmail_thread_id = ?", userID, gmailThreadID).First(&thread).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &thread, nil
}

func (r *threadRepository) FindByID(id string) (*emaildomain.Thread, error) {
	var thread emaildomain.Thread
	err := r.db.
		Preload("Messages", func(db *gorm.DB) *gorm.DB { return db.Order("sent_at ASC") }).
		Preload("Messages.Attachments").
		Preload("Labels.Label").
		Where("id = ?", id).First(&thread).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &thread, nil
}

func (r *threadRepository) ListByUser(userID string, limit, offset int) ([]emaildomain.Thread, error) {
	if limit <= 0 {
		limit = 50
	}
	var threads []emaildomain.Thread
	err := r.db.Where("user_id = ?", userID).
		Order("last_message_at DESC").
		Limit(limit).Offset(offset).
		Preload("Labels.Label").
		Find(&threads).Error
	if err != nil {
		return nil, err
	}
	return threads, nil
}

func (r *threadRepository) UpdateObserved(id string, flags emaildomain.ThreadFlags, historyID uint64, lastMessageAt, seenAt time.Time) error {
	return r.db.Model(&emaildomain.Thread{}).Where("id = ?", id).Updates(map[string]interface{}{
		"is_unread":       flags.IsUnread,
		"is_starred":      flags.IsStarred,
		"is_important":    flags.IsImportant,
		"has_draft":       flags.HasDraft,
		"history_id":      historyID,
		"last_message_at": lastMessageAt,
		"last_seen_at":    seenAt,
		"updated_at":      time.Now(),
	}).Error
}

func (r *threadRepository) ReplaceLabels(threadID string, labelIDs []string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("thread_id = ?", threadID).Delete(&emaildomain.ThreadLabel{}).Error; err != nil {
			return err
		}
		for _, labelID := range labelIDs {
			link := emaildomain.ThreadLabel{
				ThreadID:  threadID,
				LabelID:   labelID,
				CreatedAt: time.Now(),
			}
			if err := tx.Create(&link).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *threadRepository) PruneNotSeenSince(userID string, cutoff time.Time) (int64, []string, error) {
	var threadIDs []string
	err := r.db.Model(&emaildomain.Thread{}).
		Where("user_id = ? AND last_seen_at < ?", userID, cutoff).
		Pluck("id", &threadIDs).Error
	if err != nil {
		return 0, nil, err
	}
	if len(threadIDs) == 0 {
		return 0, nil, nil
	}

	// Collect the object keys of the content being pruned so the caller can
	// clean up the blob store as well
	var objectKeys []string
	var bodyKeys []string
	err = r.db.Model(&emaildomain.Message{}).
		Where("thread_id IN ? AND body_object_key IS NOT NULL", threadIDs).
		Pluck("body_object_key", &bodyKeys).Error
	if err != nil {
		return 0, nil, err
	}
	objectKeys = append(objectKeys, bodyKeys...)

	var attachmentKeys []string
	err = r.db.Model(&emaildomain.Attachment{}).
		Joins("JOIN messages ON messages.id = attachments.message_id").
		Where("messages.thread_id IN ?", threadIDs).
		Pluck("attachments.object_key", &attachmentKeys).Error
	if err != nil {
		return 0, nil, err
	}
	objectKeys = append(objectKeys, attachmentKeys...)

	result := r.db.Where("id IN ?", threadIDs).Delete(&emaildomain.Thread{})
	if result.Error != nil {
		return 0, nil, result.Error
	}
	return result.RowsAffected, objectKeys, nil
}

func (r *threadRepository) SetUnread(id string, isUnread bool) error {
	return r.db.Model(&emaildomain.Thread{}).Where("id = ?", id).
		Updates(map[string]interface{}{"is_unread": isUnread, "updated_at": time.Now()}).Error
}

func (r *threadRepository) SetStarred(id string, isStarred bool) error {
	return r.db.Model(&emaildomain.Thread{}).Where("id = ?", id).
		Updates(map[string]interface{}{"is_starred": isStarred, "updated_at": time.Now()}).Error
}
