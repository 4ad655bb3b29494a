package repository

import (
	"errors"
	"time"

	emaildomain "mailmirror-backend/internal/email/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// messageRepository implements MessageRepository interface
type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new instance of messageRepository
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{
		db: db,
	}
}

func (r *messageRepository) Create(message *emaildomain.Message) error {
	message.ID = uuid.New().String()
	message.CreatedAt = time.Now()
	message.UpdatedAt = time.Now()
	return r.db.Create(message).Error
}

func (r *messageRepository) FindByGmailID(threadID, gmailMessageID string) (*emaildomain.Message, error) {
	var message emaildomain.Message
	err := r.db.Where("thread_id = ? AND gmail_message_id = ?", threadID, gmailMessageID).First(&message).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &message, nil
}

func (r *messageRepository) FindByID(id string) (*emaildomain.Message, error) {
	var message emaildomain.Message
	err := r.db.Preload("Attachments").Where("id = ?", id).First(&message).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &message, nil
}

func (r *messageRepository) ListByThread(threadID string) ([]emaildomain.Message, error) {
	var messages []emaildomain.Message
	err := r.db.Where("thread_id = ?", threadID).Order("sent_at ASC").
		Preload("Attachments").Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *messageRepository) UpdateFlags(id string, isUnread, isStarred, isDraft bool) error {
	return r.db.Model(&emaildomain.Message{}).Where("id = ?", id).Updates(map[string]interface{}{
		"is_unread":  isUnread,
		"is_starred": isStarred,
		"is_draft":   isDraft,
		"updated_at": time.Now(),
	}).Error
}

func (r *messageRepository) SetBodyObjectKey(id, objectKey string) error {
	return r.db.Model(&emaildomain.Message{}).Where("id = ?", id).
		Updates(map[string]interface{}{"body_object_key": objectKey, "updated_at": time.Now()}).Error
}

func (r *messageRepository) SetUnreadByThread(threadID string, isUnread bool) error {
	return r.db.Model(&emaildomain.Message{}).Where("thread_id = ?", threadID).
		Updates(map[string]interface{}{"is_unread": isUnread, "updated_at": time.Now()}).Error
}
