package repository

import (
	"errors"
	"time"

	emaildomain "mailmirror-backend/internal/email/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// attachmentRepository implements AttachmentRepository interface
type attachmentRepository struct {
	db *gorm.DB
}

// NewAttachmentRepository creates a new instance of attachmentRepository
func NewAttachmentRepository(db *gorm.DB) AttachmentRepository {
	return &attachmentRepository{
		db: db,
	}
}

func (r *attachmentRepository) Create(attachment *emaildomain.Attachment) error {
	attachment.ID = uuid.New().String()
	attachment.CreatedAt = time.Now()
	return r.db.Create(attachment).Error
}

func (r *attachmentRepository) FindByGmailID(messageID, gmailAttachmentID string) (*emaildomain.Attachment, error) {
	var attachment emaildomain.Attachment
	err := r.db.Where("message_id = ? AND gmail_attachment_id = ?", messageID, gmailAttachmentID).First(&attachment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &attachment, nil
}

func (r *attachmentRepository) FindByID(id string) (*emaildomain.Attachment, error) {
	var attachment emaildomain.Attachment
	err := r.db.Where("id = ?", id).First(&attachment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &attachment, nil
}

func (r *attachmentRepository) ListByMessage(messageID string) ([]emaildomain.Attachment, error) {
	var attachments []emaildomain.Attachment
	err := r.db.Where("message_id = ?", messageID).Find(&attachments).Error
	if err != nil {
		return nil, err
	}
	return attachments, nil
}
