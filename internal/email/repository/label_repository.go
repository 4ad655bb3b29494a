package repository

import (
	"errors"
	"time"

	emaildomain "mailmirror-backend/internal/email/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// labelRepository implements LabelRepository interface
type labelRepository struct {
	db *gorm.DB
}

// NewLabelRepository creates a new instance of labelRepository
func NewLabelRepository(db *gorm.DB) LabelRepository {
	return &labelRepository{
		db: db,
	}
}

func (r *labelRepository) EnsureLabel(userID, gmailLabelID, name, labelType string) (*emaildomain.Label, error) {
	existing, err := r.FindByGmailID(userID, gmailLabelID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	label := &emaildomain.Label{
		ID:           uuid.New().String(),
		UserID:       userID,
		GmailLabelID: gmailLabelID,
		Name:         name,
		Type:         labelType,
		CreatedAt:    time.Now(),
	}
	if err := r.db.Create(label).Error; err != nil {
		// A concurrent cycle may have inserted the same pair; read it back
		if racer, findErr := r.FindByGmailID(userID, gmailLabelID); findErr == nil && racer != nil {
			return racer, nil
		}
		return nil, err
	}
	return label, nil
}

func (r *labelRepository) FindByGmailID(userID, gmailLabelID string) (*emaildomain.Label, error) {
	var label emaildomain.Label
	err := r.db.Where("user_id = ? AND gmail_label_id = ?", userID, gmailLabelID).First(&label).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &label, nil
}

func (r *labelRepository) ListByUser(userID string) ([]emaildomain.Label, error) {
	var labels []emaildomain.Label
	err := r.db.Where("user_id = ?", userID).Order("name ASC").Find(&labels).Error
	if err != nil {
		return nil, err
	}
	return labels, nil
}
