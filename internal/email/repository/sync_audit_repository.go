package repository

import (
	"errors"
	"time"

	emaildomain "mailmirror-backend/internal/email/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// syncAuditRepository implements SyncAuditRepository interface
type syncAuditRepository struct {
	db *gorm.DB
}

// NewSyncAuditRepository creates a new instance of syncAuditRepository
func NewSyncAuditRepository(db *gorm.DB) SyncAuditRepository {
	return &syncAuditRepository{
		db: db,
	}
}

func (r *syncAuditRepository) Create(audit *emaildomain.SyncAudit) error {
	audit.ID = uuid.New().String()
	if audit.StartedAt.IsZero() {
		audit.StartedAt = time.Now()
	}
	return r.db.Create(audit).Error
}

func (r *syncAuditRepository) FindByID(id string) (*emaildomain.SyncAudit, error) {
	var audit emaildomain.SyncAudit
	err := r.db.Where("id = ?", id).First(&audit).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &audit, nil
}

func (r *syncAuditRepository) Finish(id, status string, threads, messages, attachments int, fullListing bool, errorMessage string) error {
	now := time.Now()
	return r.db.Model(&emaildomain.SyncAudit{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":             status,
		"finished_at":        now,
		"threads_synced":     threads,
		"messages_synced":    messages,
		"attachments_synced": attachments,
		"full_listing":       fullListing,
		"error_message":      errorMessage,
	}).Error
}

func (r *syncAuditRepository) RequestCancel(id string) error {
	return r.db.Model(&emaildomain.SyncAudit{}).Where("id = ?", id).
		Update("cancelled", true).Error
}

func (r *syncAuditRepository) IsCancelRequested(id string) (bool, error) {
	audit, err := r.FindByID(id)
	if err != nil {
		return false, err
	}
	if audit == nil {
		return false, nil
	}
	return audit.Cancelled, nil
}

func (r *syncAuditRepository) ListRecentByUser(userID string, limit int) ([]emaildomain.SyncAudit, error) {
	if limit <= 0 {
		limit = 10
	}
	var audits []emaildomain.SyncAudit
	err := r.db.Where("user_id = ?", userID).
		Order("started_at DESC").Limit(limit).Find(&audits).Error
	if err != nil {
		return nil, err
	}
	return audits, nil
}
