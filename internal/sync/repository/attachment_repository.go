package repository

import (
	"time"

	syncdomain "edcrm-backend/internal/sync/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// attachmentRepository implements AttachmentRepository
type attachmentRepository struct {
	db *gorm.DB
}

func NewAttachmentRepository(db *gorm.DB) AttachmentRepository {
	return &attachmentRepository{
		db: db,
	}
}

func (r *attachmentRepository) UpsertMessageAttachment(att *syncdomain.MessageAttachment) error {
	now := time.Now()
	if att.ID == "" {
		att.ID = uuid.New().String()
	}
	if att.CreatedAt.IsZero() {
		att.CreatedAt = now
	}
	att.UpdatedAt = now
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "provider_message_id"}, {Name: "provider_attachment_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"filename", "mime_type", "size", "storage_key", "updated_at",
		}),
	}).Create(att).Error
}

func (r *attachmentRepository) UpsertEventAttachment(att *syncdomain.EventAttachment) error {
	now := time.Now()
	if att.ID == "" {
		att.ID = uuid.New().String()
	}
	if att.CreatedAt.IsZero() {
		att.CreatedAt = now
	}
	att.UpdatedAt = now
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "provider_event_id"}, {Name: "drive_file_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"filename", "mime_type", "size", "storage_key", "updated_at",
		}),
	}).Create(att).Error
}

func (r *attachmentRepository) FindMessageAttachments(userID, providerMessageID string) ([]*syncdomain.MessageAttachment, error) {
	var atts []*syncdomain.MessageAttachment
	err := r.db.Where("user_id = ? AND provider_message_id = ?", userID, providerMessageID).Find(&atts).Error
	if err != nil {
		return nil, err
	}
	return atts, nil
}

func (r *attachmentRepository) FindEventAttachments(userID, providerEventID string) ([]*syncdomain.EventAttachment, error) {
	var atts []*syncdomain.EventAttachment
	err := r.db.Where("user_id = ? AND provider_event_id = ?", userID, providerEventID).Find(&atts).Error
	if err != nil {
		return nil, err
	}
	return atts, nil
}
