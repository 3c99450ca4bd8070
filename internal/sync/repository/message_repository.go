package repository

import (
	"errors"
	"time"

	syncdomain "edcrm-backend/internal/sync/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// messageRepository implements MessageRepository
type messageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{
		db: db,
	}
}

func (r *messageRepository) UpsertHeaders(records []*syncdomain.MessageRecord) error {
	if len(records) == 0 {
		return nil
	}
	now := time.Now()
	for _, rec := range records {
		if rec.ID == "" {
			rec.ID = uuid.New().String()
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = now
		}
		rec.UpdatedAt = now
	}
	// Header columns only: a header-only pass must never null out a body that
	// an earlier backfill wrote, and must not reset matches.
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "provider_message_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"thread_id", "from_address", "to_addresses", "cc_addresses",
			"bcc_addresses", "sent_at", "updated_at",
		}),
	}).Create(records).Error
}

func (r *messageRepository) UpdateContent(userID, providerMessageID string, subject, bodyText, bodyHTML *string) error {
	return r.db.Model(&syncdomain.MessageRecord{}).
		Where("user_id = ? AND provider_message_id = ?", userID, providerMessageID).
		Updates(map[string]interface{}{
			"subject":    subject,
			"body_text":  bodyText,
			"body_html":  bodyHTML,
			"updated_at": time.Now(),
		}).Error
}

func (r *messageRepository) FindBackfillCandidates(userID string, limit int) ([]*syncdomain.MessageRecord, error) {
	var records []*syncdomain.MessageRecord
	err := r.db.
		Where("user_id = ? AND match_count > 0 AND subject IS NULL", userID).
		Order("sent_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *messageRepository) FindPage(userID string, offset, limit int) ([]*syncdomain.MessageRecord, error) {
	var records []*syncdomain.MessageRecord
	err := r.db.
		Where("user_id = ?", userID).
		Order("sent_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *messageRepository) UpdateMatches(id string, educatorIDs []string) error {
	// Struct update so the json serializer applies to the id list.
	return r.db.Model(&syncdomain.MessageRecord{}).
		Where("id = ?", id).
		Select("matched_educator_ids", "match_count", "updated_at").
		Updates(&syncdomain.MessageRecord{
			MatchedEducatorIDs: educatorIDs,
			MatchCount:         len(educatorIDs),
			UpdatedAt:          time.Now(),
		}).Error
}

func (r *messageRepository) FindByProviderID(userID, providerMessageID string) (*syncdomain.MessageRecord, error) {
	var record syncdomain.MessageRecord
	err := r.db.Where("user_id = ? AND provider_message_id = ?", userID, providerMessageID).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (r *messageRepository) LatestSentAt(userID string) (*time.Time, error) {
	return r.boundarySentAt(userID, "MAX")
}

func (r *messageRepository) OldestSentAt(userID string) (*time.Time, error) {
	return r.boundarySentAt(userID, "MIN")
}

func (r *messageRepository) boundarySentAt(userID, agg string) (*time.Time, error) {
	var record syncdomain.MessageRecord
	order := "sent_at DESC"
	if agg == "MIN" {
		order = "sent_at ASC"
	}
	err := r.db.Where("user_id = ?", userID).Order(order).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record.SentAt, nil
}
