package repository

import (
	"errors"
	"time"

	syncdomain "edcrm-backend/internal/sync/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// eventRepository implements EventRepository
type eventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepository{
		db: db,
	}
}

func (r *eventRepository) UpsertHeaders(records []*syncdomain.EventRecord) error {
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
	// Description and matches are owned by later stages; conflicts only
	// refresh the listing-derived columns.
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "calendar_id"}, {Name: "provider_event_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"summary", "starts_at", "ends_at", "organizer", "attendees",
			"location", "status", "updated_at",
		}),
	}).Create(records).Error
}

func (r *eventRepository) UpdateContent(userID, calendarID, providerEventID string, description *string) error {
	return r.db.Model(&syncdomain.EventRecord{}).
		Where("user_id = ? AND calendar_id = ? AND provider_event_id = ?", userID, calendarID, providerEventID).
		Updates(map[string]interface{}{
			"description": description,
			"updated_at":  time.Now(),
		}).Error
}

func (r *eventRepository) FindBackfillCandidates(userID string, limit int) ([]*syncdomain.EventRecord, error) {
	var records []*syncdomain.EventRecord
	err := r.db.
		Where("user_id = ? AND match_count > 0 AND description IS NULL", userID).
		Order("starts_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *eventRepository) FindPage(userID string, offset, limit int) ([]*syncdomain.EventRecord, error) {
	var records []*syncdomain.EventRecord
	err := r.db.
		Where("user_id = ?", userID).
		Order("starts_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *eventRepository) UpdateMatches(id string, educatorIDs []string) error {
	return r.db.Model(&syncdomain.EventRecord{}).
		Where("id = ?", id).
		Select("matched_educator_ids", "match_count", "updated_at").
		Updates(&syncdomain.EventRecord{
			MatchedEducatorIDs: educatorIDs,
			MatchCount:         len(educatorIDs),
			UpdatedAt:          time.Now(),
		}).Error
}

func (r *eventRepository) FindByProviderID(userID, calendarID, providerEventID string) (*syncdomain.EventRecord, error) {
	var record syncdomain.EventRecord
	err := r.db.Where("user_id = ? AND calendar_id = ? AND provider_event_id = ?", userID, calendarID, providerEventID).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (r *eventRepository) LatestStartAt(userID string) (*time.Time, error) {
	return r.boundaryStartAt(userID, "starts_at DESC")
}

func (r *eventRepository) OldestStartAt(userID string) (*time.Time, error) {
	return r.boundaryStartAt(userID, "starts_at ASC")
}

func (r *eventRepository) boundaryStartAt(userID, order string) (*time.Time, error) {
	var record syncdomain.EventRecord
	err := r.db.Where("user_id = ?", userID).Order(order).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record.StartsAt, nil
}
