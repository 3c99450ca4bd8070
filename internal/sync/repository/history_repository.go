package repository

import (
	"errors"
	"time"

	syncdomain "edcrm-backend/internal/sync/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// historyRepository implements HistoryRepository
type historyRepository struct {
	db *gorm.DB
}

func NewHistoryRepository(db *gorm.DB) HistoryRepository {
	return &historyRepository{
		db: db,
	}
}

func (r *historyRepository) Append(entry *syncdomain.SyncHistoryEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.StartedAt.IsZero() {
		entry.StartedAt = time.Now()
	}
	return r.db.Create(entry).Error
}

func (r *historyRepository) LastSuccessful(userID string, syncType syncdomain.SyncType) (*syncdomain.SyncHistoryEntry, error) {
	var entry syncdomain.SyncHistoryEntry
	err := r.db.
		Where("user_id = ? AND sync_type = ? AND headers_fetch_successful = ?", userID, syncType, true).
		Order("period_end DESC").
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

func (r *historyRepository) ListByUser(userID string, syncType syncdomain.SyncType, limit int) ([]*syncdomain.SyncHistoryEntry, error) {
	var entries []*syncdomain.SyncHistoryEntry
	err := r.db.
		Where("user_id = ? AND sync_type = ?", userID, syncType).
		Order("started_at DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
