package repository

import (
	"time"

	syncdomain "edcrm-backend/internal/sync/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// consoleLogRepository implements ConsoleLogRepository
type consoleLogRepository struct {
	db *gorm.DB
}

func NewConsoleLogRepository(db *gorm.DB) ConsoleLogRepository {
	return &consoleLogRepository{
		db: db,
	}
}

func (r *consoleLogRepository) Append(userID, runID string, syncType syncdomain.SyncType, level, message string) error {
	return r.db.Create(&syncdomain.ConsoleLogEntry{
		ID:        uuid.New().String(),
		UserID:    userID,
		RunID:     runID,
		SyncType:  syncType,
		Level:     level,
		Message:   message,
		CreatedAt: time.Now(),
	}).Error
}
