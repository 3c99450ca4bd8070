package repository

import (
	"errors"
	"fmt"
	"time"

	syncdomain "edcrm-backend/internal/sync/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// progressRepository implements ProgressRepository
type progressRepository struct {
	db *gorm.DB
}

func NewProgressRepository(db *gorm.DB) ProgressRepository {
	return &progressRepository{
		db: db,
	}
}

func (r *progressRepository) StartRun(userID string, syncType syncdomain.SyncType, periodKey, calendarID, runID string) (*syncdomain.SyncProgress, error) {
	now := time.Now()

	// Demote any other running period for this (user, type) so at most one
	// period is running at a time. A pause racing this loses; last write
	// wins.
	err := r.db.Model(&syncdomain.SyncProgress{}).
		Where("user_id = ? AND sync_type = ? AND status = ? AND period_key <> ?",
			userID, syncType, syncdomain.SyncStatusRunning, periodKey).
		Updates(map[string]interface{}{
			"status":     syncdomain.SyncStatusPartial,
			"updated_at": now,
		}).Error
	if err != nil {
		return nil, err
	}

	existing, err := r.Find(userID, syncType, periodKey, calendarID)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		row := &syncdomain.SyncProgress{
			ID:           uuid.New().String(),
			UserID:       userID,
			SyncType:     syncType,
			PeriodKey:    periodKey,
			CalendarID:   calendarID,
			Status:       syncdomain.SyncStatusRunning,
			StartedAt:    &now,
			UpdatedAt:    now,
			CurrentRunID: runID,
		}
		if err := r.db.Create(row).Error; err != nil {
			return nil, err
		}
		return row, nil
	}

	if existing.Status != syncdomain.SyncStatusRunning && !existing.Status.CanTransition(syncdomain.SyncStatusRunning) {
		// Completed periods are still re-scannable: the overlap window
		// legitimately revisits the most recent completed period.
		if existing.Status != syncdomain.SyncStatusCompleted && existing.Status != syncdomain.SyncStatusPartial {
			return nil, fmt.Errorf("cannot start run: period %s is %s", periodKey, existing.Status)
		}
	}

	existing.Status = syncdomain.SyncStatusRunning
	existing.CurrentRunID = runID
	existing.ErrorMessage = ""
	existing.ProcessedCount = 0
	existing.StartedAt = &now
	existing.CompletedAt = nil
	existing.UpdatedAt = now
	if err := r.db.Save(existing).Error; err != nil {
		return nil, err
	}
	return existing, nil
}

func (r *progressRepository) AddProcessed(id, runID string, delta int) error {
	// Stale run ids update nothing; the latest started run owns the row.
	return r.db.Model(&syncdomain.SyncProgress{}).
		Where("id = ? AND current_run_id = ?", id, runID).
		Updates(map[string]interface{}{
			"processed_count": gorm.Expr("processed_count + ?", delta),
			"updated_at":      time.Now(),
		}).Error
}

func (r *progressRepository) Finish(id, runID string, status syncdomain.SyncStatus, errorMessage string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"status":        status,
		"error_message": errorMessage,
		"updated_at":    now,
	}
	if status == syncdomain.SyncStatusCompleted {
		updates["completed_at"] = &now
		updates["total_count"] = gorm.Expr("processed_count")
	}
	return r.db.Model(&syncdomain.SyncProgress{}).
		Where("id = ? AND current_run_id = ? AND status = ?", id, runID, syncdomain.SyncStatusRunning).
		Updates(updates).Error
}

func (r *progressRepository) Pause(userID string, syncType syncdomain.SyncType, periodKey, calendarID string) error {
	return r.db.Model(&syncdomain.SyncProgress{}).
		Where("user_id = ? AND sync_type = ? AND period_key = ? AND calendar_id = ? AND status = ?",
			userID, syncType, periodKey, calendarID, syncdomain.SyncStatusRunning).
		Updates(map[string]interface{}{
			"status":     syncdomain.SyncStatusPaused,
			"updated_at": time.Now(),
		}).Error
}

func (r *progressRepository) FindByUser(userID string, syncType syncdomain.SyncType) ([]*syncdomain.SyncProgress, error) {
	var rows []*syncdomain.SyncProgress
	err := r.db.Where("user_id = ? AND sync_type = ?", userID, syncType).
		Order("period_key DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *progressRepository) Find(userID string, syncType syncdomain.SyncType, periodKey, calendarID string) (*syncdomain.SyncProgress, error) {
	var row syncdomain.SyncProgress
	err := r.db.Where("user_id = ? AND sync_type = ? AND period_key = ? AND calendar_id = ?",
		userID, syncType, periodKey, calendarID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}
