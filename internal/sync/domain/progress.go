package domain

import (
	"fmt"
	"time"
)

// SyncType identifies which provider object stream a row belongs to.
type SyncType string

const (
	SyncTypeGmail    SyncType = "gmail"
	SyncTypeCalendar SyncType = "calendar"
)

type SyncStatus string

const (
	SyncStatusNotStarted SyncStatus = "not_started"
	SyncStatusRunning    SyncStatus = "running"
	SyncStatusPaused     SyncStatus = "paused"
	SyncStatusCompleted  SyncStatus = "completed"
	SyncStatusPartial    SyncStatus = "partial"
	SyncStatusError      SyncStatus = "error"
)

// CanTransition encodes the progress state machine:
// not_started -> running -> {completed, paused, partial, error},
// paused -> running (resume), error -> running (retry).
func (s SyncStatus) CanTransition(to SyncStatus) bool {
	switch s {
	case SyncStatusNotStarted:
		return to == SyncStatusRunning
	case SyncStatusRunning:
		return to == SyncStatusCompleted || to == SyncStatusPaused ||
			to == SyncStatusPartial || to == SyncStatusError
	case SyncStatusPaused, SyncStatusError:
		return to == SyncStatusRunning
	default:
		return false
	}
}

// SyncProgress tracks one (user, sync type, period) slice of the ingestion
// backlog. Periods progress independently; nothing requires them to complete
// in order. CurrentRunID lets live-progress consumers discard updates from a
// superseded invocation while historical rows stay intact for audit.
type SyncProgress struct {
	ID             string     `json:"id" gorm:"primaryKey"`
	UserID         string     `json:"user_id" gorm:"uniqueIndex:idx_progress_user_type_period;not null"`
	SyncType       SyncType   `json:"sync_type" gorm:"uniqueIndex:idx_progress_user_type_period;not null"`
	PeriodKey      string     `json:"period_key" gorm:"uniqueIndex:idx_progress_user_type_period;not null"`
	CalendarID     string     `json:"calendar_id" gorm:"uniqueIndex:idx_progress_user_type_period"`
	Status         SyncStatus `json:"status" gorm:"size:20;index"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	TotalCount     int        `json:"total_count"`
	ProcessedCount int        `json:"processed_count"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"`
	CurrentRunID   string     `json:"current_run_id"`
}

func (SyncProgress) TableName() string {
	return "sync_progress"
}

// MailPeriodKey buckets mail ingestion by ISO week.
func MailPeriodKey(t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}

// CalendarPeriodKey buckets calendar ingestion by month.
func CalendarPeriodKey(t time.Time) string {
	u := t.UTC()
	return fmt.Sprintf("%04d-%02d", u.Year(), int(u.Month()))
}

// PeriodKey dispatches on sync type.
func PeriodKey(syncType SyncType, t time.Time) string {
	if syncType == SyncTypeCalendar {
		return CalendarPeriodKey(t)
	}
	return MailPeriodKey(t)
}

// PeriodKeysBetween lists every period key touched by the half-open window
// [start, end).
func PeriodKeysBetween(syncType SyncType, start, end time.Time) []string {
	if !start.Before(end) {
		return nil
	}
	seen := make(map[string]struct{})
	var keys []string
	step := 7 * 24 * time.Hour
	if syncType == SyncTypeCalendar {
		step = 24 * time.Hour // months vary in length, walk conservatively
	}
	for t := start; t.Before(end); t = t.Add(step) {
		k := PeriodKey(syncType, t)
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
	// end is exclusive but the instant just before it still counts
	k := PeriodKey(syncType, end.Add(-time.Nanosecond))
	if _, ok := seen[k]; !ok {
		keys = append(keys, k)
	}
	return keys
}
