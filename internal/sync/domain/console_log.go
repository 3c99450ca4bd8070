package domain

import "time"

const (
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// ConsoleLogEntry is one line of the per-run textual log the live dashboard
// tails. Insert-only.
type ConsoleLogEntry struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	UserID    string    `json:"user_id" gorm:"index:idx_console_user_run"`
	RunID     string    `json:"run_id" gorm:"index:idx_console_user_run"`
	SyncType  SyncType  `json:"sync_type"`
	Level     string    `json:"level" gorm:"size:10"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

func (ConsoleLogEntry) TableName() string {
	return "sync_console_log"
}
