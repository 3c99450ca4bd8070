package domain

import "time"

const (
	InitiatorUser   = "user"
	InitiatorSystem = "system"
)

// SyncHistoryEntry is the append-only ledger of sync attempts. The next run's
// "since" watermark is derived from the latest successful entry's PeriodEnd;
// nothing else reads these rows on the hot path.
type SyncHistoryEntry struct {
	ID          string     `json:"id" gorm:"primaryKey"`
	UserID      string     `json:"user_id" gorm:"index:idx_history_user_type;not null"`
	SyncType    SyncType   `json:"sync_type" gorm:"index:idx_history_user_type;not null"`
	PeriodStart time.Time  `json:"period_start"`
	PeriodEnd   time.Time  `json:"period_end"`
	Initiator   string     `json:"initiator"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	HeadersFetched         int    `json:"headers_fetched"`
	HeadersFetchSuccessful bool   `json:"headers_fetch_successful"`
	HeadersFetchError      string `json:"headers_fetch_error,omitempty"`

	BackfillDownloads          int    `json:"backfill_downloads"`
	BackfillDownloadSuccessful bool   `json:"backfill_download_successful"`
	BackfillDownloadError      string `json:"backfill_download_error,omitempty"`
}

func (SyncHistoryEntry) TableName() string {
	return "sync_history"
}
