package repository

import (
	"time"

	syncdomain "edcrm-backend/internal/sync/domain"
)

// MessageRepository persists ingested Gmail messages.
type MessageRepository interface {
	// UpsertHeaders writes one page of header records in a single batched
	// call. On conflict only header columns are touched; subject, bodies and
	// matches survive re-ingestion of the same window.
	UpsertHeaders(records []*syncdomain.MessageRecord) error
	// UpdateContent fills in the backfilled columns for one record.
	UpdateContent(userID, providerMessageID string, subject, bodyText, bodyHTML *string) error
	// FindBackfillCandidates returns records matched to at least one educator
	// that still lack a backfilled body, newest first, bounded by limit.
	FindBackfillCandidates(userID string, limit int) ([]*syncdomain.MessageRecord, error)
	// FindPage iterates a user's records for the matcher.
	FindPage(userID string, offset, limit int) ([]*syncdomain.MessageRecord, error)
	UpdateMatches(id string, educatorIDs []string) error
	FindByProviderID(userID, providerMessageID string) (*syncdomain.MessageRecord, error)
	LatestSentAt(userID string) (*time.Time, error)
	OldestSentAt(userID string) (*time.Time, error)
}

// EventRepository persists ingested Calendar events.
type EventRepository interface {
	UpsertHeaders(records []*syncdomain.EventRecord) error
	UpdateContent(userID, calendarID, providerEventID string, description *string) error
	FindBackfillCandidates(userID string, limit int) ([]*syncdomain.EventRecord, error)
	FindPage(userID string, offset, limit int) ([]*syncdomain.EventRecord, error)
	UpdateMatches(id string, educatorIDs []string) error
	FindByProviderID(userID, calendarID, providerEventID string) (*syncdomain.EventRecord, error)
	LatestStartAt(userID string) (*time.Time, error)
	OldestStartAt(userID string) (*time.Time, error)
}

// AttachmentRepository persists attachment metadata; bytes go to blob storage.
type AttachmentRepository interface {
	UpsertMessageAttachment(att *syncdomain.MessageAttachment) error
	UpsertEventAttachment(att *syncdomain.EventAttachment) error
	FindMessageAttachments(userID, providerMessageID string) ([]*syncdomain.MessageAttachment, error)
	FindEventAttachments(userID, providerEventID string) ([]*syncdomain.EventAttachment, error)
}

// ProgressRepository drives the per-period sync state machine.
type ProgressRepository interface {
	// StartRun moves the (user, type, period) row to running under runID,
	// creating it when absent. Any other running row for the same
	// (user, type) is demoted to partial first so at most one period runs at
	// a time. Returns the row.
	StartRun(userID string, syncType syncdomain.SyncType, periodKey, calendarID, runID string) (*syncdomain.SyncProgress, error)
	// AddProcessed bumps the processed counter; ignored when runID is stale.
	AddProcessed(id, runID string, delta int) error
	// Finish transitions the row out of running; ignored when runID is stale.
	Finish(id, runID string, status syncdomain.SyncStatus, errorMessage string) error
	Pause(userID string, syncType syncdomain.SyncType, periodKey, calendarID string) error
	FindByUser(userID string, syncType syncdomain.SyncType) ([]*syncdomain.SyncProgress, error)
	Find(userID string, syncType syncdomain.SyncType, periodKey, calendarID string) (*syncdomain.SyncProgress, error)
}

// HistoryRepository is the append-only sync attempt ledger.
type HistoryRepository interface {
	Append(entry *syncdomain.SyncHistoryEntry) error
	// LastSuccessful returns the most recent entry whose header fetch
	// succeeded, by period end; nil when the user has never synced.
	LastSuccessful(userID string, syncType syncdomain.SyncType) (*syncdomain.SyncHistoryEntry, error)
	ListByUser(userID string, syncType syncdomain.SyncType, limit int) ([]*syncdomain.SyncHistoryEntry, error)
}

// ConsoleLogRepository feeds the live sync dashboard.
type ConsoleLogRepository interface {
	Append(userID, runID string, syncType syncdomain.SyncType, level, message string) error
}
