package usecase

import (
	"context"
	"time"

	accountdomain "edcrm-backend/internal/account/domain"
	"edcrm-backend/pkg/google"
)

// Provider abstracts the Google API surface the sync stages consume. The
// concrete implementation wraps pkg/google and builds a per-call client from
// the account's tokens; tests substitute a fake.
type Provider interface {
	MailHeaders(ctx context.Context, account *accountdomain.SyncAccount, onRefresh google.TokenUpdateFunc, since, until time.Time, pageSize int64, maxItems int, budget *google.Budget, onPage func([]google.MessageHeader) error) (int, bool, error)
	MailContent(ctx context.Context, account *accountdomain.SyncAccount, onRefresh google.TokenUpdateFunc, providerMessageID string) (*google.MessageContent, error)
	MailAttachment(ctx context.Context, account *accountdomain.SyncAccount, onRefresh google.TokenUpdateFunc, providerMessageID, attachmentID string) ([]byte, error)
	SendMail(ctx context.Context, account *accountdomain.SyncAccount, onRefresh google.TokenUpdateFunc, fromName, to, cc, bcc, subject, body string, attachments []google.SendAttachment) error

	Events(ctx context.Context, account *accountdomain.SyncAccount, onRefresh google.TokenUpdateFunc, calendarID string, since, until time.Time, pageSize int64, maxItems int, budget *google.Budget, onPage func([]google.EventItem) error) (int, bool, error)
	Event(ctx context.Context, account *accountdomain.SyncAccount, onRefresh google.TokenUpdateFunc, calendarID, providerEventID string) (*google.EventItem, error)
	DriveFile(ctx context.Context, account *accountdomain.SyncAccount, onRefresh google.TokenUpdateFunc, fileID string) (*google.DriveFileMeta, []byte, error)
}

// BlobStore is the attachment byte sink. Satisfied by *storage.AttachmentStore.
type BlobStore interface {
	SaveMailAttachment(ctx context.Context, userID, messageID, attachmentID, filename, mimeType string, data []byte) (string, error)
	SaveCalendarAttachment(ctx context.Context, userID, eventID, fileID, filename, mimeType string, data []byte) (string, error)
}

// IngestOptions bounds one header ingestion pass. A zero Until means "now";
// a zero Since falls back to the user's configured sync start date. MaxItems
// of zero means uncapped; Budget nil means no wall-clock ceiling.
type IngestOptions struct {
	Since     time.Time
	Until     time.Time
	MaxItems  int
	Initiator string
	Budget    *google.Budget
}

// IngestResult summarizes one header ingestion pass. Complete is false when
// the pass stopped early on its item cap or wall budget; the watermark only
// advances on complete passes.
type IngestResult struct {
	Fetched  int  `json:"fetched"`
	Complete bool `json:"complete"`
}

// BackfillResult summarizes one backfill batch. Drained means fewer
// candidates existed than the batch limit, i.e. the backlog is empty.
type BackfillResult struct {
	Processed   int  `json:"processed"`
	Succeeded   int  `json:"succeeded"`
	Failed      int  `json:"failed"`
	Attachments int  `json:"attachments"`
	Drained     bool `json:"drained"`
}

// MatchSummary reports one matching recomputation sweep.
type MatchSummary struct {
	Scanned int `json:"scanned"`
	Updated int `json:"updated"`
}

// SyncedThrough is the ingested coverage boundary for one stream.
type SyncedThrough struct {
	Newest *time.Time `json:"newest,omitempty"`
	Oldest *time.Time `json:"oldest,omitempty"`
}

// UserFailure is one user whose daily catch-up pass failed; the run continues
// past it.
type UserFailure struct {
	UserID string `json:"user_id"`
	Error  string `json:"error"`
}

// RunSummary is the daily catch-up report returned to the scheduler.
type RunSummary struct {
	UsersProcessed int           `json:"users_processed"`
	Failures       []UserFailure `json:"failures"`
}

// IngestUsecase runs the header pass: list provider items for a window and
// upsert their header projections, tracking per-period progress and appending
// a history entry per pass.
type IngestUsecase interface {
	FetchMailHeaders(ctx context.Context, userID string, opts IngestOptions) (*IngestResult, error)
	FetchCalendarHeaders(ctx context.Context, userID string, opts IngestOptions) (*IngestResult, error)
	MailSyncedThrough(userID string) (*SyncedThrough, error)
	CalendarSyncedThrough(userID string) (*SyncedThrough, error)
}

// BackfillUsecase downloads full content for matched records that still lack
// it, including attachment bytes.
type BackfillUsecase interface {
	BackfillMail(ctx context.Context, userID string, limit int, initiator string) (*BackfillResult, error)
	BackfillCalendar(ctx context.Context, userID string, limit int, initiator string) (*BackfillResult, error)
}

// MatchingUsecase recomputes educator matches from the CRM email index.
// With merge set, freshly computed ids are unioned into the stored set
// instead of replacing it.
type MatchingUsecase interface {
	RefreshMailMatches(ctx context.Context, userID string, merge bool) (*MatchSummary, error)
	RefreshCalendarMatches(ctx context.Context, userID string, merge bool) (*MatchSummary, error)
}

// OrchestratorUsecase is the scheduled daily catch-up entry point.
type OrchestratorUsecase interface {
	RunDailySync(ctx context.Context) (*RunSummary, error)
}
