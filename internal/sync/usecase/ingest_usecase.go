package usecase

import (
	"context"
	"fmt"
	"log"
	"time"

	accountdomain "edcrm-backend/internal/account/domain"
	accountusecase "edcrm-backend/internal/account/usecase"
	syncdomain "edcrm-backend/internal/sync/domain"
	"edcrm-backend/internal/sync/repository"
	"edcrm-backend/pkg/config"
	"edcrm-backend/pkg/google"
	"edcrm-backend/pkg/sanitize"

	"github.com/google/uuid"
)

// ingestUsecase implements IngestUsecase
type ingestUsecase struct {
	accounts     accountusecase.AccountUsecase
	provider     Provider
	messageRepo  repository.MessageRepository
	eventRepo    repository.EventRepository
	progressRepo repository.ProgressRepository
	historyRepo  repository.HistoryRepository
	consoleRepo  repository.ConsoleLogRepository
	config       *config.Config
}

func NewIngestUsecase(
	accounts accountusecase.AccountUsecase,
	provider Provider,
	messageRepo repository.MessageRepository,
	eventRepo repository.EventRepository,
	progressRepo repository.ProgressRepository,
	historyRepo repository.HistoryRepository,
	consoleRepo repository.ConsoleLogRepository,
	cfg *config.Config,
) IngestUsecase {
	return &ingestUsecase{
		accounts:     accounts,
		provider:     provider,
		messageRepo:  messageRepo,
		eventRepo:    eventRepo,
		progressRepo: progressRepo,
		historyRepo:  historyRepo,
		consoleRepo:  consoleRepo,
		config:       cfg,
	}
}

// normalize fills option defaults: Until "now", Since the user's configured
// start date, Initiator user (the cron path sets system explicitly).
func (u *ingestUsecase) normalize(userID string, opts IngestOptions) (IngestOptions, error) {
	if opts.Until.IsZero() {
		opts.Until = time.Now().UTC()
	}
	if opts.Since.IsZero() {
		settings, err := u.accounts.Settings(userID)
		if err != nil {
			return opts, &syncdomain.PersistenceError{Op: "load sync settings", Err: err}
		}
		if settings == nil || settings.SyncStartDate.IsZero() {
			return opts, fmt.Errorf("user %s has no sync window configured", userID)
		}
		opts.Since = settings.SyncStartDate
	}
	if opts.Initiator == "" {
		opts.Initiator = syncdomain.InitiatorUser
	}
	return opts, nil
}

func (u *ingestUsecase) console(userID, runID string, syncType syncdomain.SyncType, level, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	log.Printf("[Sync] user=%s type=%s %s", userID, syncType, msg)
	if err := u.consoleRepo.Append(userID, runID, syncType, level, msg); err != nil {
		log.Printf("[Sync] Could not append console log for user %s: %v", userID, err)
	}
}

func (u *ingestUsecase) FetchMailHeaders(ctx context.Context, userID string, opts IngestOptions) (*IngestResult, error) {
	return u.fetchHeaders(ctx, userID, syncdomain.SyncTypeGmail, opts)
}

func (u *ingestUsecase) FetchCalendarHeaders(ctx context.Context, userID string, opts IngestOptions) (*IngestResult, error) {
	return u.fetchHeaders(ctx, userID, syncdomain.SyncTypeCalendar, opts)
}

// fetchHeaders runs one header ingestion pass over [Since, Until), slicing it
// into period windows that are tracked independently in sync_progress. The
// pass appends exactly one history entry; the entry counts as successful only
// when every period ran to completion, which is what lets the next run's
// watermark advance past this window.
func (u *ingestUsecase) fetchHeaders(ctx context.Context, userID string, syncType syncdomain.SyncType, opts IngestOptions) (*IngestResult, error) {
	account, err := u.accounts.ValidAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	opts, err = u.normalize(userID, opts)
	if err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	onRefresh := u.accounts.TokenUpdateCallback(userID)
	calendarID := ""
	if syncType == syncdomain.SyncTypeCalendar {
		calendarID = u.config.SyncCalendarID
	}

	entry := &syncdomain.SyncHistoryEntry{
		UserID:      userID,
		SyncType:    syncType,
		PeriodStart: opts.Since,
		PeriodEnd:   opts.Until,
		Initiator:   opts.Initiator,
		StartedAt:   time.Now().UTC(),
	}

	result := &IngestResult{Complete: true}
	u.console(userID, runID, syncType, syncdomain.LogLevelInfo,
		"header pass started: %s .. %s", opts.Since.Format(time.RFC3339), opts.Until.Format(time.RFC3339))

	var passErr error
	for _, win := range periodWindows(syncType, opts.Since, opts.Until) {
		if opts.Budget.Exceeded() {
			result.Complete = false
			u.console(userID, runID, syncType, syncdomain.LogLevelWarn, "wall budget exhausted before period %s", win.Key)
			break
		}

		maxItems := 0
		if opts.MaxItems > 0 {
			maxItems = opts.MaxItems - result.Fetched
			if maxItems <= 0 {
				result.Complete = false
				break
			}
		}

		// A period paused by the user stays untouched during scheduled runs;
		// an explicit user-initiated pass resumes it.
		if opts.Initiator == syncdomain.InitiatorSystem {
			existing, ferr := u.progressRepo.Find(userID, syncType, win.Key, calendarID)
			if ferr == nil && existing != nil && existing.Status == syncdomain.SyncStatusPaused {
				result.Complete = false
				u.console(userID, runID, syncType, syncdomain.LogLevelInfo, "period %s is paused, skipping", win.Key)
				continue
			}
		}

		progress, err := u.progressRepo.StartRun(userID, syncType, win.Key, calendarID, runID)
		if err != nil {
			passErr = &syncdomain.PersistenceError{Op: "start period " + win.Key, Err: err}
			result.Complete = false
			break
		}

		fetched, complete, err := u.listPeriod(ctx, account, onRefresh, syncType, calendarID, win, maxItems, opts.Budget, progress.ID, runID)
		result.Fetched += fetched

		switch {
		case err != nil:
			passErr = err
			result.Complete = false
			u.console(userID, runID, syncType, syncdomain.LogLevelError, "period %s failed: %v", win.Key, err)
			if ferr := u.progressRepo.Finish(progress.ID, runID, syncdomain.SyncStatusError, err.Error()); ferr != nil {
				log.Printf("[Sync] Could not record period failure for user %s: %v", userID, ferr)
			}
		case complete:
			if ferr := u.progressRepo.Finish(progress.ID, runID, syncdomain.SyncStatusCompleted, ""); ferr != nil {
				passErr = &syncdomain.PersistenceError{Op: "complete period " + win.Key, Err: ferr}
				result.Complete = false
			}
		default:
			result.Complete = false
			if ferr := u.progressRepo.Finish(progress.ID, runID, syncdomain.SyncStatusPartial, ""); ferr != nil {
				log.Printf("[Sync] Could not mark period %s partial for user %s: %v", win.Key, userID, ferr)
			}
		}
		if passErr != nil {
			break
		}
	}

	now := time.Now().UTC()
	entry.CompletedAt = &now
	entry.HeadersFetched = result.Fetched
	entry.HeadersFetchSuccessful = passErr == nil && result.Complete
	if passErr != nil {
		entry.HeadersFetchError = passErr.Error()
	}
	if err := u.historyRepo.Append(entry); err != nil {
		return result, &syncdomain.PersistenceError{Op: "append sync history", Err: err}
	}

	u.console(userID, runID, syncType, syncdomain.LogLevelInfo,
		"header pass finished: fetched=%d complete=%t", result.Fetched, result.Complete)
	return result, passErr
}

// listPeriod streams one period's provider pages into header upserts.
func (u *ingestUsecase) listPeriod(
	ctx context.Context,
	account *accountdomain.SyncAccount,
	onRefresh google.TokenUpdateFunc,
	syncType syncdomain.SyncType,
	calendarID string,
	win periodWindow,
	maxItems int,
	budget *google.Budget,
	progressID, runID string,
) (int, bool, error) {
	if syncType == syncdomain.SyncTypeCalendar {
		return u.provider.Events(ctx, account, onRefresh, calendarID, win.Start, win.End, u.config.ListPageSize, maxItems, budget, func(page []google.EventItem) error {
			records := make([]*syncdomain.EventRecord, 0, len(page))
			for _, item := range page {
				records = append(records, &syncdomain.EventRecord{
					UserID:          account.UserID,
					CalendarID:      calendarID,
					ProviderEventID: item.ProviderID,
					Summary:         sanitize.Text(item.Summary),
					StartsAt:        item.Start,
					EndsAt:          item.End,
					Organizer:       item.Organizer,
					Attendees:       item.Attendees,
					Location:        sanitize.Text(item.Location),
					Status:          item.Status,
				})
			}
			if err := u.eventRepo.UpsertHeaders(records); err != nil {
				return &syncdomain.PersistenceError{Op: "upsert event headers", Err: err}
			}
			return u.progressRepo.AddProcessed(progressID, runID, len(records))
		})
	}

	return u.provider.MailHeaders(ctx, account, onRefresh, win.Start, win.End, u.config.ListPageSize, maxItems, budget, func(page []google.MessageHeader) error {
		records := make([]*syncdomain.MessageRecord, 0, len(page))
		for _, item := range page {
			records = append(records, &syncdomain.MessageRecord{
				UserID:            account.UserID,
				ProviderMessageID: item.ProviderID,
				ThreadID:          item.ThreadID,
				FromAddress:       item.From,
				ToAddresses:       item.To,
				CcAddresses:       item.Cc,
				BccAddresses:      item.Bcc,
				SentAt:            item.SentAt,
			})
		}
		if err := u.messageRepo.UpsertHeaders(records); err != nil {
			return &syncdomain.PersistenceError{Op: "upsert message headers", Err: err}
		}
		return u.progressRepo.AddProcessed(progressID, runID, len(records))
	})
}

func (u *ingestUsecase) MailSyncedThrough(userID string) (*SyncedThrough, error) {
	newest, err := u.messageRepo.LatestSentAt(userID)
	if err != nil {
		return nil, err
	}
	oldest, err := u.messageRepo.OldestSentAt(userID)
	if err != nil {
		return nil, err
	}
	return &SyncedThrough{Newest: newest, Oldest: oldest}, nil
}

func (u *ingestUsecase) CalendarSyncedThrough(userID string) (*SyncedThrough, error) {
	newest, err := u.eventRepo.LatestStartAt(userID)
	if err != nil {
		return nil, err
	}
	oldest, err := u.eventRepo.OldestStartAt(userID)
	if err != nil {
		return nil, err
	}
	return &SyncedThrough{Newest: newest, Oldest: oldest}, nil
}
