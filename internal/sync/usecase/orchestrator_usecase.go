package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	accountrepository "edcrm-backend/internal/account/repository"
	accountusecase "edcrm-backend/internal/account/usecase"
	syncdomain "edcrm-backend/internal/sync/domain"
	"edcrm-backend/internal/sync/repository"
	"edcrm-backend/pkg/config"
	"edcrm-backend/pkg/google"

	"github.com/google/uuid"
)

// orchestratorUsecase implements OrchestratorUsecase. It walks every
// connected account sequentially; one slow or broken user delays the others
// but never fails them.
type orchestratorUsecase struct {
	accountRepo accountrepository.AccountRepository
	accounts    accountusecase.AccountUsecase
	ingest      IngestUsecase
	backfill    BackfillUsecase
	matching    MatchingUsecase
	historyRepo repository.HistoryRepository
	consoleRepo repository.ConsoleLogRepository
	config      *config.Config

	// now is swappable for tests.
	now func() time.Time
}

func NewOrchestratorUsecase(
	accountRepo accountrepository.AccountRepository,
	accounts accountusecase.AccountUsecase,
	ingest IngestUsecase,
	backfill BackfillUsecase,
	matching MatchingUsecase,
	historyRepo repository.HistoryRepository,
	consoleRepo repository.ConsoleLogRepository,
	cfg *config.Config,
) OrchestratorUsecase {
	return &orchestratorUsecase{
		accountRepo: accountRepo,
		accounts:    accounts,
		ingest:      ingest,
		backfill:    backfill,
		matching:    matching,
		historyRepo: historyRepo,
		consoleRepo: consoleRepo,
		config:      cfg,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// RunDailySync is the scheduled catch-up pass. Per user and stream it scans a
// recent window anchored at the previous successful run's watermark (minus
// the re-scan overlap), then chips away at the historical backlog under an
// item cap, then refreshes matches and downloads a bounded backfill batch.
func (o *orchestratorUsecase) RunDailySync(ctx context.Context) (*RunSummary, error) {
	connected, err := o.accountRepo.FindConnected()
	if err != nil {
		return nil, &syncdomain.PersistenceError{Op: "list connected accounts", Err: err}
	}

	summary := &RunSummary{Failures: []UserFailure{}}
	for i, account := range connected {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if i > 0 {
			o.pause(ctx)
		}

		if err := o.syncUser(ctx, account.UserID); err != nil {
			log.Printf("[DailySync] user %s failed: %v", account.UserID, err)
			summary.Failures = append(summary.Failures, UserFailure{UserID: account.UserID, Error: err.Error()})
			continue
		}
		summary.UsersProcessed++
	}

	log.Printf("[DailySync] finished: processed=%d failed=%d", summary.UsersProcessed, len(summary.Failures))
	return summary, nil
}

// syncUser runs every stage for one user. A failed stage is recorded and the
// remaining stages still run: a broken gmail listing must not stop calendar
// ingestion, and a matching hiccup must not stop backfill. The combined error
// lands in the run summary; a cancelled context stops the pass immediately.
func (o *orchestratorUsecase) syncUser(ctx context.Context, userID string) error {
	settings, err := o.accounts.Settings(userID)
	if err != nil {
		return &syncdomain.PersistenceError{Op: "load sync settings", Err: err}
	}
	if settings == nil || settings.SyncStartDate.IsZero() {
		return fmt.Errorf("user %s has no sync window configured", userID)
	}

	runID := uuid.New().String()
	var failed []string
	stage := func(syncType syncdomain.SyncType, name string, run func() error) {
		if ctx.Err() != nil {
			return
		}
		if err := run(); err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", name, err))
			o.console(userID, runID, syncType, "%s failed: %v", name, err)
		}
	}

	stage(syncdomain.SyncTypeGmail, "gmail ingest", func() error {
		return o.syncStream(ctx, userID, syncdomain.SyncTypeGmail, settings.SyncStartDate)
	})
	stage(syncdomain.SyncTypeCalendar, "calendar ingest", func() error {
		return o.syncStream(ctx, userID, syncdomain.SyncTypeCalendar, settings.SyncStartDate)
	})

	stage(syncdomain.SyncTypeGmail, "mail matching", func() error {
		_, err := o.matching.RefreshMailMatches(ctx, userID, true)
		return err
	})
	stage(syncdomain.SyncTypeCalendar, "calendar matching", func() error {
		_, err := o.matching.RefreshCalendarMatches(ctx, userID, true)
		return err
	})

	stage(syncdomain.SyncTypeGmail, "mail backfill", func() error {
		_, err := o.backfill.BackfillMail(ctx, userID, o.config.BackfillBatchSize, syncdomain.InitiatorSystem)
		return err
	})
	stage(syncdomain.SyncTypeCalendar, "calendar backfill", func() error {
		_, err := o.backfill.BackfillCalendar(ctx, userID, o.config.BackfillBatchSize, syncdomain.InitiatorSystem)
		return err
	})

	if err := ctx.Err(); err != nil {
		return err
	}
	if len(failed) > 0 {
		return errors.New(strings.Join(failed, "; "))
	}
	return nil
}

func (o *orchestratorUsecase) console(userID, runID string, syncType syncdomain.SyncType, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	log.Printf("[DailySync] user=%s type=%s %s", userID, syncType, msg)
	if err := o.consoleRepo.Append(userID, runID, syncType, syncdomain.LogLevelError, msg); err != nil {
		log.Printf("[DailySync] Could not append console log for user %s: %v", userID, err)
	}
}

func (o *orchestratorUsecase) syncStream(ctx context.Context, userID string, syncType syncdomain.SyncType, syncStart time.Time) error {
	last, err := o.historyRepo.LastSuccessful(userID, syncType)
	if err != nil {
		return &syncdomain.PersistenceError{Op: "load last successful sync", Err: err}
	}
	var lastEnd time.Time
	if last != nil {
		lastEnd = last.PeriodEnd
	}

	now := o.now()
	recent, backlog := catchupWindows(now, lastEnd, syncStart, o.config.SyncOverlap)

	fetch := o.ingest.FetchMailHeaders
	if syncType == syncdomain.SyncTypeCalendar {
		fetch = o.ingest.FetchCalendarHeaders
	}

	// Recent pass first: it advances the watermark and is what users notice.
	if _, err := fetch(ctx, userID, IngestOptions{
		Since:     recent.Start,
		Until:     recent.End,
		Initiator: syncdomain.InitiatorSystem,
		Budget:    google.NewBudget(o.config.SyncWallBudget),
	}); err != nil {
		return err
	}

	if backlog == nil {
		return nil
	}
	// Backlog pass is capped, not windowed down: an incomplete pass is
	// expected and its history entry never advances the watermark.
	if _, err := fetch(ctx, userID, IngestOptions{
		Since:     backlog.Start,
		Until:     backlog.End,
		MaxItems:  o.config.BacklogLimitFor(userID),
		Initiator: syncdomain.InitiatorSystem,
		Budget:    google.NewBudget(o.config.SyncWallBudget),
	}); err != nil {
		return err
	}
	return nil
}

// pause spaces users out so one run does not monopolize provider quota.
func (o *orchestratorUsecase) pause(ctx context.Context) {
	if o.config.UserPause <= 0 {
		return
	}
	timer := time.NewTimer(o.config.UserPause)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
