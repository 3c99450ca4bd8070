package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	accountdomain "edcrm-backend/internal/account/domain"
	accountrepository "edcrm-backend/internal/account/repository"
	syncdomain "edcrm-backend/internal/sync/domain"
	"edcrm-backend/internal/sync/repository"
	"edcrm-backend/pkg/config"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type ingestCall struct {
	UserID   string
	SyncType syncdomain.SyncType
	Opts     IngestOptions
}

type fakeIngest struct {
	calls    []ingestCall
	failUser string
	failType syncdomain.SyncType
}

func (f *fakeIngest) record(userID string, syncType syncdomain.SyncType, opts IngestOptions) (*IngestResult, error) {
	f.calls = append(f.calls, ingestCall{UserID: userID, SyncType: syncType, Opts: opts})
	if userID == f.failUser && (f.failType == "" || f.failType == syncType) {
		return nil, errors.New("provider unavailable")
	}
	return &IngestResult{Complete: true}, nil
}

func (f *fakeIngest) FetchMailHeaders(ctx context.Context, userID string, opts IngestOptions) (*IngestResult, error) {
	return f.record(userID, syncdomain.SyncTypeGmail, opts)
}

func (f *fakeIngest) FetchCalendarHeaders(ctx context.Context, userID string, opts IngestOptions) (*IngestResult, error) {
	return f.record(userID, syncdomain.SyncTypeCalendar, opts)
}

func (f *fakeIngest) MailSyncedThrough(userID string) (*SyncedThrough, error) {
	return &SyncedThrough{}, nil
}

func (f *fakeIngest) CalendarSyncedThrough(userID string) (*SyncedThrough, error) {
	return &SyncedThrough{}, nil
}

type backfillCall struct {
	UserID    string
	SyncType  syncdomain.SyncType
	Limit     int
	Initiator string
}

type fakeBackfill struct {
	calls []backfillCall
}

func (f *fakeBackfill) BackfillMail(ctx context.Context, userID string, limit int, initiator string) (*BackfillResult, error) {
	f.calls = append(f.calls, backfillCall{UserID: userID, SyncType: syncdomain.SyncTypeGmail, Limit: limit, Initiator: initiator})
	return &BackfillResult{Drained: true}, nil
}

func (f *fakeBackfill) BackfillCalendar(ctx context.Context, userID string, limit int, initiator string) (*BackfillResult, error) {
	f.calls = append(f.calls, backfillCall{UserID: userID, SyncType: syncdomain.SyncTypeCalendar, Limit: limit, Initiator: initiator})
	return &BackfillResult{Drained: true}, nil
}

type matchCall struct {
	UserID string
	Merge  bool
}

type fakeMatching struct {
	calls []matchCall
}

func (f *fakeMatching) RefreshMailMatches(ctx context.Context, userID string, merge bool) (*MatchSummary, error) {
	f.calls = append(f.calls, matchCall{UserID: userID, Merge: merge})
	return &MatchSummary{}, nil
}

func (f *fakeMatching) RefreshCalendarMatches(ctx context.Context, userID string, merge bool) (*MatchSummary, error) {
	f.calls = append(f.calls, matchCall{UserID: userID, Merge: merge})
	return &MatchSummary{}, nil
}

type orchestratorFixture struct {
	db          *gorm.DB
	orch        *orchestratorUsecase
	accountRepo accountrepository.AccountRepository
	historyRepo repository.HistoryRepository
	ingest      *fakeIngest
	backfill    *fakeBackfill
	matching    *fakeMatching
}

func newOrchestratorFixture(t *testing.T, now time.Time) *orchestratorFixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&accountdomain.SyncAccount{},
		&accountdomain.SyncSettings{},
		&syncdomain.SyncHistoryEntry{},
		&syncdomain.ConsoleLogEntry{},
	))

	f := &orchestratorFixture{
		db:          db,
		accountRepo: accountrepository.NewAccountRepository(db),
		historyRepo: repository.NewHistoryRepository(db),
		ingest:      &fakeIngest{},
		backfill:    &fakeBackfill{},
		matching:    &fakeMatching{},
	}
	f.orch = &orchestratorUsecase{
		accountRepo: f.accountRepo,
		accounts: &stubAccounts{
			settings: &accountdomain.SyncSettings{
				SyncStartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			},
		},
		ingest:      f.ingest,
		backfill:    f.backfill,
		matching:    f.matching,
		historyRepo: f.historyRepo,
		consoleRepo: repository.NewConsoleLogRepository(db),
		config: &config.Config{
			BackfillBatchSize:      25,
			BacklogMaxItems:        500,
			BacklogMaxItemsBoosted: 2000,
			PriorityUserIDs:        []string{"boosted"},
			SyncOverlap:            24 * time.Hour,
			SyncWallBudget:         time.Minute,
		},
		now: func() time.Time { return now },
	}
	return f
}

func (f *orchestratorFixture) connect(t *testing.T, userID string) {
	t.Helper()
	require.NoError(t, f.accountRepo.Save(&accountdomain.SyncAccount{
		UserID:      userID,
		AccessToken: "token",
		TokenExpiry: time.Now().Add(time.Hour),
		Connected:   true,
	}))
}

func TestRunDailySyncWindows(t *testing.T) {
	now := time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC)
	f := newOrchestratorFixture(t, now)
	f.connect(t, "u1")

	lastEnd := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	for _, syncType := range []syncdomain.SyncType{syncdomain.SyncTypeGmail, syncdomain.SyncTypeCalendar} {
		require.NoError(t, f.historyRepo.Append(&syncdomain.SyncHistoryEntry{
			UserID:                 "u1",
			SyncType:               syncType,
			PeriodStart:            lastEnd.AddDate(0, 0, -7),
			PeriodEnd:              lastEnd,
			HeadersFetchSuccessful: true,
		}))
	}

	summary, err := f.orch.RunDailySync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.UsersProcessed)
	assert.Empty(t, summary.Failures)

	// Per stream: a recent pass anchored at the watermark minus the overlap,
	// then a capped backlog pass covering the rest of the configured range.
	require.Len(t, f.ingest.calls, 4)
	recent := f.ingest.calls[0]
	assert.Equal(t, syncdomain.SyncTypeGmail, recent.SyncType)
	assert.WithinDuration(t, time.Date(2024, 6, 9, 0, 0, 0, 0, time.UTC), recent.Opts.Since, time.Second)
	assert.Equal(t, now, recent.Opts.Until)
	assert.Zero(t, recent.Opts.MaxItems)
	assert.Equal(t, syncdomain.InitiatorSystem, recent.Opts.Initiator)
	assert.NotNil(t, recent.Opts.Budget)

	backlog := f.ingest.calls[1]
	assert.Equal(t, syncdomain.SyncTypeGmail, backlog.SyncType)
	assert.WithinDuration(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), backlog.Opts.Since, time.Second)
	assert.WithinDuration(t, time.Date(2024, 6, 9, 0, 0, 0, 0, time.UTC), backlog.Opts.Until, time.Second)
	assert.Equal(t, 500, backlog.Opts.MaxItems)

	assert.Equal(t, syncdomain.SyncTypeCalendar, f.ingest.calls[2].SyncType)
	assert.Equal(t, syncdomain.SyncTypeCalendar, f.ingest.calls[3].SyncType)

	// Matching unions into the stored sets, then a bounded backfill batch
	// runs. A replace sweep is never scheduled; only a user asks for one.
	require.Len(t, f.matching.calls, 2)
	for _, call := range f.matching.calls {
		assert.True(t, call.Merge)
	}
	require.Len(t, f.backfill.calls, 2)
	for _, call := range f.backfill.calls {
		assert.Equal(t, 25, call.Limit)
		assert.Equal(t, syncdomain.InitiatorSystem, call.Initiator)
	}
}

func TestRunDailySyncBoostedBacklogCap(t *testing.T) {
	now := time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC)
	f := newOrchestratorFixture(t, now)
	f.connect(t, "boosted")

	_, err := f.orch.RunDailySync(context.Background())
	require.NoError(t, err)

	var backlogCaps []int
	for _, call := range f.ingest.calls {
		if call.Opts.MaxItems > 0 {
			backlogCaps = append(backlogCaps, call.Opts.MaxItems)
		}
	}
	require.NotEmpty(t, backlogCaps)
	for _, limit := range backlogCaps {
		assert.Equal(t, 2000, limit)
	}
}

func TestRunDailySyncIsolatesUserFailures(t *testing.T) {
	now := time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC)
	f := newOrchestratorFixture(t, now)
	f.connect(t, "u1")
	f.connect(t, "u2")
	f.ingest.failUser = "u1"

	summary, err := f.orch.RunDailySync(context.Background())
	require.NoError(t, err, "one broken user never fails the run")
	assert.Equal(t, 1, summary.UsersProcessed)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, "u1", summary.Failures[0].UserID)

	// The healthy user still got the full treatment.
	var u2Calls int
	for _, call := range f.ingest.calls {
		if call.UserID == "u2" {
			u2Calls++
		}
	}
	assert.Equal(t, 4, u2Calls)
}

func TestRunDailySyncBrokenStageDoesNotStopUser(t *testing.T) {
	now := time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC)
	f := newOrchestratorFixture(t, now)
	f.connect(t, "u1")
	f.ingest.failUser = "u1"
	f.ingest.failType = syncdomain.SyncTypeGmail

	summary, err := f.orch.RunDailySync(context.Background())
	require.NoError(t, err)
	require.Len(t, summary.Failures, 1)
	assert.Contains(t, summary.Failures[0].Error, "gmail ingest")

	// The gmail listing broke, but calendar ingestion, matching and backfill
	// all still ran for the same user.
	var calendarIngests int
	for _, call := range f.ingest.calls {
		if call.SyncType == syncdomain.SyncTypeCalendar {
			calendarIngests++
		}
	}
	assert.Equal(t, 2, calendarIngests)
	assert.Len(t, f.matching.calls, 2)
	assert.Len(t, f.backfill.calls, 2)

	// The failure left a trace in the console log.
	var entries []syncdomain.ConsoleLogEntry
	require.NoError(t, f.db.Where("user_id = ?", "u1").Find(&entries).Error)
	require.Len(t, entries, 1)
	assert.Equal(t, syncdomain.LogLevelError, entries[0].Level)
	assert.Contains(t, entries[0].Message, "gmail ingest failed")
}

func TestRunDailySyncNoConnectedUsers(t *testing.T) {
	f := newOrchestratorFixture(t, time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC))

	summary, err := f.orch.RunDailySync(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.UsersProcessed)
	assert.Empty(t, summary.Failures)
	assert.Empty(t, f.ingest.calls)
}
