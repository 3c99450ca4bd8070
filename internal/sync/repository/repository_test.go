package repository

import (
	"testing"
	"time"

	syncdomain "edcrm-backend/internal/sync/domain"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&syncdomain.MessageRecord{},
		&syncdomain.EventRecord{},
		&syncdomain.MessageAttachment{},
		&syncdomain.EventAttachment{},
		&syncdomain.SyncProgress{},
		&syncdomain.SyncHistoryEntry{},
		&syncdomain.ConsoleLogEntry{},
	))
	return db
}

func header(userID, providerID string, sentAt time.Time) *syncdomain.MessageRecord {
	return &syncdomain.MessageRecord{
		UserID:            userID,
		ProviderMessageID: providerID,
		ThreadID:          "t-" + providerID,
		FromAddress:       "sender@example.org",
		ToAddresses:       []string{"teacher@school.edu"},
		SentAt:            sentAt,
	}
}

func TestMessageUpsertIdempotent(t *testing.T) {
	db := newTestDB(t)
	repo := NewMessageRepository(db)

	sentAt := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.UpsertHeaders([]*syncdomain.MessageRecord{
		header("u1", "m1", sentAt),
		header("u1", "m2", sentAt),
	}))

	// Second pass over the same window: no duplicates.
	require.NoError(t, repo.UpsertHeaders([]*syncdomain.MessageRecord{
		header("u1", "m1", sentAt),
		header("u1", "m2", sentAt),
	}))

	var count int64
	require.NoError(t, db.Model(&syncdomain.MessageRecord{}).Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestHeaderPassNeverResetsBackfilledBody(t *testing.T) {
	db := newTestDB(t)
	repo := NewMessageRepository(db)

	sentAt := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.UpsertHeaders([]*syncdomain.MessageRecord{header("u1", "m1", sentAt)}))

	subject := "Field trip forms"
	body := "Please sign by Friday."
	require.NoError(t, repo.UpdateContent("u1", "m1", &subject, &body, nil))
	require.NoError(t, repo.UpdateMatches(mustFind(t, repo, "u1", "m1").ID, []string{"ed-1"}))

	// A later header-only re-scan of the overlap window must not null the
	// body or clear the match.
	require.NoError(t, repo.UpsertHeaders([]*syncdomain.MessageRecord{header("u1", "m1", sentAt)}))

	got := mustFind(t, repo, "u1", "m1")
	require.NotNil(t, got.Subject)
	assert.Equal(t, "Field trip forms", *got.Subject)
	require.NotNil(t, got.BodyText)
	assert.Equal(t, []string{"ed-1"}, got.MatchedEducatorIDs)
	assert.Equal(t, 1, got.MatchCount)
}

func mustFind(t *testing.T, repo MessageRepository, userID, providerID string) *syncdomain.MessageRecord {
	t.Helper()
	rec, err := repo.FindByProviderID(userID, providerID)
	require.NoError(t, err)
	require.NotNil(t, rec)
	return rec
}

func TestBackfillCandidateSelectivity(t *testing.T) {
	db := newTestDB(t)
	repo := NewMessageRepository(db)

	sentAt := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.UpsertHeaders([]*syncdomain.MessageRecord{
		header("u1", "matched", sentAt),
		header("u1", "unmatched", sentAt.Add(time.Hour)),
	}))
	require.NoError(t, repo.UpdateMatches(mustFind(t, repo, "u1", "matched").ID, []string{"ed-1"}))

	candidates, err := repo.FindBackfillCandidates("u1", 10)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "matched", candidates[0].ProviderMessageID)

	// Backfilled records leave the candidate set.
	subject := "done"
	require.NoError(t, repo.UpdateContent("u1", "matched", &subject, nil, nil))
	candidates, err = repo.FindBackfillCandidates("u1", 10)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestEventUpsertPreservesDescription(t *testing.T) {
	db := newTestDB(t)
	repo := NewEventRepository(db)

	evt := &syncdomain.EventRecord{
		UserID:          "u1",
		CalendarID:      "primary",
		ProviderEventID: "e1",
		Summary:         "Site visit",
		StartsAt:        time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC),
		EndsAt:          time.Date(2024, 6, 10, 10, 0, 0, 0, time.UTC),
		Organizer:       "org@school.edu",
		Attendees:       []string{"teacher@school.edu"},
	}
	require.NoError(t, repo.UpsertHeaders([]*syncdomain.EventRecord{evt}))

	desc := "Bring the enrollment packet."
	require.NoError(t, repo.UpdateContent("u1", "primary", "e1", &desc))

	again := &syncdomain.EventRecord{
		UserID:          "u1",
		CalendarID:      "primary",
		ProviderEventID: "e1",
		Summary:         "Site visit (renamed)",
		StartsAt:        evt.StartsAt,
		EndsAt:          evt.EndsAt,
	}
	require.NoError(t, repo.UpsertHeaders([]*syncdomain.EventRecord{again}))

	got, err := repo.FindByProviderID("u1", "primary", "e1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Site visit (renamed)", got.Summary)
	require.NotNil(t, got.Description)
	assert.Equal(t, "Bring the enrollment packet.", *got.Description)
}

func TestProgressStateMachine(t *testing.T) {
	db := newTestDB(t)
	repo := NewProgressRepository(db)

	row, err := repo.StartRun("u1", syncdomain.SyncTypeGmail, "2024-W24", "", "run-1")
	require.NoError(t, err)
	assert.Equal(t, syncdomain.SyncStatusRunning, row.Status)

	// Starting a different period demotes the first to partial.
	_, err = repo.StartRun("u1", syncdomain.SyncTypeGmail, "2024-W23", "", "run-1")
	require.NoError(t, err)
	prev, err := repo.Find("u1", syncdomain.SyncTypeGmail, "2024-W24", "")
	require.NoError(t, err)
	assert.Equal(t, syncdomain.SyncStatusPartial, prev.Status)

	running, err := repo.FindByUser("u1", syncdomain.SyncTypeGmail)
	require.NoError(t, err)
	runningCount := 0
	for _, p := range running {
		if p.Status == syncdomain.SyncStatusRunning {
			runningCount++
		}
	}
	assert.Equal(t, 1, runningCount, "at most one running period per (user, type)")
}

func TestProgressStaleRunIDIgnored(t *testing.T) {
	db := newTestDB(t)
	repo := NewProgressRepository(db)

	row, err := repo.StartRun("u1", syncdomain.SyncTypeGmail, "2024-W24", "", "run-1")
	require.NoError(t, err)
	require.NoError(t, repo.AddProcessed(row.ID, "run-1", 5))

	// A newer invocation takes over the row.
	_, err = repo.StartRun("u1", syncdomain.SyncTypeGmail, "2024-W24", "", "run-2")
	require.NoError(t, err)

	// Updates from the superseded run change nothing.
	require.NoError(t, repo.AddProcessed(row.ID, "run-1", 100))
	require.NoError(t, repo.Finish(row.ID, "run-1", syncdomain.SyncStatusError, "stale"))

	got, err := repo.Find("u1", syncdomain.SyncTypeGmail, "2024-W24", "")
	require.NoError(t, err)
	assert.Equal(t, syncdomain.SyncStatusRunning, got.Status)
	assert.Equal(t, "run-2", got.CurrentRunID)
	assert.Equal(t, 0, got.ProcessedCount, "counts reset when run-2 started, stale bump ignored")
}

func TestProgressFinishAndCounts(t *testing.T) {
	db := newTestDB(t)
	repo := NewProgressRepository(db)

	row, err := repo.StartRun("u1", syncdomain.SyncTypeCalendar, "2024-06", "primary", "run-1")
	require.NoError(t, err)
	require.NoError(t, repo.AddProcessed(row.ID, "run-1", 7))
	require.NoError(t, repo.Finish(row.ID, "run-1", syncdomain.SyncStatusCompleted, ""))

	got, err := repo.Find("u1", syncdomain.SyncTypeCalendar, "2024-06", "primary")
	require.NoError(t, err)
	assert.Equal(t, syncdomain.SyncStatusCompleted, got.Status)
	assert.Equal(t, 7, got.ProcessedCount)
	assert.Equal(t, 7, got.TotalCount)
	assert.NotNil(t, got.CompletedAt)

	// Completed periods may be re-scanned by the overlap window.
	_, err = repo.StartRun("u1", syncdomain.SyncTypeCalendar, "2024-06", "primary", "run-2")
	require.NoError(t, err)
}

func TestHistoryWatermark(t *testing.T) {
	db := newTestDB(t)
	repo := NewHistoryRepository(db)

	end1 := time.Date(2024, 6, 8, 0, 0, 0, 0, time.UTC)
	end2 := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	failedEnd := time.Date(2024, 6, 11, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Append(&syncdomain.SyncHistoryEntry{
		UserID: "u1", SyncType: syncdomain.SyncTypeGmail,
		PeriodStart: end1.Add(-72 * time.Hour), PeriodEnd: end1,
		Initiator: syncdomain.InitiatorSystem, HeadersFetched: 12, HeadersFetchSuccessful: true,
	}))
	require.NoError(t, repo.Append(&syncdomain.SyncHistoryEntry{
		UserID: "u1", SyncType: syncdomain.SyncTypeGmail,
		PeriodStart: end1, PeriodEnd: end2,
		Initiator: syncdomain.InitiatorSystem, HeadersFetched: 3, HeadersFetchSuccessful: true,
	}))
	// Failed runs never advance the watermark.
	require.NoError(t, repo.Append(&syncdomain.SyncHistoryEntry{
		UserID: "u1", SyncType: syncdomain.SyncTypeGmail,
		PeriodStart: end2, PeriodEnd: failedEnd,
		Initiator: syncdomain.InitiatorSystem, HeadersFetchSuccessful: false, HeadersFetchError: "rate limited",
	}))

	last, err := repo.LastSuccessful("u1", syncdomain.SyncTypeGmail)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.True(t, last.PeriodEnd.Equal(end2))

	none, err := repo.LastSuccessful("u2", syncdomain.SyncTypeGmail)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestAttachmentUpsertOverwrites(t *testing.T) {
	db := newTestDB(t)
	repo := NewAttachmentRepository(db)

	att := &syncdomain.MessageAttachment{
		UserID:               "u1",
		ProviderMessageID:    "m1",
		ProviderAttachmentID: "a1",
		Filename:             "report.pdf",
		MimeType:             "application/pdf",
		Size:                 1024,
		StorageKey:           "u1/m1/a1-report.pdf",
	}
	require.NoError(t, repo.UpsertMessageAttachment(att))

	att2 := *att
	att2.ID = ""
	att2.Size = 2048
	require.NoError(t, repo.UpsertMessageAttachment(&att2))

	atts, err := repo.FindMessageAttachments("u1", "m1")
	require.NoError(t, err)
	require.Len(t, atts, 1)
	assert.EqualValues(t, 2048, atts[0].Size)
}
