package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to SyncStatus }{
		{SyncStatusNotStarted, SyncStatusRunning},
		{SyncStatusRunning, SyncStatusCompleted},
		{SyncStatusRunning, SyncStatusPaused},
		{SyncStatusRunning, SyncStatusPartial},
		{SyncStatusRunning, SyncStatusError},
		{SyncStatusPaused, SyncStatusRunning},
		{SyncStatusError, SyncStatusRunning},
	}
	for _, tr := range allowed {
		assert.True(t, tr.from.CanTransition(tr.to), "%s -> %s should be allowed", tr.from, tr.to)
	}

	denied := []struct{ from, to SyncStatus }{
		{SyncStatusNotStarted, SyncStatusCompleted},
		{SyncStatusCompleted, SyncStatusRunning},
		{SyncStatusCompleted, SyncStatusError},
		{SyncStatusPartial, SyncStatusRunning},
		{SyncStatusPaused, SyncStatusCompleted},
		{SyncStatusError, SyncStatusCompleted},
	}
	for _, tr := range denied {
		assert.False(t, tr.from.CanTransition(tr.to), "%s -> %s should be denied", tr.from, tr.to)
	}
}

func TestPeriodKeys(t *testing.T) {
	// 2024-06-12 is a Wednesday in ISO week 24.
	ts := time.Date(2024, 6, 12, 15, 30, 0, 0, time.UTC)
	assert.Equal(t, "2024-W24", MailPeriodKey(ts))
	assert.Equal(t, "2024-06", CalendarPeriodKey(ts))

	// ISO week of Jan 1 can belong to the previous year.
	newYear := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC) // Sunday, ISO week 52 of 2022
	assert.Equal(t, "2022-W52", MailPeriodKey(newYear))
}

func TestPeriodKeysBetween(t *testing.T) {
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)

	mailKeys := PeriodKeysBetween(SyncTypeGmail, start, end)
	assert.Contains(t, mailKeys, "2024-W22")
	assert.Contains(t, mailKeys, "2024-W24")

	calKeys := PeriodKeysBetween(SyncTypeCalendar, start, end)
	assert.Equal(t, []string{"2024-06"}, calKeys)

	// window crossing a month boundary touches both months
	calKeys = PeriodKeysBetween(SyncTypeCalendar,
		time.Date(2024, 5, 30, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, []string{"2024-05", "2024-06"}, calKeys)

	// empty or inverted windows yield nothing
	assert.Nil(t, PeriodKeysBetween(SyncTypeGmail, end, start))
	assert.Nil(t, PeriodKeysBetween(SyncTypeGmail, start, start))
}

func TestMessageRecordHelpers(t *testing.T) {
	m := &MessageRecord{
		FromAddress: "a@example.org",
		ToAddresses: []string{"b@example.org"},
		CcAddresses: []string{"c@example.org"},
	}
	assert.Equal(t, []string{"a@example.org", "b@example.org", "c@example.org"}, m.AllAddresses())
	assert.False(t, m.Backfilled())

	subject := "hi"
	m.Subject = &subject
	assert.True(t, m.Backfilled())
}
