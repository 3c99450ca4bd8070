package usecase

import (
	"time"

	syncdomain "edcrm-backend/internal/sync/domain"
)

// periodWindow is one progress-tracking slice of a scan window: an ISO week
// for mail, a calendar month for events, clipped to the requested range.
type periodWindow struct {
	Key   string
	Start time.Time
	End   time.Time
}

// periodWindows splits the half-open range [since, until) into period slices.
// Each slice's progress row is tracked independently, so a pass that dies mid
// window leaves earlier periods completed and only the active one partial.
func periodWindows(syncType syncdomain.SyncType, since, until time.Time) []periodWindow {
	if !since.Before(until) {
		return nil
	}

	var out []periodWindow
	cursor := since.UTC()
	for cursor.Before(until) {
		next := nextPeriodStart(syncType, cursor)
		end := next
		if end.After(until) {
			end = until.UTC()
		}
		out = append(out, periodWindow{
			Key:   syncdomain.PeriodKey(syncType, cursor),
			Start: cursor,
			End:   end,
		})
		cursor = next
	}
	return out
}

// nextPeriodStart returns the first instant of the period after the one
// containing t: the next ISO-week Monday for mail, the first of the next
// month for calendar.
func nextPeriodStart(syncType syncdomain.SyncType, t time.Time) time.Time {
	u := t.UTC()
	if syncType == syncdomain.SyncTypeCalendar {
		return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	}
	day := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	// Monday-based offset to the start of the ISO week.
	weekday := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, 7-weekday)
}

// catchupWindows computes the daily run's scan ranges for one user and
// stream. The recent window restarts at the last successful pass's end minus
// the overlap, so items that arrived out of order near the boundary are seen
// again; re-ingestion is idempotent. Everything older than the recent window
// back to the configured start date is the backlog, chipped away at under an
// item cap.
func catchupWindows(now, lastEnd, syncStart time.Time, overlap time.Duration) (recent periodRange, backlog *periodRange) {
	since := lastEnd
	if since.IsZero() {
		// Never synced: scan the last day (plus overlap) now and leave the
		// rest to the backlog pass.
		since = now.Add(-24 * time.Hour)
	}
	since = since.Add(-overlap)
	if since.Before(syncStart) {
		since = syncStart
	}
	if since.After(now) {
		since = now
	}

	recent = periodRange{Start: since, End: now}
	if syncStart.Before(since) {
		backlog = &periodRange{Start: syncStart, End: since}
	}
	return recent, backlog
}

type periodRange struct {
	Start time.Time
	End   time.Time
}
