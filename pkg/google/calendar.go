package google

import (
	"context"
	"fmt"
	"io"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/drive/v3"
)

// EventItem is the normalized projection of one calendar event. The listing
// response already carries every field, but header ingestion still persists
// Description as null; backfill owns it.
type EventItem struct {
	ProviderID  string
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	Organizer   string
	Attendees   []string
	Location    string
	Status      string
	Attachments []DriveAttachment
}

// DriveAttachment is a Drive file linked to an event.
type DriveAttachment struct {
	FileID   string
	Title    string
	MimeType string
}

// ListEvents pages through a calendar's events for [timeMin, timeMax), handing
// each page to onPage. Same budget/cap contract as ListMessageHeaders.
func (s *Service) ListEvents(ctx context.Context, srv *calendar.Service, calendarID string, timeMin, timeMax time.Time, pageSize int64, maxItems int, budget *Budget, onPage func([]EventItem) error) (int, bool, error) {
	if pageSize <= 0 || pageSize > 2500 {
		pageSize = 250
	}

	pageToken := ""
	fetched := 0

	for {
		if err := s.wait(ctx); err != nil {
			return fetched, false, err
		}

		call := srv.Events.List(calendarID).
			TimeMin(timeMin.UTC().Format(time.RFC3339)).
			TimeMax(timeMax.UTC().Format(time.RFC3339)).
			SingleEvents(true).
			OrderBy("startTime").
			MaxResults(pageSize)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Context(ctx).Do()
		if err != nil {
			return fetched, false, wrapProviderError("calendar.events.list", err)
		}

		page := make([]EventItem, 0, len(resp.Items))
		for _, evt := range resp.Items {
			if maxItems > 0 && fetched+len(page) >= maxItems {
				break
			}
			page = append(page, convertEvent(evt))
		}

		if len(page) > 0 {
			if err := onPage(page); err != nil {
				return fetched, false, err
			}
			fetched += len(page)
		}

		if maxItems > 0 && fetched >= maxItems {
			return fetched, false, nil
		}
		pageToken = resp.NextPageToken
		if pageToken == "" {
			return fetched, true, nil
		}
		if budget.Exceeded() {
			return fetched, false, nil
		}
	}
}

// FetchEvent retrieves one event in full, for the backfill stage.
func (s *Service) FetchEvent(ctx context.Context, srv *calendar.Service, calendarID, eventID string) (*EventItem, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	evt, err := srv.Events.Get(calendarID, eventID).Context(ctx).Do()
	if err != nil {
		return nil, wrapProviderError("calendar.events.get", err)
	}
	item := convertEvent(evt)
	return &item, nil
}

// DriveFileMeta describes a downloaded Drive file.
type DriveFileMeta struct {
	Name     string
	MimeType string
	Size     int64
}

// FetchDriveFile downloads a Drive file's bytes plus metadata.
func (s *Service) FetchDriveFile(ctx context.Context, srv *drive.Service, fileID string) (*DriveFileMeta, []byte, error) {
	if err := s.wait(ctx); err != nil {
		return nil, nil, err
	}
	meta, err := srv.Files.Get(fileID).Fields("name", "mimeType", "size").Context(ctx).Do()
	if err != nil {
		return nil, nil, wrapProviderError("drive.files.get", err)
	}

	if err := s.wait(ctx); err != nil {
		return nil, nil, err
	}
	resp, err := srv.Files.Get(fileID).Context(ctx).Download()
	if err != nil {
		return nil, nil, wrapProviderError("drive.files.download", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to read Drive file %s: %w", fileID, err)
	}

	return &DriveFileMeta{
		Name:     meta.Name,
		MimeType: meta.MimeType,
		Size:     meta.Size,
	}, data, nil
}

func convertEvent(evt *calendar.Event) EventItem {
	item := EventItem{
		ProviderID:  evt.Id,
		Summary:     evt.Summary,
		Description: evt.Description,
		Location:    evt.Location,
		Status:      evt.Status,
	}
	if evt.Organizer != nil {
		item.Organizer = normalizeAddress(evt.Organizer.Email)
	}
	for _, a := range evt.Attendees {
		if a.Email != "" {
			item.Attendees = append(item.Attendees, normalizeAddress(a.Email))
		}
	}
	item.Start = parseEventTime(evt.Start)
	item.End = parseEventTime(evt.End)
	for _, att := range evt.Attachments {
		if att.FileId == "" {
			continue
		}
		item.Attachments = append(item.Attachments, DriveAttachment{
			FileID:   att.FileId,
			Title:    att.Title,
			MimeType: att.MimeType,
		})
	}
	return item
}

func parseEventTime(t *calendar.EventDateTime) time.Time {
	if t == nil {
		return time.Time{}
	}
	if t.DateTime != "" {
		if parsed, err := time.Parse(time.RFC3339, t.DateTime); err == nil {
			return parsed.UTC()
		}
	}
	if t.Date != "" {
		// All-day events carry a bare date.
		if parsed, err := time.Parse("2006-01-02", t.Date); err == nil {
			return parsed.UTC()
		}
	}
	return time.Time{}
}
