package domain

import "time"

// EventRecord is one ingested Calendar event. Description stays nil until the
// backfill stage fetches the full event; everything else arrives with the
// listing pass.
type EventRecord struct {
	ID              string    `json:"id" gorm:"primaryKey"`
	UserID          string    `json:"user_id" gorm:"uniqueIndex:idx_events_user_cal_provider;not null"`
	CalendarID      string    `json:"calendar_id" gorm:"uniqueIndex:idx_events_user_cal_provider;not null"`
	ProviderEventID string    `json:"provider_event_id" gorm:"uniqueIndex:idx_events_user_cal_provider;not null"`
	Summary         string    `json:"summary"`
	Description     *string   `json:"description"`
	StartsAt        time.Time `json:"starts_at" gorm:"index"`
	EndsAt          time.Time `json:"ends_at"`
	Organizer       string    `json:"organizer" gorm:"index"`
	Attendees       []string  `json:"attendees" gorm:"serializer:json"`
	Location        string    `json:"location"`
	Status          string    `json:"status"`

	MatchedEducatorIDs []string `json:"matched_educator_ids" gorm:"serializer:json"`
	MatchCount         int      `json:"match_count" gorm:"index"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (EventRecord) TableName() string {
	return "events"
}

func (e *EventRecord) Backfilled() bool {
	return e.Description != nil
}

// AllAddresses returns organizer plus attendees for the matcher.
func (e *EventRecord) AllAddresses() []string {
	out := make([]string, 0, 1+len(e.Attendees))
	if e.Organizer != "" {
		out = append(out, e.Organizer)
	}
	out = append(out, e.Attendees...)
	return out
}
