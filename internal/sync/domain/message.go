package domain

import "time"

// MessageRecord is one ingested Gmail message. Header ingestion creates the
// row with Subject/BodyText/BodyHTML left nil; the backfill stage fills them
// in later. MatchedEducatorIDs is owned by the matching stage and may be
// populated before or after backfill runs.
type MessageRecord struct {
	ID                string    `json:"id" gorm:"primaryKey"`
	UserID            string    `json:"user_id" gorm:"uniqueIndex:idx_messages_user_provider;not null"`
	ProviderMessageID string    `json:"provider_message_id" gorm:"uniqueIndex:idx_messages_user_provider;not null"`
	ThreadID          string    `json:"thread_id"`
	FromAddress       string    `json:"from_address" gorm:"index"`
	ToAddresses       []string  `json:"to_addresses" gorm:"serializer:json"`
	CcAddresses       []string  `json:"cc_addresses" gorm:"serializer:json"`
	BccAddresses      []string  `json:"bcc_addresses" gorm:"serializer:json"`
	Subject           *string   `json:"subject"`
	BodyText          *string   `json:"body_text"`
	BodyHTML          *string   `json:"body_html"`
	SentAt            time.Time `json:"sent_at" gorm:"index"`

	MatchedEducatorIDs []string `json:"matched_educator_ids" gorm:"serializer:json"`
	// MatchCount mirrors len(MatchedEducatorIDs) so backfill candidates can be
	// selected with a plain indexed predicate.
	MatchCount int `json:"match_count" gorm:"index"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (MessageRecord) TableName() string {
	return "messages"
}

// Backfilled reports whether the full body pass has run for this record.
func (m *MessageRecord) Backfilled() bool {
	return m.Subject != nil
}

// AllAddresses returns every address field the matcher should consider.
func (m *MessageRecord) AllAddresses() []string {
	out := make([]string, 0, 1+len(m.ToAddresses)+len(m.CcAddresses)+len(m.BccAddresses))
	if m.FromAddress != "" {
		out = append(out, m.FromAddress)
	}
	out = append(out, m.ToAddresses...)
	out = append(out, m.CcAddresses...)
	out = append(out, m.BccAddresses...)
	return out
}
