package domain

import "time"

// MessageAttachment records metadata for one downloaded mail attachment. The
// bytes live in blob storage under StorageKey; the relational row never holds
// payload data. Written only by backfill; re-runs overwrite via upsert.
type MessageAttachment struct {
	ID                   string    `json:"id" gorm:"primaryKey"`
	UserID               string    `json:"user_id" gorm:"uniqueIndex:idx_msg_att_user_parent_att;not null"`
	ProviderMessageID    string    `json:"provider_message_id" gorm:"uniqueIndex:idx_msg_att_user_parent_att;not null"`
	ProviderAttachmentID string    `json:"provider_attachment_id" gorm:"uniqueIndex:idx_msg_att_user_parent_att;not null"`
	Filename             string    `json:"filename"`
	MimeType             string    `json:"mime_type"`
	Size                 int64     `json:"size"`
	StorageKey           string    `json:"storage_key"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

func (MessageAttachment) TableName() string {
	return "message_attachments"
}

// EventAttachment records metadata for one Drive file linked to a calendar
// event, mirrored into blob storage by backfill.
type EventAttachment struct {
	ID              string    `json:"id" gorm:"primaryKey"`
	UserID          string    `json:"user_id" gorm:"uniqueIndex:idx_evt_att_user_parent_file;not null"`
	ProviderEventID string    `json:"provider_event_id" gorm:"uniqueIndex:idx_evt_att_user_parent_file;not null"`
	DriveFileID     string    `json:"drive_file_id" gorm:"uniqueIndex:idx_evt_att_user_parent_file;not null"`
	Filename        string    `json:"filename"`
	MimeType        string    `json:"mime_type"`
	Size            int64     `json:"size"`
	StorageKey      string    `json:"storage_key"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (EventAttachment) TableName() string {
	return "event_attachments"
}
