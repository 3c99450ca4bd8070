package domain

import "time"

// SyncAccount holds the Google OAuth credentials for one connected user.
// Created on code exchange, mutated by token refresh, never hard-deleted:
// disconnecting clears Connected but keeps the row so sync history survives.
type SyncAccount struct {
	UserID       string    `json:"user_id" gorm:"primaryKey"`
	GoogleEmail  string    `json:"google_email"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	TokenExpiry  time.Time `json:"token_expiry"`
	Connected    bool      `json:"connected" gorm:"index"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (SyncAccount) TableName() string {
	return "sync_accounts"
}

// SyncSettings is per-user sync configuration, set once at connection time.
type SyncSettings struct {
	UserID        string    `json:"user_id" gorm:"primaryKey"`
	SyncStartDate time.Time `json:"sync_start_date"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (SyncSettings) TableName() string {
	return "sync_settings"
}
