package repository

import (
	"time"

	accountdomain "edcrm-backend/internal/account/domain"
)

// AccountRepository persists per-user Google credentials and settings.
type AccountRepository interface {
	FindByUserID(userID string) (*accountdomain.SyncAccount, error)
	FindConnected() ([]*accountdomain.SyncAccount, error)
	Save(account *accountdomain.SyncAccount) error
	// UpdateTokens persists a refreshed token pair. Last write wins; token
	// refresh is idempotent at the provider so concurrent refreshes converge.
	UpdateTokens(userID, accessToken, refreshToken string, expiry time.Time) error
	MarkDisconnected(userID string) error
}

// SettingsRepository persists the configured start-of-history date.
type SettingsRepository interface {
	FindByUserID(userID string) (*accountdomain.SyncSettings, error)
	Save(settings *accountdomain.SyncSettings) error
}
