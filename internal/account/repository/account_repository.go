package repository

import (
	"errors"
	"time"

	accountdomain "edcrm-backend/internal/account/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// accountRepository implements AccountRepository
type accountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{
		db: db,
	}
}

func (r *accountRepository) FindByUserID(userID string) (*accountdomain.SyncAccount, error) {
	var account accountdomain.SyncAccount
	err := r.db.Where("user_id = ?", userID).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

func (r *accountRepository) FindConnected() ([]*accountdomain.SyncAccount, error) {
	var accounts []*accountdomain.SyncAccount
	err := r.db.Where("connected = ?", true).Order("user_id").Find(&accounts).Error
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

func (r *accountRepository) Save(account *accountdomain.SyncAccount) error {
	now := time.Now()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"google_email", "access_token", "refresh_token", "token_expiry", "connected", "updated_at",
		}),
	}).Create(account).Error
}

func (r *accountRepository) UpdateTokens(userID, accessToken, refreshToken string, expiry time.Time) error {
	updates := map[string]interface{}{
		"access_token": accessToken,
		"token_expiry": expiry,
		"updated_at":   time.Now(),
	}
	// Google only returns a refresh token on first consent; keep the stored
	// one when the refresh response omits it.
	if refreshToken != "" {
		updates["refresh_token"] = refreshToken
	}
	return r.db.Model(&accountdomain.SyncAccount{}).
		Where("user_id = ?", userID).
		Updates(updates).Error
}

func (r *accountRepository) MarkDisconnected(userID string) error {
	return r.db.Model(&accountdomain.SyncAccount{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"connected":  false,
			"updated_at": time.Now(),
		}).Error
}

// settingsRepository implements SettingsRepository
type settingsRepository struct {
	db *gorm.DB
}

func NewSettingsRepository(db *gorm.DB) SettingsRepository {
	return &settingsRepository{
		db: db,
	}
}

func (r *settingsRepository) FindByUserID(userID string) (*accountdomain.SyncSettings, error) {
	var settings accountdomain.SyncSettings
	err := r.db.Where("user_id = ?", userID).First(&settings).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &settings, nil
}

func (r *settingsRepository) Save(settings *accountdomain.SyncSettings) error {
	now := time.Now()
	if settings.CreatedAt.IsZero() {
		settings.CreatedAt = now
	}
	settings.UpdatedAt = now
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"sync_start_date", "updated_at"}),
	}).Create(settings).Error
}
