package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	accountdomain "edcrm-backend/internal/account/domain"
	"edcrm-backend/internal/account/repository"
	syncdomain "edcrm-backend/internal/sync/domain"
	"edcrm-backend/pkg/config"
	"edcrm-backend/pkg/google"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeProvider struct {
	refreshed    *oauth2.Token
	refreshErr   error
	refreshCalls int
}

func (f *fakeProvider) AuthURL(state string) string { return "https://accounts.example/auth?state=" + state }

func (f *fakeProvider) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	return &oauth2.Token{
		AccessToken:  "access-" + code,
		RefreshToken: "refresh-" + code,
		Expiry:       time.Now().Add(time.Hour),
	}, nil
}

func (f *fakeProvider) RefreshToken(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	f.refreshCalls++
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return f.refreshed, nil
}

func (f *fakeProvider) Gmail(ctx context.Context, accessToken, refreshToken string, expiry time.Time, onRefresh google.TokenUpdateFunc) (*gmail.Service, error) {
	return nil, errors.New("no gmail in tests")
}

func (f *fakeProvider) Profile(ctx context.Context, srv *gmail.Service) (string, error) {
	return "", errors.New("no profile in tests")
}

func newAccountTest(t *testing.T, provider *fakeProvider) (AccountUsecase, repository.AccountRepository) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&accountdomain.SyncAccount{}, &accountdomain.SyncSettings{}))

	accountRepo := repository.NewAccountRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	uc := NewAccountUsecase(accountRepo, settingsRepo, provider, &config.Config{JWTSecret: "test-secret"})
	return uc, accountRepo
}

func TestGetValidAccessTokenFresh(t *testing.T) {
	provider := &fakeProvider{}
	uc, repo := newAccountTest(t, provider)

	require.NoError(t, repo.Save(&accountdomain.SyncAccount{
		UserID:      "u1",
		AccessToken: "still-good",
		TokenExpiry: time.Now().Add(time.Hour),
		Connected:   true,
	}))

	token, err := uc.GetValidAccessTokenOrFail(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "still-good", token)
	assert.Zero(t, provider.refreshCalls, "fresh token must not trigger a refresh")
}

func TestTokenRefreshTransparent(t *testing.T) {
	newExpiry := time.Now().Add(time.Hour)
	provider := &fakeProvider{
		refreshed: &oauth2.Token{AccessToken: "fresh", Expiry: newExpiry},
	}
	uc, repo := newAccountTest(t, provider)

	require.NoError(t, repo.Save(&accountdomain.SyncAccount{
		UserID:       "u1",
		AccessToken:  "expired",
		RefreshToken: "refresh-1",
		TokenExpiry:  time.Now().Add(-time.Minute),
		Connected:    true,
	}))

	token, err := uc.GetValidAccessTokenOrFail(context.Background(), "u1")
	require.NoError(t, err, "expired access token with valid refresh token must succeed transparently")
	assert.Equal(t, "fresh", token)
	assert.Equal(t, 1, provider.refreshCalls)

	// The refreshed expiry was persisted.
	stored, err := repo.FindByUserID("u1")
	require.NoError(t, err)
	assert.Equal(t, "fresh", stored.AccessToken)
	assert.WithinDuration(t, newExpiry, stored.TokenExpiry, time.Second)
	// Refresh response omitted the refresh token; the stored one survives.
	assert.Equal(t, "refresh-1", stored.RefreshToken)
}

func TestExpiryMarginTriggersEarlyRefresh(t *testing.T) {
	provider := &fakeProvider{
		refreshed: &oauth2.Token{AccessToken: "fresh", Expiry: time.Now().Add(time.Hour)},
	}
	uc, repo := newAccountTest(t, provider)

	// Token technically still valid, but inside the safety margin.
	require.NoError(t, repo.Save(&accountdomain.SyncAccount{
		UserID:       "u1",
		AccessToken:  "nearly-expired",
		RefreshToken: "refresh-1",
		TokenExpiry:  time.Now().Add(10 * time.Second),
		Connected:    true,
	}))

	token, err := uc.GetValidAccessTokenOrFail(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "fresh", token)
}

func TestTokenFailsClosed(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown user", func(t *testing.T) {
		uc, _ := newAccountTest(t, &fakeProvider{})
		_, err := uc.GetValidAccessTokenOrFail(ctx, "ghost")
		assert.ErrorIs(t, err, syncdomain.ErrAuth)
		assert.Empty(t, uc.GetValidAccessToken(ctx, "ghost"))
	})

	t.Run("expired with no refresh token", func(t *testing.T) {
		uc, repo := newAccountTest(t, &fakeProvider{})
		require.NoError(t, repo.Save(&accountdomain.SyncAccount{
			UserID:      "u1",
			AccessToken: "expired",
			TokenExpiry: time.Now().Add(-time.Hour),
			Connected:   true,
		}))
		_, err := uc.GetValidAccessTokenOrFail(ctx, "u1")
		assert.ErrorIs(t, err, syncdomain.ErrAuth)
	})

	t.Run("refresh rejected by provider", func(t *testing.T) {
		uc, repo := newAccountTest(t, &fakeProvider{refreshErr: errors.New("invalid_grant")})
		require.NoError(t, repo.Save(&accountdomain.SyncAccount{
			UserID:       "u1",
			AccessToken:  "expired",
			RefreshToken: "revoked",
			TokenExpiry:  time.Now().Add(-time.Hour),
			Connected:    true,
		}))
		_, err := uc.GetValidAccessTokenOrFail(ctx, "u1")
		assert.ErrorIs(t, err, syncdomain.ErrAuth)
	})

	t.Run("disconnected account", func(t *testing.T) {
		uc, repo := newAccountTest(t, &fakeProvider{})
		require.NoError(t, repo.Save(&accountdomain.SyncAccount{
			UserID:      "u1",
			AccessToken: "fine",
			TokenExpiry: time.Now().Add(time.Hour),
			Connected:   true,
		}))
		require.NoError(t, uc.Disconnect("u1"))
		_, err := uc.GetValidAccessTokenOrFail(ctx, "u1")
		assert.ErrorIs(t, err, syncdomain.ErrAuth)
	})
}

func TestDisconnectKeepsRow(t *testing.T) {
	uc, repo := newAccountTest(t, &fakeProvider{})
	require.NoError(t, repo.Save(&accountdomain.SyncAccount{
		UserID:      "u1",
		GoogleEmail: "user@example.org",
		AccessToken: "t",
		TokenExpiry: time.Now().Add(time.Hour),
		Connected:   true,
	}))

	require.NoError(t, uc.Disconnect("u1"))

	stored, err := repo.FindByUserID("u1")
	require.NoError(t, err)
	require.NotNil(t, stored, "disconnect marks state, never purges")
	assert.False(t, stored.Connected)
	assert.Equal(t, "user@example.org", stored.GoogleEmail)
}
