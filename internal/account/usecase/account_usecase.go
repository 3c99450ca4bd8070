package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	accountdomain "edcrm-backend/internal/account/domain"
	"edcrm-backend/internal/account/repository"
	syncdomain "edcrm-backend/internal/sync/domain"
	"edcrm-backend/pkg/config"
	"edcrm-backend/pkg/google"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// Refresh this far before actual expiry so an in-flight request never races
// the expiry instant.
const tokenExpiryMargin = 60 * time.Second

// accountUsecase implements AccountUsecase
type accountUsecase struct {
	accountRepo  repository.AccountRepository
	settingsRepo repository.SettingsRepository
	google       OAuthProvider
	config       *config.Config
}

func NewAccountUsecase(accountRepo repository.AccountRepository, settingsRepo repository.SettingsRepository, googleService OAuthProvider, cfg *config.Config) AccountUsecase {
	return &accountUsecase{
		accountRepo:  accountRepo,
		settingsRepo: settingsRepo,
		google:       googleService,
		config:       cfg,
	}
}

func (u *accountUsecase) AuthURL(state string) string {
	return u.google.AuthURL(state)
}

func (u *accountUsecase) ExchangeCode(ctx context.Context, userID, code string, syncStartDate time.Time) error {
	token, err := u.google.ExchangeCode(ctx, code)
	if err != nil {
		return err
	}

	account := &accountdomain.SyncAccount{
		UserID:       userID,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenExpiry:  token.Expiry,
		Connected:    true,
	}

	// Capture the Google address for the connection card; failure here is not
	// fatal to the exchange.
	if srv, gerr := u.google.Gmail(ctx, token.AccessToken, token.RefreshToken, token.Expiry, nil); gerr == nil {
		if email, perr := u.google.Profile(ctx, srv); perr == nil {
			account.GoogleEmail = email
		} else {
			log.Printf("[Account] Could not resolve Google email for user %s: %v", userID, perr)
		}
	}

	if err := u.accountRepo.Save(account); err != nil {
		return &syncdomain.PersistenceError{Op: "save sync account", Err: err}
	}

	if syncStartDate.IsZero() {
		// Default history window: one year back.
		syncStartDate = time.Now().AddDate(-1, 0, 0)
	}
	if err := u.settingsRepo.Save(&accountdomain.SyncSettings{
		UserID:        userID,
		SyncStartDate: syncStartDate,
	}); err != nil {
		return &syncdomain.PersistenceError{Op: "save sync settings", Err: err}
	}
	return nil
}

func (u *accountUsecase) ConnectionStatus(ctx context.Context, userID string) (*ConnectionStatus, error) {
	account, err := u.accountRepo.FindByUserID(userID)
	if err != nil {
		return nil, err
	}
	if account == nil || !account.Connected {
		return &ConnectionStatus{Connected: false}, nil
	}
	// Connected means "a usable token exists", so probe refreshability too.
	if _, err := u.ValidAccount(ctx, userID); err != nil {
		return &ConnectionStatus{Connected: false, GoogleEmail: account.GoogleEmail}, nil
	}
	return &ConnectionStatus{Connected: true, GoogleEmail: account.GoogleEmail}, nil
}

func (u *accountUsecase) Disconnect(userID string) error {
	// History and ingested records survive disconnection.
	return u.accountRepo.MarkDisconnected(userID)
}

func (u *accountUsecase) GetValidAccessToken(ctx context.Context, userID string) string {
	token, err := u.GetValidAccessTokenOrFail(ctx, userID)
	if err != nil {
		return ""
	}
	return token
}

func (u *accountUsecase) GetValidAccessTokenOrFail(ctx context.Context, userID string) (string, error) {
	account, err := u.ValidAccount(ctx, userID)
	if err != nil {
		return "", err
	}
	return account.AccessToken, nil
}

func (u *accountUsecase) ValidAccount(ctx context.Context, userID string) (*accountdomain.SyncAccount, error) {
	account, err := u.accountRepo.FindByUserID(userID)
	if err != nil {
		return nil, &syncdomain.PersistenceError{Op: "load sync account", Err: err}
	}
	if account == nil || !account.Connected || account.AccessToken == "" {
		return nil, fmt.Errorf("user %s: %w", userID, syncdomain.ErrAuth)
	}

	if time.Until(account.TokenExpiry) > tokenExpiryMargin {
		return account, nil
	}

	if account.RefreshToken == "" {
		return nil, fmt.Errorf("user %s: token expired with no refresh token: %w", userID, syncdomain.ErrAuth)
	}

	refreshed, err := u.google.RefreshToken(ctx, account.RefreshToken)
	if err != nil {
		// Fail closed: callers must treat this as "user must reconnect".
		return nil, fmt.Errorf("user %s: refresh failed (%v): %w", userID, err, syncdomain.ErrAuth)
	}

	if err := u.accountRepo.UpdateTokens(userID, refreshed.AccessToken, refreshed.RefreshToken, refreshed.Expiry); err != nil {
		return nil, &syncdomain.PersistenceError{Op: "persist refreshed token", Err: err}
	}

	account.AccessToken = refreshed.AccessToken
	if refreshed.RefreshToken != "" {
		account.RefreshToken = refreshed.RefreshToken
	}
	account.TokenExpiry = refreshed.Expiry
	return account, nil
}

func (u *accountUsecase) TokenUpdateCallback(userID string) google.TokenUpdateFunc {
	return func(token *oauth2.Token) error {
		return u.accountRepo.UpdateTokens(userID, token.AccessToken, token.RefreshToken, token.Expiry)
	}
}

func (u *accountUsecase) Settings(userID string) (*accountdomain.SyncSettings, error) {
	return u.settingsRepo.FindByUserID(userID)
}

func (u *accountUsecase) ValidateJWT(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(u.config.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return "", errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid token claims")
	}
	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return "", errors.New("invalid token claims")
	}
	return userID, nil
}
