package usecase

import (
	"context"
	"time"

	accountdomain "edcrm-backend/internal/account/domain"
	"edcrm-backend/pkg/google"

	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
)

// OAuthProvider is the slice of the Google service the account usecase needs.
// Narrow on purpose so token-path tests can fake the provider.
type OAuthProvider interface {
	AuthURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error)
	RefreshToken(ctx context.Context, refreshToken string) (*oauth2.Token, error)
	Gmail(ctx context.Context, accessToken, refreshToken string, expiry time.Time, onRefresh google.TokenUpdateFunc) (*gmail.Service, error)
	Profile(ctx context.Context, srv *gmail.Service) (string, error)
}

// ConnectionStatus is what the UI needs to render the "connect Google" card.
type ConnectionStatus struct {
	Connected   bool   `json:"connected"`
	GoogleEmail string `json:"google_email,omitempty"`
}

// AccountUsecase owns OAuth connection state and token validity for connected
// users. All sync stages obtain credentials through it; none read the token
// table directly.
type AccountUsecase interface {
	// AuthURL returns the provider consent URL for the redirect-based flow.
	AuthURL(state string) string
	// ExchangeCode trades an authorization code for tokens and persists the
	// account plus its sync settings.
	ExchangeCode(ctx context.Context, userID, code string, syncStartDate time.Time) error
	ConnectionStatus(ctx context.Context, userID string) (*ConnectionStatus, error)
	Disconnect(userID string) error

	// GetValidAccessToken returns a currently valid access token or "" when
	// none can be produced. Never errors; callers needing the reason use
	// GetValidAccessTokenOrFail.
	GetValidAccessToken(ctx context.Context, userID string) string
	// GetValidAccessTokenOrFail returns a valid token or an ErrAuth-wrapped
	// error; failure means the user must reconnect.
	GetValidAccessTokenOrFail(ctx context.Context, userID string) (string, error)
	// ValidAccount returns the account with a guaranteed-fresh access token,
	// for stages that also need the refresh token and expiry.
	ValidAccount(ctx context.Context, userID string) (*accountdomain.SyncAccount, error)
	// TokenUpdateCallback persists tokens refreshed inside a provider client.
	TokenUpdateCallback(userID string) google.TokenUpdateFunc

	Settings(userID string) (*accountdomain.SyncSettings, error)
	// ValidateJWT resolves a bearer token to a user id.
	ValidateJWT(token string) (string, error)
}
