package google

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	googleauth "golang.org/x/oauth2/google"
	"golang.org/x/time/rate"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// TokenUpdateFunc is called whenever the underlying token source refreshed the
// access token, so the caller can persist the new pair.
type TokenUpdateFunc func(token *oauth2.Token) error

// Scopes requested at consent time. Read-only everywhere except gmail.send,
// which backs the compose pass-through action.
var Scopes = []string{
	gmail.GmailReadonlyScope,
	gmail.GmailSendScope,
	calendar.CalendarReadonlyScope,
	drive.DriveReadonlyScope,
	"https://www.googleapis.com/auth/userinfo.email",
}

// Service builds authenticated Google API clients and paces every outbound
// call through a shared rate limiter so sequential syncs stay inside the
// provider's burst limits.
type Service struct {
	clientID     string
	clientSecret string
	redirectURI  string
	limiter      *rate.Limiter
}

func NewService(clientID, clientSecret, redirectURI string, callInterval time.Duration) *Service {
	if callInterval <= 0 {
		callInterval = 100 * time.Millisecond
	}
	return &Service{
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURI:  redirectURI,
		limiter:      rate.NewLimiter(rate.Every(callInterval), 1),
	}
}

func (s *Service) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     s.clientID,
		ClientSecret: s.clientSecret,
		RedirectURL:  s.redirectURI,
		Endpoint:     googleauth.Endpoint,
		Scopes:       Scopes,
	}
}

// AuthURL returns the consent URL for the redirect-based flow. Offline access
// plus forced consent guarantees a refresh token on the exchange.
func (s *Service) AuthURL(state string) string {
	return s.oauthConfig().AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"))
}

// ExchangeCode trades an authorization code for an access+refresh token pair.
func (s *Service) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := s.oauthConfig().Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("unable to exchange authorization code: %w", err)
	}
	return token, nil
}

// RefreshToken forces a refresh of an expired access token.
func (s *Service) RefreshToken(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	src := s.oauthConfig().TokenSource(ctx, &oauth2.Token{
		RefreshToken: refreshToken,
		Expiry:       time.Now().Add(-time.Minute),
	})
	token, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("unable to refresh access token: %w", err)
	}
	return token, nil
}

// wait blocks until the limiter admits the next provider call.
func (s *Service) wait(ctx context.Context) error {
	return s.limiter.Wait(ctx)
}

// notifyTokenSource wraps an oauth2.TokenSource and reports refreshed tokens
// back through the callback so the stored account row stays current.
type notifyTokenSource struct {
	src      oauth2.TokenSource
	current  *oauth2.Token
	callback TokenUpdateFunc
}

func (n *notifyTokenSource) Token() (*oauth2.Token, error) {
	t, err := n.src.Token()
	if err != nil {
		return nil, err
	}
	if n.callback != nil && n.current.AccessToken != t.AccessToken {
		n.current = t
		if err := n.callback(t); err != nil {
			log.Printf("[Google] Failed to persist refreshed token: %v", err)
		}
	}
	return t, nil
}

func (s *Service) httpClient(ctx context.Context, accessToken, refreshToken string, expiry time.Time, onRefresh TokenUpdateFunc) *http.Client {
	token := &oauth2.Token{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		Expiry:       expiry,
	}
	wrapped := &notifyTokenSource{
		src:      s.oauthConfig().TokenSource(ctx, token),
		current:  token,
		callback: onRefresh,
	}
	return oauth2.NewClient(ctx, wrapped)
}

// Gmail creates a Gmail client for the user's tokens.
func (s *Service) Gmail(ctx context.Context, accessToken, refreshToken string, expiry time.Time, onRefresh TokenUpdateFunc) (*gmail.Service, error) {
	client := s.httpClient(ctx, accessToken, refreshToken, expiry, onRefresh)
	srv, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %w", err)
	}
	return srv, nil
}

// Calendar creates a Calendar client for the user's tokens.
func (s *Service) Calendar(ctx context.Context, accessToken, refreshToken string, expiry time.Time, onRefresh TokenUpdateFunc) (*calendar.Service, error) {
	client := s.httpClient(ctx, accessToken, refreshToken, expiry, onRefresh)
	srv, err := calendar.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Calendar service: %w", err)
	}
	return srv, nil
}

// Drive creates a Drive client for the user's tokens.
func (s *Service) Drive(ctx context.Context, accessToken, refreshToken string, expiry time.Time, onRefresh TokenUpdateFunc) (*drive.Service, error) {
	client := s.httpClient(ctx, accessToken, refreshToken, expiry, onRefresh)
	srv, err := drive.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Drive service: %w", err)
	}
	return srv, nil
}

// Profile returns the Gmail address for the connected account. Doubles as a
// token validity probe.
func (s *Service) Profile(ctx context.Context, srv *gmail.Service) (string, error) {
	if err := s.wait(ctx); err != nil {
		return "", err
	}
	profile, err := srv.Users.GetProfile("me").Do()
	if err != nil {
		return "", fmt.Errorf("unable to fetch Gmail profile: %w", err)
	}
	return profile.EmailAddress, nil
}
