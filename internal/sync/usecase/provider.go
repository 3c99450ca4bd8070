package usecase

import (
	"context"
	"time"

	accountdomain "edcrm-backend/internal/account/domain"
	"edcrm-backend/pkg/google"
)

// googleProvider adapts *google.Service to the Provider interface, building a
// per-call API client from the account's tokens. Client construction is a
// local operation; the tokens themselves were validated by the account
// usecase just before each call.
type googleProvider struct {
	svc *google.Service
}

// NewGoogleProvider wraps the shared Google service for the sync stages.
func NewGoogleProvider(svc *google.Service) Provider {
	return &googleProvider{svc: svc}
}

func (p *googleProvider) MailHeaders(ctx context.Context, account *accountdomain.SyncAccount, onRefresh google.TokenUpdateFunc, since, until time.Time, pageSize int64, maxItems int, budget *google.Budget, onPage func([]google.MessageHeader) error) (int, bool, error) {
	srv, err := p.svc.Gmail(ctx, account.AccessToken, account.RefreshToken, account.TokenExpiry, onRefresh)
	if err != nil {
		return 0, false, err
	}
	return p.svc.ListMessageHeaders(ctx, srv, google.MailQuery(since, until), pageSize, maxItems, budget, onPage)
}

func (p *googleProvider) MailContent(ctx context.Context, account *accountdomain.SyncAccount, onRefresh google.TokenUpdateFunc, providerMessageID string) (*google.MessageContent, error) {
	srv, err := p.svc.Gmail(ctx, account.AccessToken, account.RefreshToken, account.TokenExpiry, onRefresh)
	if err != nil {
		return nil, err
	}
	return p.svc.FetchMessageContent(ctx, srv, providerMessageID)
}

func (p *googleProvider) MailAttachment(ctx context.Context, account *accountdomain.SyncAccount, onRefresh google.TokenUpdateFunc, providerMessageID, attachmentID string) ([]byte, error) {
	srv, err := p.svc.Gmail(ctx, account.AccessToken, account.RefreshToken, account.TokenExpiry, onRefresh)
	if err != nil {
		return nil, err
	}
	return p.svc.FetchAttachment(ctx, srv, providerMessageID, attachmentID)
}

func (p *googleProvider) SendMail(ctx context.Context, account *accountdomain.SyncAccount, onRefresh google.TokenUpdateFunc, fromName, to, cc, bcc, subject, body string, attachments []google.SendAttachment) error {
	srv, err := p.svc.Gmail(ctx, account.AccessToken, account.RefreshToken, account.TokenExpiry, onRefresh)
	if err != nil {
		return err
	}
	return p.svc.SendEmail(ctx, srv, fromName, account.GoogleEmail, to, cc, bcc, subject, body, attachments)
}

func (p *googleProvider) Events(ctx context.Context, account *accountdomain.SyncAccount, onRefresh google.TokenUpdateFunc, calendarID string, since, until time.Time, pageSize int64, maxItems int, budget *google.Budget, onPage func([]google.EventItem) error) (int, bool, error) {
	srv, err := p.svc.Calendar(ctx, account.AccessToken, account.RefreshToken, account.TokenExpiry, onRefresh)
	if err != nil {
		return 0, false, err
	}
	return p.svc.ListEvents(ctx, srv, calendarID, since, until, pageSize, maxItems, budget, onPage)
}

func (p *googleProvider) Event(ctx context.Context, account *accountdomain.SyncAccount, onRefresh google.TokenUpdateFunc, calendarID, providerEventID string) (*google.EventItem, error) {
	srv, err := p.svc.Calendar(ctx, account.AccessToken, account.RefreshToken, account.TokenExpiry, onRefresh)
	if err != nil {
		return nil, err
	}
	return p.svc.FetchEvent(ctx, srv, calendarID, providerEventID)
}

func (p *googleProvider) DriveFile(ctx context.Context, account *accountdomain.SyncAccount, onRefresh google.TokenUpdateFunc, fileID string) (*google.DriveFileMeta, []byte, error) {
	srv, err := p.svc.Drive(ctx, account.AccessToken, account.RefreshToken, account.TokenExpiry, onRefresh)
	if err != nil {
		return nil, nil, err
	}
	return p.svc.FetchDriveFile(ctx, srv, fileID)
}
