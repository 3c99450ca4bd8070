package delivery

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	accountdelivery "edcrm-backend/internal/account/delivery"
	accountusecase "edcrm-backend/internal/account/usecase"
	syncdomain "edcrm-backend/internal/sync/domain"
	syncusecase "edcrm-backend/internal/sync/usecase"
	"edcrm-backend/pkg/config"
	"edcrm-backend/pkg/google"

	"github.com/gin-gonic/gin"
)

// SyncHandler serves the action-dispatch sync endpoints. Both endpoints take
// a JSON body whose "action" field selects the operation; the remaining
// fields depend on the action.
type SyncHandler struct {
	accounts accountusecase.AccountUsecase
	ingest   syncusecase.IngestUsecase
	backfill syncusecase.BackfillUsecase
	matching syncusecase.MatchingUsecase
	provider syncusecase.Provider
	config   *config.Config
}

func NewSyncHandler(
	accounts accountusecase.AccountUsecase,
	ingest syncusecase.IngestUsecase,
	backfill syncusecase.BackfillUsecase,
	matching syncusecase.MatchingUsecase,
	provider syncusecase.Provider,
	cfg *config.Config,
) *SyncHandler {
	return &SyncHandler{
		accounts: accounts,
		ingest:   ingest,
		backfill: backfill,
		matching: matching,
		provider: provider,
		config:   cfg,
	}
}

type sendEmailRequest struct {
	To          string            `json:"to"`
	Cc          string            `json:"cc"`
	Bcc         string            `json:"bcc"`
	Subject     string            `json:"subject"`
	Body        string            `json:"body"`
	Attachments []emailAttachment `json:"attachments"`
}

type emailAttachment struct {
	Filename string `json:"filename"`
	MimeType string `json:"mime_type"`
	Content  string `json:"content"` // base64
}

type syncActionRequest struct {
	Action string `json:"action" binding:"required"`

	// exchange_code
	Code          string `json:"code"`
	SyncStartDate string `json:"sync_start_date"` // YYYY-MM-DD

	// fetch_headers_range
	From     string `json:"from"` // RFC3339 or YYYY-MM-DD
	To       string `json:"to"`
	MaxItems int    `json:"max_items"`

	// backfill
	Limit int `json:"limit"`

	// matching refresh; nil means merge, only an explicit false replaces
	Merge *bool `json:"merge"`

	// send_email
	Email *sendEmailRequest `json:"email"`
}

// HandleGmail dispatches POST /api/sync/gmail.
func (h *SyncHandler) HandleGmail(c *gin.Context) {
	var req syncActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	userID := accountdelivery.UserID(c)

	switch req.Action {
	case "get_auth_url":
		h.authURL(c, userID)
	case "exchange_code":
		h.exchangeCode(c, userID, req)
	case "get_connection_status":
		h.connectionStatus(c, userID)
	case "disconnect":
		h.disconnect(c, userID)
	case "fetch_headers_range":
		h.fetchHeaders(c, userID, req, h.ingest.FetchMailHeaders)
	case "backfill_bodies_from_view":
		h.runBackfill(c, userID, req, h.backfill.BackfillMail)
	case "refresh_email_matching_views":
		h.refreshMatches(c, userID, req, h.matching.RefreshMailMatches)
	case "get_synced_through":
		h.syncedThrough(c, userID, h.ingest.MailSyncedThrough)
	case "send_email":
		h.sendEmail(c, userID, req)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown action: " + req.Action})
	}
}

// HandleCalendar dispatches POST /api/sync/calendar.
func (h *SyncHandler) HandleCalendar(c *gin.Context) {
	var req syncActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	userID := accountdelivery.UserID(c)

	switch req.Action {
	case "get_auth_url":
		h.authURL(c, userID)
	case "exchange_code":
		h.exchangeCode(c, userID, req)
	case "get_connection_status":
		h.connectionStatus(c, userID)
	case "disconnect":
		h.disconnect(c, userID)
	case "fetch_headers_range":
		h.fetchHeaders(c, userID, req, h.ingest.FetchCalendarHeaders)
	case "backfill_from_view":
		h.runBackfill(c, userID, req, h.backfill.BackfillCalendar)
	case "refresh_matching_views":
		h.refreshMatches(c, userID, req, h.matching.RefreshCalendarMatches)
	case "get_synced_through":
		h.syncedThrough(c, userID, h.ingest.CalendarSyncedThrough)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown action: " + req.Action})
	}
}

func (h *SyncHandler) authURL(c *gin.Context, userID string) {
	// The state parameter round-trips the user through the consent screen.
	c.JSON(http.StatusOK, gin.H{"auth_url": h.accounts.AuthURL(userID)})
}

func (h *SyncHandler) exchangeCode(c *gin.Context, userID string, req syncActionRequest) {
	if req.Code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "code is required"})
		return
	}
	var startDate time.Time
	if req.SyncStartDate != "" {
		parsed, err := time.Parse("2006-01-02", req.SyncStartDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "sync_start_date must be YYYY-MM-DD"})
			return
		}
		startDate = parsed
	}
	if err := h.accounts.ExchangeCode(c.Request.Context(), userID, req.Code, startDate); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Google account connected"})
}

func (h *SyncHandler) connectionStatus(c *gin.Context, userID string) {
	status, err := h.accounts.ConnectionStatus(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *SyncHandler) disconnect(c *gin.Context, userID string) {
	if err := h.accounts.Disconnect(userID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Google account disconnected"})
}

func (h *SyncHandler) fetchHeaders(c *gin.Context, userID string, req syncActionRequest, fetch func(ctx context.Context, userID string, opts syncusecase.IngestOptions) (*syncusecase.IngestResult, error)) {
	// Manual windows can be arbitrarily wide; the wall budget keeps one
	// request from monopolizing provider quota.
	opts := syncusecase.IngestOptions{
		MaxItems:  req.MaxItems,
		Initiator: syncdomain.InitiatorUser,
		Budget:    google.NewBudget(h.config.SyncWallBudget),
	}
	var err error
	if opts.Since, err = parseTimeField(req.From); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from: " + err.Error()})
		return
	}
	if opts.Until, err = parseTimeField(req.To); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "to: " + err.Error()})
		return
	}

	result, err := fetch(c.Request.Context(), userID, opts)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *SyncHandler) runBackfill(c *gin.Context, userID string, req syncActionRequest, run func(ctx context.Context, userID string, limit int, initiator string) (*syncusecase.BackfillResult, error)) {
	result, err := run(c.Request.Context(), userID, req.Limit, syncdomain.InitiatorUser)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *SyncHandler) refreshMatches(c *gin.Context, userID string, req syncActionRequest, refresh func(ctx context.Context, userID string, merge bool) (*syncusecase.MatchSummary, error)) {
	merge := true
	if req.Merge != nil {
		merge = *req.Merge
	}
	summary, err := refresh(c.Request.Context(), userID, merge)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *SyncHandler) syncedThrough(c *gin.Context, userID string, lookup func(userID string) (*syncusecase.SyncedThrough, error)) {
	result, err := lookup(userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *SyncHandler) sendEmail(c *gin.Context, userID string, req syncActionRequest) {
	if req.Email == nil || req.Email.To == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email.to is required"})
		return
	}

	account, err := h.accounts.ValidAccount(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	attachments := make([]google.SendAttachment, 0, len(req.Email.Attachments))
	for _, att := range req.Email.Attachments {
		data, err := base64.StdEncoding.DecodeString(att.Content)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "attachment " + att.Filename + " is not valid base64"})
			return
		}
		attachments = append(attachments, google.SendAttachment{
			Filename: att.Filename,
			MimeType: att.MimeType,
			Content:  data,
		})
	}

	err = h.provider.SendMail(
		c.Request.Context(), account, h.accounts.TokenUpdateCallback(userID),
		"", req.Email.To, req.Email.Cc, req.Email.Bcc, req.Email.Subject, req.Email.Body, attachments,
	)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Email sent"})
}

// parseTimeField accepts RFC3339 or a bare date; empty is the zero time,
// which the ingest usecase fills with its defaults.
func parseTimeField(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, errors.New("must be RFC3339 or YYYY-MM-DD")
	}
	return t.UTC(), nil
}

// respondError maps the sync error taxonomy onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	switch {
	case syncdomain.IsAuthError(err):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Google account not connected or token expired"})
	case syncdomain.IsProviderAPIError(err):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
