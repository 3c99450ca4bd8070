package delivery

import (
	"crypto/subtle"
	"net/http"

	syncusecase "edcrm-backend/internal/sync/usecase"
	"edcrm-backend/pkg/config"

	"github.com/gin-gonic/gin"
)

// CronHandler serves the scheduled entry point. The scheduler authenticates
// with a shared secret header instead of a user JWT.
type CronHandler struct {
	orchestrator syncusecase.OrchestratorUsecase
	config       *config.Config
}

func NewCronHandler(orchestrator syncusecase.OrchestratorUsecase, cfg *config.Config) *CronHandler {
	return &CronHandler{orchestrator: orchestrator, config: cfg}
}

// HandleDailySync runs the daily catch-up pass. Per-user failures are
// reported in the summary, not as an HTTP error; only a run that could not
// start at all fails the request.
func (h *CronHandler) HandleDailySync(c *gin.Context) {
	secret := c.GetHeader("X-Cron-Secret")
	if h.config.CronSecret == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(h.config.CronSecret)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid cron secret"})
		return
	}

	summary, err := h.orchestrator.RunDailySync(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}
