package api

import (
	accountusecase "edcrm-backend/internal/account/usecase"
	syncdelivery "edcrm-backend/internal/sync/delivery"
	syncusecase "edcrm-backend/internal/sync/usecase"
	"edcrm-backend/pkg/config"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	accounts    accountusecase.AccountUsecase
	syncHandler *syncdelivery.SyncHandler
	cronHandler *syncdelivery.CronHandler
	config      *config.Config
}

func NewHandler(
	accounts accountusecase.AccountUsecase,
	ingest syncusecase.IngestUsecase,
	backfill syncusecase.BackfillUsecase,
	matching syncusecase.MatchingUsecase,
	orchestrator syncusecase.OrchestratorUsecase,
	provider syncusecase.Provider,
	cfg *config.Config,
) *Handler {
	return &Handler{
		accounts:    accounts,
		syncHandler: syncdelivery.NewSyncHandler(accounts, ingest, backfill, matching, provider, cfg),
		cronHandler: syncdelivery.NewCronHandler(orchestrator, cfg),
		config:      cfg,
	}
}

func (h *Handler) Start(addr string) error {
	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()

	// CORS middleware
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Cron-Secret")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	SetupRoutes(r, h.accounts, h.syncHandler, h.cronHandler)
	return r.Run(addr)
}
