package api

import (
	"net/http"

	accountdelivery "edcrm-backend/internal/account/delivery"
	accountusecase "edcrm-backend/internal/account/usecase"
	syncdelivery "edcrm-backend/internal/sync/delivery"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, accounts accountusecase.AccountUsecase, syncHandler *syncdelivery.SyncHandler, cronHandler *syncdelivery.CronHandler) {
	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		// Action-dispatch sync endpoints (protected)
		sync := api.Group("/sync")
		sync.Use(accountdelivery.AuthMiddleware(accounts))
		{
			sync.POST("/gmail", syncHandler.HandleGmail)
			sync.POST("/calendar", syncHandler.HandleCalendar)
		}

		// Scheduled entry point, authenticated by shared secret.
		api.POST("/cron/daily-sync", cronHandler.HandleDailySync)
	}
}
