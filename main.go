package main

import (
	"context"
	"log"

	api "edcrm-backend/cmd/api"
	accountdomain "edcrm-backend/internal/account/domain"
	accountRepo "edcrm-backend/internal/account/repository"
	accountUsecase "edcrm-backend/internal/account/usecase"
	crmdomain "edcrm-backend/internal/crm/domain"
	crmRepo "edcrm-backend/internal/crm/repository"
	syncdomain "edcrm-backend/internal/sync/domain"
	syncRepo "edcrm-backend/internal/sync/repository"
	syncUsecase "edcrm-backend/internal/sync/usecase"
	"edcrm-backend/pkg/config"
	"edcrm-backend/pkg/database"
	"edcrm-backend/pkg/google"
	"edcrm-backend/pkg/storage"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.NewPostgresConnection(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Auto-migrate database schemas
	if err := db.AutoMigrate(
		&accountdomain.SyncAccount{},
		&accountdomain.SyncSettings{},
		&crmdomain.Educator{},
		&syncdomain.MessageRecord{},
		&syncdomain.EventRecord{},
		&syncdomain.MessageAttachment{},
		&syncdomain.EventAttachment{},
		&syncdomain.SyncProgress{},
		&syncdomain.SyncHistoryEntry{},
		&syncdomain.ConsoleLogEntry{},
	); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Initialize repositories (dependency injection)
	accountRepository := accountRepo.NewAccountRepository(db)
	settingsRepository := accountRepo.NewSettingsRepository(db)
	educatorRepository := crmRepo.NewEducatorRepository(db)
	messageRepository := syncRepo.NewMessageRepository(db)
	eventRepository := syncRepo.NewEventRepository(db)
	attachmentRepository := syncRepo.NewAttachmentRepository(db)
	progressRepository := syncRepo.NewProgressRepository(db)
	historyRepository := syncRepo.NewHistoryRepository(db)
	consoleLogRepository := syncRepo.NewConsoleLogRepository(db)

	// Initialize Google service and blob storage
	googleService := google.NewService(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURI, cfg.ProviderCallInterval)
	attachmentStore, err := storage.NewAttachmentStore(context.Background(), cfg.MailAttachmentBucket, cfg.CalendarAttachmentBucket)
	if err != nil {
		log.Fatal("Failed to initialize attachment storage:", err)
	}

	// Initialize use cases (dependency injection)
	accounts := accountUsecase.NewAccountUsecase(accountRepository, settingsRepository, googleService, cfg)
	provider := syncUsecase.NewGoogleProvider(googleService)
	ingest := syncUsecase.NewIngestUsecase(accounts, provider, messageRepository, eventRepository, progressRepository, historyRepository, consoleLogRepository, cfg)
	matching := syncUsecase.NewMatchingUsecase(educatorRepository, messageRepository, eventRepository)
	backfill := syncUsecase.NewBackfillUsecase(accounts, provider, attachmentStore, matching, messageRepository, eventRepository, attachmentRepository, historyRepository, consoleLogRepository, cfg)
	orchestrator := syncUsecase.NewOrchestratorUsecase(accountRepository, accounts, ingest, backfill, matching, historyRepository, consoleLogRepository, cfg)

	// Initialize HTTP handler
	handler := api.NewHandler(accounts, ingest, backfill, matching, orchestrator, provider, cfg)

	// Start server
	log.Printf("Server starting on port %s", cfg.Port)
	if err := handler.Start(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
