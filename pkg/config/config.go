package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port      string
	JWTSecret string

	DatabaseURL string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURI  string

	// Blob storage buckets for downloaded attachments.
	MailAttachmentBucket     string
	CalendarAttachmentBucket string

	// Calendar to sync. "primary" resolves to the connected account's default.
	SyncCalendarID string

	// Shared secret required on the scheduled entry point.
	CronSecret string

	// Provider paging and batch tunables.
	ListPageSize           int64
	BackfillBatchSize      int
	BacklogMaxItems        int
	BacklogMaxItemsBoosted int
	PriorityUserIDs        []string

	// Re-scan overlap applied to the watermark of the previous successful run.
	SyncOverlap time.Duration

	// Wall-clock ceiling for a single ingestion pass.
	SyncWallBudget time.Duration

	// Minimum spacing between outbound provider calls.
	ProviderCallInterval time.Duration

	// Pause between users in the daily catch-up loop.
	UserPause time.Duration
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		Port:      getEnv("PORT", "8080"),
		JWTSecret: getEnv("JWT_SECRET", "your-secret-key-change-in-production"),

		DatabaseURL: getEnv("DATABASE_URL", "host=localhost user=postgres password=postgres dbname=edcrm port=5432 sslmode=disable"),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURI:  getEnv("GOOGLE_REDIRECT_URI", "http://localhost:8080/oauth/callback"),

		MailAttachmentBucket:     getEnv("MAIL_ATTACHMENT_BUCKET", "edcrm-mail-attachments"),
		CalendarAttachmentBucket: getEnv("CALENDAR_ATTACHMENT_BUCKET", "edcrm-calendar-attachments"),

		SyncCalendarID: getEnv("SYNC_CALENDAR_ID", "primary"),

		CronSecret: getEnv("CRON_SECRET", ""),

		ListPageSize:           getEnvInt64("SYNC_LIST_PAGE_SIZE", 100),
		BackfillBatchSize:      getEnvInt("SYNC_BACKFILL_BATCH_SIZE", 25),
		BacklogMaxItems:        getEnvInt("SYNC_BACKLOG_MAX_ITEMS", 500),
		BacklogMaxItemsBoosted: getEnvInt("SYNC_BACKLOG_MAX_ITEMS_BOOSTED", 2000),
		PriorityUserIDs:        getEnvList("SYNC_PRIORITY_USER_IDS"),

		SyncOverlap:          getEnvDuration("SYNC_OVERLAP", 24*time.Hour),
		SyncWallBudget:       getEnvDuration("SYNC_WALL_BUDGET", 4*time.Minute),
		ProviderCallInterval: getEnvDuration("SYNC_PROVIDER_CALL_INTERVAL", 200*time.Millisecond),
		UserPause:            getEnvDuration("SYNC_USER_PAUSE", 2*time.Second),
	}
}

// BacklogLimitFor returns the backlog item cap for a user, applying the boosted
// cap when the user is flagged for priority catch-up.
func (c *Config) BacklogLimitFor(userID string) int {
	for _, id := range c.PriorityUserIDs {
		if id == userID {
			return c.BacklogMaxItemsBoosted
		}
	}
	return c.BacklogMaxItems
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
