package config

import (
	"fmt"
	"os"
	"strconv"
	"strings" // For LogLevel normalization
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	DatabaseURL string
	LogLevel    string
	Environment string
	Debug       bool // Surface internal error detail in user messages

	NotificationMode    string
	NotifyMaxRetries    uint64
	NotifyRetryInterval time.Duration

	RentDueDaysAhead int
	CronSpecRentDue  string

	TelegramToken   string // Empty disables the admin bot
	AdminTelegramID int64
	AdminUserID     int64 // Platform user id stamped as verified_by

	MetricsAddr     string // Empty disables the metrics endpoint
	ContractDocsDir string
}

// BotEnabled reports whether the Telegram admin bot should run.
func (c *AppConfig) BotEnabled() bool {
	return c.TelegramToken != ""
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// Attempt to load .env file. Errors are ignored if the file doesn't exist.
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info" // Default log level
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development" // Default environment
	}

	if cfg.Debug, err = boolEnv("APP_DEBUG", false); err != nil {
		return nil, err
	}

	cfg.NotificationMode = strings.ToLower(os.Getenv("NOTIFICATION_MODE"))
	if cfg.NotificationMode == "" {
		cfg.NotificationMode = "decoupled"
	}
	if cfg.NotificationMode != "decoupled" && cfg.NotificationMode != "coupled" {
		return nil, fmt.Errorf("invalid NOTIFICATION_MODE %q: want decoupled or coupled", cfg.NotificationMode)
	}

	if s := os.Getenv("NOTIFY_MAX_RETRIES"); s != "" {
		if cfg.NotifyMaxRetries, err = strconv.ParseUint(s, 10, 32); err != nil {
			return nil, fmt.Errorf("invalid NOTIFY_MAX_RETRIES: %w", err)
		}
	} else {
		cfg.NotifyMaxRetries = 3
	}

	cfg.NotifyRetryInterval = 200 * time.Millisecond
	if s := os.Getenv("NOTIFY_RETRY_INTERVAL"); s != "" {
		if cfg.NotifyRetryInterval, err = time.ParseDuration(s); err != nil {
			return nil, fmt.Errorf("invalid NOTIFY_RETRY_INTERVAL: %w", err)
		}
		if cfg.NotifyRetryInterval < 0 {
			return nil, fmt.Errorf("invalid NOTIFY_RETRY_INTERVAL: must not be negative")
		}
	}

	cfg.RentDueDaysAhead = 7
	if s := os.Getenv("RENT_DUE_DAYS_AHEAD"); s != "" {
		if cfg.RentDueDaysAhead, err = strconv.Atoi(s); err != nil {
			return nil, fmt.Errorf("invalid RENT_DUE_DAYS_AHEAD: %w", err)
		}
		if cfg.RentDueDaysAhead < 0 {
			return nil, fmt.Errorf("invalid RENT_DUE_DAYS_AHEAD: must not be negative")
		}
	}

	cfg.CronSpecRentDue = os.Getenv("CRON_SPEC_RENT_DUE")
	if cfg.CronSpecRentDue == "" {
		cfg.CronSpecRentDue = "0 9 * * *" // Default: 9 AM daily
	}

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if cfg.BotEnabled() {
		if cfg.AdminTelegramID, err = requiredInt64("ADMIN_TELEGRAM_ID"); err != nil {
			return nil, err
		}
		if cfg.AdminUserID, err = requiredInt64("ADMIN_USER_ID"); err != nil {
			return nil, err
		}
	}

	cfg.MetricsAddr = os.Getenv("METRICS_ADDR")

	cfg.ContractDocsDir = os.Getenv("CONTRACT_DOCS_DIR")
	if cfg.ContractDocsDir == "" {
		cfg.ContractDocsDir = "storage/contracts"
	}

	return cfg, nil
}

func requiredInt64(key string) (int64, error) {
	s := os.Getenv(key)
	if s == "" {
		return 0, fmt.Errorf("%s is not set", key)
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func boolEnv(key string, def bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}
