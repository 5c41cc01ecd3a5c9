package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port               string
	RateLimitPerMinute int

	// Backend selection
	DataBackend  string
	SQLiteDBPath string

	// AMQP. An empty URL runs categorization in-process.
	AMQPURL             string
	AMQPExchange        string
	AMQPCategorizeQueue string
	AMQPAlertsQueue     string

	// ML collaborator
	MLServiceURL        string
	CollaboratorTimeout time.Duration

	// Budget engine
	WarningRatio         float64
	CriticalRatio        float64
	Timezone             string
	ForecastHistoryLimit int
	CategorizeWorkers    int
	CategorizeQueueSize  int
	SummaryCacheSize     int
	SummaryCacheTTL      time.Duration

	// Google Sheets alert mirror (optional)
	GoogleSpreadsheetID   string
	GoogleAlertsSheetName string

	// Logging
	LogLevel  string
	LogFormat string

	// ConfigFile is the TOML overlay that was applied, if any.
	ConfigFile string
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Port:               "8081",
		RateLimitPerMinute: 120,

		DataBackend:  "sqlite",
		SQLiteDBPath: "./data/budgetbot.db",

		AMQPExchange:        "budgetbot",
		AMQPCategorizeQueue: "categorize_transactions",
		AMQPAlertsQueue:     "budget_alerts",

		MLServiceURL:        "http://localhost:8000",
		CollaboratorTimeout: 5 * time.Second,

		WarningRatio:         0.8,
		CriticalRatio:        1.0,
		Timezone:             "UTC",
		ForecastHistoryLimit: 365,
		CategorizeWorkers:    4,
		CategorizeQueueSize:  256,
		SummaryCacheSize:     1000,
		SummaryCacheTTL:      5 * time.Minute,

		GoogleAlertsSheetName: "Alerts",

		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Load builds the configuration from defaults, the TOML file named by
// CONFIG_FILE (if set) and finally environment variables.
func Load() (*Config, error) {
	cfg := Default()
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := cfg.ApplyFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.RateLimitPerMinute = getEnvInt("RATE_LIMIT_PER_MINUTE", c.RateLimitPerMinute)

	c.DataBackend = getEnv("DATA_BACKEND", c.DataBackend)
	c.SQLiteDBPath = getEnv("SQLITE_DB_PATH", c.SQLiteDBPath)

	c.AMQPURL = getEnv("AMQP_URL", c.AMQPURL)
	c.AMQPExchange = getEnv("AMQP_EXCHANGE", c.AMQPExchange)
	c.AMQPCategorizeQueue = getEnv("AMQP_CATEGORIZE_QUEUE", c.AMQPCategorizeQueue)
	c.AMQPAlertsQueue = getEnv("AMQP_ALERTS_QUEUE", c.AMQPAlertsQueue)

	c.MLServiceURL = getEnv("ML_SERVICE_URL", c.MLServiceURL)
	c.CollaboratorTimeout = getEnvDuration("COLLABORATOR_TIMEOUT", c.CollaboratorTimeout)

	c.WarningRatio = getEnvFloat("WARNING_RATIO", c.WarningRatio)
	c.CriticalRatio = getEnvFloat("CRITICAL_RATIO", c.CriticalRatio)
	c.Timezone = getEnv("TIMEZONE", c.Timezone)
	c.ForecastHistoryLimit = getEnvInt("FORECAST_HISTORY_LIMIT", c.ForecastHistoryLimit)
	c.CategorizeWorkers = getEnvInt("CATEGORIZE_WORKERS", c.CategorizeWorkers)
	c.CategorizeQueueSize = getEnvInt("CATEGORIZE_QUEUE_SIZE", c.CategorizeQueueSize)
	c.SummaryCacheSize = getEnvInt("SUMMARY_CACHE_SIZE", c.SummaryCacheSize)
	c.SummaryCacheTTL = getEnvDuration("SUMMARY_CACHE_TTL", c.SummaryCacheTTL)

	c.GoogleSpreadsheetID = getEnv("GOOGLE_SPREADSHEET_ID", c.GoogleSpreadsheetID)
	c.GoogleAlertsSheetName = getEnv("GOOGLE_ALERTS_SHEET_NAME", c.GoogleAlertsSheetName)

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
}

// Location resolves Timezone. Validate reports a bad zone name first.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}

// AMQPEnabled reports whether categorization and alerts go through a broker.
func (c *Config) AMQPEnabled() bool {
	return strings.TrimSpace(c.AMQPURL) != ""
}

// SheetsEnabled reports whether alerts are mirrored to Google Sheets.
func (c *Config) SheetsEnabled() bool {
	return strings.TrimSpace(c.GoogleSpreadsheetID) != ""
}

// Validate validates the configuration and returns an error listing every problem.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	validBackends := []string{"memory", "sqlite"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	if c.AMQPEnabled() {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPCategorizeQueue == "" {
			errors = append(errors, "AMQP categorize queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.MLServiceURL == "" {
		errors = append(errors, "ML service URL cannot be empty")
	} else if u, err := url.Parse(c.MLServiceURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errors = append(errors, fmt.Sprintf("invalid ML service URL '%s': must be an absolute http(s) URL", c.MLServiceURL))
	}
	if c.CollaboratorTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("invalid collaborator timeout %v: must be positive", c.CollaboratorTimeout))
	} else if c.CollaboratorTimeout > time.Minute {
		errors = append(errors, fmt.Sprintf("invalid collaborator timeout %v: must be at most 1 minute", c.CollaboratorTimeout))
	}

	if c.WarningRatio <= 0 {
		errors = append(errors, fmt.Sprintf("invalid warning ratio %g: must be positive", c.WarningRatio))
	}
	if c.CriticalRatio < c.WarningRatio {
		errors = append(errors, fmt.Sprintf("invalid critical ratio %g: must be at least the warning ratio %g", c.CriticalRatio, c.WarningRatio))
	}
	if _, err := c.Location(); err != nil {
		errors = append(errors, fmt.Sprintf("invalid timezone '%s': %v", c.Timezone, err))
	}

	if c.ForecastHistoryLimit < 1 || c.ForecastHistoryLimit > 5000 {
		errors = append(errors, fmt.Sprintf("invalid forecast history limit %d: must be between 1 and 5000", c.ForecastHistoryLimit))
	}
	if c.CategorizeWorkers < 1 || c.CategorizeWorkers > 64 {
		errors = append(errors, fmt.Sprintf("invalid categorize workers %d: must be between 1 and 64", c.CategorizeWorkers))
	}
	if c.CategorizeQueueSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid categorize queue size %d: must be at least 1", c.CategorizeQueueSize))
	}
	if c.SummaryCacheSize < 0 {
		errors = append(errors, fmt.Sprintf("invalid summary cache size %d: must not be negative", c.SummaryCacheSize))
	}
	if c.RateLimitPerMinute < 0 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must not be negative", c.RateLimitPerMinute))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s'", c.LogLevel))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
