// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every tunable the binaries need.
type Config struct {
	Port        string
	DatabaseURL string

	GeminiAPIKey string
	GeminiModel  string

	ClassifyMaxRetries int
	ClassifyBaseDelay  time.Duration
	AnalysisBatchSize  int

	ChatMaxRetries      int
	ChatHistoryWindow   int
	ChatMinTransactions int

	ProfilesPath string

	FileStore string
	GCSBucket string
	LocalRoot string

	BigQueryProject string
	BigQueryDataset string

	NotionToken      string
	NotionDatabaseID string

	LogLevel  string
	LogFormat string
}

// Load reads the environment, applying defaults for anything unset.
func Load() Config {
	return Config{
		Port:        String("PORT", "8080"),
		DatabaseURL: String("DATABASE_URL", ""),

		GeminiAPIKey: String("GEMINI_API_KEY", ""),
		GeminiModel:  String("GEMINI_MODEL", "gemini-2.5-flash"),

		ClassifyMaxRetries: Int("CLASSIFY_MAX_RETRIES", 4),
		ClassifyBaseDelay:  Duration("CLASSIFY_BASE_DELAY", 500*time.Millisecond),
		AnalysisBatchSize:  Int("ANALYSIS_BATCH_SIZE", 10),

		ChatMaxRetries:      Int("CHAT_MAX_RETRIES", 2),
		ChatHistoryWindow:   Int("CHAT_HISTORY_WINDOW", 5),
		ChatMinTransactions: Int("CHAT_MIN_TRANSACTIONS", 2),

		ProfilesPath: String("PROFILES_PATH", ""),

		FileStore: strings.ToLower(String("FILESTORE", "drive")),
		GCSBucket: String("GCS_BUCKET", ""),
		LocalRoot: String("LOCAL_ROOT", "."),

		BigQueryProject: String("BIGQUERY_PROJECT", ""),
		BigQueryDataset: String("BIGQUERY_DATASET", "advisor"),

		NotionToken:      String("NOTION_TOKEN", ""),
		NotionDatabaseID: String("NOTION_DATABASE_ID", ""),

		LogLevel:  String("LOG_LEVEL", "info"),
		LogFormat: String("LOG_FORMAT", "console"),
	}
}

// Validate reports settings that are missing or out of range.
func (c Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.GeminiAPIKey == "" {
		errs = append(errs, errors.New("GEMINI_API_KEY is required"))
	}
	if c.AnalysisBatchSize <= 0 {
		errs = append(errs, fmt.Errorf("ANALYSIS_BATCH_SIZE must be positive, got %d", c.AnalysisBatchSize))
	}
	if c.ClassifyMaxRetries < 0 {
		errs = append(errs, fmt.Errorf("CLASSIFY_MAX_RETRIES must not be negative, got %d", c.ClassifyMaxRetries))
	}
	if c.ChatMaxRetries < 0 {
		errs = append(errs, fmt.Errorf("CHAT_MAX_RETRIES must not be negative, got %d", c.ChatMaxRetries))
	}
	switch c.FileStore {
	case "drive", "local":
	case "gcs":
		if c.GCSBucket == "" {
			errs = append(errs, errors.New("GCS_BUCKET is required when FILESTORE=gcs"))
		}
	default:
		errs = append(errs, fmt.Errorf("FILESTORE must be drive, gcs or local, got %q", c.FileStore))
	}
	return errors.Join(errs...)
}

// BigQueryEnabled reports whether classified rows should be exported.
func (c Config) BigQueryEnabled() bool {
	return c.BigQueryProject != ""
}

// NotionEnabled reports whether Notion export is configured.
func (c Config) NotionEnabled() bool {
	return c.NotionToken != "" && c.NotionDatabaseID != ""
}

// String returns the trimmed value of name or def when unset.
func String(name, def string) string {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	return v
}

// Int returns name parsed as an int, or def when unset or malformed.
func Int(name string, def int) int {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

// Duration accepts Go duration strings ("750ms") or bare milliseconds.
func Duration(name string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return def
}

// Bool returns name parsed with strconv.ParseBool, or def.
func Bool(name string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
