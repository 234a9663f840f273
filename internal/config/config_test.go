package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"GEMINI_MODEL", "CLASSIFY_MAX_RETRIES", "CLASSIFY_BASE_DELAY", "ANALYSIS_BATCH_SIZE", "CHAT_MAX_RETRIES", "FILESTORE"} {
		t.Setenv(k, "")
	}

	cfg := Load()

	if cfg.GeminiModel != "gemini-2.5-flash" {
		t.Errorf("GeminiModel = %q", cfg.GeminiModel)
	}
	if cfg.ClassifyMaxRetries != 4 {
		t.Errorf("ClassifyMaxRetries = %d, want 4", cfg.ClassifyMaxRetries)
	}
	if cfg.ClassifyBaseDelay != 500*time.Millisecond {
		t.Errorf("ClassifyBaseDelay = %v", cfg.ClassifyBaseDelay)
	}
	if cfg.AnalysisBatchSize != 10 {
		t.Errorf("AnalysisBatchSize = %d, want 10", cfg.AnalysisBatchSize)
	}
	if cfg.FileStore != "drive" {
		t.Errorf("FileStore = %q", cfg.FileStore)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ANALYSIS_BATCH_SIZE", "25")
	t.Setenv("CLASSIFY_BASE_DELAY", "250")
	t.Setenv("CHAT_MAX_RETRIES", "oops")
	t.Setenv("FILESTORE", "GCS")

	cfg := Load()

	if cfg.AnalysisBatchSize != 25 {
		t.Errorf("AnalysisBatchSize = %d, want 25", cfg.AnalysisBatchSize)
	}
	if cfg.ClassifyBaseDelay != 250*time.Millisecond {
		t.Errorf("ClassifyBaseDelay = %v, want 250ms", cfg.ClassifyBaseDelay)
	}
	if cfg.ChatMaxRetries != 2 {
		t.Errorf("malformed CHAT_MAX_RETRIES should fall back to default, got %d", cfg.ChatMaxRetries)
	}
	if cfg.FileStore != "gcs" {
		t.Errorf("FileStore = %q, want gcs", cfg.FileStore)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing database", func(c *Config) { c.DatabaseURL = "" }, "DATABASE_URL"},
		{"missing key", func(c *Config) { c.GeminiAPIKey = "" }, "GEMINI_API_KEY"},
		{"gcs without bucket", func(c *Config) { c.FileStore = "gcs" }, "GCS_BUCKET"},
		{"unknown store", func(c *Config) { c.FileStore = "ftp" }, "FILESTORE"},
		{"zero batch", func(c *Config) { c.AnalysisBatchSize = 0 }, "ANALYSIS_BATCH_SIZE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{
				DatabaseURL:       "postgres://localhost/advisor",
				GeminiAPIKey:      "key",
				AnalysisBatchSize: 10,
				FileStore:         "drive",
			}
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}
