package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNew(t *testing.T) {
	log := New()
	if log.GetLevel() == zerolog.Disabled {
		t.Error("Expected logger to be enabled")
	}
}

func TestNewJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewJSON(buf)

	log.Info().Str("job_id", "j1").Msg("job started")

	output := buf.String()
	if !strings.HasPrefix(output, "{") {
		t.Errorf("Expected JSON output, got: %s", output)
	}
	if !strings.Contains(output, `"job_id":"j1"`) {
		t.Errorf("Expected job_id field, got: %s", output)
	}
}

func TestConfigure_Level(t *testing.T) {
	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"WARN", zerolog.WarnLevel},
		{"", zerolog.InfoLevel},
		{"nonsense", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			log := Configure("json", tt.level)
			if log.GetLevel() != tt.want {
				t.Errorf("Configure(%q) level = %v, want %v", tt.level, log.GetLevel(), tt.want)
			}
		})
	}
}

func TestFromContext(t *testing.T) {
	buf := &bytes.Buffer{}
	testLog := NewWithWriter(buf)
	ctx := WithContext(context.Background(), testLog)

	retrievedLog := FromContext(ctx)
	retrievedLog.Info().Msg("test")

	if buf.Len() == 0 {
		t.Error("Expected log output from retrieved logger")
	}
}

func TestFromContext_DefaultLogger(t *testing.T) {
	log := FromContext(context.Background())

	if log.GetLevel() == zerolog.Disabled {
		t.Error("Expected default logger to be enabled")
	}
}

func TestWithFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithWriter(buf)

	fields := map[string]interface{}{
		"user_id":     "123",
		"drive_token": "ya29.secret",
	}

	WithFields(log, fields).Info().Msg("test message")

	output := buf.String()
	if !strings.Contains(output, `"user_id":"123"`) {
		t.Errorf("Expected output to contain user_id field, got: %s", output)
	}
	if strings.Contains(output, "ya29.secret") {
		t.Errorf("Expected drive_token to be redacted, got: %s", output)
	}
	if !strings.Contains(output, redacted) {
		t.Errorf("Expected redaction placeholder, got: %s", output)
	}
}

func TestSnippet(t *testing.T) {
	if got := Snippet("abcdef", 3); got != "abc..." {
		t.Errorf("Snippet() = %q", got)
	}
	if got := Snippet("abc", 10); got != "abc" {
		t.Errorf("Snippet() = %q", got)
	}
}
