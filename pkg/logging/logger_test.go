package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo || cfg.Pretty {
		t.Errorf("DefaultConfig() = %+v, want JSON output at info", cfg)
	}
}

func TestSetup(t *testing.T) {
	tests := []struct {
		name  string
		level LogLevel
		emit  func(zerolog.Logger)
		want  []string
	}{
		{
			name:  "debug page collected",
			level: LevelDebug,
			emit: func(l zerolog.Logger) {
				l.Debug().Int("page", 3).Int("records", 25).Msg("Page collected")
			},
			want: []string{`"level":"debug"`, `"page":3`, `"records":25`},
		},
		{
			name:  "info key fetch complete",
			level: LevelInfo,
			emit: func(l zerolog.Logger) {
				l.Info().Int("keys", 40).Str("report", "attempted=40 succeeded=39").Msg("Key fetch complete")
			},
			want: []string{`"level":"info"`, `"keys":40`, `"report":"attempted=40 succeeded=39"`},
		},
		{
			name:  "warn key fetch failed",
			level: LevelWarn,
			emit: func(l zerolog.Logger) {
				l.Warn().Str("key", "alice").Str("error_kind", "server").Int("attempts", 3).Msg("Key fetch failed")
			},
			want: []string{`"level":"warn"`, `"key":"alice"`, `"error_kind":"server"`, `"attempts":3`},
		},
		{
			name:  "error metrics server",
			level: LevelError,
			emit: func(l zerolog.Logger) {
				l.Error().Str("addr", ":9090").Msg("Metrics server failed")
			},
			want: []string{`"level":"error"`, `"addr":":9090"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := Setup(Config{Level: tt.level, Output: buf})
			tt.emit(logger)

			out := buf.String()
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("output %q missing %s", out, w)
				}
			}
		})
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"INFO", zerolog.InfoLevel, false},
		{"", zerolog.InfoLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"off", zerolog.Disabled, false},
		{"verbose", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result, err := ParseLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if result != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestSetupDisabled(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := Setup(Config{Level: LevelDisabled, Output: buf})
	logger.Error().Msg("should not appear")

	if buf.Len() != 0 {
		t.Errorf("Expected no output, got %q", buf.String())
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

func TestSetupPretty(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := Setup(Config{Level: LevelInfo, Pretty: true, Output: buf})
	logger.Info().Str("key", "alice").Msg("Key fetch complete")

	out := buf.String()
	if strings.HasPrefix(out, "{") {
		t.Errorf("Expected console output, got JSON %q", out)
	}
	if !strings.Contains(out, "key=alice") {
		t.Errorf("Expected output to contain key=alice, got %q", out)
	}
}

func TestNewLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: buf,
	})

	logger := NewLogger("fetcher")
	logger.Info().Msg("test message")

	output := buf.String()
	if !strings.Contains(output, `"component":"fetcher"`) {
		t.Errorf("Expected output to contain component field, got %q", output)
	}
	if !strings.Contains(output, "test message") {
		t.Errorf("Expected output to contain 'test message', got %q", output)
	}
}

func TestLogLevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelWarn, Output: buf})
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	logger := NewLogger("pagination")
	logger.Debug().Int("page", 1).Msg("Page collected")
	logger.Info().Int("min_page", 1).Int("max_page", 4).Msg("Starting page collection")
	logger.Warn().Int("page", 2).Str("error_kind", "decode").Msg("Page fetch failed - skipping")

	out := buf.String()
	if strings.Contains(out, "Page collected") || strings.Contains(out, "Starting page collection") {
		t.Errorf("debug and info lines should be filtered at warn, got %q", out)
	}
	if !strings.Contains(out, "Page fetch failed - skipping") || !strings.Contains(out, `"error_kind":"decode"`) {
		t.Errorf("warn line missing, got %q", out)
	}
	if !strings.Contains(out, `"component":"pagination"`) {
		t.Errorf("component field missing, got %q", out)
	}
}
