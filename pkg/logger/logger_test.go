package logger

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"igsaved/pkg/config"
)

func newBufferLogger(t *testing.T, level string) (Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	l, err := NewWithWriter(&config.LoggingConfig{Level: level}, &buf)
	if err != nil {
		t.Fatalf("NewWithWriter() error = %v", err)
	}
	return l, &buf
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{
			name:    "valid config with info level",
			cfg:     &config.LoggingConfig{Level: "info"},
			wantErr: false,
		},
		{
			name:    "json format",
			cfg:     &config.LoggingConfig{Level: "debug", Format: "json"},
			wantErr: false,
		},
		{
			name:    "invalid log level",
			cfg:     &config.LoggingConfig{Level: "loud"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && l == nil {
				t.Error("New() returned nil logger")
			}
		})
	}
}

func TestNewWithFile(t *testing.T) {
	path := t.TempDir() + "/logs/igsaved.log"
	l, err := New(&config.LoggingConfig{Level: "info", Format: "json", File: path})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	l.Info("to file")
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  zerolog.Level
		err   bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"INFO", zerolog.InfoLevel, false},
		{"", zerolog.InfoLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"trace-ish", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			got, err := parseLogLevel(tt.level)
			if (err != nil) != tt.err {
				t.Errorf("parseLogLevel(%q) error = %v", tt.level, err)
			}
			if got != tt.want {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tt.level, got, tt.want)
			}
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	l, buf := newBufferLogger(t, "warn")

	l.Info("hidden")
	l.Warn("shown")

	if strings.Contains(buf.String(), "hidden") {
		t.Error("Info message should be filtered at warn level")
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Error("Warn message not found in output")
	}
}

func TestWithFields(t *testing.T) {
	l, buf := newBufferLogger(t, "debug")

	l.WithField("component", "discovery").
		WithFields(map[string]interface{}{
			"scrolls": 3,
			"delay":   1500 * time.Millisecond,
			"ok":      true,
		}).
		Info("scrolled")

	out := buf.String()
	for _, want := range []string{`"component":"discovery"`, `"scrolls":3`, `"delay":"1.5s"`, `"ok":true`, `"app":"igsaved"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output %s missing %s", out, want)
		}
	}
}

func TestWithError(t *testing.T) {
	l, buf := newBufferLogger(t, "info")

	l.WithError(errors.New("dialog never rendered")).Error("post failed")
	if !strings.Contains(buf.String(), `"error":"dialog never rendered"`) {
		t.Errorf("error field not found in %s", buf.String())
	}

	if l.WithError(nil) != l {
		t.Error("WithError(nil) should return the same logger")
	}
}

func TestStructuredLogging(t *testing.T) {
	l, buf := newBufferLogger(t, "debug")

	l.WarnWithFields("field lookup failed", map[string]interface{}{
		"field": "biography",
		"cause": errors.New("bad selector"),
	})

	out := buf.String()
	if !strings.Contains(out, `"level":"warn"`) || !strings.Contains(out, `"cause":"bad selector"`) {
		t.Errorf("unexpected output %s", out)
	}
}

func TestGlobalLogger(t *testing.T) {
	if err := Initialize(&config.LoggingConfig{Level: "error"}); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if GetLogger() == nil {
		t.Fatal("GetLogger() returned nil")
	}
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.WithField("a", 1).WithError(errors.New("x")).Error("nothing")
	if l.GetZerolog() == nil {
		t.Error("GetZerolog() should not be nil")
	}
}

func TestTestLogger(t *testing.T) {
	tl := NewTestLogger()
	child := tl.WithField("post", "/p/A/").WithError(errors.New("timeout"))
	child.WarnWithFields("post failed", map[string]interface{}{"attempt": 1})
	tl.Info("done")

	msgs := tl.GetMessages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Fields["post"] != "/p/A/" || msgs[0].Fields["attempt"] != 1 {
		t.Errorf("fields not merged: %v", msgs[0].Fields)
	}
	if msgs[0].Error == nil {
		t.Error("error not captured")
	}
	if !tl.HasMessage("done") || tl.HasError() {
		t.Errorf("unexpected capture state:\n%s", tl.String())
	}

	tl.Clear()
	if len(tl.GetMessages()) != 0 {
		t.Error("Clear() did not reset messages")
	}
}
