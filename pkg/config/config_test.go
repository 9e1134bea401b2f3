package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Discovery.MaxScrolls != 50 {
		t.Errorf("Expected default max scrolls to be 50, got %d", config.Discovery.MaxScrolls)
	}

	if config.Browser.IdentityTimeout != 15*time.Second {
		t.Errorf("Expected identity timeout to be 15s, got %v", config.Browser.IdentityTimeout)
	}

	if config.Ledger.Path != filepath.Join("data", "seen_profiles.json") {
		t.Errorf("Expected default ledger path data/seen_profiles.json, got %s", config.Ledger.Path)
	}

	if config.Ledger.DedupKey != DedupKeyUsername {
		t.Errorf("Expected default dedup key %q, got %q", DedupKeyUsername, config.Ledger.DedupKey)
	}

	if config.Selectors.PostLink == "" {
		t.Error("Expected default post link selector")
	}

	if err := config.Validate(); err != nil {
		t.Errorf("Expected defaults to validate, got %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("IGSAVED_SESSION_ID", "test-session-id")
	t.Setenv("IGSAVED_DS_USER_ID", "12345")
	t.Setenv("IGSAVED_CSRF_TOKEN", "test-csrf-token")
	t.Setenv("IGSAVED_HEADLESS", "false")
	t.Setenv("IGSAVED_MAX_SCROLLS", "7")
	t.Setenv("IGSAVED_SETTLE_DELAY", "500ms")
	t.Setenv("IGSAVED_DEDUP_KEY", "post")
	t.Setenv("IGSAVED_LEDGER_BACKEND", "redis")
	t.Setenv("IGSAVED_PORT", "9090")
	t.Setenv("IGSAVED_LOG_LEVEL", "debug")

	config := DefaultConfig()
	if err := config.LoadFromEnv(); err != nil {
		t.Fatalf("Failed to load from environment: %v", err)
	}

	if !config.Instagram.Complete() {
		t.Errorf("Expected complete credentials, got %+v", config.Instagram)
	}
	if config.Browser.Headless {
		t.Error("Expected headless to be disabled")
	}
	if config.Discovery.MaxScrolls != 7 {
		t.Errorf("Expected max scrolls 7, got %d", config.Discovery.MaxScrolls)
	}
	if config.Discovery.SettleDelay != 500*time.Millisecond {
		t.Errorf("Expected settle delay 500ms, got %v", config.Discovery.SettleDelay)
	}
	if config.Ledger.DedupKey != DedupKeyPost {
		t.Errorf("Expected dedup key post, got %s", config.Ledger.DedupKey)
	}
	if config.Ledger.Backend != LedgerBackendRedis {
		t.Errorf("Expected redis backend, got %s", config.Ledger.Backend)
	}
	if config.Server.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", config.Server.Port)
	}
	if config.Logging.Level != "debug" {
		t.Errorf("Expected log level to be debug, got %s", config.Logging.Level)
	}
}

func TestLoadFromEnvInvalidValues(t *testing.T) {
	t.Setenv("IGSAVED_MAX_SCROLLS", "many")
	t.Setenv("IGSAVED_SETTLE_DELAY", "soon")

	config := DefaultConfig()
	err := config.LoadFromEnv()
	if err == nil {
		t.Fatal("Expected error for malformed values")
	}
	if !strings.Contains(err.Error(), "IGSAVED_MAX_SCROLLS") || !strings.Contains(err.Error(), "IGSAVED_SETTLE_DELAY") {
		t.Errorf("Expected both variables in error, got %v", err)
	}
	if config.Discovery.MaxScrolls != 50 {
		t.Errorf("Expected max scrolls to keep its default, got %d", config.Discovery.MaxScrolls)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantError string
	}{
		{
			name:   "defaults",
			mutate: func(c *Config) {},
		},
		{
			name:   "credentials are optional",
			mutate: func(c *Config) { c.Instagram = InstagramConfig{} },
		},
		{
			name:      "zero scroll budget",
			mutate:    func(c *Config) { c.Discovery.MaxScrolls = 0 },
			wantError: "max scrolls",
		},
		{
			name:      "unknown dedup key",
			mutate:    func(c *Config) { c.Ledger.DedupKey = "profile" },
			wantError: "dedup key",
		},
		{
			name:      "unknown backend",
			mutate:    func(c *Config) { c.Ledger.Backend = "sqlite" },
			wantError: "unknown ledger backend",
		},
		{
			name: "redis without address",
			mutate: func(c *Config) {
				c.Ledger.Backend = LedgerBackendRedis
				c.Ledger.Redis.Address = ""
			},
			wantError: "redis address",
		},
		{
			name:      "bad port",
			mutate:    func(c *Config) { c.Server.Port = 70000 },
			wantError: "server port",
		},
		{
			name:      "bad log format",
			mutate:    func(c *Config) { c.Logging.Format = "xml" },
			wantError: "log format",
		},
		{
			name:      "invalid notification type",
			mutate:    func(c *Config) { c.Notifications.NotificationType = "pager" },
			wantError: "notification type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			err := config.Validate()
			if tt.wantError == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantError) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantError)
			}
		})
	}
}

func TestMergeCommandLineFlags(t *testing.T) {
	config := DefaultConfig()
	config.MergeCommandLineFlags(map[string]interface{}{
		"session-id":  "flag-session",
		"headless":    false,
		"max-scrolls": 12,
		"dedup-key":   "post",
		"output":      "/tmp/out",
		"log-level":   "",
	})

	if config.Instagram.SessionID != "flag-session" {
		t.Errorf("Expected session ID from flags, got %s", config.Instagram.SessionID)
	}
	if config.Browser.Headless {
		t.Error("Expected headless false from flags")
	}
	if config.Discovery.MaxScrolls != 12 {
		t.Errorf("Expected max scrolls 12, got %d", config.Discovery.MaxScrolls)
	}
	if config.Ledger.DedupKey != DedupKeyPost {
		t.Errorf("Expected dedup key post, got %s", config.Ledger.DedupKey)
	}
	if config.Output.Directory != "/tmp/out" || !config.Output.SaveResults {
		t.Errorf("Expected output flag to enable saving, got %+v", config.Output)
	}
	if config.Logging.Level != "info" {
		t.Errorf("Expected empty flag to leave log level, got %s", config.Logging.Level)
	}
}

func TestSaveAndLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	config := DefaultConfig()
	config.Discovery.MaxScrolls = 9
	config.Discovery.SettleDelay = 1500 * time.Millisecond
	config.Selectors.PostLink = "article a"
	if err := config.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Expected 0600 permissions, got %v", info.Mode().Perm())
	}

	loaded := DefaultConfig()
	if err := loaded.LoadFromFile(path); err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if loaded.Discovery.MaxScrolls != 9 {
		t.Errorf("Expected max scrolls 9, got %d", loaded.Discovery.MaxScrolls)
	}
	if loaded.Discovery.SettleDelay != 1500*time.Millisecond {
		t.Errorf("Expected settle delay 1.5s, got %v", loaded.Discovery.SettleDelay)
	}
	if loaded.Selectors.PostLink != "article a" {
		t.Errorf("Expected custom post link selector, got %s", loaded.Selectors.PostLink)
	}
}

func TestLoadFromFilePartialSelectors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "selectors:\n  dialog: \"div.modal\"\ndiscovery:\n  settle_delay: 2s\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	config := DefaultConfig()
	if err := config.LoadFromFile(path); err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if config.Selectors.Dialog != "div.modal" {
		t.Errorf("Expected overridden dialog selector, got %s", config.Selectors.Dialog)
	}
	if config.Selectors.Identity == "" {
		t.Error("Expected untouched selectors to keep defaults")
	}
	if config.Discovery.SettleDelay != 2*time.Second {
		t.Errorf("Expected settle delay 2s, got %v", config.Discovery.SettleDelay)
	}
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "discovery:\n  max_scrolls: 20\nlogging:\n  level: warn\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("HOME", dir)
	t.Setenv("IGSAVED_LOG_LEVEL", "error")

	config, err := Load(path, map[string]interface{}{"max-scrolls": 30})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if config.Discovery.MaxScrolls != 30 {
		t.Errorf("Expected flag to win for max scrolls, got %d", config.Discovery.MaxScrolls)
	}
	if config.Logging.Level != "error" {
		t.Errorf("Expected env to win for log level, got %s", config.Logging.Level)
	}
}
