package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"igsaved/pkg/instagram"
)

// Config holds all configuration options for igsaved
type Config struct {
	// Credentials used by the one-shot CLI run when none are stored
	Instagram InstagramConfig `yaml:"instagram" json:"instagram"`

	Browser   BrowserConfig       `yaml:"browser" json:"browser"`
	Discovery DiscoveryConfig     `yaml:"discovery" json:"discovery"`
	Selectors instagram.Selectors `yaml:"selectors" json:"selectors"`
	Ledger    LedgerConfig        `yaml:"ledger" json:"ledger"`

	// Pacing between profile page visits
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Retry policy for the session bootstrap navigation
	Retry RetryConfig `yaml:"retry" json:"retry"`

	Server        ServerConfig       `yaml:"server" json:"server"`
	Output        OutputConfig       `yaml:"output" json:"output"`
	Notifications NotificationConfig `yaml:"notifications" json:"notifications"`
	Logging       LoggingConfig      `yaml:"logging" json:"logging"`
}

// InstagramConfig holds Instagram session cookies
type InstagramConfig struct {
	SessionID string `yaml:"session_id" json:"session_id"`
	DSUserID  string `yaml:"ds_user_id" json:"ds_user_id"`
	CSRFToken string `yaml:"csrf_token" json:"csrf_token"`
}

// BrowserConfig controls the automated Chrome instance
type BrowserConfig struct {
	Headless          bool          `yaml:"headless" json:"headless"`
	ExecPath          string        `yaml:"exec_path" json:"exec_path"`
	UserAgent         string        `yaml:"user_agent" json:"user_agent"`
	WindowWidth       int           `yaml:"window_width" json:"window_width"`
	WindowHeight      int           `yaml:"window_height" json:"window_height"`
	ProfileBaseDir    string        `yaml:"profile_base_dir" json:"profile_base_dir"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout" json:"navigation_timeout"`
	IdentityTimeout   time.Duration `yaml:"identity_timeout" json:"identity_timeout"`
}

// DiscoveryConfig bounds the saved feed walk
type DiscoveryConfig struct {
	MaxScrolls    int           `yaml:"max_scrolls" json:"max_scrolls"`
	SettleDelay   time.Duration `yaml:"settle_delay" json:"settle_delay"`
	FeedTimeout   time.Duration `yaml:"feed_timeout" json:"feed_timeout"`
	AuthorTimeout time.Duration `yaml:"author_timeout" json:"author_timeout"`
	CloseTimeout  time.Duration `yaml:"close_timeout" json:"close_timeout"`
	// Upper bound on max_profiles accepted per run
	MaxProfilesLimit int `yaml:"max_profiles_limit" json:"max_profiles_limit"`
}

// LedgerConfig selects where processed accounts are remembered
type LedgerConfig struct {
	Backend  string      `yaml:"backend" json:"backend"`
	Path     string      `yaml:"path" json:"path"`
	DedupKey string      `yaml:"dedup_key" json:"dedup_key"`
	Redis    RedisConfig `yaml:"redis" json:"redis"`
}

// RedisConfig holds connection settings for the redis ledger backend
type RedisConfig struct {
	Address  string `yaml:"address" json:"address"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`
	Key      string `yaml:"key" json:"key"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	ProfilesPerMinute int `yaml:"profiles_per_minute" json:"profiles_per_minute"`
	BurstSize         int `yaml:"burst_size" json:"burst_size"`
}

// RetryConfig holds retry configuration
type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts" json:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay" json:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay" json:"max_delay"`
	Multiplier   float64       `yaml:"multiplier" json:"multiplier"`
}

// ServerConfig holds HTTP API settings
type ServerConfig struct {
	Host            string        `yaml:"host" json:"host"`
	Port            int           `yaml:"port" json:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
	Debug           bool          `yaml:"debug" json:"debug"`
}

// OutputConfig controls where run results are exported
type OutputConfig struct {
	Directory   string `yaml:"directory" json:"directory"`
	SaveResults bool   `yaml:"save_results" json:"save_results"`
}

// NotificationConfig holds notification preferences
type NotificationConfig struct {
	Enabled          bool   `yaml:"enabled" json:"enabled"`
	OnComplete       bool   `yaml:"on_complete" json:"on_complete"`
	OnError          bool   `yaml:"on_error" json:"on_error"`
	NotificationType string `yaml:"notification_type" json:"notification_type"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	File   string `yaml:"file" json:"file"`
}

const (
	LedgerBackendFile  = "file"
	LedgerBackendRedis = "redis"

	DedupKeyUsername = "username"
	DedupKeyPost     = "post"
)

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Browser: BrowserConfig{
			Headless:          true,
			UserAgent:         "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36",
			WindowWidth:       1920,
			WindowHeight:      1080,
			NavigationTimeout: 30 * time.Second,
			IdentityTimeout:   15 * time.Second,
		},
		Discovery: DiscoveryConfig{
			MaxScrolls:       50,
			SettleDelay:      3 * time.Second,
			FeedTimeout:      20 * time.Second,
			AuthorTimeout:    10 * time.Second,
			CloseTimeout:     5 * time.Second,
			MaxProfilesLimit: 200,
		},
		Selectors: instagram.DefaultSelectors(),
		Ledger: LedgerConfig{
			Backend:  LedgerBackendFile,
			Path:     filepath.Join("data", "seen_profiles.json"),
			DedupKey: DedupKeyUsername,
			Redis: RedisConfig{
				Address: "localhost:6379",
				Key:     "igsaved:ledger",
			},
		},
		RateLimit: RateLimitConfig{
			ProfilesPerMinute: 30,
			BurstSize:         1,
		},
		Retry: RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 2 * time.Second,
			MaxDelay:     15 * time.Second,
			Multiplier:   2.0,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Minute,
			ShutdownTimeout: 30 * time.Second,
		},
		Output: OutputConfig{
			Directory:   "./results",
			SaveResults: false,
		},
		Notifications: NotificationConfig{
			Enabled:          false,
			OnComplete:       true,
			OnError:          true,
			NotificationType: "terminal",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	setDuration := func(key string, dst *time.Duration) {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	setBool := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			*dst = strings.EqualFold(v, "true") || v == "1"
		}
	}

	// Instagram cookies
	setString("IGSAVED_SESSION_ID", &c.Instagram.SessionID)
	setString("IGSAVED_DS_USER_ID", &c.Instagram.DSUserID)
	setString("IGSAVED_CSRF_TOKEN", &c.Instagram.CSRFToken)

	// Browser
	setBool("IGSAVED_HEADLESS", &c.Browser.Headless)
	setString("IGSAVED_CHROME_PATH", &c.Browser.ExecPath)
	setString("IGSAVED_USER_AGENT", &c.Browser.UserAgent)
	setString("IGSAVED_PROFILE_BASE_DIR", &c.Browser.ProfileBaseDir)
	setDuration("IGSAVED_IDENTITY_TIMEOUT", &c.Browser.IdentityTimeout)

	// Discovery
	setInt("IGSAVED_MAX_SCROLLS", &c.Discovery.MaxScrolls)
	setDuration("IGSAVED_SETTLE_DELAY", &c.Discovery.SettleDelay)

	// Ledger
	setString("IGSAVED_LEDGER_BACKEND", &c.Ledger.Backend)
	setString("IGSAVED_LEDGER_PATH", &c.Ledger.Path)
	setString("IGSAVED_DEDUP_KEY", &c.Ledger.DedupKey)
	setString("IGSAVED_REDIS_ADDRESS", &c.Ledger.Redis.Address)
	setString("IGSAVED_REDIS_PASSWORD", &c.Ledger.Redis.Password)
	setInt("IGSAVED_REDIS_DB", &c.Ledger.Redis.DB)

	// Rate limiting
	setInt("IGSAVED_PROFILES_PER_MINUTE", &c.RateLimit.ProfilesPerMinute)

	// Server
	setString("IGSAVED_HOST", &c.Server.Host)
	setInt("IGSAVED_PORT", &c.Server.Port)

	// Output, notifications, logging
	setString("IGSAVED_OUTPUT_DIR", &c.Output.Directory)
	setBool("IGSAVED_NOTIFICATIONS_ENABLED", &c.Notifications.Enabled)
	setString("IGSAVED_LOG_LEVEL", &c.Logging.Level)
	setString("IGSAVED_LOG_FORMAT", &c.Logging.Format)

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	c.Selectors = c.Selectors.WithDefaults()
	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".igsaved.yaml",
		".igsaved.yml",
		filepath.Join(home, ".config", "igsaved", "config.yaml"),
		filepath.Join(home, ".config", "igsaved", "config.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Complete reports whether a full cookie set is configured
func (c *InstagramConfig) Complete() bool {
	return c.SessionID != "" && c.DSUserID != "" && c.CSRFToken != ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	// Browser
	if c.Browser.WindowWidth <= 0 || c.Browser.WindowHeight <= 0 {
		errs = append(errs, errors.New("browser window size must be positive"))
	}
	if c.Browser.NavigationTimeout <= 0 {
		errs = append(errs, errors.New("navigation timeout must be positive"))
	}
	if c.Browser.IdentityTimeout <= 0 {
		errs = append(errs, errors.New("identity timeout must be positive"))
	}

	// Discovery
	if c.Discovery.MaxScrolls <= 0 {
		errs = append(errs, errors.New("max scrolls must be positive"))
	}
	if c.Discovery.SettleDelay < 0 {
		errs = append(errs, errors.New("settle delay cannot be negative"))
	}
	if c.Discovery.AuthorTimeout <= 0 || c.Discovery.CloseTimeout <= 0 || c.Discovery.FeedTimeout <= 0 {
		errs = append(errs, errors.New("discovery timeouts must be positive"))
	}
	if c.Discovery.MaxProfilesLimit <= 0 {
		errs = append(errs, errors.New("max profiles limit must be positive"))
	}

	// Ledger
	switch c.Ledger.Backend {
	case LedgerBackendFile:
		if c.Ledger.Path == "" {
			errs = append(errs, errors.New("ledger path is required for the file backend"))
		}
	case LedgerBackendRedis:
		if c.Ledger.Redis.Address == "" {
			errs = append(errs, errors.New("redis address is required for the redis backend"))
		}
		if c.Ledger.Redis.Key == "" {
			errs = append(errs, errors.New("redis key is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown ledger backend %q", c.Ledger.Backend))
	}
	if c.Ledger.DedupKey != DedupKeyUsername && c.Ledger.DedupKey != DedupKeyPost {
		errs = append(errs, fmt.Errorf("dedup key must be %q or %q", DedupKeyUsername, DedupKeyPost))
	}

	// Rate limiting
	if c.RateLimit.ProfilesPerMinute <= 0 {
		errs = append(errs, errors.New("profiles per minute must be positive"))
	}
	if c.RateLimit.BurstSize <= 0 {
		errs = append(errs, errors.New("burst size must be positive"))
	}

	// Retry
	if c.Retry.MaxAttempts <= 0 {
		errs = append(errs, errors.New("retry max attempts must be positive"))
	}
	if c.Retry.Multiplier < 1 {
		errs = append(errs, errors.New("retry multiplier must be at least 1"))
	}

	// Server
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, errors.New("server port must be between 1 and 65535"))
	}

	// Output
	if c.Output.SaveResults && c.Output.Directory == "" {
		errs = append(errs, errors.New("output directory is required when saving results"))
	}

	// Logging
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}
	if f := strings.ToLower(c.Logging.Format); f != "console" && f != "json" {
		errs = append(errs, errors.New("log format must be console or json"))
	}

	// Notification type
	validNotifTypes := map[string]bool{
		"terminal": true, "desktop": true, "none": true,
	}
	if !validNotifTypes[strings.ToLower(c.Notifications.NotificationType)] {
		errs = append(errs, errors.New("invalid notification type"))
	}

	return errors.Join(errs...)
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration.
// Keys are flag names; zero values are ignored.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["session-id"].(string); ok && v != "" {
		c.Instagram.SessionID = v
	}
	if v, ok := flags["ds-user-id"].(string); ok && v != "" {
		c.Instagram.DSUserID = v
	}
	if v, ok := flags["csrf-token"].(string); ok && v != "" {
		c.Instagram.CSRFToken = v
	}
	if v, ok := flags["headless"].(bool); ok {
		c.Browser.Headless = v
	}
	if v, ok := flags["chrome-path"].(string); ok && v != "" {
		c.Browser.ExecPath = v
	}
	if v, ok := flags["max-scrolls"].(int); ok && v > 0 {
		c.Discovery.MaxScrolls = v
	}
	if v, ok := flags["ledger"].(string); ok && v != "" {
		c.Ledger.Path = v
	}
	if v, ok := flags["ledger-backend"].(string); ok && v != "" {
		c.Ledger.Backend = v
	}
	if v, ok := flags["dedup-key"].(string); ok && v != "" {
		c.Ledger.DedupKey = v
	}
	if v, ok := flags["port"].(int); ok && v > 0 {
		c.Server.Port = v
	}
	if v, ok := flags["output"].(string); ok && v != "" {
		c.Output.Directory = v
		c.Output.SaveResults = true
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := flags["log-format"].(string); ok && v != "" {
		c.Logging.Format = v
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// .env files are optional
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".igsaved.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	// Environment includes values from .env
	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
