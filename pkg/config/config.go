package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the history scanner
type Config struct {
	// Ring API session settings
	Ring RingConfig `yaml:"ring" json:"ring"`

	// History scan settings
	Scan ScanConfig `yaml:"scan" json:"scan"`

	// Rate limiting for API calls
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Recording download settings
	Download DownloadConfig `yaml:"download" json:"download"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// RingConfig holds Ring API session configuration
type RingConfig struct {
	RefreshToken string `yaml:"refresh_token" json:"refresh_token"`
	UserAgent    string `yaml:"user_agent" json:"user_agent"`
}

// ScanConfig holds history scan configuration
type ScanConfig struct {
	// HistoryLimit is the total number of events to inspect per device.
	// Zero or negative means page until the feed is exhausted.
	HistoryLimit int `yaml:"history_limit" json:"history_limit"`

	// WindowEnd is the inclusive end of the daily match window as "HH:MM";
	// the window always starts at 00:00 local time.
	WindowEnd string `yaml:"window_end" json:"window_end"`

	// Timezone is an IANA zone name; empty or invalid falls back to the
	// system local zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// StateFile is where resume checkpoints are persisted.
	StateFile string `yaml:"state_file" json:"state_file"`
}

// RateLimitConfig holds API pacing configuration
type RateLimitConfig struct {
	RequestsPerMinute int           `yaml:"requests_per_minute" json:"requests_per_minute"`
	MaxRetries        int           `yaml:"max_retries" json:"max_retries"`
	RetryDelay        time.Duration `yaml:"retry_delay" json:"retry_delay"`
}

// DownloadConfig holds recording download configuration
type DownloadConfig struct {
	Directory           string        `yaml:"directory" json:"directory"`
	ConcurrentDownloads int           `yaml:"concurrent_downloads" json:"concurrent_downloads"`
	DownloadTimeout     time.Duration `yaml:"download_timeout" json:"download_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Ring: RingConfig{
			UserAgent: "ringhist/1.0",
		},
		Scan: ScanConfig{
			HistoryLimit: 3000,
			WindowEnd:    "05:30",
			Timezone:     "Europe/London",
			StateFile:    "ring_history_state.json",
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 60,
			MaxRetries:        3,
			RetryDelay:        5 * time.Second,
		},
		Download: DownloadConfig{
			Directory:           "ring_videos",
			ConcurrentDownloads: 1,
			DownloadTimeout:     60 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if token := os.Getenv("RINGHIST_REFRESH_TOKEN"); token != "" {
		c.Ring.RefreshToken = token
	}
	if userAgent := os.Getenv("RINGHIST_USER_AGENT"); userAgent != "" {
		c.Ring.UserAgent = userAgent
	}

	if limit := os.Getenv("RINGHIST_HISTORY_LIMIT"); limit != "" {
		var val int
		fmt.Sscanf(limit, "%d", &val)
		if val != 0 {
			c.Scan.HistoryLimit = val
		}
	}
	if windowEnd := os.Getenv("RINGHIST_WINDOW_END"); windowEnd != "" {
		c.Scan.WindowEnd = windowEnd
	}
	if tz := os.Getenv("RINGHIST_TIMEZONE"); tz != "" {
		c.Scan.Timezone = tz
	}
	if stateFile := os.Getenv("RINGHIST_STATE_FILE"); stateFile != "" {
		c.Scan.StateFile = stateFile
	}

	if rpm := os.Getenv("RINGHIST_REQUESTS_PER_MINUTE"); rpm != "" {
		var val int
		fmt.Sscanf(rpm, "%d", &val)
		if val > 0 {
			c.RateLimit.RequestsPerMinute = val
		}
	}

	if dir := os.Getenv("RINGHIST_DOWNLOAD_DIR"); dir != "" {
		c.Download.Directory = dir
	}
	if concurrent := os.Getenv("RINGHIST_CONCURRENT_DOWNLOADS"); concurrent != "" {
		var val int
		fmt.Sscanf(concurrent, "%d", &val)
		if val > 0 {
			c.Download.ConcurrentDownloads = val
		}
	}

	if logLevel := os.Getenv("RINGHIST_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}

	return nil
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

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	// Check in order of precedence
	locations := []string{
		".ringhist.yaml",
		".ringhist.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "ringhist", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "ringhist", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".ringhist.yaml"),
		filepath.Join(os.Getenv("HOME"), ".ringhist.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// ParseWindowEnd parses a "HH:MM" window boundary into hour and minute parts
func ParseWindowEnd(value string) (int, int, error) {
	var hour, minute int
	if n, err := fmt.Sscanf(value, "%d:%d", &hour, &minute); err != nil || n != 2 {
		return 0, 0, fmt.Errorf("invalid window end %q: expected HH:MM", value)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid window end %q: out of range", value)
	}
	return hour, minute, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if _, _, err := ParseWindowEnd(c.Scan.WindowEnd); err != nil {
		errs = append(errs, err)
	}
	if c.Scan.StateFile == "" {
		errs = append(errs, errors.New("state file path is required"))
	}

	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}
	if c.RateLimit.MaxRetries < 0 {
		errs = append(errs, errors.New("max retries cannot be negative"))
	}

	if c.Download.Directory == "" {
		errs = append(errs, errors.New("download directory is required"))
	}
	if c.Download.ConcurrentDownloads <= 0 {
		errs = append(errs, errors.New("concurrent downloads must be positive"))
	}
	if c.Download.ConcurrentDownloads > 10 {
		errs = append(errs, errors.New("concurrent downloads should not exceed 10"))
	}
	if c.Download.DownloadTimeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if limit, ok := flags["limit"].(int); ok && limit != 0 {
		c.Scan.HistoryLimit = limit
	}
	if windowEnd, ok := flags["window-end"].(string); ok && windowEnd != "" {
		c.Scan.WindowEnd = windowEnd
	}
	if tz, ok := flags["timezone"].(string); ok && tz != "" {
		c.Scan.Timezone = tz
	}
	if stateFile, ok := flags["state-file"].(string); ok && stateFile != "" {
		c.Scan.StateFile = stateFile
	}
	if dir, ok := flags["download-dir"].(string); ok && dir != "" {
		c.Download.Directory = dir
	}
	if concurrent, ok := flags["concurrent"].(int); ok && concurrent > 0 {
		c.Download.ConcurrentDownloads = concurrent
	}
	if rpm, ok := flags["rate-limit"].(int); ok && rpm > 0 {
		c.RateLimit.RequestsPerMinute = rpm
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".ringhist.env"))

	// Start with defaults
	config := DefaultConfig()

	// Load from config file
	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	// Override with environment variables (includes values from .env)
	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Override with command line flags
	config.MergeCommandLineFlags(flags)

	// Validate final configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
