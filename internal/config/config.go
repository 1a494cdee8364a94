package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"

	"offer-tracker/internal/tracing"
)

// Legacy store backends.
const (
	LegacyDisk   = "disk"
	LegacyRedis  = "redis"
	LegacyMemory = "memory"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `json:"server"`
	Database  DatabaseConfig  `json:"database"`
	Legacy    LegacyConfig    `json:"legacy"`
	Security  SecurityConfig  `json:"security"`
	RateLimit RateLimitConfig `json:"rate_limit"`
	Tracing   tracing.Config  `json:"tracing"`
	Reminders RemindersConfig `json:"reminders"`
	Settings  SettingsConfig  `json:"settings"`
	Export    ExportConfig    `json:"export"`
	Features  map[string]bool `json:"features"`
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Port string `json:"port"`
	Host string `json:"host"`
}

// DatabaseConfig holds the primary store configuration.
type DatabaseConfig struct {
	Path string `json:"path"`
}

// LegacyConfig selects and configures the fallback flat-key store.
type LegacyConfig struct {
	Backend       string `json:"backend"`
	Path          string `json:"path"`
	RedisAddr     string `json:"redis_addr"`
	RedisPassword string `json:"redis_password"`
	RedisDB       int    `json:"redis_db"`
	RedisPrefix   string `json:"redis_prefix"`
}

// SecurityConfig holds security-related configuration.
type SecurityConfig struct {
	// Max request body size in bytes (default: 1MB)
	MaxRequestBodySize int64 `json:"max_request_body_size"`
	// Allowed CORS origins (comma-separated)
	AllowedOrigins string `json:"allowed_origins"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	Enabled bool `json:"enabled"`
	Rate    int  `json:"rate"`
	Window  int  `json:"window"` // in seconds
}

// RemindersConfig configures the follow-up scan.
type RemindersConfig struct {
	Interval int `json:"interval"` // in seconds
}

// SettingsConfig configures settings persistence.
type SettingsConfig struct {
	AutosaveDelayMS int `json:"autosave_delay_ms"`
}

// ExportConfig configures where reports are written.
type ExportConfig struct {
	Dir string `json:"dir"`
}

// ReminderInterval returns the scan interval.
func (c *Config) ReminderInterval() time.Duration {
	return time.Duration(c.Reminders.Interval) * time.Second
}

// AutosaveDelay returns the settings debounce delay.
func (c *Config) AutosaveDelay() time.Duration {
	return time.Duration(c.Settings.AutosaveDelayMS) * time.Millisecond
}

// LoadConfig loads configuration from environment variables and/or config file.
// Environment variables take precedence over config file values. A .env file in the
// working directory is loaded first; variables already set are not overwritten.
func LoadConfig(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "127.0.0.1"),
		},
		Database: DatabaseConfig{
			Path: getEnv("DATABASE_PATH", "./offer_tracker.db"),
		},
		Legacy: LegacyConfig{
			Backend:       getEnv("LEGACY_BACKEND", LegacyDisk),
			Path:          getEnv("LEGACY_PATH", "./offer_tracker_legacy"),
			RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getEnvInt("REDIS_DB", 0),
			RedisPrefix:   getEnv("REDIS_PREFIX", "offer-tracker:"),
		},
		Security: SecurityConfig{
			MaxRequestBodySize: getEnvInt64("MAX_REQUEST_BODY_SIZE", 1<<20),
			AllowedOrigins:     getEnv("ALLOWED_ORIGINS", "*"),
		},
		RateLimit: RateLimitConfig{
			Enabled: getEnvBool("RATE_LIMIT_ENABLED", true),
			Rate:    getEnvInt("RATE_LIMIT_RATE", 100),
			Window:  getEnvInt("RATE_LIMIT_WINDOW", 60),
		},
		Tracing: tracing.Config{
			Enabled:     getEnvBool("TRACING_ENABLED", false),
			Endpoint:    getEnv("JAEGER_ENDPOINT", "http://localhost:14268/api/traces"),
			ServiceName: getEnv("SERVICE_NAME", tracing.DefaultServiceName),
			Environment: getEnv("ENVIRONMENT", "development"),
			Version:     getEnv("SERVICE_VERSION", "dev"),
		},
		Reminders: RemindersConfig{
			Interval: getEnvInt("REMINDER_INTERVAL", 60),
		},
		Settings: SettingsConfig{
			AutosaveDelayMS: getEnvInt("SETTINGS_AUTOSAVE_DELAY_MS", 1000),
		},
		Export: ExportConfig{
			Dir: getEnv("EXPORT_DIR", "~/Documents/offer-tracker"),
		},
		Features: map[string]bool{},
	}

	// Load from config file if provided
	if configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// Override with environment variables (they take precedence)
	overrideFromEnv(cfg)

	if err := expandPaths(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFromFile loads configuration from a JSON file.
func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, cfg)
}

// overrideFromEnv overrides configuration with environment variables.
func overrideFromEnv(cfg *Config) {
	setString("SERVER_PORT", &cfg.Server.Port)
	setString("SERVER_HOST", &cfg.Server.Host)
	setString("DATABASE_PATH", &cfg.Database.Path)

	setString("LEGACY_BACKEND", &cfg.Legacy.Backend)
	setString("LEGACY_PATH", &cfg.Legacy.Path)
	setString("REDIS_ADDR", &cfg.Legacy.RedisAddr)
	setString("REDIS_PASSWORD", &cfg.Legacy.RedisPassword)
	setInt("REDIS_DB", &cfg.Legacy.RedisDB)
	setString("REDIS_PREFIX", &cfg.Legacy.RedisPrefix)

	if maxBodySize := os.Getenv("MAX_REQUEST_BODY_SIZE"); maxBodySize != "" {
		if size, err := strconv.ParseInt(maxBodySize, 10, 64); err == nil {
			cfg.Security.MaxRequestBodySize = size
		}
	}
	setString("ALLOWED_ORIGINS", &cfg.Security.AllowedOrigins)

	setBool("RATE_LIMIT_ENABLED", &cfg.RateLimit.Enabled)
	setInt("RATE_LIMIT_RATE", &cfg.RateLimit.Rate)
	setInt("RATE_LIMIT_WINDOW", &cfg.RateLimit.Window)

	setBool("TRACING_ENABLED", &cfg.Tracing.Enabled)
	setString("JAEGER_ENDPOINT", &cfg.Tracing.Endpoint)
	setString("SERVICE_NAME", &cfg.Tracing.ServiceName)
	setString("ENVIRONMENT", &cfg.Tracing.Environment)
	setString("SERVICE_VERSION", &cfg.Tracing.Version)

	setInt("REMINDER_INTERVAL", &cfg.Reminders.Interval)
	setInt("SETTINGS_AUTOSAVE_DELAY_MS", &cfg.Settings.AutosaveDelayMS)
	setString("EXPORT_DIR", &cfg.Export.Dir)

	// FEATURES=export=false,followup_reminders=true
	if features := os.Getenv("FEATURES"); features != "" {
		if cfg.Features == nil {
			cfg.Features = map[string]bool{}
		}
		for _, pair := range strings.Split(features, ",") {
			name, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
			if !ok || name == "" {
				continue
			}
			cfg.Features[name] = parseBool(value)
		}
	}
}

func expandPaths(cfg *Config) error {
	for _, p := range []*string{&cfg.Database.Path, &cfg.Legacy.Path, &cfg.Export.Dir} {
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("failed to expand path %q: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

func setString(key string, dst *string) {
	if value := os.Getenv(key); value != "" {
		*dst = value
	}
}

func setInt(key string, dst *int) {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			*dst = i
		}
	}
}

func setBool(key string, dst *bool) {
	if value := os.Getenv(key); value != "" {
		*dst = parseBool(value)
	}
}

func parseBool(value string) bool {
	return strings.ToLower(value) == "true" || value == "1"
}

// getEnv gets an environment variable or returns the default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable or returns the default value.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return parseBool(value)
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable or returns the default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvInt64 gets an int64 environment variable or returns the default value.
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	switch c.Legacy.Backend {
	case LegacyDisk:
		if c.Legacy.Path == "" {
			return fmt.Errorf("legacy path is required for the disk backend")
		}
	case LegacyRedis:
		if c.Legacy.RedisAddr == "" {
			return fmt.Errorf("redis address is required for the redis backend")
		}
	case LegacyMemory:
	default:
		return fmt.Errorf("unknown legacy backend %q", c.Legacy.Backend)
	}
	if c.RateLimit.Enabled {
		if c.RateLimit.Rate <= 0 {
			return fmt.Errorf("rate limit rate must be positive")
		}
		if c.RateLimit.Window <= 0 {
			return fmt.Errorf("rate limit window must be positive")
		}
	}
	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		return fmt.Errorf("tracing endpoint is required when tracing is enabled")
	}
	if c.Reminders.Interval <= 0 {
		return fmt.Errorf("reminder interval must be positive")
	}
	if c.Settings.AutosaveDelayMS < 0 {
		return fmt.Errorf("autosave delay cannot be negative")
	}
	return nil
}
