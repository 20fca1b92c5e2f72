package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/iisharvard/a2b-sub002/internal/domain"
)

// Config holds the service's runtime configuration.
type Config struct {
	DBPath                   string   `json:"db_path" yaml:"db_path"`
	UserID                   string   `json:"user_id" yaml:"user_id"`
	BackendURL               string   `json:"backend_url" yaml:"backend_url"`
	BackendAPIKey            string   `json:"backend_api_key" yaml:"backend_api_key"`
	ListenAddr               string   `json:"listen_addr" yaml:"listen_addr"`
	AllowedOrigins           []string `json:"allowed_origins" yaml:"allowed_origins"`
	RequestTimeoutSec        int      `json:"request_timeout_sec" yaml:"request_timeout_sec"`
	HealthIntervalSec        int      `json:"health_interval_sec" yaml:"health_interval_sec"`
	RateLimitBackoffMs       int      `json:"rate_limit_backoff_ms" yaml:"rate_limit_backoff_ms"`
	RateLimitPerMinute       int      `json:"rate_limit_per_minute" yaml:"rate_limit_per_minute"`
	MaxScenariosPerComponent int      `json:"max_scenarios_per_component" yaml:"max_scenarios_per_component"`
	LogLevel                 string   `json:"log_level" yaml:"log_level"`
}

// envOverrides maps environment variables onto string fields. They are
// applied after the file is parsed, so a .env file can hold secrets.
var envOverrides = map[string]func(c *Config, v string){
	"NEG_DB_PATH":         func(c *Config, v string) { c.DBPath = v },
	"NEG_USER_ID":         func(c *Config, v string) { c.UserID = v },
	"NEG_BACKEND_URL":     func(c *Config, v string) { c.BackendURL = v },
	"NEG_BACKEND_API_KEY": func(c *Config, v string) { c.BackendAPIKey = v },
	"NEG_LISTEN_ADDR":     func(c *Config, v string) { c.ListenAddr = v },
	"NEG_LOG_LEVEL":       func(c *Config, v string) { c.LogLevel = v },
}

// Load reads a JSON or YAML config file, applies environment overrides and
// defaults, and validates. Files ending in .yaml or .yml are parsed as YAML.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config JSON: %w", err)
		}
	}

	cfg.applyEnv(os.LookupEnv)
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	for name, set := range envOverrides {
		if v, ok := lookup(name); ok && v != "" {
			set(c, v)
		}
	}
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":9810"
	}
	if c.RequestTimeoutSec == 0 {
		c.RequestTimeoutSec = 60
	}
	if c.HealthIntervalSec == 0 {
		c.HealthIntervalSec = 30
	}
	if c.RateLimitBackoffMs == 0 {
		c.RateLimitBackoffMs = 5000
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 30
	}
	if c.MaxScenariosPerComponent == 0 {
		c.MaxScenariosPerComponent = domain.MaxScenariosPerComponent
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func (c *Config) validate() error {
	var problems []string

	if c.DBPath == "" {
		problems = append(problems, "db_path is required")
	}
	if c.UserID == "" {
		problems = append(problems, "user_id is required")
	}
	if c.BackendURL == "" {
		problems = append(problems, "backend_url is required")
	} else if u, err := url.Parse(c.BackendURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		problems = append(problems, "backend_url must be an http(s) URL")
	}
	if c.MaxScenariosPerComponent < 1 || c.MaxScenariosPerComponent > domain.MaxScenariosPerComponent {
		problems = append(problems, fmt.Sprintf("max_scenarios_per_component must be between 1 and %d", domain.MaxScenariosPerComponent))
	}
	if c.RequestTimeoutSec < 0 || c.HealthIntervalSec < 0 || c.RateLimitBackoffMs < 0 {
		problems = append(problems, "timeouts and intervals must not be negative")
	}
	if _, ok := logLevels[strings.ToLower(c.LogLevel)]; !ok {
		problems = append(problems, "log_level must be one of debug, info, warn, error")
	}

	if len(problems) > 0 {
		return &domain.ServiceError{
			Code:    domain.ErrConfigInvalid.Code,
			Message: fmt.Sprintf("%s: %v", domain.ErrConfigInvalid.Message, problems),
		}
	}
	return nil
}

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// SlogLevel returns the configured log level.
func (c *Config) SlogLevel() slog.Level {
	return logLevels[strings.ToLower(c.LogLevel)]
}

// RequestTimeout is the per-request backend timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSec) * time.Second
}

// HealthInterval is the backend health polling period.
func (c *Config) HealthInterval() time.Duration {
	return time.Duration(c.HealthIntervalSec) * time.Second
}

// RateLimitBackoff is the fixed wait before retrying a rate-limited unit.
func (c *Config) RateLimitBackoff() time.Duration {
	return time.Duration(c.RateLimitBackoffMs) * time.Millisecond
}
