package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/abelbrown/dropwatch/internal/api"
)

// Environment variables read by AutoPopulateFromEnv.
const (
	EnvBaseURL     = "DROPWATCH_BASE_URL"
	EnvPostLimit   = "DROPWATCH_POST_LIMIT"
	EnvLogLevel    = "DROPWATCH_LOG_LEVEL"
	EnvMetricsAddr = "DROPWATCH_METRICS_ADDR"
	EnvAuthor      = "DROPWATCH_AUTHOR"
)

// Config is the persistent application configuration
type Config struct {
	Backend BackendConfig `json:"backend"`
	UI      UIConfig      `json:"ui"`
	Logging LoggingConfig `json:"logging"`

	// MetricsAddr enables the Prometheus endpoint when set, e.g. ":9090".
	MetricsAddr string `json:"metrics_addr,omitempty"`
}

// BackendConfig says where the feed backend lives
type BackendConfig struct {
	BaseURL   string `json:"base_url"`
	PostLimit int    `json:"post_limit"` // ?limit= on the posts snapshot
}

// UIConfig holds UI preferences
type UIConfig struct {
	Author     string `json:"author"`      // label on every card
	ProfileURL string `json:"profile_url"` // @mention link prefix
	HashtagURL string `json:"hashtag_url"` // #tag link prefix
}

// LoggingConfig holds log settings
type LoggingConfig struct {
	Level string `json:"level"` // debug, info, warn, error
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			BaseURL:   "http://localhost:5000",
			PostLimit: api.DefaultLimit,
		},
		UI: UIConfig{
			Author:     "@binance",
			ProfileURL: "https://twitter.com/",
			HashtagURL: "https://twitter.com/hashtag/",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// ConfigPath returns the path to the config file
func ConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".dropwatch", "config.json")
}

// LoadFrom reads config from path. A missing file yields defaults. Fields
// absent from the file keep their default values. Settings from envFiles
// come next, and the process environment overrides everything.
func LoadFrom(path string, envFiles ...string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	for _, f := range envFiles {
		if err := cfg.LoadEnvFile(f); err != nil {
			return nil, err
		}
	}
	if err := cfg.AutoPopulateFromEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveTo writes config to path, creating its directory.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// AutoPopulateFromEnv overrides fields from DROPWATCH_* environment variables.
func (c *Config) AutoPopulateFromEnv() error {
	return c.apply(os.Getenv)
}

// LoadEnvFile applies DROPWATCH_* settings from a .env style file without
// touching the process environment. A missing file is not an error.
func (c *Config) LoadEnvFile(path string) error {
	vars, err := godotenv.Read(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	return c.apply(func(key string) string { return vars[key] })
}

func (c *Config) apply(getenv func(string) string) error {
	if v := getenv(EnvBaseURL); v != "" {
		c.Backend.BaseURL = v
	}
	if v := getenv(EnvPostLimit); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", EnvPostLimit, err)
		}
		c.Backend.PostLimit = n
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
	if v := getenv(EnvMetricsAddr); v != "" {
		c.MetricsAddr = v
	}
	if v := getenv(EnvAuthor); v != "" {
		c.UI.Author = v
	}
	return nil
}

// Validate checks the settings the client cannot run without.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("config: base_url %q must be an http(s) URL", c.Backend.BaseURL)
	}
	if c.Backend.PostLimit <= 0 {
		return fmt.Errorf("config: post_limit must be positive, got %d", c.Backend.PostLimit)
	}
	for name, prefix := range map[string]string{"profile_url": c.UI.ProfileURL, "hashtag_url": c.UI.HashtagURL} {
		if !strings.HasPrefix(prefix, "http://") && !strings.HasPrefix(prefix, "https://") {
			return fmt.Errorf("config: %s %q must be an http(s) URL", name, prefix)
		}
	}
	return nil
}
