package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
	Fetch     FetchConfig
	Icons     IconConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
	Host string `envconfig:"HOST" default:"127.0.0.1"`
	// CORSOrigins is a comma separated list, "*" allows any origin
	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"*"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds API rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
	// Resolve* bound ensure and refresh across all clients since each may fetch
	ResolvePerSecond int `envconfig:"RATE_LIMIT_RESOLVE_RPS" default:"10"`
	ResolveBurst     int `envconfig:"RATE_LIMIT_RESOLVE_BURST" default:"20"`
}

// FetchConfig holds outbound HTTP configuration used by the icon probes.
type FetchConfig struct {
	Timeout      time.Duration `envconfig:"FETCH_TIMEOUT" default:"10s"`
	Retries      int           `envconfig:"FETCH_RETRIES" default:"1"`
	MaxRedirects int           `envconfig:"FETCH_MAX_REDIRECTS" default:"5"`
	UserAgent    string        `envconfig:"FETCH_USER_AGENT" default:"Mozilla/5.0 (X11; Linux x86_64)"`
	// RequestsPerSecond limits outbound requests across all hosts, 0 = unlimited
	RequestsPerSecond float64 `envconfig:"FETCH_RPS" default:"20"`
	MaxBodyBytes      int64   `envconfig:"FETCH_MAX_BODY" default:"5242880"`
}

// IconConfig holds icon storage and resolution configuration.
type IconConfig struct {
	// DataDir holds stored icons under DataDir/icons; empty keeps them in memory
	DataDir string `envconfig:"ICON_DATA_DIR" default:""`
	// AppsDir is scanned for app records to warm icons at startup
	AppsDir     string `envconfig:"ICON_APPS_DIR" default:""`
	MaxSize     int    `envconfig:"ICON_MAX_SIZE" default:"512"`
	CacheSize   int    `envconfig:"ICON_CACHE_SIZE" default:"256"`
	Concurrency int    `envconfig:"ICON_CONCURRENCY" default:"4"`
	WarmOnStart bool   `envconfig:"ICON_WARM_ON_START" default:"true"`
	// Fallback* color the rasterized letter icon, in #rgb or #rrggbb notation
	FallbackBackground string `envconfig:"ICON_FALLBACK_BG" default:"#4f46e5"`
	FallbackForeground string `envconfig:"ICON_FALLBACK_FG" default:"#ffffff"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Validate rejects values the icon subsystem cannot work with.
func (c *Config) Validate() error {
	if c.Icons.MaxSize <= 0 {
		return fmt.Errorf("ICON_MAX_SIZE must be positive, got %d", c.Icons.MaxSize)
	}
	if c.Icons.Concurrency <= 0 {
		return fmt.Errorf("ICON_CONCURRENCY must be positive, got %d", c.Icons.Concurrency)
	}
	if c.Fetch.MaxRedirects < 0 {
		return fmt.Errorf("FETCH_MAX_REDIRECTS cannot be negative")
	}
	if !isHexColor(c.Icons.FallbackBackground) {
		return fmt.Errorf("ICON_FALLBACK_BG must be a hex color, got %q", c.Icons.FallbackBackground)
	}
	if !isHexColor(c.Icons.FallbackForeground) {
		return fmt.Errorf("ICON_FALLBACK_FG must be a hex color, got %q", c.Icons.FallbackForeground)
	}
	return nil
}

func isHexColor(s string) bool {
	if len(s) != 4 && len(s) != 7 || s[0] != '#' {
		return false
	}
	for _, r := range s[1:] {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return false
		}
	}
	return true
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "8000",
			Host:        "127.0.0.1",
			CORSOrigins: []string{"*"},
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
			ResolvePerSecond:  10,
			ResolveBurst:      20,
		},
		Fetch: FetchConfig{
			Timeout:           10 * time.Second,
			Retries:           1,
			MaxRedirects:      5,
			UserAgent:         "Mozilla/5.0 (X11; Linux x86_64)",
			RequestsPerSecond: 20,
			MaxBodyBytes:      5 << 20,
		},
		Icons: IconConfig{
			MaxSize:     512,
			CacheSize:   256,
			Concurrency: 4,
			WarmOnStart: true,

			FallbackBackground: "#4f46e5",
			FallbackForeground: "#ffffff",
		},
	}
}
