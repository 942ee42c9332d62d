// Package config loads application settings from a .env file and environment variables.
// Environment variables always take precedence over .env file values.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// MinSyncInterval is the lower bound applied to SYNC_INTERVAL.
const MinSyncInterval = 5 * time.Minute

// Config holds all application configuration.
type Config struct {
	// PostgreSQL – either set DatabaseURL directly, or the individual fields.
	DatabaseURL string
	DBUser      string
	DBPass      string
	DBHost      string
	DBPort      string
	DBName      string
	DBSSLMode   string

	// JWT signing secret (required).
	JWTSecret string

	// Server
	Debug      bool
	LogFormat  string
	Port       string
	TLSDomains []string
	StaticDir  string

	Sync SyncConfig
	Feed FeedConfig

	// Redis backs the race detail cache; empty disables it.
	RedisURL       string
	DetailCacheTTL time.Duration

	// MySQL – used only by cmd/migrate.
	MySQLDSN string

	// Warnings collects non-fatal adjustments made while loading.
	Warnings []string
}

// SyncConfig controls the background reconciliation job.
type SyncConfig struct {
	Enabled      bool
	Interval     time.Duration
	DefaultVenue string
}

// FeedConfig points at the external race programme feed.
type FeedConfig struct {
	BaseURL         string
	Timeout         time.Duration
	Proxy           string
	DefaultCurrency string
}

// Load reads configuration from a .env file (if present) and then from
// environment variables. Environment variables always win.
func Load() *Config {
	// Silently load .env – OK if the file doesn't exist (production uses real env vars).
	if err := godotenv.Load(); err != nil {
		log.Println("config: no .env file found, using environment variables only")
	}

	v := viper.New()
	v.AutomaticEnv()

	cfg := fromViper(v)
	if err := cfg.validate(); err != nil {
		log.Fatal(err)
	}
	for _, w := range cfg.Warnings {
		log.Println("config:", w)
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("DB_USER", "hippo")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_NAME", "hippodash")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("PORT", ":9000")
	v.SetDefault("DEBUG", false)
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SYNC_ENABLED", true)
	v.SetDefault("SYNC_INTERVAL", "15m")
	v.SetDefault("SYNC_DEFAULT_VENUE", "MAR")

	v.SetDefault("FEED_TIMEOUT", "20s")
	v.SetDefault("FEED_DEFAULT_CURRENCY", "DH")
	v.SetDefault("DETAIL_CACHE_TTL", "10m")
}

func fromViper(v *viper.Viper) *Config {
	setDefaults(v)

	cfg := &Config{
		DatabaseURL: v.GetString("DATABASE_URL"),
		DBUser:      v.GetString("DB_USER"),
		DBPass:      v.GetString("DB_PASS"),
		DBHost:      v.GetString("DB_HOST"),
		DBPort:      v.GetString("DB_PORT"),
		DBName:      v.GetString("DB_NAME"),
		DBSSLMode:   v.GetString("DB_SSLMODE"),
		JWTSecret:   v.GetString("JWT_SECRET"),
		Debug:       v.GetBool("DEBUG"),
		LogFormat:   strings.ToLower(v.GetString("LOG_FORMAT")),
		Port:        v.GetString("PORT"),
		TLSDomains:  splitTrimmed(v.GetString("TLS_DOMAINS")),
		StaticDir:   v.GetString("STATIC_DIR"),
		Sync: SyncConfig{
			Enabled:      v.GetBool("SYNC_ENABLED"),
			Interval:     v.GetDuration("SYNC_INTERVAL"),
			DefaultVenue: strings.TrimSpace(v.GetString("SYNC_DEFAULT_VENUE")),
		},
		Feed: FeedConfig{
			BaseURL:         strings.TrimRight(v.GetString("FEED_BASE_URL"), "/"),
			Timeout:         v.GetDuration("FEED_TIMEOUT"),
			Proxy:           v.GetString("FEED_PROXY"),
			DefaultCurrency: strings.ToUpper(strings.TrimSpace(v.GetString("FEED_DEFAULT_CURRENCY"))),
		},
		RedisURL:       v.GetString("REDIS_URL"),
		DetailCacheTTL: v.GetDuration("DETAIL_CACHE_TTL"),
		MySQLDSN:       v.GetString("MYSQL_DSN"),
	}

	if cfg.Sync.Interval < MinSyncInterval {
		cfg.Warnings = append(cfg.Warnings, fmt.Sprintf(
			"SYNC_INTERVAL %s is below the %s minimum, using %s",
			cfg.Sync.Interval, MinSyncInterval, MinSyncInterval,
		))
		cfg.Sync.Interval = MinSyncInterval
	}
	return cfg
}

// SyncReady reports whether the feed is configured well enough to run
// reconciliation passes.
func (c *Config) SyncReady() bool {
	return c.Feed.BaseURL != ""
}

// PostgresDSN returns the full PostgreSQL connection string.
// DATABASE_URL takes precedence over individual fields.
func (c *Config) PostgresDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser,
		c.DBPass,
		c.DBHost,
		c.DBPort,
		c.DBName,
		c.DBSSLMode,
	)
}

// JWTKey returns the JWT signing key as a byte slice.
func (c *Config) JWTKey() []byte {
	return []byte(c.JWTSecret)
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" && c.DBPass == "" {
		return errors.New("config: DATABASE_URL or DB_PASS must be set")
	}
	if c.JWTSecret == "" {
		return errors.New("config: JWT_SECRET must be set")
	}
	if c.LogFormat != "json" && c.LogFormat != "console" {
		return fmt.Errorf("config: LOG_FORMAT must be json or console, got %q", c.LogFormat)
	}
	return nil
}

func splitTrimmed(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
