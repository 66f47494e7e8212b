package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/msiSibs/urlShortener/internal/core"
)

// Store drivers understood by the application.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// Config holds runtime configuration with sensible defaults for local dev.
type Config struct {
	Port              int           // HTTP port (default 8080)
	BaseURL           string        // e.g., http://localhost:8080 (no trailing slash)
	Env               string        // development | production
	LogLevel          string        // zerolog level name
	StoreDriver       string        // memory | sqlite | postgres | redis
	DBPath            string        // sqlite file, e.g. ./data/urlshortener.db
	DatabaseURL       string        // postgres DSN
	RedisURL          string        // redis://host:port/db
	CodeLength        int           // base62 code length (default 6)
	DefaultExpiryDays int           // <= 0 disables default expiry
	CleanupInterval   time.Duration // 0 disables the background sweeper
	CORSOrigins       []string
}

// FromEnv loads configuration from environment variables, falling back to defaults.
// A local ".env" file is loaded first if present; real env vars win.
func FromEnv() (Config, error) {
	_ = godotenv.Load() // best-effort: missing .env is fine

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("PORT", 8080)
	v.SetDefault("BASE_URL", "http://localhost:8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STORE_DRIVER", DriverSQLite)
	v.SetDefault("DB_PATH", "./data/urlshortener.db")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_URL", "redis://localhost:6379/0")
	v.SetDefault("SHORT_CODE_LENGTH", 6)
	v.SetDefault("DEFAULT_EXPIRY_DAYS", 7)
	v.SetDefault("CLEANUP_INTERVAL", "0s")
	v.SetDefault("CORS_ORIGINS", "*")

	cfg := Config{
		Port:              v.GetInt("PORT"),
		BaseURL:           sanitizeBaseURL(v.GetString("BASE_URL")),
		Env:               strings.ToLower(strings.TrimSpace(v.GetString("APP_ENV"))),
		LogLevel:          strings.ToLower(strings.TrimSpace(v.GetString("LOG_LEVEL"))),
		StoreDriver:       strings.ToLower(strings.TrimSpace(v.GetString("STORE_DRIVER"))),
		DatabaseURL:       strings.TrimSpace(v.GetString("DATABASE_URL")),
		RedisURL:          strings.TrimSpace(v.GetString("REDIS_URL")),
		CodeLength:        v.GetInt("SHORT_CODE_LENGTH"),
		DefaultExpiryDays: v.GetInt("DEFAULT_EXPIRY_DAYS"),
		CleanupInterval:   v.GetDuration("CLEANUP_INTERVAL"),
		CORSOrigins:       splitList(v.GetString("CORS_ORIGINS")),
	}

	if cfg.Port <= 0 {
		cfg.Port = 8080
	}
	if cfg.CodeLength <= 0 {
		cfg.CodeLength = 6
	}
	if cfg.CleanupInterval < 0 {
		cfg.CleanupInterval = 0
	}
	if cfg.DefaultExpiryDays > core.MaxExpiryDays {
		return Config{}, fmt.Errorf("DEFAULT_EXPIRY_DAYS %d exceeds %d", cfg.DefaultExpiryDays, core.MaxExpiryDays)
	}

	switch cfg.StoreDriver {
	case DriverMemory, DriverRedis:
	case DriverSQLite:
		cfg.DBPath = getDBPath(v.GetString("DB_PATH"))
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL is required for store driver %q", cfg.StoreDriver)
		}
	default:
		return Config{}, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
	return cfg, nil
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string { return fmt.Sprintf(":%d", c.Port) }

// IsProduction reports whether APP_ENV selects production behaviour.
func (c Config) IsProduction() bool { return c.Env == "production" }

func sanitizeBaseURL(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimRight(s, "/")
	if s == "" {
		return "http://localhost:8080"
	}
	return s
}

func getDBPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		p = "./data/urlshortener.db"
	}
	if p == ":memory:" {
		return p
	}
	// Normalize to OS-specific path; create parent dir if possible (best-effort).
	p = filepath.Clean(p)
	if dir := filepath.Dir(p); dir != "." && dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}
	return p
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
