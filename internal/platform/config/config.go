package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/planhub/planhub/internal/platform/env"
)

// Config is the shared service configuration. Values come from an optional
// TOML file (PLANHUB_CONFIG), then environment variables on top; a .env file
// is loaded first when present so local development needs no exports.
type Config struct {
	PlanAPIAddr     string        `toml:"plan_api_addr"`
	StreamerAddr    string        `toml:"streamer_addr"`
	DatabaseURL     string        `toml:"database_url"`
	NATSURL         string        `toml:"nats_url"`
	JWTSecret       string        `toml:"jwt_secret"`
	UIOrigin        string        `toml:"ui_origin"`
	ShutdownTimeout time.Duration `toml:"-"`
}

func Load() (*Config, error) {
	// .env is optional when variables come from the environment (Docker, CI).
	_ = godotenv.Load()

	cfg := &Config{
		PlanAPIAddr:     env.DefaultPlanAPIAddr,
		StreamerAddr:    env.DefaultStreamerAddr,
		DatabaseURL:     env.DefaultDatabaseURL,
		NATSURL:         env.DefaultNATSURL,
		JWTSecret:       "dev-insecure-change-me",
		UIOrigin:        "http://localhost:8081",
		ShutdownTimeout: 10 * time.Second,
	}

	if path := strings.TrimSpace(os.Getenv("PLANHUB_CONFIG")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := toml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.PlanAPIAddr = env.String("PLAN_API_ADDR", cfg.PlanAPIAddr)
	cfg.StreamerAddr = env.String("STREAMER_ADDR", cfg.StreamerAddr)
	cfg.DatabaseURL = env.String("DATABASE_URL", cfg.DatabaseURL)
	cfg.NATSURL = env.String("NATS_URL", cfg.NATSURL)
	cfg.JWTSecret = env.String("JWT_SECRET", cfg.JWTSecret)
	cfg.UIOrigin = env.String("UI_ORIGIN", cfg.UIOrigin)
	cfg.ShutdownTimeout = env.Duration("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("config: JWT_SECRET must not be empty")
	}

	parsed, err := url.Parse(c.DatabaseURL)
	if err != nil {
		return fmt.Errorf("config: invalid DATABASE_URL (%q): %w", c.DatabaseURL, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("config: invalid DATABASE_URL (%q): missing scheme or host", c.DatabaseURL)
	}
	return nil
}
