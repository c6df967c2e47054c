// config/config.go - Application configuration
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port        string `yaml:"port"`
		Env         string `yaml:"env"`
		CORSOrigins string `yaml:"cors_origins"`
		BodyLimit   int    `yaml:"body_limit"`
	} `yaml:"server"`
	Database struct {
		Driver   string `yaml:"driver"` // sqlite or postgres
		Path     string `yaml:"path"`
		URL      string `yaml:"url"`
		LogLevel string `yaml:"log_level"`
	} `yaml:"database"`
	Auth struct {
		JWTSecret          string `yaml:"jwt_secret"`
		TokenTTL           string `yaml:"token_ttl"`
		AllowedEmailDomain string `yaml:"allowed_email_domain"`
	} `yaml:"auth"`
	RateLimit struct {
		Disabled      bool `yaml:"disabled"`
		MaxRequests   int  `yaml:"max_requests"`
		WindowSeconds int  `yaml:"window_seconds"`
		AuthMax       int  `yaml:"auth_max"`
		AuthWindow    int  `yaml:"auth_window_seconds"`
	} `yaml:"rate_limit"`
	Redis struct {
		Addr           string `yaml:"addr"`
		Password       string `yaml:"password"`
		DB             int    `yaml:"db"`
		LeaderboardTTL string `yaml:"leaderboard_ttl"`
	} `yaml:"redis"`
	Progression struct {
		Timezone           string `yaml:"timezone"`
		ResetSweepInterval string `yaml:"reset_sweep_interval"`
	} `yaml:"progression"`
	LogMode string `yaml:"log_mode"`
}

// Default returns the configuration used when nothing else is set.
func Default() Config {
	var cfg Config
	cfg.Server.Port = "3000"
	cfg.Server.Env = "development"
	cfg.Server.CORSOrigins = "http://localhost:3000"
	cfg.Server.BodyLimit = 4 * 1024 * 1024
	cfg.Database.Driver = "sqlite"
	cfg.Database.Path = "data/campusquest.db"
	cfg.Database.LogLevel = "warn"
	cfg.Auth.TokenTTL = "72h"
	cfg.Auth.AllowedEmailDomain = "mavs.uta.edu"
	cfg.RateLimit.MaxRequests = 100
	cfg.RateLimit.WindowSeconds = 900
	cfg.RateLimit.AuthMax = 5
	cfg.RateLimit.AuthWindow = 300
	cfg.Redis.LeaderboardTTL = "30s"
	cfg.Progression.Timezone = "Local"
	cfg.Progression.ResetSweepInterval = "15m"
	cfg.LogMode = "development"
	return cfg
}

// Load builds the configuration: defaults, then the YAML file named by
// CONFIG_PATH (if any), then .env, then the process environment.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}

	// .env is optional; a missing file is not an error.
	_ = godotenv.Load()

	applyEnv(&cfg)
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Port, "PORT")
	setString(&cfg.Server.Env, "APP_ENV")
	setString(&cfg.Server.CORSOrigins, "CORS_ORIGINS")
	setInt(&cfg.Server.BodyLimit, "BODY_LIMIT")

	setString(&cfg.Database.Driver, "DB_DRIVER")
	setString(&cfg.Database.Path, "DB_PATH")
	setString(&cfg.Database.URL, "DATABASE_URL")
	setString(&cfg.Database.LogLevel, "DB_LOG_LEVEL")

	setString(&cfg.Auth.JWTSecret, "JWT_SECRET")
	setString(&cfg.Auth.TokenTTL, "JWT_TTL")
	setString(&cfg.Auth.AllowedEmailDomain, "ALLOWED_EMAIL_DOMAIN")

	setBool(&cfg.RateLimit.Disabled, "RATE_LIMIT_DISABLED")
	setInt(&cfg.RateLimit.MaxRequests, "RATE_LIMIT_MAX_REQUESTS")
	if ms, ok := lookupInt("RATE_LIMIT_WINDOW_MS"); ok {
		cfg.RateLimit.WindowSeconds = ms / 1000
	}
	setInt(&cfg.RateLimit.AuthMax, "AUTH_RATE_LIMIT_MAX")
	if ms, ok := lookupInt("AUTH_RATE_LIMIT_WINDOW_MS"); ok {
		cfg.RateLimit.AuthWindow = ms / 1000
	}

	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "REDIS_DB")
	setString(&cfg.Redis.LeaderboardTTL, "LEADERBOARD_TTL")

	setString(&cfg.Progression.Timezone, "TIMEZONE")
	setString(&cfg.Progression.ResetSweepInterval, "RESET_SWEEP_INTERVAL")

	setString(&cfg.LogMode, "LOG_MODE")
}

// Validate checks the settings the server cannot run without.
func (c Config) Validate() error {
	secret := c.Auth.JWTSecret
	if secret == "" {
		return errors.New("JWT_SECRET must be set. Generate one with: openssl rand -base64 64")
	}
	if c.IsProduction() && len(secret) < 32 {
		return errors.New("JWT_SECRET must be at least 32 characters long")
	}
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return errors.New("DB_PATH must be set for the sqlite driver")
		}
	case "postgres":
		if c.Database.URL == "" {
			return errors.New("DATABASE_URL must be set for the postgres driver")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Env, "production")
}

// Location resolves the timezone that defines a calendar day for challenge resets.
func (c Config) Location() (*time.Location, error) {
	tz := strings.TrimSpace(c.Progression.Timezone)
	if tz == "" || strings.EqualFold(tz, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", tz, err)
	}
	return loc, nil
}

// Duration parses a duration string or returns the fallback if empty or invalid.
func Duration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := lookupInt(key); ok {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "1", "true", "yes", "on":
		*dst = true
	case "0", "false", "no", "off":
		*dst = false
	}
}

func lookupInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
