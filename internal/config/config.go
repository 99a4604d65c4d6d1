package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ServerConfig holds the HTTP listener settings
type ServerConfig struct {
	Host string
	Port int
}

// SweepConfig tunes the ingestion pipeline
type SweepConfig struct {
	Lookback      time.Duration // fetch window bound, default 30m
	AlertCooldown time.Duration // failure-alert cooldown, default 2h
	PollInterval  time.Duration // 0 disables the internal ticker
}

// AIConfig configures the classification backend. An empty APIKey leaves
// the AI tier off; the keyword tier still runs.
type AIConfig struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// AuthConfig points at the external auth service
type AuthConfig struct {
	ServerURL  string
	ServiceKey string
	JWKSURL    string
}

// LogConfig holds logging settings
type LogConfig struct {
	Level       string
	Development bool
}

// Config is the root configuration
type Config struct {
	Server        ServerConfig
	Sweep         SweepConfig
	AI            AIConfig
	Auth          AuthConfig
	Log           LogConfig
	DBPath        string
	NATSURL       string // empty disables event publishing
	TelegramToken string
}

// Load reads configuration from the environment with an optional .env
// file. Environment variables win over .env values; prefix MAILSENTRY_,
// e.g. MAILSENTRY_TELEGRAM_TOKEN.
func Load() (*Config, error) {
	// .env is optional; ignore a missing file.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("mailsentry")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("sweep.lookback", "30m")
	v.SetDefault("sweep.alert_cooldown", "2h")
	v.SetDefault("sweep.poll_interval", "0")
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.model", "")
	v.SetDefault("ai.timeout", "10s")
	v.SetDefault("auth.server_url", "http://localhost:3000")
	v.SetDefault("auth.service_key", "")
	v.SetDefault("auth.jwks_url", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("db_path", "data/sentry.db")
	v.SetDefault("nats_url", "")
	v.SetDefault("telegram_token", "")

	cfg := &Config{
		Server: ServerConfig{
			Host: v.GetString("server.host"),
			Port: v.GetInt("server.port"),
		},
		Sweep: SweepConfig{
			Lookback:      v.GetDuration("sweep.lookback"),
			AlertCooldown: v.GetDuration("sweep.alert_cooldown"),
			PollInterval:  v.GetDuration("sweep.poll_interval"),
		},
		AI: AIConfig{
			APIKey:  v.GetString("ai.api_key"),
			Model:   v.GetString("ai.model"),
			Timeout: v.GetDuration("ai.timeout"),
		},
		Auth: AuthConfig{
			ServerURL:  v.GetString("auth.server_url"),
			ServiceKey: v.GetString("auth.service_key"),
			JWKSURL:    v.GetString("auth.jwks_url"),
		},
		Log: LogConfig{
			Level:       v.GetString("log.level"),
			Development: v.GetBool("log.development"),
		},
		DBPath:        v.GetString("db_path"),
		NATSURL:       v.GetString("nats_url"),
		TelegramToken: v.GetString("telegram_token"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("MAILSENTRY_TELEGRAM_TOKEN is required")
	}
	if c.Sweep.Lookback <= 0 {
		return fmt.Errorf("sweep.lookback must be positive")
	}
	if c.Sweep.AlertCooldown <= 0 {
		return fmt.Errorf("sweep.alert_cooldown must be positive")
	}
	return nil
}
