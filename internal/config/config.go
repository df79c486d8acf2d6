package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store backends.
const (
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// Gateway modes.
const (
	GatewayLive = "live"
	GatewayMock = "mock"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Port        int
	JWTSecret   string
	CORSOrigins []string
	LogLevel    string
	LogFormat   string

	StoreBackend  string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	Gateway GatewayConfig
	Flow    FlowConfig
}

// GatewayConfig configures the mobile-money gateway client.
type GatewayConfig struct {
	Mode    string
	BaseURL string
	Timeout time.Duration
}

// FlowConfig configures the payment confirmation flow.
type FlowConfig struct {
	PollInterval         time.Duration
	MaxAttempts          int
	CountTransientErrors bool
	Timeout              time.Duration // hard ceiling for one flow
	CountryCode          string
	MobilePrefixes       string
	MerchantLabel        string
}

// Load reads an optional .env file, then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}
	return FromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", 4001)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("STORE_BACKEND", StorePostgres)
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("GATEWAY_MODE", GatewayLive)
	v.SetDefault("GATEWAY_TIMEOUT", "15s")

	v.SetDefault("POLL_INTERVAL", "3s")
	v.SetDefault("POLL_MAX_ATTEMPTS", 30)
	v.SetDefault("POLL_COUNT_TRANSIENT_ERRORS", false)
	v.SetDefault("FLOW_TIMEOUT", "5m")
	v.SetDefault("PHONE_COUNTRY_CODE", "+256")
	v.SetDefault("PHONE_MOBILE_PREFIXES", "37")
	v.SetDefault("MERCHANT_LABEL", "VJ PILES UG MOVIES")
	return v
}

// FromViper builds and validates a Config from v.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:          v.GetInt("PORT"),
		JWTSecret:     v.GetString("JWT_SECRET"),
		LogLevel:      v.GetString("LOG_LEVEL"),
		LogFormat:     v.GetString("LOG_FORMAT"),
		StoreBackend:  strings.ToLower(v.GetString("STORE_BACKEND")),
		DatabaseURL:   v.GetString("DATABASE_URL"),
		RedisAddr:     v.GetString("REDIS_ADDR"),
		RedisPassword: v.GetString("REDIS_PASSWORD"),
		RedisDB:       v.GetInt("REDIS_DB"),
		Gateway: GatewayConfig{
			Mode:    strings.ToLower(v.GetString("GATEWAY_MODE")),
			BaseURL: v.GetString("GATEWAY_BASE_URL"),
			Timeout: v.GetDuration("GATEWAY_TIMEOUT"),
		},
		Flow: FlowConfig{
			PollInterval:         v.GetDuration("POLL_INTERVAL"),
			MaxAttempts:          v.GetInt("POLL_MAX_ATTEMPTS"),
			CountTransientErrors: v.GetBool("POLL_COUNT_TRANSIENT_ERRORS"),
			Timeout:              v.GetDuration("FLOW_TIMEOUT"),
			CountryCode:          v.GetString("PHONE_COUNTRY_CODE"),
			MobilePrefixes:       v.GetString("PHONE_MOBILE_PREFIXES"),
			MerchantLabel:        v.GetString("MERCHANT_LABEL"),
		},
	}

	origins := strings.Split(v.GetString("CORS_ORIGINS"), ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	cfg.CORSOrigins = origins

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required settings and value ranges.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	switch c.StoreBackend {
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_BACKEND=%s", StorePostgres)
		}
	case StoreRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required when STORE_BACKEND=%s", StoreRedis)
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", StorePostgres, StoreRedis, c.StoreBackend)
	}

	switch c.Gateway.Mode {
	case GatewayLive:
		if c.Gateway.BaseURL == "" {
			return fmt.Errorf("GATEWAY_BASE_URL is required when GATEWAY_MODE=%s", GatewayLive)
		}
	case GatewayMock:
	default:
		return fmt.Errorf("GATEWAY_MODE must be %q or %q, got %q", GatewayLive, GatewayMock, c.Gateway.Mode)
	}

	if c.Flow.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive")
	}
	if c.Flow.MaxAttempts <= 0 {
		return fmt.Errorf("POLL_MAX_ATTEMPTS must be positive")
	}
	if c.Flow.Timeout <= 0 {
		return fmt.Errorf("FLOW_TIMEOUT must be positive")
	}
	return nil
}
