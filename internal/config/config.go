package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	BackendLocal  = "local"
	BackendRemote = "remote"
)

type Config struct {
	Port                  string        `mapstructure:"PORT"`
	Env                   string        `mapstructure:"ENV"`
	DataBackend           string        `mapstructure:"DATA_BACKEND"`
	BoltPath              string        `mapstructure:"BOLT_PATH"`
	DatabaseURL           string        `mapstructure:"DATABASE_URL"`
	DBSchema              string        `mapstructure:"DB_SCHEMA"`
	DBMaxConns            int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns            int32         `mapstructure:"DB_MIN_CONNS"`
	AuthSigningKey        string        `mapstructure:"AUTH_SIGNING_KEY"`
	AuthTokenTTL          time.Duration `mapstructure:"AUTH_TOKEN_TTL"`
	AdminID               string        `mapstructure:"ADMIN_ID"`
	AdminPassword         string        `mapstructure:"ADMIN_PASSWORD"`
	CORSOrigins           []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS          float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst        int           `mapstructure:"RATE_LIMIT_BURST"`
	NotificationFeedLimit int           `mapstructure:"NOTIFICATION_FEED_LIMIT"`
	SeedFile              string        `mapstructure:"SEED_FILE"`
}

var keys = []string{
	"PORT", "ENV", "DATA_BACKEND", "BOLT_PATH", "DATABASE_URL", "DB_SCHEMA",
	"DB_MAX_CONNS", "DB_MIN_CONNS", "AUTH_SIGNING_KEY", "AUTH_TOKEN_TTL",
	"ADMIN_ID", "ADMIN_PASSWORD", "CORS_ORIGINS", "RATE_LIMIT_RPS",
	"RATE_LIMIT_BURST", "NOTIFICATION_FEED_LIMIT", "SEED_FILE",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DATA_BACKEND", BackendLocal)
	v.SetDefault("BOLT_PATH", "lims.db")
	v.SetDefault("DB_SCHEMA", "public")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("AUTH_TOKEN_TTL", "12h")
	v.SetDefault("ADMIN_ID", "admin")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("NOTIFICATION_FEED_LIMIT", 50)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}
	cfg.DataBackend = strings.ToLower(strings.TrimSpace(cfg.DataBackend))

	if cfg.IsDev() {
		log.Println("WARNING: Server is running in DEVELOPMENT mode (ENV=development).")
		if cfg.AuthSigningKey == "" {
			log.Println("WARNING: AUTH_SIGNING_KEY is empty, every request is treated as an administrator.")
		}
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// DevAuth reports whether requests bypass token verification.
func (c *Config) DevAuth() bool {
	return c.IsDev() && c.AuthSigningKey == ""
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	switch c.DataBackend {
	case BackendLocal:
		if c.BoltPath == "" {
			return fmt.Errorf("BOLT_PATH is required when DATA_BACKEND is %q", BackendLocal)
		}
	case BackendRemote:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when DATA_BACKEND is %q", BackendRemote)
		}
	default:
		return fmt.Errorf("DATA_BACKEND must be %q or %q, got %q", BackendLocal, BackendRemote, c.DataBackend)
	}

	if !c.IsDev() && c.AuthSigningKey == "" {
		return fmt.Errorf("AUTH_SIGNING_KEY is required outside development (current ENV=%q)", c.Env)
	}
	if c.AuthSigningKey != "" && len(c.AuthSigningKey) < 32 {
		return fmt.Errorf("AUTH_SIGNING_KEY must be at least 32 bytes, got %d", len(c.AuthSigningKey))
	}
	if c.IsProduction() && c.AdminPassword == "" {
		return fmt.Errorf("ADMIN_PASSWORD is required in production")
	}
	if c.AuthTokenTTL <= 0 {
		return fmt.Errorf("AUTH_TOKEN_TTL must be positive, got %s", c.AuthTokenTTL)
	}
	if c.NotificationFeedLimit <= 0 {
		return fmt.Errorf("NOTIFICATION_FEED_LIMIT must be positive, got %d", c.NotificationFeedLimit)
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must not be negative")
	}
	return nil
}
