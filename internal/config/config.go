package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port               string   `mapstructure:"PORT"`
	Env                string   `mapstructure:"ENV"`
	DatabaseURL        string   `mapstructure:"DATABASE_URL"`
	DBMaxConns         int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns         int32    `mapstructure:"DB_MIN_CONNS"`
	SessionSecret      string   `mapstructure:"SESSION_SECRET"`
	SessionTTLHours    int      `mapstructure:"SESSION_TTL_HOURS"`
	CodeTTLDays        int      `mapstructure:"CODE_TTL_DAYS"`
	AuthIssuer         string   `mapstructure:"AUTH_ISSUER"`
	AuthJWKSURL        string   `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience       string   `mapstructure:"AUTH_AUDIENCE"`
	CORSOrigins        []string `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS       float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst     int      `mapstructure:"RATE_LIMIT_BURST"`
	ValidateRPS        float64  `mapstructure:"VALIDATE_RATE_LIMIT_RPS"`
	ValidateBurst      int      `mapstructure:"VALIDATE_RATE_LIMIT_BURST"`
	BodyLimit          string   `mapstructure:"BODY_LIMIT"`
	RequestTimeoutSecs int      `mapstructure:"REQUEST_TIMEOUT_SECONDS"`
	TLSEnabled         bool     `mapstructure:"TLS_ENABLED"`
	TLSCertFile        string   `mapstructure:"TLS_CERT_FILE"`
	TLSKeyFile         string   `mapstructure:"TLS_KEY_FILE"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("SESSION_TTL_HOURS", 720)
	v.SetDefault("CODE_TTL_DAYS", 30)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("VALIDATE_RATE_LIMIT_RPS", 5)
	v.SetDefault("VALIDATE_RATE_LIMIT_BURST", 10)
	v.SetDefault("BODY_LIMIT", "1M")
	v.SetDefault("REQUEST_TIMEOUT_SECONDS", 30)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("SESSION_SECRET")
	v.BindEnv("SESSION_TTL_HOURS")
	v.BindEnv("CODE_TTL_DAYS")
	v.BindEnv("AUTH_ISSUER")
	v.BindEnv("AUTH_JWKS_URL")
	v.BindEnv("AUTH_AUDIENCE")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")
	v.BindEnv("VALIDATE_RATE_LIMIT_RPS")
	v.BindEnv("VALIDATE_RATE_LIMIT_BURST")
	v.BindEnv("BODY_LIMIT")
	v.BindEnv("REQUEST_TIMEOUT_SECONDS")
	v.BindEnv("TLS_ENABLED")
	v.BindEnv("TLS_CERT_FILE")
	v.BindEnv("TLS_KEY_FILE")

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

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() && cfg.SessionSecret == "" {
		log.Println("WARNING: SESSION_SECRET is not set; using an insecure development secret.")
		log.Println("WARNING: Set SESSION_SECRET before deploying to production.")
		cfg.SessionSecret = "dieta-dev-secret-do-not-use-in-production"
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

// Validate checks that the configuration is safe to run. In production the
// session secret must be explicitly set and long enough that signed session
// tokens cannot be brute forced.
func (c *Config) Validate() error {
	if c.IsProduction() {
		if c.SessionSecret == "" || c.SessionSecret == "dieta-dev-secret-do-not-use-in-production" {
			return fmt.Errorf("SESSION_SECRET is required in production")
		}
		if len(c.SessionSecret) < 32 {
			return fmt.Errorf("SESSION_SECRET must be at least 32 characters, got %d", len(c.SessionSecret))
		}
	}

	if c.CodeTTLDays <= 0 {
		return fmt.Errorf("CODE_TTL_DAYS must be positive, got %d", c.CodeTTLDays)
	}
	if c.SessionTTLHours <= 0 {
		return fmt.Errorf("SESSION_TTL_HOURS must be positive, got %d", c.SessionTTLHours)
	}

	// TLS validation: when TLS is enabled, cert and key files must be specified.
	if c.TLSEnabled {
		if c.TLSCertFile == "" {
			return fmt.Errorf("TLS_CERT_FILE is required when TLS_ENABLED is true")
		}
		if c.TLSKeyFile == "" {
			return fmt.Errorf("TLS_KEY_FILE is required when TLS_ENABLED is true")
		}
	}

	return nil
}
