// Package config holds runtime settings for the LACPA backend.
//
// Values are layered: built-in defaults first, then an optional YAML file
// (CONFIG_FILE), then environment variables. Callers usually load
// .env.local with godotenv before calling Load so that local overrides end up
// in the environment.
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strings"
	"time"
)

const (
	SessionBackendPostgres = "postgres"
	SessionBackendRedis    = "redis"

	MailDriverLog  = "log"
	MailDriverSMTP = "smtp"
)

// Config holds runtime settings for the HTTP service and the CLI tools.
type Config struct {
	Port        string
	Environment string
	DatabaseURL string

	SessionBackend string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int

	JWTSecret       string
	JWTIssuer       string
	SessionTTL      time.Duration
	CodeTTL         time.Duration
	ResetTokenTTL   time.Duration
	MaxCodeAttempts int

	StoreTimeout    time.Duration
	DeliveryTimeout time.Duration

	MailDriver   string
	SMTPHost     string
	SMTPPort     string
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string

	AllowedOrigins []string
	// TrustedProxies lists the IPs or CIDRs whose X-Forwarded-For is
	// believed. Empty means the peer address is always the client.
	TrustedProxies []string
	RateLimitRPS   float64
	RateLimitBurst int

	LogLevel string
}

// LoadDefaults populates Config with development defaults.
// The JWT secret is only acceptable outside production; Validate enforces it.
func (c *Config) LoadDefaults() {
	c.Port = "5050"
	c.Environment = "development"
	c.SessionBackend = SessionBackendPostgres
	c.RedisAddr = "localhost:6379"
	c.JWTSecret = "dev-secret-change-me"
	c.JWTIssuer = "lacpa-backend"
	c.SessionTTL = 24 * time.Hour
	c.CodeTTL = 10 * time.Minute
	c.ResetTokenTTL = 15 * time.Minute
	c.MaxCodeAttempts = 5
	c.StoreTimeout = 5 * time.Second
	c.DeliveryTimeout = 10 * time.Second
	c.MailDriver = MailDriverLog
	c.SMTPPort = "587"
	c.SMTPFrom = "no-reply@lacpa.org.lb"
	c.AllowedOrigins = []string{"http://localhost:3000", "http://localhost:5173"}
	c.RateLimitRPS = 5
	c.RateLimitBurst = 10
	c.LogLevel = "info"
}

// Load builds a Config by applying defaults, then the YAML file named by
// CONFIG_FILE (if set), then the process environment.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := parseYAMLFile(cfg, path); err != nil {
			return nil, err
		}
	}
	if err := parseEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Validate checks the settings that would otherwise fail late at runtime.
func (c *Config) Validate() error {
	var errs []error

	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is empty"))
	}
	switch c.SessionBackend {
	case SessionBackendPostgres:
	case SessionBackendRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required for the redis session backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown session backend %q", c.SessionBackend))
	}
	switch c.MailDriver {
	case MailDriverLog:
	case MailDriverSMTP:
		if c.SMTPHost == "" || c.SMTPFrom == "" {
			errs = append(errs, errors.New("SMTP_HOST and SMTP_FROM are required for the smtp mail driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown mail driver %q", c.MailDriver))
	}
	if c.IsProduction() && len(c.JWTSecret) < 32 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 32 bytes in production"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is empty"))
	}
	if c.SessionTTL <= 0 || c.CodeTTL <= 0 || c.ResetTokenTTL <= 0 {
		errs = append(errs, errors.New("token and code lifetimes must be positive"))
	}
	if c.MaxCodeAttempts < 1 {
		errs = append(errs, errors.New("MAX_CODE_ATTEMPTS must be at least 1"))
	}
	if _, err := c.TrustedProxyPrefixes(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// TrustedProxyPrefixes parses TrustedProxies. A bare address becomes a
// single-host prefix.
func (c *Config) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(c.TrustedProxies))
	for _, raw := range c.TrustedProxies {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if strings.Contains(raw, "/") {
			p, err := netip.ParsePrefix(raw)
			if err != nil {
				return nil, fmt.Errorf("TRUSTED_PROXIES: %w", err)
			}
			out = append(out, p.Masked())
			continue
		}
		a, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("TRUSTED_PROXIES: %w", err)
		}
		a = a.Unmap()
		out = append(out, netip.PrefixFrom(a, a.BitLen()))
	}
	return out, nil
}
