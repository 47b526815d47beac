package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
)

// fileConfig mirrors Config for YAML decoding. Durations are strings
// ("15m", "24h") and every field is optional.
type fileConfig struct {
	Port        *string `yaml:"port"`
	Environment *string `yaml:"environment"`
	DatabaseURL *string `yaml:"database_url"`

	Sessions struct {
		Backend       *string `yaml:"backend"`
		TTL           *string `yaml:"ttl"`
		JWTSecret     *string `yaml:"jwt_secret"`
		JWTIssuer     *string `yaml:"jwt_issuer"`
		RedisAddr     *string `yaml:"redis_addr"`
		RedisPassword *string `yaml:"redis_password"`
		RedisDB       *int    `yaml:"redis_db"`
	} `yaml:"sessions"`

	Codes struct {
		TTL           *string `yaml:"ttl"`
		ResetTokenTTL *string `yaml:"reset_token_ttl"`
		MaxAttempts   *int    `yaml:"max_attempts"`
	} `yaml:"codes"`

	Timeouts struct {
		Store    *string `yaml:"store"`
		Delivery *string `yaml:"delivery"`
	} `yaml:"timeouts"`

	Mail struct {
		Driver   *string `yaml:"driver"`
		Host     *string `yaml:"host"`
		Port     *string `yaml:"port"`
		User     *string `yaml:"user"`
		Password *string `yaml:"password"`
		From     *string `yaml:"from"`
	} `yaml:"mail"`

	HTTP struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
		TrustedProxies []string `yaml:"trusted_proxies"`
		RateLimitRPS   *float64 `yaml:"rate_limit_rps"`
		RateLimitBurst *int     `yaml:"rate_limit_burst"`
	} `yaml:"http"`

	LogLevel *string `yaml:"log_level"`
}

func parseYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	return parseYAML(cfg, data)
}

func parseYAML(cfg *Config, data []byte) error {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}

	setString(&cfg.Port, fc.Port)
	setString(&cfg.Environment, fc.Environment)
	setString(&cfg.DatabaseURL, fc.DatabaseURL)

	setString(&cfg.SessionBackend, fc.Sessions.Backend)
	setString(&cfg.JWTSecret, fc.Sessions.JWTSecret)
	setString(&cfg.JWTIssuer, fc.Sessions.JWTIssuer)
	setString(&cfg.RedisAddr, fc.Sessions.RedisAddr)
	setString(&cfg.RedisPassword, fc.Sessions.RedisPassword)
	if fc.Sessions.RedisDB != nil {
		cfg.RedisDB = *fc.Sessions.RedisDB
	}

	if fc.Codes.MaxAttempts != nil {
		cfg.MaxCodeAttempts = *fc.Codes.MaxAttempts
	}

	durations := []struct {
		name string
		dst  *time.Duration
		src  *string
	}{
		{"sessions.ttl", &cfg.SessionTTL, fc.Sessions.TTL},
		{"codes.ttl", &cfg.CodeTTL, fc.Codes.TTL},
		{"codes.reset_token_ttl", &cfg.ResetTokenTTL, fc.Codes.ResetTokenTTL},
		{"timeouts.store", &cfg.StoreTimeout, fc.Timeouts.Store},
		{"timeouts.delivery", &cfg.DeliveryTimeout, fc.Timeouts.Delivery},
	}
	for _, d := range durations {
		if d.src == nil {
			continue
		}
		v, err := time.ParseDuration(*d.src)
		if err != nil {
			return fmt.Errorf("config %s: %w", d.name, err)
		}
		*d.dst = v
	}

	setString(&cfg.MailDriver, fc.Mail.Driver)
	setString(&cfg.SMTPHost, fc.Mail.Host)
	setString(&cfg.SMTPPort, fc.Mail.Port)
	setString(&cfg.SMTPUser, fc.Mail.User)
	setString(&cfg.SMTPPassword, fc.Mail.Password)
	setString(&cfg.SMTPFrom, fc.Mail.From)

	if len(fc.HTTP.AllowedOrigins) > 0 {
		cfg.AllowedOrigins = fc.HTTP.AllowedOrigins
	}
	if len(fc.HTTP.TrustedProxies) > 0 {
		cfg.TrustedProxies = fc.HTTP.TrustedProxies
	}
	if fc.HTTP.RateLimitRPS != nil {
		cfg.RateLimitRPS = *fc.HTTP.RateLimitRPS
	}
	if fc.HTTP.RateLimitBurst != nil {
		cfg.RateLimitBurst = *fc.HTTP.RateLimitBurst
	}

	setString(&cfg.LogLevel, fc.LogLevel)
	return nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}
