package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// lookupFunc matches os.LookupEnv so tests can pass a map-backed lookup.
type lookupFunc func(key string) (string, bool)

func parseEnv(cfg *Config, lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str("PORT", &cfg.Port)
	str("APP_ENV", &cfg.Environment)
	str("DATABASE_URL", &cfg.DatabaseURL)
	str("SESSION_BACKEND", &cfg.SessionBackend)
	str("REDIS_ADDR", &cfg.RedisAddr)
	str("REDIS_PASSWORD", &cfg.RedisPassword)
	str("JWT_SECRET", &cfg.JWTSecret)
	str("JWT_ISSUER", &cfg.JWTIssuer)
	str("MAIL_DRIVER", &cfg.MailDriver)
	str("SMTP_HOST", &cfg.SMTPHost)
	str("SMTP_PORT", &cfg.SMTPPort)
	str("SMTP_USER", &cfg.SMTPUser)
	str("SMTP_PASSWORD", &cfg.SMTPPassword)
	str("SMTP_FROM", &cfg.SMTPFrom)
	str("LOG_LEVEL", &cfg.LogLevel)

	list := func(key string, dst *[]string) {
		v, ok := lookup(key)
		if !ok || v == "" {
			return
		}
		var out []string
		for _, item := range strings.Split(v, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
		*dst = out
	}
	list("ALLOWED_ORIGINS", &cfg.AllowedOrigins)
	list("TRUSTED_PROXIES", &cfg.TrustedProxies)

	ints := []struct {
		key string
		dst *int
	}{
		{"REDIS_DB", &cfg.RedisDB},
		{"MAX_CODE_ATTEMPTS", &cfg.MaxCodeAttempts},
		{"RATE_LIMIT_BURST", &cfg.RateLimitBurst},
	}
	for _, i := range ints {
		v, ok := lookup(i.key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("env %s: %w", i.key, err)
		}
		*i.dst = n
	}

	if v, ok := lookup("RATE_LIMIT_RPS"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("env RATE_LIMIT_RPS: %w", err)
		}
		cfg.RateLimitRPS = f
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"SESSION_TTL", &cfg.SessionTTL},
		{"CODE_TTL", &cfg.CodeTTL},
		{"RESET_TOKEN_TTL", &cfg.ResetTokenTTL},
		{"STORE_TIMEOUT", &cfg.StoreTimeout},
		{"DELIVERY_TIMEOUT", &cfg.DeliveryTimeout},
	}
	for _, d := range durations {
		v, ok := lookup(d.key)
		if !ok || v == "" {
			continue
		}
		dur, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("env %s: %w", d.key, err)
		}
		*d.dst = dur
	}
	return nil
}
