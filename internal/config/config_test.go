package config

import (
	"net/netip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapLookup(m map[string]string) lookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, "5050", c.Port)
	assert.Equal(t, SessionBackendPostgres, c.SessionBackend)
	assert.Equal(t, 24*time.Hour, c.SessionTTL)
	assert.Equal(t, 10*time.Minute, c.CodeTTL)
	assert.Equal(t, 15*time.Minute, c.ResetTokenTTL)
	assert.Equal(t, 5, c.MaxCodeAttempts)
	assert.Equal(t, MailDriverLog, c.MailDriver)
	assert.False(t, c.IsProduction())
}

func TestParseYAML_OverridesOnlyPresentFields(t *testing.T) {
	var c Config
	c.LoadDefaults()

	data := []byte(`
port: "8080"
database_url: postgres://u:p@db:5432/lacpa
sessions:
  backend: redis
  ttl: 12h
  redis_addr: redis:6379
codes:
  max_attempts: 3
http:
  allowed_origins:
    - https://lacpa.org.lb
  trusted_proxies:
    - 10.0.0.0/8
`)
	require.NoError(t, parseYAML(&c, data))

	want := Config{}
	want.LoadDefaults()
	want.Port = "8080"
	want.DatabaseURL = "postgres://u:p@db:5432/lacpa"
	want.SessionBackend = SessionBackendRedis
	want.SessionTTL = 12 * time.Hour
	want.RedisAddr = "redis:6379"
	want.MaxCodeAttempts = 3
	want.AllowedOrigins = []string{"https://lacpa.org.lb"}
	want.TrustedProxies = []string{"10.0.0.0/8"}

	if diff := cmp.Diff(want, c); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestParseYAML_BadDuration(t *testing.T) {
	var c Config
	c.LoadDefaults()

	err := parseYAML(&c, []byte("codes:\n  ttl: ten minutes\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "codes.ttl")
}

func TestParseEnv(t *testing.T) {
	var c Config
	c.LoadDefaults()

	err := parseEnv(&c, mapLookup(map[string]string{
		"DATABASE_URL":    "postgres://env",
		"SESSION_TTL":     "1h",
		"RATE_LIMIT_RPS":  "2.5",
		"REDIS_DB":        "4",
		"ALLOWED_ORIGINS": " https://a.example , ,https://b.example",
		"TRUSTED_PROXIES": "10.0.0.1, 172.16.0.0/12",
		"SMTP_HOST":       "",
	}))
	require.NoError(t, err)

	assert.Equal(t, "postgres://env", c.DatabaseURL)
	assert.Equal(t, time.Hour, c.SessionTTL)
	assert.InDelta(t, 2.5, c.RateLimitRPS, 0.0001)
	assert.Equal(t, 4, c.RedisDB)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, c.AllowedOrigins)
	assert.Equal(t, []string{"10.0.0.1", "172.16.0.0/12"}, c.TrustedProxies)
	assert.Empty(t, c.SMTPHost)
}

func TestParseEnv_InvalidNumber(t *testing.T) {
	var c Config
	c.LoadDefaults()

	err := parseEnv(&c, mapLookup(map[string]string{"MAX_CODE_ATTEMPTS": "five"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAX_CODE_ATTEMPTS")
}

func TestValidate(t *testing.T) {
	base := func() Config {
		var c Config
		c.LoadDefaults()
		c.DatabaseURL = "postgres://x"
		return c
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "defaults with dsn", mutate: func(c *Config) {}},
		{name: "missing dsn", mutate: func(c *Config) { c.DatabaseURL = "" }, wantErr: "DATABASE_URL"},
		{name: "unknown backend", mutate: func(c *Config) { c.SessionBackend = "memcached" }, wantErr: "session backend"},
		{name: "smtp without host", mutate: func(c *Config) { c.MailDriver = MailDriverSMTP }, wantErr: "SMTP_HOST"},
		{name: "short secret in production", mutate: func(c *Config) { c.Environment = "production" }, wantErr: "JWT_SECRET"},
		{name: "zero attempts", mutate: func(c *Config) { c.MaxCodeAttempts = 0 }, wantErr: "MAX_CODE_ATTEMPTS"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := base()
			tc.mutate(&c)
			err := c.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: \"7000\"\ndatabase_url: postgres://file\n"), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("DATABASE_URL", "postgres://env")
	t.Setenv("PORT", "")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "7000", c.Port)
	assert.Equal(t, "postgres://env", c.DatabaseURL)
}

func TestTrustedProxyPrefixes(t *testing.T) {
	c := Config{TrustedProxies: []string{"10.0.0.1", " 172.16.5.0/12 ", "", "::ffff:192.168.1.1"}}
	got, err := c.TrustedProxyPrefixes()
	require.NoError(t, err)
	assert.Equal(t, []netip.Prefix{
		netip.MustParsePrefix("10.0.0.1/32"),
		netip.MustParsePrefix("172.16.0.0/12"),
		netip.MustParsePrefix("192.168.1.1/32"),
	}, got)

	c.TrustedProxies = []string{"proxy.internal"}
	_, err = c.TrustedProxyPrefixes()
	assert.ErrorContains(t, err, "TRUSTED_PROXIES")
}
