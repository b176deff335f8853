package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "k")
	c, err := Parse(nil)
	require.NoError(t, err)

	require.Equal(t, ":5000", c.Addr)
	require.Equal(t, LimiterMemory, c.Limiter)
	require.Equal(t, 15*time.Minute, c.TTLs.Access)
	require.Equal(t, 7*24*time.Hour, c.TTLs.Refresh)
	require.Equal(t, []string{"http://localhost:3000"}, c.CORSOrigins)
	require.Equal(t, "noreply@cosmetics.local", c.SMTP.From)
	require.Equal(t, uint64(3), c.Outbox.Retries)
	require.True(t, c.Development())
}

func TestParse_EnvAndFlags(t *testing.T) {
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("RATE_LIMIT_STORE", "redis")
	t.Setenv("JWT_ACCESS_TTL", "5m")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.test, https://b.test,")
	t.Setenv("ORDER_TIMEZONE", "UTC")

	c, err := Parse([]string{"-env", "production", "-limiter", "postgres", "-outbox-retries", "-1"})
	require.NoError(t, err)

	require.Equal(t, "from-env", c.JWTKey)
	require.Equal(t, LimiterPostgres, c.Limiter, "flag wins over env")
	require.Equal(t, 5*time.Minute, c.TTLs.Access)
	require.Equal(t, []string{"https://a.test", "https://b.test"}, c.CORSOrigins)
	require.Equal(t, uint64(0), c.Outbox.Retries)
	require.False(t, c.Development())

	loc, err := c.Location()
	require.NoError(t, err)
	require.Equal(t, time.UTC, loc)
}

func TestParse_Rejects(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := Parse(nil)
	require.ErrorContains(t, err, "jwt")

	t.Setenv("JWT_SECRET", "k")
	_, err = Parse([]string{"-limiter", "etcd"})
	require.ErrorContains(t, err, "etcd")

	_, err = Parse([]string{"-timezone", "Mars/Olympus"})
	require.ErrorContains(t, err, "timezone")

	_, err = Parse([]string{"-no-such-flag"})
	require.Error(t, err)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("JWT_SECRET=dotenv\nHTTP_ADDR=:7000\n"), 0o600))
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("HTTP_ADDR", ":6000")
	t.Setenv("JWT_SECRET", "restored-after-test")
	require.NoError(t, os.Unsetenv("JWT_SECRET"))

	c, err := Load(nil)
	require.NoError(t, err)
	require.Equal(t, "dotenv", c.JWTKey)
	require.Equal(t, ":6000", c.Addr, "real environment wins over .env")
}
