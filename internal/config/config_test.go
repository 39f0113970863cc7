package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
server:
  port: 9090
database:
  driver: memory
jwt:
  secret: test-secret
outbox:
  poll_interval: 2s
codes:
  max_attempts: 3
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigFromFile(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, 2*time.Second, cfg.Outbox.PollInterval)
	assert.Equal(t, 3, cfg.Codes.MaxAttempts)
	// defaults survive
	assert.Equal(t, 100, cfg.RateLimit.Burst)
	assert.Equal(t, 5*time.Minute, cfg.Auth.CacheTTL)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("CLINIC_SERVER_PORT", "7000")
	t.Setenv("CLINIC_DATABASE_HOST", "db.internal")
	t.Setenv("CLINIC_CODES_MAX_ATTEMPTS", "8")
	t.Setenv("CLINIC_RATE_LIMIT_BURST", "7")

	cfg, err := LoadConfig(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 8, cfg.Codes.MaxAttempts)
	assert.Equal(t, 7, cfg.RateLimit.Burst)
}

func TestLoadConfigValidation(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "database:\n  driver: mysql\njwt:\n  secret: x\n"))
	assert.ErrorContains(t, err, "unsupported database driver")

	_, err = LoadConfig(writeConfig(t, "database:\n  driver: memory\n"))
	assert.ErrorContains(t, err, "jwt.secret is required")
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
