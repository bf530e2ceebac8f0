package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "Asia/Kolkata", cfg.OrgTimezone)
	assert.Equal(t, "19:00", cfg.DefaultEndOfShift)
	assert.Equal(t, 4, cfg.PunchMaxAttempts)
	assert.Equal(t, 25*time.Millisecond, cfg.PunchRetryBase)
	assert.Equal(t, 5*time.Minute, cfg.SettingsCacheTTL)
	assert.Empty(t, cfg.RedisURL)
	assert.False(t, cfg.IsLocalDev)
	assert.Equal(t, "postgres://user:password@db:5432/punch_db?sslmode=disable", cfg.DSN())
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("DB_HOST", "pg.internal")
	t.Setenv("IS_LOCAL_DEV", "true")
	t.Setenv("REDIS_URL", "redis://cache:6379/0")
	t.Setenv("PUNCH_MAX_ATTEMPTS", "7")
	t.Setenv("PUNCH_RETRY_BASE", "50ms")
	t.Setenv("DEFAULT_END_OF_SHIFT", "6:30 PM")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "pg.internal", cfg.DBHost)
	assert.True(t, cfg.IsLocalDev)
	assert.Equal(t, "redis://cache:6379/0", cfg.RedisURL)
	assert.Equal(t, 7, cfg.PunchMaxAttempts)
	assert.Equal(t, 50*time.Millisecond, cfg.PunchRetryBase)
	assert.Equal(t, "6:30 PM", cfg.DefaultEndOfShift)
}

func TestLoadConfigRejectsZeroAttempts(t *testing.T) {
	t.Setenv("PUNCH_MAX_ATTEMPTS", "0")

	_, err := LoadConfig()
	assert.ErrorContains(t, err, "PUNCH_MAX_ATTEMPTS")
}
