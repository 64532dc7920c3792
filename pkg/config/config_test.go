package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetEnv blanks every variable Load reads so defaults apply.
// The getters treat empty as unset, and t.Setenv restores the
// original values when the test finishes.
func resetEnv(t *testing.T) {
	t.Helper()
	for _, v := range []string{
		"APP_ENV", "LOG_LEVEL", "NAGI_USER_ID",
		"DATABASE_DRIVER", "DATABASE_URL", "NAGI_SQLITE_PATH",
		"REDIS_URL", "RABBITMQ_URL", "API_ADDR",
		"OUTBOX_POLL_INTERVAL", "OUTBOX_BATCH_SIZE", "OUTBOX_MAX_RETRIES",
		"OUTBOX_STATS_INTERVAL", "OUTBOX_RETENTION_DAYS", "OUTBOX_CLEANUP_INTERVAL",
		"OUTBOX_PROCESSOR_ENABLED",
		"WORKER_HEALTH_ADDR", "WORKER_JOBS_DISABLED", "PLAN_MAX_DAYS",
		"NOTIFICATION_LIMIT_PER_DAY", "NOTIFY_COOLDOWN",
		"NOTIFY_WINDOW_START_HOUR", "NOTIFY_WINDOW_END_HOUR",
		"DEFAULT_TIMEZONE",
	} {
		t.Setenv(v, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	resetEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "00000000-0000-0000-0000-000000000001", cfg.UserID)
	assert.Equal(t, "auto", cfg.DatabaseDriver)

	assert.Equal(t, 100*time.Millisecond, cfg.OutboxPollInterval)
	assert.Equal(t, 100, cfg.OutboxBatchSize)
	assert.Equal(t, 5, cfg.OutboxMaxRetries)
	assert.Equal(t, 14, cfg.OutboxRetentionDays)
	assert.True(t, cfg.OutboxProcessorEnabled)

	assert.Equal(t, "0.0.0.0:8081", cfg.WorkerHealthAddr)
	assert.False(t, cfg.WorkerJobsDisabled)
	assert.Equal(t, 30, cfg.PlanMaxDays)

	assert.Equal(t, 5, cfg.NotificationLimitPerDay)
	assert.Equal(t, 24*time.Hour, cfg.NotifyCooldown)
	assert.Equal(t, 9, cfg.NotifyWindowStartHour)
	assert.Equal(t, 21, cfg.NotifyWindowEndHour)

	assert.Equal(t, "Asia/Tokyo", cfg.DefaultTimezone)
}

func TestLoad_EnvOverrides(t *testing.T) {
	resetEnv(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("NAGI_USER_ID", "7f3a2e10-9c54-4d8b-b1aa-52b0d8e4f901")
	t.Setenv("OUTBOX_BATCH_SIZE", "200")
	t.Setenv("OUTBOX_POLL_INTERVAL", "500ms")
	t.Setenv("OUTBOX_PROCESSOR_ENABLED", "false")
	t.Setenv("WORKER_JOBS_DISABLED", "true")
	t.Setenv("PLAN_MAX_DAYS", "14")
	t.Setenv("NOTIFY_COOLDOWN", "6h")
	t.Setenv("DEFAULT_TIMEZONE", "Europe/Berlin")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.AppEnv)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "7f3a2e10-9c54-4d8b-b1aa-52b0d8e4f901", cfg.UserID)
	assert.Equal(t, 200, cfg.OutboxBatchSize)
	assert.Equal(t, 500*time.Millisecond, cfg.OutboxPollInterval)
	assert.False(t, cfg.OutboxProcessorEnabled)
	assert.True(t, cfg.WorkerJobsDisabled)
	assert.Equal(t, 14, cfg.PlanMaxDays)
	assert.Equal(t, 6*time.Hour, cfg.NotifyCooldown)
	assert.Equal(t, "Europe/Berlin", cfg.DefaultTimezone)
}

func TestLoad_MalformedValuesFallBack(t *testing.T) {
	resetEnv(t)
	t.Setenv("OUTBOX_BATCH_SIZE", "lots")
	t.Setenv("OUTBOX_POLL_INTERVAL", "soonish")
	t.Setenv("OUTBOX_PROCESSOR_ENABLED", "maybe")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 100, cfg.OutboxBatchSize)
	assert.Equal(t, 100*time.Millisecond, cfg.OutboxPollInterval)
	assert.True(t, cfg.OutboxProcessorEnabled)
}

func TestEnvPredicates(t *testing.T) {
	for env, want := range map[string]struct{ dev, prod bool }{
		"development": {dev: true},
		"production":  {prod: true},
		"staging":     {},
	} {
		cfg := &Config{AppEnv: env}
		assert.Equal(t, want.dev, cfg.IsDevelopment(), env)
		assert.Equal(t, want.prod, cfg.IsProduction(), env)
	}
}

func TestEnvGetters(t *testing.T) {
	t.Setenv("NAGI_TEST_STR", "custom")
	t.Setenv("NAGI_TEST_INT", "7")
	t.Setenv("NAGI_TEST_DUR", "10m")
	t.Setenv("NAGI_TEST_BOOL", "1")
	t.Setenv("NAGI_TEST_BAD", "???")

	assert.Equal(t, "custom", getEnv("NAGI_TEST_STR", "fallback"))
	assert.Equal(t, "fallback", getEnv("NAGI_TEST_MISSING", "fallback"))

	assert.Equal(t, 7, getIntEnv("NAGI_TEST_INT", 42))
	assert.Equal(t, 42, getIntEnv("NAGI_TEST_BAD", 42))

	assert.Equal(t, 10*time.Minute, getDurationEnv("NAGI_TEST_DUR", time.Second))
	assert.Equal(t, time.Second, getDurationEnv("NAGI_TEST_BAD", time.Second))

	assert.True(t, getBoolEnv("NAGI_TEST_BOOL", false))
	assert.True(t, getBoolEnv("NAGI_TEST_BAD", true))
}
