package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTP.Port)
	assert.False(t, cfg.HTTP.EnableHTTPS)
	assert.Equal(t, "postgres", cfg.Storage.Backend)
	assert.Equal(t, 5, cfg.Secret.DefaultMaxViews)
	assert.Equal(t, 65536, cfg.Blob.InlineMaxBytes)
	assert.Equal(t, "smtp", cfg.Reminder.Notifier)
	assert.Equal(t, 24, cfg.Reminder.OlderThanHours)
	assert.Equal(t, 3, cfg.Reminder.MaxReminders)
	assert.Equal(t, 24, cfg.Reminder.IntervalHours)
	assert.Equal(t, 5*time.Minute, cfg.Reaper.Interval)
	assert.Equal(t, 24*time.Hour, cfg.Reaper.ExhaustedGrace)
	assert.Equal(t, 168*time.Hour, cfg.Reaper.Retention)
	assert.Equal(t, "reminder-emails", cfg.Queue.QueueName)
}

func TestNewConfig_FromEnvironment(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("HTTP_ENABLE_HTTPS", "true")
	t.Setenv("STORAGE_BACKEND", "redis")
	t.Setenv("REDIS_ADDR", "redis.internal:6380")
	t.Setenv("SECRET_DEFAULT_MAX_VIEWS", "1")
	t.Setenv("REMINDER_NOTIFIER", "amqp")
	t.Setenv("REMINDER_OLDER_THAN_HOURS", "48")
	t.Setenv("REMINDER_MAX_REMINDERS", "5")
	t.Setenv("REAPER_RETENTION", "720h")
	t.Setenv("MINIO_ENABLED", "true")
	t.Setenv("MINIO_INLINE_MAX_BYTES", "1024")

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.HTTP.Port)
	assert.True(t, cfg.HTTP.EnableHTTPS)
	assert.Equal(t, "redis", cfg.Storage.Backend)
	assert.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
	assert.Equal(t, 1, cfg.Secret.DefaultMaxViews)
	assert.Equal(t, "amqp", cfg.Reminder.Notifier)
	assert.Equal(t, 48, cfg.Reminder.OlderThanHours)
	assert.Equal(t, 5, cfg.Reminder.MaxReminders)
	assert.Equal(t, 720*time.Hour, cfg.Reaper.Retention)
	assert.True(t, cfg.Blob.Enabled)
	assert.Equal(t, 1024, cfg.Blob.InlineMaxBytes)
}

func TestNewConfig_InvalidValue(t *testing.T) {
	t.Setenv("REMINDER_MAX_REMINDERS", "many")

	_, err := NewConfig()
	require.Error(t, err)
}
