package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, 100, cfg.SessionCapacity)
	assert.Equal(t, 50, cfg.SessionEvictBatch)
	assert.False(t, cfg.EnableCollaboration)
	assert.Equal(t, "memory", cfg.SessionBackend)
	assert.Equal(t, "mock", cfg.NLGBackend)
	assert.NotEmpty(t, cfg.PodID)
	require.NoError(t, cfg.Validate())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SESSION_CAPACITY", "10")
	t.Setenv("ENABLE_COLLABORATION", "true")
	t.Setenv("FOLLOWUP_CHECK_INTERVAL_MS", "250")
	t.Setenv("SESSION_EVICT_BATCH", "not-a-number")

	cfg := Load()

	assert.Equal(t, 10, cfg.SessionCapacity)
	assert.True(t, cfg.EnableCollaboration)
	assert.Equal(t, int64(250), cfg.FollowUpCheckIntervalMS)
	assert.Equal(t, 50, cfg.SessionEvictBatch, "unparsable values keep the default")
}

func TestValidate(t *testing.T) {
	cfg := Load()
	cfg.RedisEnabled = false
	cfg.SessionBackend = "redis"
	assert.Error(t, cfg.Validate())

	cfg = Load()
	cfg.NLGBackend = "gemini"
	cfg.GeminiAPIKey = ""
	assert.Error(t, cfg.Validate())

	cfg = Load()
	cfg.SessionCapacity = 0
	assert.Error(t, cfg.Validate())
}
