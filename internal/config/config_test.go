package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("COLLAB_MAX_RELOADS", "")
	t.Setenv("OTEL_ENABLED", "")

	cfg := Load()
	assert.Equal(t, "collab:", cfg.Collab.RedisChannelPrefix)
	assert.Equal(t, 1, cfg.Collab.MaxReloads)
	assert.Equal(t, 24*time.Hour, cfg.Collab.UpdateLogTTL)
	assert.False(t, cfg.Tracing.Enabled)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("COLLAB_MAX_RELOADS", "3")
	t.Setenv("COLLAB_UPDATE_LOG_TTL", "90s")
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("JWT_SECRET", "s3cret")

	cfg := Load()
	assert.Equal(t, 3, cfg.Collab.MaxReloads)
	assert.Equal(t, 90*time.Second, cfg.Collab.UpdateLogTTL)
	assert.True(t, cfg.Tracing.Enabled)
	assert.Equal(t, "s3cret", cfg.Auth.JwtSecret)
}
