package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "ws://localhost:8000", cfg.Remote.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.Remote.ReconnectDelay)
	assert.Equal(t, 2500*time.Millisecond, cfg.Simulation.FactoryStep)
	assert.Equal(t, "memory", cfg.Storage.Credentials)
	assert.False(t, cfg.Events.Enabled)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("REMOTE_BASE_URL", "ws://pipeline:9000")
	t.Setenv("REMOTE_RECONNECT_DELAY", "500ms")
	t.Setenv("REMOTE_SIMULATE", "true")
	t.Setenv("SIM_PHASE_STEP", "150")
	t.Setenv("STORAGE_CREDENTIALS", "Redis")
	t.Setenv("EVENTS_ENABLED", "not-a-bool")

	cfg := Load()

	assert.Equal(t, "ws://pipeline:9000", cfg.Remote.BaseURL)
	assert.Equal(t, 500*time.Millisecond, cfg.Remote.ReconnectDelay)
	assert.True(t, cfg.Remote.Simulate)
	assert.Equal(t, 150*time.Millisecond, cfg.Simulation.PhaseStep)
	assert.Equal(t, "redis", cfg.Storage.Credentials)
	assert.False(t, cfg.Events.Enabled)
}

func TestGetEnvAsDurationFallback(t *testing.T) {
	t.Setenv("SOME_DELAY", "soon")
	assert.Equal(t, time.Minute, getEnvAsDuration("SOME_DELAY", time.Minute))
	assert.Equal(t, time.Second, getEnvAsDuration("UNSET_DELAY_KEY", time.Second))
}
