package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryConfigResilience(t *testing.T) {
	r := RetryConfig{
		MaxAttempts:      5,
		InitialBackoffMs: 250,
		MaxBackoffMs:     10000,
		Multiplier:       1.5,
		JitterFraction:   0.1,
	}
	cfg := r.Resilience()

	assert.Equal(t, 5, cfg.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.InitialBackoff)
	assert.Equal(t, 10*time.Second, cfg.MaxBackoff)
	assert.Equal(t, 1.5, cfg.Multiplier)
	assert.Equal(t, 0.1, cfg.JitterFraction)
}

func TestRetryConfigResilience_ZeroKeepsDefaults(t *testing.T) {
	cfg := RetryConfig{}.Resilience()

	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.InitialBackoff)
	assert.Equal(t, 30*time.Second, cfg.MaxBackoff)
	assert.Equal(t, 2.0, cfg.Multiplier)
}

func TestGeodataConfigBreaker(t *testing.T) {
	g := GeodataConfig{CircuitFailures: 2, CircuitResetSecs: 90}
	cfg := g.Breaker()

	assert.Equal(t, 2, cfg.FailureThreshold)
	assert.Equal(t, 90*time.Second, cfg.ResetTimeout)

	defaults := GeodataConfig{}.Breaker()
	assert.Equal(t, 5, defaults.FailureThreshold)
	assert.Equal(t, 30*time.Second, defaults.ResetTimeout)
}
