package config

import (
	"time"

	"github.com/detroit-blocks/blockline/internal/resilience"
)

// Resilience converts the flat millisecond wire values into a
// resilience.RetryConfig. Non-positive values keep the package defaults.
func (r RetryConfig) Resilience() resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	if r.MaxAttempts > 0 {
		cfg.MaxAttempts = r.MaxAttempts
	}
	if r.InitialBackoffMs > 0 {
		cfg.InitialBackoff = time.Duration(r.InitialBackoffMs) * time.Millisecond
	}
	if r.MaxBackoffMs > 0 {
		cfg.MaxBackoff = time.Duration(r.MaxBackoffMs) * time.Millisecond
	}
	if r.Multiplier > 0 {
		cfg.Multiplier = r.Multiplier
	}
	if r.JitterFraction >= 0 {
		cfg.JitterFraction = r.JitterFraction
	}
	return cfg
}

// Breaker converts the circuit settings carried on the geodata section into
// a resilience.CircuitBreakerConfig.
func (g GeodataConfig) Breaker() resilience.CircuitBreakerConfig {
	cfg := resilience.DefaultCircuitBreakerConfig()
	if g.CircuitFailures > 0 {
		cfg.FailureThreshold = g.CircuitFailures
	}
	if g.CircuitResetSecs > 0 {
		cfg.ResetTimeout = time.Duration(g.CircuitResetSecs) * time.Second
	}
	return cfg
}
