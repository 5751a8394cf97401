package llm

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	"github.com/hexleaf/prodex/internal/logger"
)

// BreakerClient wraps a Client with a circuit breaker so a failing provider
// stops receiving traffic instead of stalling every extraction.
type BreakerClient struct {
	inner   Client
	breaker *gobreaker.CircuitBreaker
}

// BreakerConfig tunes the circuit breaker.
type BreakerConfig struct {
	// MaxFailures consecutive failures trip the breaker.
	MaxFailures uint32
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
}

// DefaultBreakerConfig returns the defaults used for provider protection.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxFailures: 5,
		OpenTimeout: 30 * time.Second,
	}
}

// NewBreaker wraps client with circuit-breaker protection.
func NewBreaker(client Client, cfg BreakerConfig) *BreakerClient {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = DefaultBreakerConfig().MaxFailures
	}
	if cfg.OpenTimeout == 0 {
		cfg.OpenTimeout = DefaultBreakerConfig().OpenTimeout
	}

	settings := gobreaker.Settings{
		Name:    client.Name(),
		Timeout: cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("llm circuit breaker state change",
				"provider", name, "from", from.String(), "to", to.String())
		},
	}

	return &BreakerClient{
		inner:   client,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// Complete forwards to the wrapped client through the breaker.
func (c *BreakerClient) Complete(ctx context.Context, prompt string, p Params) (string, error) {
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.inner.Complete(ctx, prompt, p)
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

// Name returns the wrapped provider's identifier.
func (c *BreakerClient) Name() string {
	return c.inner.Name()
}

// State exposes the breaker state for observability.
func (c *BreakerClient) State() gobreaker.State {
	return c.breaker.State()
}
