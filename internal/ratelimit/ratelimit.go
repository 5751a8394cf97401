// Package ratelimit enforces a per-fetcher requests-per-minute budget.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Limiter spaces out fetch start times so that successive requests are at
// least 60/N seconds apart. Acquisition is serialised; the fetches released
// by Wait run concurrently. Independent Limiter instances share no state.
type Limiter struct {
	rl *rate.Limiter
}

// New creates a limiter allowing requestsPerMinute fetch starts per minute.
// A non-positive rate is a configuration error.
func New(requestsPerMinute int) (*Limiter, error) {
	if requestsPerMinute <= 0 {
		return nil, fmt.Errorf("requests_per_minute must be positive, got %d", requestsPerMinute)
	}
	interval := time.Minute / time.Duration(requestsPerMinute)
	return &Limiter{
		rl: rate.NewLimiter(rate.Every(interval), 1),
	}, nil
}

// Wait blocks until the next fetch may start or ctx is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.rl.Wait(ctx)
}

// Allow reports whether a fetch could start immediately, consuming the slot
// if so.
func (l *Limiter) Allow() bool {
	return l.rl.Allow()
}
