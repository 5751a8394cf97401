// Package retry provides a strategy-driven retry handler for fetch and
// extraction operations.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/hexleaf/prodex/internal/logger"
)

// Strategy selects how the delay grows between attempts.
type Strategy string

const (
	StrategyFixed       Strategy = "fixed"
	StrategyLinear      Strategy = "linear"
	StrategyExponential Strategy = "exponential"
	StrategyFibonacci   Strategy = "fibonacci"
)

// Result is the minimal view of an operation outcome the default predicate
// inspects. Fetchers return richer structs that embed these fields.
type Result struct {
	Success    bool
	StatusCode int
	HTML       string
}

// Predicate reports whether a (result, error) pair should be retried. A
// caller-supplied predicate fully replaces the default.
type Predicate func(res *Result, err error) bool

// Operation is a single retryable unit of work.
type Operation func(ctx context.Context) (*Result, error)

// Config is the retry policy, expressed as data rather than behaviour.
type Config struct {
	MaxRetries int
	Strategy   Strategy
	BaseDelay  time.Duration
	Factor     float64   // growth factor for linear/exponential
	Jitter     float64   // uniform jitter fraction in [0,1]
	Predicate  Predicate // nil = default predicate
}

// DefaultConfig returns the policy used when none is supplied: three extra
// attempts with exponential backoff starting at one second.
func DefaultConfig() Config {
	return Config{
		MaxRetries: 3,
		Strategy:   StrategyExponential,
		BaseDelay:  time.Second,
		Factor:     2.0,
		Jitter:     0.1,
	}
}

// minUsefulHTML is the HTML length below which the default predicate treats
// a fetch as failed (bot walls and error pages are typically tiny).
const minUsefulHTML = 500

// retryableStatuses are HTTP statuses the default predicate retries.
var retryableStatuses = map[int]bool{
	408: true,
	429: true,
	500: true,
	502: true,
	503: true,
	504: true,
}

// NonRetryableError marks an error that must propagate immediately without
// further attempts.
type NonRetryableError struct {
	Err error
}

func (e *NonRetryableError) Error() string { return e.Err.Error() }
func (e *NonRetryableError) Unwrap() error { return e.Err }

// NonRetryable wraps err so the handler will not retry it.
func NonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &NonRetryableError{Err: err}
}

// Handler executes operations under a retry policy.
type Handler struct {
	config Config
	rng    *rand.Rand

	attemptsUsed int
}

// New creates a Handler from the given config, filling zero values with
// defaults.
func New(cfg Config) *Handler {
	def := DefaultConfig()
	if cfg.Strategy == "" {
		cfg.Strategy = def.Strategy
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = def.BaseDelay
	}
	if cfg.Factor <= 0 {
		cfg.Factor = def.Factor
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &Handler{
		config: cfg,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Execute runs op, retrying per the configured policy. After all attempts
// the last retryable error is surfaced; if the final attempt produced a
// result that merely failed the predicate, that result is returned instead
// of an error.
func (h *Handler) Execute(ctx context.Context, op Operation) (*Result, error) {
	predicate := h.config.Predicate
	if predicate == nil {
		predicate = DefaultPredicate
	}

	h.attemptsUsed = 0
	var lastRes *Result
	var lastErr error

	for attempt := 0; attempt <= h.config.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		h.attemptsUsed++
		res, err := op(ctx)
		lastRes, lastErr = res, err

		if err != nil {
			var nonRetryable *NonRetryableError
			if errors.As(err, &nonRetryable) {
				return nil, nonRetryable.Err
			}
			if !IsRetryableError(err) {
				return nil, err
			}
		} else if !predicate(res, nil) {
			return res, nil
		}

		if attempt >= h.config.MaxRetries {
			break
		}

		delay := h.Delay(attempt)
		logger.Debug("retrying operation",
			"attempt", attempt+1,
			"max_retries", h.config.MaxRetries,
			"delay", delay,
			"error", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	if lastErr != nil {
		return nil, fmt.Errorf("operation failed after %d attempts: %w",
			h.attemptsUsed, lastErr)
	}
	// The last attempt produced a result that merely failed the predicate.
	return lastRes, nil
}

// Delay computes the backoff before the next attempt, including jitter.
// attempt is zero-based.
func (h *Handler) Delay(attempt int) time.Duration {
	base := float64(h.config.BaseDelay)
	var d float64

	switch h.config.Strategy {
	case StrategyLinear:
		d = base * (1 + float64(attempt)*h.config.Factor)
	case StrategyExponential:
		d = base * math.Pow(h.config.Factor, float64(attempt))
	case StrategyFibonacci:
		d = base * float64(fib(attempt+1))
	default: // StrategyFixed
		d = base
	}

	if h.config.Jitter > 0 {
		d += h.rng.Float64() * h.config.Jitter * d
	}
	return time.Duration(d)
}

// AttemptsRemaining reports how many retries were left after the most
// recent Execute call: MaxRetries minus the attempts actually used beyond
// the first.
func (h *Handler) AttemptsRemaining() int {
	used := h.attemptsUsed - 1
	if used < 0 {
		used = 0
	}
	return h.config.MaxRetries - used
}

// AttemptsUsed reports the number of invocations of the operation during
// the most recent Execute call.
func (h *Handler) AttemptsUsed() int {
	return h.attemptsUsed
}

// DefaultPredicate retries when the result is absent, unsuccessful, has a
// retryable HTTP status, or carries too little HTML to be a real page.
func DefaultPredicate(res *Result, err error) bool {
	if err != nil {
		return IsRetryableError(err)
	}
	if res == nil {
		return true
	}
	if !res.Success {
		return true
	}
	if retryableStatuses[res.StatusCode] {
		return true
	}
	return len(res.HTML) < minUsefulHTML
}

// IsRetryableError reports whether err looks transient: connection
// failures, timeouts, and resets.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, os.ErrDeadlineExceeded) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) {
		return true
	}

	msg := err.Error()
	for _, marker := range []string{
		"connection refused",
		"connection reset",
		"timeout",
		"temporary failure",
		"no such host",
		"EOF",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func fib(n int) int {
	a, b := 0, 1
	for i := 0; i < n; i++ {
		a, b = b, a+b
	}
	return a
}
