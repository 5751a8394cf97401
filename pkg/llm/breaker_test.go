package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
)

type scriptedClient struct {
	reply string
	err   error
	calls int
}

func (c *scriptedClient) Complete(ctx context.Context, prompt string, p Params) (string, error) {
	c.calls++
	return c.reply, c.err
}

func (c *scriptedClient) Name() string { return "scripted" }

func TestBreakerPassesThrough(t *testing.T) {
	inner := &scriptedClient{reply: "hello"}
	b := NewBreaker(inner, DefaultBreakerConfig())

	got, err := b.Complete(context.Background(), "prompt", Params{})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got != "hello" {
		t.Errorf("Complete() = %q, want %q", got, "hello")
	}
	if b.Name() != "scripted" {
		t.Errorf("Name() = %q, want %q", b.Name(), "scripted")
	}
	if b.State() != gobreaker.StateClosed {
		t.Errorf("State() = %v, want closed", b.State())
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	providerErr := errors.New("provider down")
	inner := &scriptedClient{err: providerErr}
	b := NewBreaker(inner, BreakerConfig{MaxFailures: 3, OpenTimeout: time.Minute})

	for i := 0; i < 3; i++ {
		if _, err := b.Complete(context.Background(), "prompt", Params{}); !errors.Is(err, providerErr) {
			t.Fatalf("call %d: error = %v, want %v", i, err, providerErr)
		}
	}

	if b.State() != gobreaker.StateOpen {
		t.Fatalf("State() = %v, want open after 3 failures", b.State())
	}

	// Open breaker rejects without reaching the provider.
	callsBefore := inner.calls
	if _, err := b.Complete(context.Background(), "prompt", Params{}); err == nil {
		t.Fatal("Complete() on open breaker: want error, got nil")
	}
	if inner.calls != callsBefore {
		t.Errorf("open breaker forwarded to provider (%d calls, want %d)", inner.calls, callsBefore)
	}
}

func TestBreakerZeroConfigUsesDefaults(t *testing.T) {
	inner := &scriptedClient{reply: "ok"}
	b := NewBreaker(inner, BreakerConfig{})

	if _, err := b.Complete(context.Background(), "prompt", Params{}); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if b.State() != gobreaker.StateClosed {
		t.Errorf("State() = %v, want closed", b.State())
	}
}
