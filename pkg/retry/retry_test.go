package retry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func testConfig(maxRetries int) Config {
	return Config{
		MaxRetries: maxRetries,
		Strategy:   StrategyFixed,
		BaseDelay:  time.Millisecond,
	}
}

func TestExecute_InvokesExactlyMaxRetriesPlusOne(t *testing.T) {
	h := New(testConfig(3))
	calls := 0

	_, err := h.Execute(context.Background(), func(ctx context.Context) (*Result, error) {
		calls++
		return nil, errors.New("connection refused")
	})

	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 4 {
		t.Errorf("calls = %d, want 4", calls)
	}
	if h.AttemptsRemaining() != 0 {
		t.Errorf("attempts remaining = %d, want 0", h.AttemptsRemaining())
	}
}

func TestExecute_SucceedsAfterRetryableFailures(t *testing.T) {
	h := New(testConfig(3))
	calls := 0

	res, err := h.Execute(context.Background(), func(ctx context.Context) (*Result, error) {
		calls++
		if calls < 3 {
			return &Result{Success: false, StatusCode: 503}, nil
		}
		return &Result{Success: true, StatusCode: 200, HTML: strings.Repeat("x", 600)}, nil
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Success {
		t.Error("expected success")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if h.AttemptsRemaining() != 1 {
		t.Errorf("attempts remaining = %d, want 1", h.AttemptsRemaining())
	}
}

func TestExecute_NonRetryableErrorPropagatesImmediately(t *testing.T) {
	h := New(testConfig(5))
	calls := 0
	boom := errors.New("invalid selector")

	_, err := h.Execute(context.Background(), func(ctx context.Context) (*Result, error) {
		calls++
		return nil, NonRetryable(boom)
	})

	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestExecute_FailedPredicateResultReturnedAfterExhaustion(t *testing.T) {
	h := New(testConfig(2))

	res, err := h.Execute(context.Background(), func(ctx context.Context) (*Result, error) {
		return &Result{Success: false, StatusCode: 503}, nil
	})

	if err != nil {
		t.Fatalf("expected the last result, got error: %v", err)
	}
	if res == nil || res.StatusCode != 503 {
		t.Errorf("res = %+v, want the final 503 result", res)
	}
}

func TestExecute_CustomPredicateReplacesDefault(t *testing.T) {
	cfg := testConfig(3)
	cfg.Predicate = func(res *Result, err error) bool { return false }
	h := New(cfg)
	calls := 0

	// Tiny HTML would fail the default predicate, but the custom one
	// accepts everything.
	res, err := h.Execute(context.Background(), func(ctx context.Context) (*Result, error) {
		calls++
		return &Result{Success: true, HTML: "tiny"}, nil
	})

	if err != nil || calls != 1 {
		t.Fatalf("err=%v calls=%d, want nil/1", err, calls)
	}
	if res.HTML != "tiny" {
		t.Errorf("res = %+v", res)
	}
}

func TestExecute_ContextCancellation(t *testing.T) {
	cfg := Config{MaxRetries: 10, Strategy: StrategyFixed, BaseDelay: time.Hour}
	h := New(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := h.Execute(ctx, func(ctx context.Context) (*Result, error) {
		return nil, errors.New("timeout")
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestDelay_Strategies(t *testing.T) {
	tests := []struct {
		strategy Strategy
		factor   float64
		want     []time.Duration // delays for attempts 0, 1, 2, 3
	}{
		{StrategyFixed, 2, []time.Duration{
			time.Second, time.Second, time.Second, time.Second}},
		{StrategyLinear, 2, []time.Duration{
			time.Second, 3 * time.Second, 5 * time.Second, 7 * time.Second}},
		{StrategyExponential, 2, []time.Duration{
			time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}},
		{StrategyFibonacci, 2, []time.Duration{
			time.Second, time.Second, 2 * time.Second, 3 * time.Second}},
	}

	for _, tt := range tests {
		t.Run(string(tt.strategy), func(t *testing.T) {
			h := New(Config{
				MaxRetries: 3,
				Strategy:   tt.strategy,
				BaseDelay:  time.Second,
				Factor:     tt.factor,
			})
			for attempt, want := range tt.want {
				if got := h.Delay(attempt); got != want {
					t.Errorf("Delay(%d) = %v, want %v", attempt, got, want)
				}
			}
		})
	}
}

func TestDelay_ExponentialBackoffTotalsThreeSeconds(t *testing.T) {
	// 503-twice-then-success with base=1s, factor=2, jitter=0 sleeps
	// 1s + 2s before the third attempt.
	h := New(Config{MaxRetries: 3, Strategy: StrategyExponential, BaseDelay: time.Second, Factor: 2})
	total := h.Delay(0) + h.Delay(1)
	if total != 3*time.Second {
		t.Errorf("total backoff = %v, want 3s", total)
	}
}

func TestDelay_JitterBounds(t *testing.T) {
	h := New(Config{
		MaxRetries: 1,
		Strategy:   StrategyFixed,
		BaseDelay:  time.Second,
		Factor:     1,
		Jitter:     0.5,
	})
	for i := 0; i < 100; i++ {
		d := h.Delay(0)
		if d < time.Second || d > 1500*time.Millisecond {
			t.Fatalf("jittered delay %v outside [1s, 1.5s]", d)
		}
	}
}

func TestDefaultPredicate(t *testing.T) {
	longHTML := strings.Repeat("x", 600)
	tests := []struct {
		name string
		res  *Result
		err  error
		want bool
	}{
		{"nil result", nil, nil, true},
		{"unsuccessful", &Result{Success: false, HTML: longHTML}, nil, true},
		{"short html", &Result{Success: true, StatusCode: 200, HTML: "x"}, nil, true},
		{"retryable status", &Result{Success: true, StatusCode: 503, HTML: longHTML}, nil, true},
		{"ok", &Result{Success: true, StatusCode: 200, HTML: longHTML}, nil, false},
		{"retryable error", nil, fmt.Errorf("dial: connection refused"), true},
		{"plain error", nil, errors.New("bad selector"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DefaultPredicate(tt.res, tt.err); got != tt.want {
				t.Errorf("DefaultPredicate() = %v, want %v", got, tt.want)
			}
		})
	}

	for _, status := range []int{408, 429, 500, 502, 503, 504} {
		res := &Result{Success: true, StatusCode: status, HTML: longHTML}
		if !DefaultPredicate(res, nil) {
			t.Errorf("status %d should be retryable", status)
		}
	}
}
