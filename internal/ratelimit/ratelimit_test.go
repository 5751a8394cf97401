package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestNew_RejectsNonPositiveRate(t *testing.T) {
	for _, n := range []int{0, -1} {
		if _, err := New(n); err == nil {
			t.Errorf("New(%d) should fail", n)
		}
	}
}

func TestWait_EnforcesInterval(t *testing.T) {
	// 1200 requests/minute = one start every 50ms.
	l, err := New(1200)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := l.Wait(ctx); err != nil {
			t.Fatal(err)
		}
	}
	elapsed := time.Since(start)

	// First acquisition is immediate; the next two each wait ~50ms.
	if elapsed < 90*time.Millisecond {
		t.Errorf("three acquisitions took %v, want >= ~100ms", elapsed)
	}
}

func TestWait_ContextCancellation(t *testing.T) {
	l, err := New(1) // one per minute
	if err != nil {
		t.Fatal(err)
	}
	l.Allow() // consume the initial slot

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := l.Wait(ctx); err == nil {
		t.Error("expected cancellation error while waiting for next slot")
	}
}

func TestLimiters_Independent(t *testing.T) {
	a, _ := New(1)
	b, _ := New(1)
	a.Allow()
	if !b.Allow() {
		t.Error("limiters must not share state")
	}
}
