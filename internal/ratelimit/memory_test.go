package ratelimit

import (
	"context"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestCounter() (*MemoryCounter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)}
	c := NewMemoryCounter()
	c.SetClock(clock.Now)
	return c, clock
}

func TestHitCountsWithinWindow(t *testing.T) {
	c, clock := newTestCounter()
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		n, ttl, err := c.Hit(ctx, "k", time.Minute)
		if err != nil {
			t.Fatalf("Hit: %v", err)
		}
		if n != i {
			t.Errorf("hit %d: count = %d", i, n)
		}
		if ttl != time.Minute-time.Duration(i-1)*time.Second {
			t.Errorf("hit %d: ttl = %v", i, ttl)
		}
		clock.Advance(time.Second)
	}
}

func TestWindowResetsAtBoundary(t *testing.T) {
	c, clock := newTestCounter()
	ctx := context.Background()

	_, _, _ = c.Hit(ctx, "k", time.Minute)
	_, _, _ = c.Hit(ctx, "k", time.Minute)

	clock.Advance(time.Minute)
	n, ttl, _ := c.Hit(ctx, "k", time.Minute)
	if n != 1 || ttl != time.Minute {
		t.Errorf("expected fresh window, got count=%d ttl=%v", n, ttl)
	}
}

func TestPeekDoesNotIncrement(t *testing.T) {
	c, clock := newTestCounter()
	ctx := context.Background()

	if n, _, _ := c.Peek(ctx, "k"); n != 0 {
		t.Errorf("unknown key should peek 0, got %d", n)
	}

	_, _, _ = c.Hit(ctx, "k", time.Minute)
	clock.Advance(20 * time.Second)

	n, ttl, _ := c.Peek(ctx, "k")
	if n != 1 || ttl != 40*time.Second {
		t.Errorf("Peek = %d, %v", n, ttl)
	}
	if n, _, _ := c.Peek(ctx, "k"); n != 1 {
		t.Errorf("Peek must not increment, got %d", n)
	}
}

func TestResetAndSweep(t *testing.T) {
	c, clock := newTestCounter()
	ctx := context.Background()

	_, _, _ = c.Hit(ctx, "a", time.Minute)
	_, _, _ = c.Hit(ctx, "b", time.Hour)

	if err := c.Reset(ctx, "a"); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if n, _, _ := c.Peek(ctx, "a"); n != 0 {
		t.Errorf("reset key should peek 0, got %d", n)
	}

	_, _, _ = c.Hit(ctx, "c", time.Minute)
	clock.Advance(2 * time.Minute)
	if n := c.Sweep(); n != 1 {
		t.Errorf("expected 1 expired window swept, got %d", n)
	}
	if n, _, _ := c.Peek(ctx, "b"); n != 1 {
		t.Errorf("live window should survive sweep, got %d", n)
	}
}
