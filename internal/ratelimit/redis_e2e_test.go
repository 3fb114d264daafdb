//go:build e2e
// +build e2e

package ratelimit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestRedisCounter(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		url = "redis://localhost:6379/15"
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		t.Fatalf("ParseURL: %v", err)
	}
	rdb := redis.NewClient(opt)
	defer rdb.Close()
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}

	ctx := context.Background()
	c := NewRedisCounter(rdb)
	key := "e2e:counter"
	_ = c.Reset(ctx, key)
	defer c.Reset(ctx, key)

	for want := 1; want <= 3; want++ {
		n, ttl, err := c.Hit(ctx, key, time.Minute)
		if err != nil {
			t.Fatalf("Hit: %v", err)
		}
		if n != want {
			t.Errorf("hit %d: got count %d", want, n)
		}
		if ttl <= 0 || ttl > time.Minute {
			t.Errorf("hit %d: unexpected ttl %v", want, ttl)
		}
	}

	n, _, err := c.Peek(ctx, key)
	if err != nil || n != 3 {
		t.Fatalf("Peek: %d %v", n, err)
	}

	if err := c.Reset(ctx, key); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if n, _, _ := c.Peek(ctx, key); n != 0 {
		t.Errorf("expected 0 after reset, got %d", n)
	}
}
