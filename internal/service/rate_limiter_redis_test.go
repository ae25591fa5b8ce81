package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type mockRedisEvaler struct {
	lastScript string
	lastKeys   []string
	lastArgs   []interface{}
	count      int64
	ttlMillis  int64
	err        error
}

func (m *mockRedisEvaler) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	m.lastScript = script
	m.lastKeys = keys
	m.lastArgs = args
	cmd := redis.NewCmd(ctx)
	if m.err != nil {
		cmd.SetErr(m.err)
		return cmd
	}
	cmd.SetVal([]interface{}{m.count, m.ttlMillis})
	return cmd
}

func TestRedisRateLimiterAllow(t *testing.T) {
	t.Run("nil client returns nil limiter", func(t *testing.T) {
		if NewRedisRateLimiter(nil) != nil {
			t.Fatalf("expected nil limiter without client")
		}
	})

	t.Run("allow when count within limit", func(t *testing.T) {
		mock := &mockRedisEvaler{count: 2, ttlMillis: 45000}
		l := &redisRateLimiter{client: mock, prefix: "rl:", timeout: time.Second}
		d, err := l.Allow(context.Background(), "login:10.0.0.1", 3, 2*time.Minute)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !d.Allowed || d.Remaining != 1 || d.Limit != 3 {
			t.Fatalf("unexpected decision %+v", d)
		}
		if len(mock.lastKeys) != 1 || mock.lastKeys[0] != "rl:login:10.0.0.1" {
			t.Fatalf("unexpected key, got %+v", mock.lastKeys)
		}
		if len(mock.lastArgs) != 1 || mock.lastArgs[0] != int64(120000) {
			t.Fatalf("expected window in millis, got %+v", mock.lastArgs)
		}
		if mock.lastScript != redisRateLimitScript {
			t.Fatalf("expected script to match")
		}
	})

	t.Run("deny when count exceeds limit", func(t *testing.T) {
		mock := &mockRedisEvaler{count: 4, ttlMillis: 12500}
		l := &redisRateLimiter{client: mock, prefix: "rl:", timeout: time.Second}
		d, err := l.Allow(context.Background(), "k", 3, time.Minute)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if d.Allowed {
			t.Fatalf("expected deny when count > limit")
		}
		if d.RetryAfter != 12500*time.Millisecond {
			t.Fatalf("expected retry after from ttl, got %s", d.RetryAfter)
		}
	})

	t.Run("retry after has a one second floor", func(t *testing.T) {
		l := &redisRateLimiter{client: &mockRedisEvaler{count: 9, ttlMillis: 10}, prefix: "rl:", timeout: time.Second}
		d, _ := l.Allow(context.Background(), "k", 3, time.Minute)
		if d.RetryAfter != time.Second {
			t.Fatalf("expected 1s floor, got %s", d.RetryAfter)
		}
	})

	t.Run("redis error fail-open", func(t *testing.T) {
		l := &redisRateLimiter{client: &mockRedisEvaler{err: errors.New("redis down")}, prefix: "rl:", timeout: time.Second}
		d, err := l.Allow(context.Background(), "k", 3, time.Minute)
		if err == nil {
			t.Fatalf("expected error to be reported")
		}
		if !d.Allowed {
			t.Fatalf("expected fail-open on redis errors")
		}
	})
}

func TestMemoryRateLimiterAllow(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	l := &memoryRateLimiter{hits: make(map[string][]time.Time), now: func() time.Time { return now }}
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		d, err := l.Allow(ctx, "k", 2, time.Minute)
		if err != nil || !d.Allowed {
			t.Fatalf("call %d: expected allow, got %+v err=%v", i, d, err)
		}
	}
	d, _ := l.Allow(ctx, "k", 2, time.Minute)
	if d.Allowed {
		t.Fatalf("expected third call to be limited")
	}
	if d.RetryAfter != time.Minute {
		t.Fatalf("expected retry after one window, got %s", d.RetryAfter)
	}

	other, _ := l.Allow(ctx, "other", 2, time.Minute)
	if !other.Allowed {
		t.Fatalf("expected keys to be independent")
	}

	now = now.Add(61 * time.Second)
	d, _ = l.Allow(ctx, "k", 2, time.Minute)
	if !d.Allowed || d.Remaining != 1 {
		t.Fatalf("expected window to slide, got %+v", d)
	}
}

func TestMemoryRateLimiterPrunesStaleKeys(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	l := &memoryRateLimiter{hits: make(map[string][]time.Time), now: func() time.Time { return now }}
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		if _, err := l.Allow(ctx, fmt.Sprintf("login:10.0.%d.%d", i/256, i%256), 2, time.Minute); err != nil {
			t.Fatalf("allow: %v", err)
		}
	}
	if len(l.hits) != 100 {
		t.Fatalf("expected 100 tracked keys, got %d", len(l.hits))
	}

	now = now.Add(2 * time.Minute)
	if _, err := l.Allow(ctx, "login:10.1.0.1", 2, time.Minute); err != nil {
		t.Fatalf("allow: %v", err)
	}
	if len(l.hits) != 1 {
		t.Fatalf("expected stale keys to be pruned, %d keys left", len(l.hits))
	}
}
