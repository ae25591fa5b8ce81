package service

import (
	"context"
	"sync"
	"time"
)

// RateDecision es el resultado de consultar el limiter para una clave.
type RateDecision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// RateLimiter limita la frecuencia de requests por clave.
// Ante un error del store devuelve Allowed=true junto con el error.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (RateDecision, error)
}

type memoryRateLimiter struct {
	mu        sync.Mutex
	hits      map[string][]time.Time
	now       func() time.Time
	maxWindow time.Duration
	lastSweep time.Time
}

// NewMemoryRateLimiter crea un limiter de ventana deslizante en memoria.
// Las claves sin hits dentro de la ventana más larga vista se descartan en barridos periódicos.
func NewMemoryRateLimiter() RateLimiter {
	return &memoryRateLimiter{
		hits: make(map[string][]time.Time),
		now:  time.Now,
	}
}

// sweep elimina claves cuyo último hit quedó fuera de maxWindow. Se llama con mu tomado.
func (l *memoryRateLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.maxWindow {
		return
	}
	l.lastSweep = now
	cutoff := now.Add(-l.maxWindow)
	for key, entries := range l.hits {
		if len(entries) == 0 || !entries[len(entries)-1].After(cutoff) {
			delete(l.hits, key)
		}
	}
}

func (l *memoryRateLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (RateDecision, error) {
	if limit <= 0 {
		return RateDecision{Allowed: true, Limit: limit}, nil
	}
	if window <= 0 {
		window = time.Minute
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now().UTC()
	if window > l.maxWindow {
		l.maxWindow = window
	}
	l.sweep(now)

	cutoff := now.Add(-window)
	entries := l.hits[key]
	kept := entries[:0]
	for _, ts := range entries {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= limit {
		l.hits[key] = kept
		retryAfter := kept[0].Add(window).Sub(now)
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
		return RateDecision{Allowed: false, Limit: limit, Remaining: 0, RetryAfter: retryAfter}, nil
	}
	kept = append(kept, now)
	l.hits[key] = kept
	return RateDecision{Allowed: true, Limit: limit, Remaining: limit - len(kept)}, nil
}
