// Package ratelimit provides a keyed token-bucket limiter; the HTTP
// boundary uses it to throttle turns per session.
package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

type Config struct {
	// PerSecond is the sustained rate per key.
	PerSecond float64 `envconfig:"PER_SECOND" split_words:"true" default:"1"`
	Burst     int     `envconfig:"BURST" split_words:"true" default:"3"`
}

// KeyedLimiter keeps one token bucket per key. Buckets are created on
// first use and kept for the process lifetime; session keys are
// low-cardinality enough for that.
type KeyedLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter

	limit rate.Limit
	burst int
}

func New(cfg Config) *KeyedLimiter {
	perSecond := cfg.PerSecond
	if perSecond <= 0 {
		perSecond = 1
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &KeyedLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(perSecond),
		burst:    burst,
	}
}

// Allow reports whether one event for the key may proceed now.
func (k *KeyedLimiter) Allow(key string) bool {
	k.mu.Lock()
	limiter, ok := k.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(k.limit, k.burst)
		k.limiters[key] = limiter
	}
	k.mu.Unlock()

	return limiter.Allow()
}
