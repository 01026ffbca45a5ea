package ratelimit

import "testing"

func TestAllowPerKey(t *testing.T) {
	t.Parallel()

	limiter := New(Config{PerSecond: 1, Burst: 2})

	if !limiter.Allow("a") || !limiter.Allow("a") {
		t.Fatal("burst must be available immediately")
	}
	if limiter.Allow("a") {
		t.Fatal("third call within the burst window must be rejected")
	}

	// A different key has its own bucket.
	if !limiter.Allow("b") {
		t.Fatal("fresh key must not share the exhausted bucket")
	}
}

func TestNewNormalizesConfig(t *testing.T) {
	t.Parallel()

	limiter := New(Config{})
	if !limiter.Allow("k") {
		t.Fatal("zero config must fall back to a usable limiter")
	}
}
