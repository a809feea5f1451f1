// Package ratelimit provides token-bucket limiters backed by
// golang.org/x/time/rate: a single global gate and a per-client variant keyed
// by caller address.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter wraps a token-bucket limiter that decides whether an incoming
// request should be allowed.
type Limiter struct {
	lim *rate.Limiter
}

// NewLimiter creates a Limiter that permits rps requests per second with the
// given burst size.
func NewLimiter(rps float64, burst int) *Limiter {
	return &Limiter{lim: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Allow reports whether a single request may proceed.
func (l *Limiter) Allow() bool {
	return l.lim.Allow()
}

// DefaultIdleTTL is how long an unused per-client bucket is kept.
const DefaultIdleTTL = 10 * time.Minute

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// KeyedOption configures a Keyed limiter.
type KeyedOption func(*Keyed)

// WithIdleTTL sets how long an idle client's bucket survives.
func WithIdleTTL(d time.Duration) KeyedOption {
	return func(k *Keyed) {
		if d > 0 {
			k.idle = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) KeyedOption {
	return func(k *Keyed) {
		if now != nil {
			k.now = now
		}
	}
}

// Keyed holds one token bucket per key, typically the client IP. Buckets
// idle for longer than the idle TTL are dropped on the next sweep.
type Keyed struct {
	rps   rate.Limit
	burst int
	idle  time.Duration
	now   func() time.Time

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

// NewKeyed creates a per-key limiter; every key gets rps and burst.
func NewKeyed(rps float64, burst int, opts ...KeyedOption) *Keyed {
	k := &Keyed{
		rps:     rate.Limit(rps),
		burst:   burst,
		idle:    DefaultIdleTTL,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
	for _, o := range opts {
		o(k)
	}
	k.lastSweep = k.now()
	return k
}

// Allow reports whether a request from key may proceed.
func (k *Keyed) Allow(key string) bool {
	now := k.now()

	k.mu.Lock()
	defer k.mu.Unlock()

	if now.Sub(k.lastSweep) >= k.idle {
		for id, b := range k.buckets {
			if now.Sub(b.lastSeen) >= k.idle {
				delete(k.buckets, id)
			}
		}
		k.lastSweep = now
	}

	b, ok := k.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(k.rps, k.burst)}
		k.buckets[key] = b
	}
	b.lastSeen = now
	return b.lim.AllowN(now, 1)
}

// Len is the number of tracked keys.
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.buckets)
}
