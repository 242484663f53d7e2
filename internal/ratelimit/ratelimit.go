// Package ratelimit throttles extraction calls per owner with token buckets.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Keyed holds one token bucket per key. Buckets idle for longer than the
// eviction window are dropped on the next access.
type Keyed struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   rate.Limit
	burst   int
	idle    time.Duration
	now     func() time.Time
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// DefaultIdle is how long an unused bucket is kept.
const DefaultIdle = 30 * time.Minute

// New builds a limiter allowing rps calls per second per key with the
// given burst. A non-positive rps disables throttling.
func New(rps float64, burst int) *Keyed {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &Keyed{
		buckets: make(map[string]*bucket),
		limit:   limit,
		burst:   burst,
		idle:    DefaultIdle,
		now:     time.Now,
	}
}

// Wait blocks until key may proceed or ctx is done.
func (k *Keyed) Wait(ctx context.Context, key string) error {
	return k.limiter(key).Wait(ctx)
}

// Allow reports whether key may proceed now, consuming a token if so.
func (k *Keyed) Allow(key string) bool {
	return k.limiter(key).Allow()
}

// Len returns the number of live buckets.
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.buckets)
}

func (k *Keyed) limiter(key string) *rate.Limiter {
	k.mu.Lock()
	defer k.mu.Unlock()

	now := k.now()
	for name, b := range k.buckets {
		if name != key && now.Sub(b.seen) > k.idle {
			delete(k.buckets, name)
		}
	}

	b, ok := k.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(k.limit, k.burst)}
		k.buckets[key] = b
	}
	b.seen = now
	return b.lim
}
