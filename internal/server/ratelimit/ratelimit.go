// Package ratelimit throttles API clients with per-client token buckets.
package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	Reset      time.Time     // When the bucket is full again
	RetryAfter time.Duration // Zero when Allowed
}

type bucket struct {
	tokens float64
	last   time.Time
}

// Limiter tracks one bucket per client and rule. It is safe for concurrent use.
type Limiter struct {
	cfg Config
	now func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

// New creates a Limiter.
func New(cfg Config) *Limiter {
	return &Limiter{cfg: cfg, now: time.Now, buckets: make(map[string]*bucket)}
}

// Allow spends one token from the bucket for client on method and path.
func (l *Limiter) Allow(client, method, path string) Decision {
	if !l.cfg.Enabled || l.cfg.Allow[client] {
		return Decision{Allowed: true, Limit: -1, Remaining: -1}
	}
	if l.cfg.Deny[client] {
		return Decision{Allowed: false, RetryAfter: time.Hour}
	}

	rule, name := l.cfg.rule(method, path)
	if rule.Limit <= 0 || rule.Window <= 0 {
		return Decision{Allowed: true, Limit: -1, Remaining: -1}
	}
	capacity := float64(rule.Burst)
	if rule.Burst <= 0 {
		capacity = float64(rule.Limit)
	}
	rate := float64(rule.Limit) / rule.Window.Seconds()

	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	key := client + "|" + name
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: capacity, last: now}
		l.buckets[key] = b
	}
	b.tokens = math.Min(capacity, b.tokens+now.Sub(b.last).Seconds()*rate)
	b.last = now

	d := Decision{Limit: int(capacity)}
	if b.tokens >= 1 {
		b.tokens--
		d.Allowed = true
	} else {
		d.RetryAfter = seconds((1 - b.tokens) / rate)
	}
	d.Remaining = int(b.tokens)
	d.Reset = now.Add(seconds((capacity - b.tokens) / rate))
	return d
}

// Sweep drops buckets idle for longer than IdleTTL and returns how many were removed.
func (l *Limiter) Sweep() int {
	ttl := l.cfg.IdleTTL
	if ttl <= 0 {
		return 0
	}
	cutoff := l.now().Add(-ttl)

	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for key, b := range l.buckets {
		if b.last.Before(cutoff) {
			delete(l.buckets, key)
			removed++
		}
	}
	return removed
}

// Run sweeps idle buckets every interval until ctx is done.
func (l *Limiter) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(math.Ceil(s * float64(time.Second)))
}
