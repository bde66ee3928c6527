// Package ratelimit provides per-identifier request rate limiting backed by a
// shared counter store.
//
// The limiter uses a fixed-window counter: each identifier gets an atomically
// incremented counter that expires after the configured window. The counter
// increment, the conditional expiry set, and the TTL read are issued as one
// atomic batch, so concurrent requests from the same identifier never observe
// a stale count. A fixed window permits short bursts at window boundaries (up
// to roughly twice the limit across two adjacent windows); this is a known
// characteristic of the algorithm, accepted in exchange for O(1) cost per
// check.
//
// The limiter fails open. If it is disabled, has no store configured, or the
// store returns an error, Check allows the request and reports a zero count.
// Availability is prioritized over strict enforcement when the dependency is
// unhealthy; callers never see a store error, only a Decision.
//
// Basic usage:
//
//	st, err := store.NewRedis(store.RedisConfig{Addr: "localhost:6379"})
//	limiter := ratelimit.New(st, 60, time.Minute)
//	d := limiter.Check(ctx, clientIP)
//	if !d.Allowed {
//		// reject with Retry-After: d.RetryAfter
//	}
package ratelimit

import (
	"context"
	"time"

	"github.com/snapvault/snapvault/ratelimit/store"
)

// Decision is the result of a rate limit check.
type Decision struct {
	// Allowed reports whether the request may proceed.
	Allowed bool

	// CurrentCount is the post-increment count within the current window.
	// Zero when the limiter failed open.
	CurrentCount int64

	// Limit is the configured maximum per window.
	Limit int64

	// Remaining is the number of requests left in the current window.
	Remaining int64

	// RetryAfter is the time until the window resets. Set only when the
	// request was denied.
	RetryAfter time.Duration
}

// Status is a read-only snapshot of an identifier's window, taken without
// incrementing the counter.
type Status struct {
	CurrentCount int64
	Limit        int64
	Remaining    int64
	TTL          time.Duration
}

// Limiter decides whether requests from an identifier are within quota.
type Limiter struct {
	store   store.Store
	limit   int64
	window  time.Duration
	enabled bool
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithEnabled administratively enables or disables the limiter.
// A disabled limiter allows every request.
func WithEnabled(enabled bool) Option {
	return func(l *Limiter) {
		l.enabled = enabled
	}
}

// New creates a limiter allowing limit requests per window for each
// identifier. A nil store yields a limiter that always allows.
func New(st store.Store, limit int, window time.Duration, opts ...Option) *Limiter {
	l := &Limiter{
		store:   st,
		limit:   int64(limit),
		window:  window,
		enabled: true,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Enabled reports whether the limiter is active: administratively enabled
// and backed by a store.
func (l *Limiter) Enabled() bool {
	return l.enabled && l.store != nil
}

// Check records one request from identifier and decides whether it is within
// quota. Fails open on a disabled limiter, a missing store, or any store
// error.
func (l *Limiter) Check(ctx context.Context, identifier string) Decision {
	if !l.Enabled() || identifier == "" {
		return l.failOpen()
	}

	count, ttl, err := l.store.Increment(ctx, identifier, l.window)
	if err != nil {
		return l.failOpen()
	}

	if count > l.limit {
		retryAfter := ttl
		if retryAfter <= 0 {
			retryAfter = l.window
		}
		return Decision{
			Allowed:      false,
			CurrentCount: count,
			Limit:        l.limit,
			Remaining:    0,
			RetryAfter:   retryAfter,
		}
	}

	return Decision{
		Allowed:      true,
		CurrentCount: count,
		Limit:        l.limit,
		Remaining:    max(0, l.limit-count),
	}
}

// Reset clears the counter for identifier, ending its window early.
// Returns false if the limiter is inactive or the store call failed.
func (l *Limiter) Reset(ctx context.Context, identifier string) bool {
	if !l.Enabled() || identifier == "" {
		return false
	}
	return l.store.Reset(ctx, identifier) == nil
}

// Status reports the identifier's current count, remaining quota, and window
// TTL without incrementing. Follows the same fail-open policy as Check:
// on a disabled limiter or store error it reports a zero count with the full
// quota remaining.
func (l *Limiter) Status(ctx context.Context, identifier string) Status {
	if !l.Enabled() || identifier == "" {
		return Status{Limit: l.limit, Remaining: l.limit}
	}

	count, ttl, err := l.store.Peek(ctx, identifier)
	if err != nil {
		return Status{Limit: l.limit, Remaining: l.limit}
	}

	return Status{
		CurrentCount: count,
		Limit:        l.limit,
		Remaining:    max(0, l.limit-count),
		TTL:          max(0, ttl),
	}
}

func (l *Limiter) failOpen() Decision {
	return Decision{
		Allowed:      true,
		CurrentCount: 0,
		Limit:        l.limit,
		Remaining:    l.limit,
	}
}
