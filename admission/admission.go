// Package admission caps the number of concurrently in-flight expensive
// operations, such as upload bodies being read into memory.
//
// The controller is the in-process counterpart of a bulkhead: where the rate
// limiter throttles request rate, the controller bounds concurrent resource
// usage. It depends on no external service. Acquire blocks for at most the
// configured timeout; a timeout is a normal "no slot available" result, not
// an error, which callers typically translate into a service-busy response.
//
// Usage:
//
//	ctl := admission.New(4, 5*time.Second)
//	if !ctl.Acquire(ctx) {
//		// service busy, try again later
//	}
//	defer ctl.Release()
package admission

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// Controller bounds concurrent holders of a fixed-capacity slot pool.
// At most capacity callers hold a slot at any time; admission order among
// waiters is not guaranteed.
type Controller struct {
	sem      *semaphore.Weighted
	capacity int64
	timeout  time.Duration
	active   atomic.Int64
}

// New creates a controller with the given capacity and acquire timeout.
func New(capacity int, timeout time.Duration) *Controller {
	return &Controller{
		sem:      semaphore.NewWeighted(int64(capacity)),
		capacity: int64(capacity),
		timeout:  timeout,
	}
}

// Acquire obtains a slot, waiting until one frees up, the configured timeout
// elapses, or ctx is cancelled. Returns true if a slot was obtained; the
// caller must then call Release exactly once. Returns false, with no side
// effects, if no slot became available in time.
func (c *Controller) Acquire(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.sem.Acquire(ctx, 1); err != nil {
		return false
	}
	c.active.Add(1)
	return true
}

// Release returns a slot to the pool. A release without a matching successful
// acquire is a no-op; the active count never goes negative.
func (c *Controller) Release() {
	for {
		cur := c.active.Load()
		if cur <= 0 {
			return
		}
		if c.active.CompareAndSwap(cur, cur-1) {
			c.sem.Release(1)
			return
		}
	}
}

// Active returns the number of slots currently held.
func (c *Controller) Active() int64 {
	return c.active.Load()
}

// Available returns the number of free slots.
func (c *Controller) Available() int64 {
	return c.capacity - c.active.Load()
}

// Capacity returns the fixed pool size.
func (c *Controller) Capacity() int64 {
	return c.capacity
}

// Timeout returns the configured acquire timeout. Callers surface it as a
// retry hint when the pool is full.
func (c *Controller) Timeout() time.Duration {
	return c.timeout
}
