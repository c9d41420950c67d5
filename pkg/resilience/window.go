package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrRateLimited is returned by WindowLimiter.Call when a key has used its
// window.
var ErrRateLimited = errors.New("rate limit exceeded")

// Window is one key's fixed counting window.
type Window struct {
	Count int
	Start time.Time
}

// CounterStore keeps per-key windows. Hit records one request for key at now
// and returns the window after the hit; a window older than size restarts.
type CounterStore interface {
	Hit(ctx context.Context, key string, now time.Time, size time.Duration) (Window, error)
}

// MemoryCounters is a process-local CounterStore.
type MemoryCounters struct {
	mu sync.Mutex
	m  map[string]Window
}

func NewMemoryCounters() *MemoryCounters {
	return &MemoryCounters{m: make(map[string]Window)}
}

func (c *MemoryCounters) Hit(ctx context.Context, key string, now time.Time, size time.Duration) (Window, error) {
	if err := ctx.Err(); err != nil {
		return Window{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	w, ok := c.m[key]
	if !ok || now.Sub(w.Start) >= size {
		w = Window{Start: now}
	}
	w.Count++
	c.m[key] = w
	return w, nil
}

// Sweep drops windows that ended before now.
func (c *MemoryCounters) Sweep(now time.Time, size time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, w := range c.m {
		if now.Sub(w.Start) >= size {
			delete(c.m, k)
			n++
		}
	}
	return n
}

// Len reports how many keys are tracked.
func (c *MemoryCounters) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.m)
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is how long until the key's window resets.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	if d.Allowed {
		return 0
	}
	return max(d.ResetAt.Sub(now), 0)
}

// WindowLimiter allows Limit requests per key per fixed window.
type WindowLimiter struct {
	store  CounterStore
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewWindowLimiter builds a limiter. A nil store means a fresh
// MemoryCounters; a nil now means time.Now.
func NewWindowLimiter(store CounterStore, limit int, window time.Duration, now func() time.Time) *WindowLimiter {
	if store == nil {
		store = NewMemoryCounters()
	}
	if now == nil {
		now = time.Now
	}
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &WindowLimiter{store: store, limit: limit, window: window, now: now}
}

func (l *WindowLimiter) Limit() int { return l.limit }

func (l *WindowLimiter) Window() time.Duration { return l.window }

// Now reads the limiter's clock.
func (l *WindowLimiter) Now() time.Time { return l.now() }

// Allow counts one request for key.
func (l *WindowLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	w, err := l.store.Hit(ctx, key, l.now(), l.window)
	if err != nil {
		return Decision{}, err
	}
	return Decision{
		Allowed:   w.Count <= l.limit,
		Limit:     l.limit,
		Remaining: max(l.limit-w.Count, 0),
		ResetAt:   w.Start.Add(l.window),
	}, nil
}

// Call runs f if key still has budget, else returns ErrRateLimited.
func (l *WindowLimiter) Call(ctx context.Context, key string, f func(context.Context) error) error {
	d, err := l.Allow(ctx, key)
	if err != nil {
		return err
	}
	if !d.Allowed {
		return ErrRateLimited
	}
	return f(ctx)
}
