package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestWindowLimiterAllow(t *testing.T) {
	c := &clock{t: time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)}
	l := NewWindowLimiter(nil, 3, time.Minute, c.now)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := l.Allow(ctx, "alice")
		if err != nil {
			t.Fatal(err)
		}
		if !d.Allowed || d.Remaining != 2-i {
			t.Fatalf("hit %d: %+v", i, d)
		}
	}
	d, _ := l.Allow(ctx, "alice")
	if d.Allowed || d.Remaining != 0 {
		t.Fatalf("4th hit allowed: %+v", d)
	}
	if got := d.RetryAfter(c.t); got != time.Minute {
		t.Errorf("RetryAfter = %v", got)
	}

	// other keys have their own window
	if d, _ := l.Allow(ctx, "bob"); !d.Allowed {
		t.Fatal("bob limited by alice's window")
	}

	c.t = c.t.Add(time.Minute)
	if d, _ := l.Allow(ctx, "alice"); !d.Allowed || d.Remaining != 2 {
		t.Fatalf("after reset: %+v", d)
	}
}

func TestWindowLimiterDefaults(t *testing.T) {
	l := NewWindowLimiter(nil, 0, 0, nil)
	if l.Limit() != 1 || l.Window() != time.Minute {
		t.Fatalf("limit=%d window=%v", l.Limit(), l.Window())
	}
}

func TestWindowLimiterCall(t *testing.T) {
	c := &clock{t: time.Unix(0, 0)}
	l := NewWindowLimiter(NewMemoryCounters(), 1, time.Second, c.now)
	ctx := context.Background()
	calls := 0
	f := func(context.Context) error { calls++; return nil }

	if err := l.Call(ctx, "k", f); err != nil {
		t.Fatal(err)
	}
	if err := l.Call(ctx, "k", f); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("err = %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d", calls)
	}
}

type failingStore struct{}

func (failingStore) Hit(context.Context, string, time.Time, time.Duration) (Window, error) {
	return Window{}, errors.New("redis down")
}

func TestWindowLimiterStoreError(t *testing.T) {
	l := NewWindowLimiter(failingStore{}, 5, time.Minute, nil)
	if _, err := l.Allow(context.Background(), "k"); err == nil {
		t.Fatal("expected store error")
	}
}

func TestMemoryCountersSweep(t *testing.T) {
	start := time.Unix(100, 0)
	m := NewMemoryCounters()
	ctx := context.Background()
	_, _ = m.Hit(ctx, "old", start, time.Minute)
	_, _ = m.Hit(ctx, "new", start.Add(50*time.Second), time.Minute)

	if n := m.Sweep(start.Add(70*time.Second), time.Minute); n != 1 {
		t.Fatalf("swept %d", n)
	}
	if m.Len() != 1 {
		t.Fatalf("len = %d", m.Len())
	}
}

func TestMemoryCountersCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewMemoryCounters().Hit(ctx, "k", time.Now(), time.Minute); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
}

func TestMemoryCountersConcurrent(t *testing.T) {
	m := NewMemoryCounters()
	now := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.Hit(context.Background(), "k", now, time.Minute)
		}()
	}
	wg.Wait()
	w, _ := m.Hit(context.Background(), "k", now, time.Minute)
	if w.Count != 51 {
		t.Fatalf("count = %d", w.Count)
	}
}
