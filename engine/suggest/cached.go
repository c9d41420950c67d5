package suggest

import (
	"context"
	"fmt"
	"maps"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cached memoizes successful lookups by normalized query. Errors are not
// cached.
type Cached struct {
	next  Lookup
	cache *lru.Cache[string, Payload]
}

// NewCached wraps next with an LRU of the given size.
func NewCached(next Lookup, size int) (*Cached, error) {
	if size <= 0 {
		size = 1024
	}
	cache, err := lru.New[string, Payload](size)
	if err != nil {
		return nil, fmt.Errorf("suggest: cache: %w", err)
	}
	return &Cached{next: next, cache: cache}, nil
}

func (c *Cached) Lookup(ctx context.Context, q Query) (Payload, error) {
	key := q.Key()
	if p, ok := c.cache.Get(key); ok {
		return maps.Clone(p), nil
	}
	p, err := c.next.Lookup(ctx, q)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, maps.Clone(p))
	return p, nil
}

// Len reports the number of cached entries.
func (c *Cached) Len() int { return c.cache.Len() }
