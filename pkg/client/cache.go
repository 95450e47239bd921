package client

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/singleflight"
)

// ErrFetchCancelled is returned to callers whose fetch was superseded by an
// optimistic write and no cached value exists for the key.
var ErrFetchCancelled = errors.New("fetch cancelled by optimistic update")

// FetchFunc loads the authoritative value of a key
type FetchFunc func(ctx context.Context) (interface{}, error)

// PatchFunc derives the speculative value of a key from its current value.
// It must return a new value and leave old untouched.
type PatchFunc func(key string, old interface{}) interface{}

type entry struct {
	value interface{}
	has   bool
	stale bool
	// gen changes whenever an optimistic write supersedes in-flight fetches
	gen    uint64
	cancel context.CancelFunc
}

// Cache holds decoded query results by key. Cached values are shared and
// must be treated as immutable.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	group   singleflight.Group
}

// NewCache creates an empty cache
func NewCache() *Cache {
	return &Cache{entries: make(map[string]*entry)}
}

func (c *Cache) entry(key string) *entry {
	e, ok := c.entries[key]
	if !ok {
		e = &entry{}
		c.entries[key] = e
	}
	return e
}

// Get returns the cached value of key
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || !e.has {
		return nil, false
	}
	return e.value, true
}

// Set stores value under key
func (c *Cache) Set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entry(key)
	e.value = value
	e.has = true
	e.stale = false
}

// Invalidate marks keys stale so the next Fetch reloads them
func (c *Cache) Invalidate(keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, key := range keys {
		if e, ok := c.entries[key]; ok {
			e.stale = true
		}
	}
}

// Fetch returns the cached value of key, loading it with fn when missing or
// stale. Concurrent fetches of one key share a single call to fn.
func (c *Cache) Fetch(ctx context.Context, key string, fn FetchFunc) (interface{}, error) {
	c.mu.Lock()
	e := c.entry(key)
	if e.has && !e.stale {
		value := e.value
		c.mu.Unlock()
		return value, nil
	}
	gen := e.gen
	c.mu.Unlock()

	ch := c.group.DoChan(key, func() (interface{}, error) {
		return c.load(key, gen, fn)
	})
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// load runs fn as the key's registered in-flight fetch. The result is kept
// only if no optimistic write happened since gen was observed.
func (c *Cache) load(key string, gen uint64, fn FetchFunc) (interface{}, error) {
	fetchCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c.mu.Lock()
	e := c.entry(key)
	if e.gen == gen {
		e.cancel = cancel
	}
	c.mu.Unlock()

	value, err := fn(fetchCtx)

	c.mu.Lock()
	defer c.mu.Unlock()

	e = c.entry(key)
	if e.gen != gen {
		// superseded; serve whatever the optimistic write left behind
		if e.has {
			return e.value, nil
		}
		return nil, ErrFetchCancelled
	}
	e.cancel = nil
	if err != nil {
		return nil, err
	}
	e.value = value
	e.has = true
	e.stale = false
	return value, nil
}

type snapshot struct {
	key   string
	value interface{}
	has   bool
}

// Optimistic applies patch to every cached key, runs call, and restores the
// previous values verbatim if call fails. In-flight fetches of the keys are
// cancelled first so they cannot overwrite the speculative values. The keys
// are invalidated once call returns either way.
func (c *Cache) Optimistic(ctx context.Context, keys []string, patch PatchFunc, call func(ctx context.Context) error) error {
	c.mu.Lock()
	snapshots := make([]snapshot, 0, len(keys))
	for _, key := range keys {
		e := c.entry(key)
		if e.cancel != nil {
			e.cancel()
			e.cancel = nil
		}
		e.gen++

		snapshots = append(snapshots, snapshot{key: key, value: e.value, has: e.has})
		if e.has {
			e.value = patch(key, e.value)
		}
	}
	c.mu.Unlock()

	err := call(ctx)

	c.mu.Lock()
	if err != nil {
		for _, s := range snapshots {
			e := c.entry(s.key)
			e.value = s.value
			e.has = s.has
		}
	}
	for _, s := range snapshots {
		c.entry(s.key).stale = true
	}
	c.mu.Unlock()

	return err
}
