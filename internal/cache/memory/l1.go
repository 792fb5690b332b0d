// Package memory implements the in-memory tier (C1): a bounded,
// access-ordered map with per-entry TTL. It is the fastest and least
// durable of the three storage tiers composed by the unified storage
// engine (C4).
package memory

import (
	"errors"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ErrNegativeTTL is returned by Set when ttl is negative (spec §4.1 edge case).
var ErrNegativeTTL = errors.New("memory: negative ttl is not allowed")

type entry struct {
	value     []byte
	expiresAt time.Time // zero value means "never expires"
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && e.expiresAt.Before(now)
}

// Cache is the bounded, LRU-evicting in-memory tier. The underlying
// hashicorp/golang-lru cache already serializes access internally, so no
// additional locking is needed here; a single coarse mutex inside that
// library is acceptable given the tier's expected traffic (spec §5).
type Cache struct {
	lru *lru.Cache[string, *entry]
}

// New creates an in-memory tier with the given maximum entry count.
func New(maxEntries int) (*Cache, error) {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	c, err := lru.New[string, *entry](maxEntries)
	if err != nil {
		return nil, err
	}
	return &Cache{lru: c}, nil
}

// Get returns the stored value if present and not expired. On expiry the
// entry is deleted and absent is reported. A successful Get promotes the
// key to most-recently-used.
func (c *Cache) Get(key string) (value []byte, ok bool) {
	e, found := c.lru.Get(key)
	if !found {
		return nil, false
	}
	if e.expired(time.Now()) {
		c.lru.Remove(key)
		return nil, false
	}
	return e.value, true
}

// Set stores value under key. ttl == 0 means the entry never expires;
// ttl < 0 is rejected. Inserting a new key may evict the
// least-recently-used entry if the tier is at capacity.
func (c *Cache) Set(key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		return ErrNegativeTTL
	}
	e := &entry{value: value}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}
	c.lru.Add(key, e)
	return nil
}

// Delete removes key, if present.
func (c *Cache) Delete(key string) {
	c.lru.Remove(key)
}

// Exists reports whether key is present and not expired, without
// promoting it (unlike Get).
func (c *Cache) Exists(key string) bool {
	e, found := c.lru.Peek(key)
	if !found {
		return false
	}
	if e.expired(time.Now()) {
		c.lru.Remove(key)
		return false
	}
	return true
}

// Clear removes every entry.
func (c *Cache) Clear() {
	c.lru.Purge()
}

// Ping always reports healthy while the process is live — the tier has
// no external connection to fail.
func (c *Cache) Ping() bool {
	return true
}

// Len returns the current number of entries, including any not yet
// reaped for expiry (used to populate the l1_memory_size metric).
func (c *Cache) Len() int {
	return c.lru.Len()
}
