package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// Cache stores encoded responses by key
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Ping(ctx context.Context) error
	Close() error
}

// RequestKey derives a cache key from a command name and its canonical payload
func RequestKey(command string, payload []byte) string {
	sum := sha256.Sum256(append([]byte(command+":"), payload...))
	return command + ":" + hex.EncodeToString(sum[:])
}

type entry struct {
	b   []byte
	exp time.Time
}

// DefaultMemoryEntries bounds the in-memory cache
const DefaultMemoryEntries = 1024

// Memory is an in-process cache with per-entry expiry. Expired entries are
// swept on every Set; at capacity the entry closest to expiry is evicted.
type Memory struct {
	mu         sync.Mutex
	m          map[string]entry
	maxEntries int
	now        func() time.Time
}

// NewMemory creates an empty in-memory cache holding DefaultMemoryEntries
func NewMemory() *Memory {
	return NewMemoryWithLimit(DefaultMemoryEntries)
}

// NewMemoryWithLimit creates an in-memory cache holding at most maxEntries
func NewMemoryWithLimit(maxEntries int) *Memory {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &Memory{m: make(map[string]entry), maxEntries: maxEntries, now: time.Now}
}

func (c *Memory) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.m[key]
	if !ok {
		return nil, false, nil
	}
	if !e.exp.IsZero() && c.now().After(e.exp) {
		delete(c.m, key)
		return nil, false, nil
	}
	return append([]byte(nil), e.b...), true, nil
}

func (c *Memory) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.sweep(now)
	if _, exists := c.m[key]; !exists && len(c.m) >= c.maxEntries {
		c.evictOne()
	}

	e := entry{b: append([]byte(nil), val...)}
	if ttl > 0 {
		e.exp = now.Add(ttl)
	}
	c.m[key] = e
	return nil
}

func (c *Memory) sweep(now time.Time) {
	for k, e := range c.m {
		if !e.exp.IsZero() && now.After(e.exp) {
			delete(c.m, k)
		}
	}
}

// evictOne drops the entry expiring first; entries without expiry go last
func (c *Memory) evictOne() {
	victim, found := "", false
	var victimExp time.Time
	for k, e := range c.m {
		if !found || expiresBefore(e.exp, victimExp) {
			victim, victimExp, found = k, e.exp, true
		}
	}
	if found {
		delete(c.m, victim)
	}
}

// expiresBefore orders expiry times with zero meaning never
func expiresBefore(a, b time.Time) bool {
	if a.IsZero() {
		return false
	}
	return b.IsZero() || a.Before(b)
}

func (c *Memory) Ping(ctx context.Context) error { return nil }

func (c *Memory) Close() error { return nil }

// Len returns the number of stored entries, expired or not
func (c *Memory) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.m)
}
