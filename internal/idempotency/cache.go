// Package idempotency maps client supplied request keys to the response that
// was committed the first time the key was processed.
package idempotency

import (
	"context"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"
)

const DefaultTTL = 15 * time.Minute

var ErrNotReserved = errors.New("idempotency key not reserved")

// Outcome classifies a CheckOrReserve result.
type Outcome int

const (
	// Fresh means the caller now holds the reservation and must Commit or Release it.
	Fresh Outcome = iota
	// Cached means the key was already committed with the same payload.
	Cached
	// Conflict means the key was used with a different payload.
	Conflict
)

func (o Outcome) String() string {
	switch o {
	case Fresh:
		return "fresh"
	case Cached:
		return "cached"
	case Conflict:
		return "conflict"
	}
	return "unknown"
}

// Lookup is the result of CheckOrReserve. Response is set only for Cached.
type Lookup[V any] struct {
	Outcome  Outcome
	Response V
}

type entry[V any] struct {
	payloadHash string
	committed   bool
	response    V
	expiresAt   time.Time
	done        chan struct{}
}

// Cache is an in-memory TTL map from idempotency key to committed response.
// A single mutex guards every entry, so reservation is the one linearization
// point per key.
type Cache[V any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]*entry[V]
	now     func() time.Time
}

// NewCache creates a cache retaining committed responses for ttl.
func NewCache[V any](ttl time.Duration, now func() time.Time) *Cache[V] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Cache[V]{ttl: ttl, entries: make(map[string]*entry[V]), now: now}
}

// CheckOrReserve resolves key against the cache. When another request holds
// the reservation with the same payload, it waits for that request to commit
// or release and then re-evaluates. The wait is bounded by ctx.
func (c *Cache[V]) CheckOrReserve(ctx context.Context, key, payloadHash string) (Lookup[V], error) {
	for {
		now := c.now()

		c.mu.Lock()
		e, ok := c.entries[key]
		if ok && e.committed && !now.Before(e.expiresAt) {
			delete(c.entries, key)
			ok = false
		}
		if !ok {
			c.entries[key] = &entry[V]{payloadHash: payloadHash, done: make(chan struct{})}
			c.mu.Unlock()
			return Lookup[V]{Outcome: Fresh}, nil
		}
		if e.payloadHash != payloadHash {
			c.mu.Unlock()
			return Lookup[V]{Outcome: Conflict}, nil
		}
		if e.committed {
			resp := e.response
			c.mu.Unlock()
			return Lookup[V]{Outcome: Cached, Response: resp}, nil
		}
		done := e.done
		c.mu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			return Lookup[V]{}, ctx.Err()
		}
	}
}

// Commit stores response for a reserved key. Committed entries are immutable.
func (c *Cache[V]) Commit(key string, response V) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || e.committed {
		return ErrNotReserved
	}
	e.committed = true
	e.response = response
	e.expiresAt = c.now().Add(c.ttl)
	close(e.done)
	return nil
}

// Release drops a pending reservation so a later retry can run the work again.
// Committed entries are left untouched.
func (c *Cache[V]) Release(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || e.committed {
		return
	}
	delete(c.entries, key)
	close(e.done)
}

// Sweep evicts committed entries past their TTL. Pending reservations are
// owned by in-flight requests and are never swept.
func (c *Cache[V]) Sweep(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for key, e := range c.entries {
		if e.committed && !now.Before(e.expiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys, pending or committed.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Fingerprint hashes a canonical payload encoding into a stable hex digest.
func Fingerprint(payload []byte) string {
	sum := blake2b.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
