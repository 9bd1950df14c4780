// Package cache is an expiring JSON cache over a persistent Store.
//
// Every entry is stored as {"data": payload, "timestamp": epochMs}. The
// time-to-live is supplied per read, so one cache serves data sets with very
// different freshness windows. Nothing is kept in memory between calls: each
// Get re-reads the store, which may be cleared by a reset at any time.
package cache

import (
	"context"
	"log"
	"time"

	"github.com/goccy/go-json"

	"github.com/aaron/footyhub/internal/config"
	"github.com/aaron/footyhub/internal/metrics"
	"github.com/aaron/footyhub/internal/store"
)

// Forever disables the age check for a read.
const Forever time.Duration = 0

type envelope struct {
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// Cache is an expiring cache over a Store.
type Cache struct {
	store store.Store
	now   func() time.Time
}

// New creates a cache over s. now defaults to time.Now when nil.
func New(s store.Store, now func() time.Time) *Cache {
	if now == nil {
		now = time.Now
	}
	return &Cache{store: s, now: now}
}

// Get returns the payload stored under key if it is younger than ttl.
// A stale entry is deleted before reporting a miss. Store errors and
// unparsable entries are reported as a miss.
func (c *Cache) Get(ctx context.Context, key string, ttl time.Duration) (json.RawMessage, bool) {
	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		log.Printf("cache: read %s: %v", key, err)
		metrics.CacheMisses.Add(1)
		return nil, false
	}
	if !ok {
		if config.Debug() {
			log.Printf("cache: no entry for %s", key)
		}
		metrics.CacheMisses.Add(1)
		return nil, false
	}

	var e envelope
	if err := json.Unmarshal(raw, &e); err != nil || len(e.Data) == 0 {
		log.Printf("cache: unreadable entry for %s, treating as miss", key)
		metrics.CacheMisses.Add(1)
		return nil, false
	}

	if ttl > 0 {
		age := c.now().UnixMilli() - e.Timestamp
		if age >= ttl.Milliseconds() {
			if err := c.store.Delete(ctx, key); err != nil {
				log.Printf("cache: evict %s: %v", key, err)
			} else if config.Debug() {
				log.Printf("cache: stale entry %s removed (age %dms)", key, age)
			}
			metrics.CacheEvictions.Add(1)
			metrics.CacheMisses.Add(1)
			return nil, false
		}
	}

	metrics.CacheHits.Add(1)
	return e.Data, true
}

// Put overwrites the entry for key, stamping it with the current time.
func (c *Cache) Put(ctx context.Context, key string, payload json.RawMessage) error {
	b, err := json.Marshal(envelope{Data: payload, Timestamp: c.now().UnixMilli()})
	if err != nil {
		return err
	}
	return c.store.Set(ctx, key, b)
}

// Clear removes every entry from the underlying store.
func (c *Cache) Clear(ctx context.Context) error {
	return c.store.Clear(ctx)
}

// GetJSON decodes a cached payload into T. A payload that does not decode
// into T is a miss.
func GetJSON[T any](ctx context.Context, c *Cache, key string, ttl time.Duration) (T, bool) {
	var out T
	data, ok := c.Get(ctx, key, ttl)
	if !ok {
		return out, false
	}
	if err := json.Unmarshal(data, &out); err != nil {
		log.Printf("cache: decode %s: %v", key, err)
		return out, false
	}
	return out, true
}

// PutJSON encodes v and stores it under key.
func PutJSON[T any](ctx context.Context, c *Cache, key string, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Put(ctx, key, data)
}
