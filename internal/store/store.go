// Package store provides the persistent key/value store behind the cache.
package store

import "context"

// Store is a string-keyed byte store. Implementations keep no expiry of
// their own; staleness is decided by the cache layer.
type Store interface {
	// Get returns the stored bytes and true, or false when the key is absent.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set overwrites the value for key.
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// Clear removes every key owned by this store.
	Clear(ctx context.Context) error
}
