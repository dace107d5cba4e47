// Package store persists small client-side documents (followed stories,
// session tokens) under string keys, the way a browser keeps them in
// localStorage.
package store

import "errors"

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store: closed")

// KV is the persistence facade used by the domain packages.
// Implementations are SQLite (SqlStore) or in-memory (MemStore).
type KV interface {
	// Get returns the value for key; ok is false when the key is absent.
	Get(key string) (value []byte, ok bool, err error)
	// Put creates or replaces the value for key.
	Put(key string, value []byte) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(key string) error
	// Keys lists all keys in lexical order.
	Keys() ([]string, error)
}
