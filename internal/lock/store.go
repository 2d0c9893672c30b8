// Package lock provides the distributed mutual-exclusion primitive that
// serializes graph writers. A Mutex is a single named record in a Store, a
// key-value substrate offering compare-and-set writes. Leases bound how
// long a crashed holder can block progress; holder tokens fence stale
// holders out after their lease has been taken over.
package lock

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Get for a key that was never written.
	ErrNotFound = errors.New("lock: item not found")

	// ErrConflict is returned by Put when the stored version does not
	// match the caller's. The caller lost a race and must re-read.
	ErrConflict = errors.New("lock: version conflict")
)

// Item is one versioned record in the store. Version 0 means "not yet
// created"; every successful Put bumps the version by one.
type Item struct {
	Key     string
	Value   []byte
	Version int64
}

// Store is the substrate the lock (and the sequence watermark) lives on.
// Implementations must make Put atomic: the write happens only if the
// stored version equals item.Version, with 0 meaning the key must not
// exist yet.
type Store interface {
	// Get returns the current item, or ErrNotFound.
	Get(ctx context.Context, key string) (Item, error)

	// Put conditionally writes the item and returns it with the new
	// version. Returns ErrConflict if the stored version differs.
	Put(ctx context.Context, item Item) (Item, error)

	// Delete unconditionally removes the key. Missing keys are not an
	// error.
	Delete(ctx context.Context, key string) error
}
