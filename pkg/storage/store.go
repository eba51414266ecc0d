// Package storage abstracts the document object store holding the
// report files referenced by the search index.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a key has no object.
var ErrNotFound = errors.New("storage: object not found")

// ObjectStore is a flat key/value blob store.
type ObjectStore interface {
	// Get returns the object bytes, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Put stores the object under key, overwriting any previous value.
	Put(ctx context.Context, key string, data []byte) error
	// Delete removes the object; deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Close releases the underlying resources.
	Close() error
}
