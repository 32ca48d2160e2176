// Package blob provides the physical vault object storage: opaque bytes
// addressed by a logical storage key. One object may back many logical
// documents; reference counting happens at the document layer.
package blob

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is returned when a requested object does not exist.
var ErrObjectNotFound = errors.New("vault object not found")

// Store defines the contract for vault object storage.
type Store interface {
	// Put stores an object under the given key. Idempotent: writing
	// the same key twice overwrites with identical semantics.
	Put(ctx context.Context, key string, r io.Reader) error

	// Get returns the object bytes. Returns ErrObjectNotFound if the
	// key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes an object. No error if it doesn't exist.
	Delete(ctx context.Context, key string) error

	// Has checks whether an object exists.
	Has(ctx context.Context, key string) (bool, error)
}
