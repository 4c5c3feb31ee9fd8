package storage

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Get when the key holds no value.
	ErrNotFound = errors.New("storage key not found")
	// ErrUnavailable wraps backend failures (I/O, network, closed handles).
	ErrUnavailable = errors.New("storage unavailable")
	// ErrCorrupt is returned when a stored value cannot be read back.
	ErrCorrupt = errors.New("storage value corrupt")
	// ErrInvalidKey is returned for empty keys or keys a backend cannot address.
	ErrInvalidKey = errors.New("invalid storage key")
)

// Storage is durable client storage.
//
// Get returns [ErrNotFound] for a missing key. Implementations must be safe
// for concurrent use.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
}

// Synchronous is implemented by backends whose reads complete in the
// caller's turn (local memory, local files). Hydration completes inline for
// them instead of on a goroutine.
type Synchronous interface {
	Synchronous() bool
}

// IsSynchronous reports whether s declares itself synchronous.
func IsSynchronous(s Storage) bool {
	sync, ok := s.(Synchronous)
	return ok && sync.Synchronous()
}
