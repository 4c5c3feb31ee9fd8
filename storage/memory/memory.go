// Package memory provides an in-process [storage.Storage] backed by go-cache.
// Values never expire and do not survive a restart.
package memory

import (
	"context"

	"github.com/patrickmn/go-cache"

	"github.com/zxckotee/novels-sub001/storage"
)

// Storage keeps values in memory.
type Storage struct {
	items *cache.Cache
}

// New returns an empty Storage.
func New() *Storage {
	return &Storage{items: cache.New(cache.NoExpiration, 0)}
}

func (s *Storage) Get(_ context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, storage.ErrInvalidKey
	}
	v, ok := s.items.Get(key)
	if !ok {
		return nil, storage.ErrNotFound
	}
	value := v.([]byte)
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

func (s *Storage) Set(_ context.Context, key string, value []byte) error {
	if key == "" {
		return storage.ErrInvalidKey
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	s.items.Set(key, stored, cache.NoExpiration)
	return nil
}

func (s *Storage) Remove(_ context.Context, key string) error {
	if key == "" {
		return storage.ErrInvalidKey
	}
	s.items.Delete(key)
	return nil
}

// Synchronous reports true; reads never leave the caller's turn.
func (s *Storage) Synchronous() bool { return true }
