// Package sealed wraps a [storage.Storage] so values are encrypted at rest
// with age (X25519). The access token in the persisted session never reaches
// the backend in clear text.
package sealed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"filippo.io/age"

	"github.com/zxckotee/novels-sub001/storage"
)

// Storage encrypts on Set and decrypts on Get.
type Storage struct {
	inner     storage.Storage
	identity  *age.X25519Identity
	recipient *age.X25519Recipient
}

// Wrap returns a Storage that seals values for identity's recipient.
func Wrap(inner storage.Storage, identity *age.X25519Identity) (*Storage, error) {
	if inner == nil {
		return nil, errors.New("nil inner storage")
	}
	if identity == nil {
		return nil, errors.New("nil age identity")
	}
	return &Storage{
		inner:     inner,
		identity:  identity,
		recipient: identity.Recipient(),
	}, nil
}

// ParseIdentity accepts either an AGE-SECRET-KEY-1... string or a path to a
// file whose first non-comment line holds one.
func ParseIdentity(value string) (*age.X25519Identity, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, errors.New("empty age identity")
	}
	if strings.HasPrefix(value, "AGE-SECRET-KEY-") {
		return age.ParseX25519Identity(value)
	}

	data, err := os.ReadFile(value)
	if err != nil {
		return nil, fmt.Errorf("read age identity file: %w", err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		return age.ParseX25519Identity(line)
	}
	return nil, errors.New("age identity file contains no key")
}

func (s *Storage) Get(ctx context.Context, key string) ([]byte, error) {
	ciphertext, err := s.inner.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	r, err := age.Decrypt(bytes.NewReader(ciphertext), s.identity)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrCorrupt, err)
	}
	plaintext, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrCorrupt, err)
	}
	return plaintext, nil
}

func (s *Storage) Set(ctx context.Context, key string, value []byte) error {
	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, s.recipient)
	if err != nil {
		return fmt.Errorf("seal value: %w", err)
	}
	if _, err := w.Write(value); err != nil {
		return fmt.Errorf("seal value: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("seal value: %w", err)
	}
	return s.inner.Set(ctx, key, buf.Bytes())
}

func (s *Storage) Remove(ctx context.Context, key string) error {
	return s.inner.Remove(ctx, key)
}

// Synchronous follows the wrapped backend.
func (s *Storage) Synchronous() bool {
	return storage.IsSynchronous(s.inner)
}
