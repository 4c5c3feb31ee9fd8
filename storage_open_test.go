package novels

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"filippo.io/age"
	"github.com/alicebob/miniredis/v2"

	"github.com/zxckotee/novels-sub001/storage"
)

func roundTrip(t *testing.T, s storage.Storage) {
	t.Helper()
	ctx := context.Background()
	if err := s.Set(ctx, "auth-storage", []byte(`{"state":{},"version":0}`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := s.Get(ctx, "auth-storage")
	if err != nil || string(got) != `{"state":{},"version":0}` {
		t.Fatalf("get: %q %v", got, err)
	}
}

func TestOpenStorageBackends(t *testing.T) {
	mr := miniredis.RunT(t)
	dir := t.TempDir()

	cases := []StorageConfig{
		{Backend: BackendMemory},
		{Backend: BackendFile, Dir: dir},
		{Backend: BackendSQLite, Dir: dir},
		{Backend: BackendRedis, RedisAddr: mr.Addr(), RedisPrefix: "test"},
	}
	for _, cfg := range cases {
		s, closer, err := OpenStorage(context.Background(), cfg, nil)
		if err != nil {
			t.Fatalf("%s: open: %v", cfg.Backend, err)
		}
		roundTrip(t, s)
		if closer != nil {
			if err := closer.Close(); err != nil {
				t.Fatalf("%s: close: %v", cfg.Backend, err)
			}
		}
	}

	if _, err := os.Stat(filepath.Join(dir, "auth-storage.json")); err != nil {
		t.Fatalf("expected file record: %v", err)
	}
	if !mr.Exists("test:auth-storage") {
		t.Fatal("expected redis record under prefix")
	}
}

func TestOpenStorageSealed(t *testing.T) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		t.Fatalf("generate identity: %v", err)
	}
	dir := t.TempDir()

	s, _, err := OpenStorage(context.Background(), StorageConfig{Backend: BackendFile, Dir: dir, AgeIdentity: identity.String()}, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	roundTrip(t, s)

	raw, err := os.ReadFile(filepath.Join(dir, "auth-storage.json"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(raw) == `{"state":{},"version":0}` {
		t.Fatal("record stored in clear text")
	}
}

func TestOpenStorageErrors(t *testing.T) {
	if _, _, err := OpenStorage(context.Background(), StorageConfig{Backend: "tape"}, nil); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
	if _, _, err := OpenStorage(context.Background(), StorageConfig{Backend: BackendMemory, AgeIdentity: "AGE-SECRET-KEY-bogus"}, nil); !errors.Is(err, ErrStorageOpen) {
		t.Fatalf("expected ErrStorageOpen, got %v", err)
	}
}
