package novels

import (
	"context"
	"fmt"
	"io"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/zxckotee/novels-sub001/storage"
	"github.com/zxckotee/novels-sub001/storage/file"
	"github.com/zxckotee/novels-sub001/storage/memory"
	"github.com/zxckotee/novels-sub001/storage/redisstore"
	"github.com/zxckotee/novels-sub001/storage/sealed"
	"github.com/zxckotee/novels-sub001/storage/sqlitestore"
)

// OpenStorage opens the backend cfg selects, sealed with age when an
// identity is configured. The returned closer, if non-nil, releases the
// backend's connections.
//
// An unreachable redis server is not an error: the session hydrates empty
// and writes are retried on every change.
func OpenStorage(ctx context.Context, cfg StorageConfig, logger *zap.Logger) (storage.Storage, io.Closer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		backend storage.Storage
		closer  io.Closer
	)
	switch cfg.Backend {
	case BackendMemory:
		backend = memory.New()

	case BackendFile, "":
		dir, err := cfg.StorageDir()
		if err != nil {
			return nil, nil, err
		}
		fs, err := file.New(dir)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrStorageOpen, err)
		}
		backend = fs

	case BackendSQLite:
		path, err := cfg.DatabasePath()
		if err != nil {
			return nil, nil, err
		}
		db, err := sqlitestore.Open(path)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrStorageOpen, err)
		}
		backend, closer = db, db

	case BackendRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		rs := redisstore.New(client, cfg.RedisPrefix, 0)
		if rtt, err := rs.Ping(ctx); err != nil {
			logger.Warn("redis storage unreachable", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		} else {
			logger.Debug("redis storage connected", zap.String("addr", cfg.RedisAddr), zap.Duration("rtt", rtt))
		}
		backend, closer = rs, client

	default:
		return nil, nil, fmt.Errorf("%w: unknown storage backend %q", ErrInvalidConfig, cfg.Backend)
	}

	if cfg.AgeIdentity == "" {
		return backend, closer, nil
	}

	identity, err := sealed.ParseIdentity(cfg.AgeIdentity)
	if err != nil {
		closeQuietly(closer)
		return nil, nil, fmt.Errorf("%w: %v", ErrStorageOpen, err)
	}
	wrapped, err := sealed.Wrap(backend, identity)
	if err != nil {
		closeQuietly(closer)
		return nil, nil, fmt.Errorf("%w: %v", ErrStorageOpen, err)
	}
	return wrapped, closer, nil
}

func closeQuietly(c io.Closer) {
	if c != nil {
		_ = c.Close()
	}
}
