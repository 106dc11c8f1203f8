package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// ErrNotFound is returned by KV.Get when the key does not exist
var ErrNotFound = errors.New("key not found")

// KV stores opaque JSON blobs under string keys
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// New creates the KV backend selected by cfg
func New(ctx context.Context, cfg Config, logger zerolog.Logger) (KV, error) {
	switch cfg.Backend {
	case BackendSQLite:
		kv, err := NewSQLiteKV(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		logger.Info().Str("path", cfg.SQLitePath).Msg("sqlite preference store initialized")
		return kv, nil
	case BackendDynamoDB:
		return NewDynamoKV(ctx, cfg.Dynamo, logger)
	case BackendMemory, "":
		logger.Info().Msg("in-memory preference store (PREFS_BACKEND=memory)")
		return NewMemoryKV(), nil
	}
	return nil, fmt.Errorf("unknown preference backend %q", cfg.Backend)
}
