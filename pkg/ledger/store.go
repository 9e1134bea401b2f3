package ledger

import (
	"context"
	"fmt"

	"igsaved/pkg/config"
	"igsaved/pkg/logger"
)

// Store persists a Ledger between runs
type Store interface {
	// Load returns the persisted ledger, creating empty storage on first use
	Load(ctx context.Context) (*Ledger, error)
	// Save persists every entry of l. Entries already stored are kept.
	Save(ctx context.Context, l *Ledger) error
	// Reset forgets everything
	Reset(ctx context.Context) error
	Close() error
}

// Open builds the store selected by cfg
func Open(ctx context.Context, cfg config.LedgerConfig, log logger.Logger) (Store, error) {
	key, err := ParseDedupKey(cfg.DedupKey)
	if err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case config.LedgerBackendFile, "":
		return NewFileStore(cfg.Path, key, log), nil
	case config.LedgerBackendRedis:
		client, err := NewRedisClient(ctx, cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, err
		}
		return NewRedisStore(client, cfg.Redis.Key, key, log), nil
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.Backend)
	}
}
