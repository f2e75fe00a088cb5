package credential

import (
	"context"
	"errors"
	"fmt"
)

// UsersKey is the well-known key holding the JSON array of user records.
const UsersKey = "auth_users"

// ErrUnknownBackend is returned by NewStore for an unsupported backend name.
var ErrUnknownBackend = errors.New("unknown store backend")

// Store defines the interface for credential persistence. Values are opaque
// JSON blobs addressed by key.
type Store interface {
	// Load returns the value stored under key, or nil and no error if the key
	// has never been written.
	Load(ctx context.Context, key string) ([]byte, error)

	// Save replaces the value stored under key.
	Save(ctx context.Context, key string, value []byte) error

	// Close releases any resources held by the store.
	Close() error
}

// StoreFactory is a function that creates a new Store instance.
// Returns an error if initialization fails.
type StoreFactory func(ctx context.Context) (Store, error)

// StoreConfig selects and configures a Store backend.
type StoreConfig struct {
	// Backend is one of "fs", "sqlite", "redis" or "memory"
	Backend string `env:"BACKEND" default:"fs"`

	FS     FileSystemStoreConfig `envPrefix:"FS_"`
	SQLite SQLiteStoreConfig     `envPrefix:"SQLITE_"`
	Redis  RedisStoreConfig      `envPrefix:"REDIS_"`
}

// StoreFactoryFromConfig returns a factory for the configured backend.
func StoreFactoryFromConfig(cfg StoreConfig) StoreFactory {
	return func(ctx context.Context) (Store, error) {
		return NewStore(ctx, cfg)
	}
}

// NewStore creates the Store selected by cfg.Backend.
func NewStore(ctx context.Context, cfg StoreConfig) (Store, error) {
	switch cfg.Backend {
	case "", "fs":
		return NewFileSystemStore(ctx, cfg.FS)
	case "sqlite":
		return NewSQLiteStore(ctx, cfg.SQLite)
	case "redis":
		return NewRedisStore(ctx, cfg.Redis)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}
