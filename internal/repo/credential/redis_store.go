package credential

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/mkrupp/localauth/internal/infra/logging"
)

// RedisStoreConfig holds configuration for the Redis store.
type RedisStoreConfig struct {
	Addr     string `env:"ADDR"     default:"localhost:6379"`
	Password string `env:"PASSWORD" default:""`
	DB       int    `env:"DB"       default:"0"`
	// KeyPrefix namespaces all keys written by the store
	KeyPrefix string `env:"KEY_PREFIX" default:"localauth:"`
}

// RedisStore implements Store with plain GET/SET on a Redis server.
type RedisStore struct {
	client *redis.Client
	prefix string
	log    logging.Logger
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg RedisStoreConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisStore{
		client: client,
		prefix: cfg.KeyPrefix,
		log: logging.GetLogger("repo.credential.redis_store").With(
			logging.Group("redis", "addr", cfg.Addr, "db", cfg.DB),
		),
	}, nil
}

// Load implements Store.Load using Redis GET.
func (s *RedisStore) Load(ctx context.Context, key string) ([]byte, error) {
	value, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}

		s.log.ErrorContext(ctx, "load failed", "key", key, "error", err)

		return nil, fmt.Errorf("get: %w", err)
	}

	return value, nil
}

// Save implements Store.Save using Redis SET without expiry.
func (s *RedisStore) Save(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, s.prefix+key, value, 0).Err(); err != nil {
		s.log.ErrorContext(ctx, "save failed", "key", key, "error", err)

		return fmt.Errorf("set: %w", err)
	}

	return nil
}

// Close implements Store.Close.
func (s *RedisStore) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("close redis: %w", err)
	}

	return nil
}
