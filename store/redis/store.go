package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/xraph/runner"
	"github.com/xraph/runner/store"
)

// Compile-time interface check.
var _ store.FlagStore = (*Store)(nil)

// Option configures the Store.
type Option func(*Store)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Store implements store.FlagStore backed by Redis.
type Store struct {
	client redis.Cmdable
	logger *slog.Logger
}

// New creates a new Redis-backed store. The caller owns the Redis client
// lifecycle.
func New(client redis.Cmdable, opts ...Option) *Store {
	s := &Store{client: client, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Client returns the underlying Redis client.
func (s *Store) Client() redis.Cmdable { return s.client }

// GetFlag implements store.FlagStore.
func (s *Store) GetFlag(ctx context.Context, key string) (bool, error) {
	v, err := s.client.Get(ctx, flagKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return false, runner.ErrFlagNotFound
	}
	if err != nil {
		return false, fmt.Errorf("runner/redis: get flag %q: %w", key, err)
	}
	return v == "1", nil
}

// SetFlag implements store.FlagStore.
func (s *Store) SetFlag(ctx context.Context, key string, value bool) error {
	v := "0"
	if value {
		v = "1"
	}
	if err := s.client.Set(ctx, flagKey(key), v, 0).Err(); err != nil {
		return fmt.Errorf("runner/redis: set flag %q: %w", key, err)
	}
	s.logger.Debug("flag stored", slog.String("key", key), slog.Bool("value", value))
	return nil
}

// Migrate is a no-op for Redis (schemaless).
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping verifies the Redis connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close is a no-op; the caller owns the Redis client lifecycle.
func (s *Store) Close() error { return nil }
