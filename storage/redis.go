package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/ruteri/people-registry/interfaces"
)

// RedisBackend implements a state store on a Redis server.
// Each key is stored as a plain string value under "<prefix>:<key>" without expiry.
type RedisBackend struct {
	client      *redis.Client
	prefix      string
	log         *slog.Logger
	locationURI string
}

// NewRedisBackend creates a Redis state store from a redis:// or rediss:// URL.
// The connection is established lazily on first use.
func NewRedisBackend(redisURL, prefix string, log *slog.Logger) (*RedisBackend, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("%w: parse redis URL: %v", interfaces.ErrInvalidLocationURI, err)
	}
	if prefix == "" {
		prefix = "people-registry"
	}

	return &RedisBackend{
		client:      redis.NewClient(opts),
		prefix:      prefix,
		log:         log,
		locationURI: fmt.Sprintf("redis://%s/%d?prefix=%s", opts.Addr, opts.DB, prefix),
	}, nil
}

// Load reads the value holding key.
func (b *RedisBackend) Load(ctx context.Context, key string) ([]byte, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	start := time.Now()

	data, err := b.client.Get(ctx, b.redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, interfaces.ErrContentNotFound
	} else if err != nil {
		b.log.Error("Failed to read state from Redis",
			slog.String("key", b.redisKey(key)),
			"err", err)
		return nil, fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}

	b.log.Debug("Loaded state from Redis",
		slog.String("key", b.redisKey(key)),
		slog.Int("size", len(data)),
		slog.Duration("duration", time.Since(start)))

	return data, nil
}

// Save sets the value holding key.
func (b *RedisBackend) Save(ctx context.Context, key string, data []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}

	if err := b.client.Set(ctx, b.redisKey(key), data, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}

	b.log.Debug("Saved state to Redis",
		slog.String("key", b.redisKey(key)),
		slog.Int("size", len(data)))

	return nil
}

// Available pings the Redis server.
func (b *RedisBackend) Available(ctx context.Context) bool {
	if err := b.client.Ping(ctx).Err(); err != nil {
		b.log.Debug("Redis backend unavailable", "err", err)
		return false
	}
	return true
}

// Name returns a unique identifier for this storage backend.
func (b *RedisBackend) Name() string {
	return fmt.Sprintf("redis-%s", b.prefix)
}

// LocationURI returns the URI that identifies this storage backend.
func (b *RedisBackend) LocationURI() string {
	return b.locationURI
}

// Close releases the connection pool.
func (b *RedisBackend) Close() error {
	return b.client.Close()
}

func (b *RedisBackend) redisKey(key string) string {
	return b.prefix + ":" + key
}
