// Package redis implements storage.Storage on top of Redis. Every write
// refreshes the key's TTL, so abandoned carts expire on their own.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/xenking/cheese-kart/internal/storage"
)

var _ storage.Storage = (*Storage)(nil)

// Storage persists values in Redis under a namespace prefix.
type Storage struct {
	client    redis.UniversalClient
	namespace string
	ttl       time.Duration
}

// Options configure a Storage.
type Options struct {
	// Namespace is prepended to every key, e.g. "storefront".
	Namespace string
	// TTL is applied on every Save. Zero keeps keys forever.
	TTL time.Duration
}

// New wraps an existing client.
func New(client redis.UniversalClient, opts Options) *Storage {
	return &Storage{
		client:    client,
		namespace: opts.Namespace,
		ttl:       opts.TTL,
	}
}

// Connect parses a redis:// URL and creates a client.
func Connect(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	return redis.NewClient(opt), nil
}

func (s *Storage) key(k string) string {
	if s.namespace == "" {
		return k
	}
	return fmt.Sprintf("%s:%s", s.namespace, k)
}

// Save stores value under key with the configured TTL.
func (s *Storage) Save(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, s.key(key), value, s.ttl).Err(); err != nil {
		return errors.Wrapf(err, "set %s", key)
	}
	return nil
}

// Load returns the value under key or storage.ErrNotFound.
func (s *Storage) Load(ctx context.Context, key string) ([]byte, error) {
	v, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get %s", key)
	}
	return v, nil
}

// Delete removes key.
func (s *Storage) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return errors.Wrapf(err, "del %s", key)
	}
	return nil
}

// Ping checks connectivity; used as a readiness check.
func (s *Storage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
