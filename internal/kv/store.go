// Package kv is the persistence collaborator: string, set and hash storage
// with an all-or-nothing batch for multi-key writes.
package kv

import (
	"context"
	"time"
)

// Store is the key-value surface the pipeline persists through.
type Store interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	IncrBy(ctx context.Context, key string, n int64) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)

	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
	SIsMember(ctx context.Context, key, member string) (bool, error)

	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HSet(ctx context.Context, key string, fields map[string]string) error

	// Atomic queues the writes issued on tx and applies them as one unit.
	// If fn returns an error nothing is applied.
	Atomic(ctx context.Context, fn func(tx Tx) error) error

	Ping(ctx context.Context) error
	Close() error
}

// Tx collects writes for Store.Atomic.
type Tx interface {
	Set(key, value string, ttl time.Duration)
	Del(keys ...string)
	SAdd(key string, members ...string)
	SRem(key string, members ...string)
	HSet(key string, fields map[string]string)
	IncrBy(key string, n int64)
	Expire(key string, ttl time.Duration)
}
