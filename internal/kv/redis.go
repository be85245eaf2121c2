package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on top of a Redis client. Atomic batches run
// inside MULTI/EXEC.
type RedisStore struct {
	Client *redis.Client
}

// NewRedisStore dials lazily; call Ping to verify connectivity.
func NewRedisStore(opt *redis.Options) *RedisStore {
	return &RedisStore{Client: redis.NewClient(opt)}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.Client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.Client.Set(ctx, key, value, ttl).Err()
}

func (s *RedisStore) IncrBy(ctx context.Context, key string, n int64) (int64, error) {
	return s.Client.IncrBy(ctx, key, n).Result()
}

func (s *RedisStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return s.Client.Expire(ctx, key, ttl).Err()
}

func (s *RedisStore) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.Client.Del(ctx, keys...).Err()
}

func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.Client.Exists(ctx, key).Result()
	return n > 0, err
}

func (s *RedisStore) SAdd(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	return s.Client.SAdd(ctx, key, toArgs(members)...).Err()
}

func (s *RedisStore) SRem(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	return s.Client.SRem(ctx, key, toArgs(members)...).Err()
}

func (s *RedisStore) SMembers(ctx context.Context, key string) ([]string, error) {
	return s.Client.SMembers(ctx, key).Result()
}

func (s *RedisStore) SIsMember(ctx context.Context, key, member string) (bool, error) {
	return s.Client.SIsMember(ctx, key, member).Result()
}

func (s *RedisStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return s.Client.HGetAll(ctx, key).Result()
}

func (s *RedisStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	return s.Client.HSet(ctx, key, toHashArgs(fields)).Err()
}

func (s *RedisStore) Atomic(ctx context.Context, fn func(tx Tx) error) error {
	_, err := s.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		return fn(&redisTx{ctx: ctx, pipe: pipe})
	})
	if err != nil {
		return fmt.Errorf("kv: atomic batch: %w", err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.Client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.Client.Close()
}

type redisTx struct {
	ctx  context.Context
	pipe redis.Pipeliner
}

func (t *redisTx) Set(key, value string, ttl time.Duration) { t.pipe.Set(t.ctx, key, value, ttl) }

func (t *redisTx) Del(keys ...string) {
	if len(keys) > 0 {
		t.pipe.Del(t.ctx, keys...)
	}
}

func (t *redisTx) SAdd(key string, members ...string) {
	if len(members) > 0 {
		t.pipe.SAdd(t.ctx, key, toArgs(members)...)
	}
}

func (t *redisTx) SRem(key string, members ...string) {
	if len(members) > 0 {
		t.pipe.SRem(t.ctx, key, toArgs(members)...)
	}
}

func (t *redisTx) HSet(key string, fields map[string]string) {
	if len(fields) > 0 {
		t.pipe.HSet(t.ctx, key, toHashArgs(fields))
	}
}

func (t *redisTx) IncrBy(key string, n int64) { t.pipe.IncrBy(t.ctx, key, n) }

func (t *redisTx) Expire(key string, ttl time.Duration) { t.pipe.Expire(t.ctx, key, ttl) }

func toArgs(members []string) []interface{} {
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	return args
}

func toHashArgs(fields map[string]string) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
