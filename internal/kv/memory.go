package kv

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"
)

type memKind int

const (
	kindString memKind = iota
	kindSet
	kindHash
)

type memItem struct {
	kind    memKind
	str     string
	set     map[string]struct{}
	hash    map[string]string
	expires time.Time
}

func (it *memItem) expired(now time.Time) bool {
	return !it.expires.IsZero() && now.After(it.expires)
}

// MemoryStore is an in-process Store for tests and single-node development.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]*memItem
	now   func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: map[string]*memItem{}, now: time.Now}
}

// lookup returns the live item under key, evicting it when expired.
// Callers hold s.mu.
func (s *MemoryStore) lookup(key string) *memItem {
	it, ok := s.items[key]
	if !ok {
		return nil
	}
	if it.expired(s.now()) {
		delete(s.items, key)
		return nil
	}
	return it
}

func (s *MemoryStore) typed(key string, kind memKind) (*memItem, error) {
	it := s.lookup(key)
	if it == nil {
		return nil, nil
	}
	if it.kind != kind {
		return nil, fmt.Errorf("kv: wrong type for key %q", key)
	}
	return it, nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, err := s.typed(key, kindString)
	if err != nil || it == nil {
		return "", false, err
	}
	return it.str, true, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set(key, value, ttl)
	return nil
}

func (s *MemoryStore) set(key, value string, ttl time.Duration) {
	it := &memItem{kind: kindString, str: value}
	if ttl > 0 {
		it.expires = s.now().Add(ttl)
	}
	s.items[key] = it
}

func (s *MemoryStore) IncrBy(_ context.Context, key string, n int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.incrBy(key, n)
}

func (s *MemoryStore) incrBy(key string, n int64) (int64, error) {
	it, err := s.typed(key, kindString)
	if err != nil {
		return 0, err
	}
	if it == nil {
		it = &memItem{kind: kindString, str: "0"}
		s.items[key] = it
	}
	cur, err := strconv.ParseInt(it.str, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("kv: value at %q is not an integer", key)
	}
	cur += n
	it.str = strconv.FormatInt(cur, 10)
	return cur, nil
}

func (s *MemoryStore) Expire(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expire(key, ttl)
	return nil
}

func (s *MemoryStore) expire(key string, ttl time.Duration) {
	if it := s.lookup(key); it != nil {
		it.expires = s.now().Add(ttl)
	}
}

func (s *MemoryStore) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.items, k)
	}
	return nil
}

func (s *MemoryStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookup(key) != nil, nil
}

func (s *MemoryStore) SAdd(_ context.Context, key string, members ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sadd(key, members)
}

func (s *MemoryStore) sadd(key string, members []string) error {
	it, err := s.typed(key, kindSet)
	if err != nil {
		return err
	}
	if it == nil {
		it = &memItem{kind: kindSet, set: map[string]struct{}{}}
		s.items[key] = it
	}
	for _, m := range members {
		it.set[m] = struct{}{}
	}
	return nil
}

func (s *MemoryStore) SRem(_ context.Context, key string, members ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.srem(key, members)
}

func (s *MemoryStore) srem(key string, members []string) error {
	it, err := s.typed(key, kindSet)
	if err != nil || it == nil {
		return err
	}
	for _, m := range members {
		delete(it.set, m)
	}
	if len(it.set) == 0 {
		delete(s.items, key)
	}
	return nil
}

func (s *MemoryStore) SMembers(_ context.Context, key string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, err := s.typed(key, kindSet)
	if err != nil || it == nil {
		return nil, err
	}
	out := make([]string, 0, len(it.set))
	for m := range it.set {
		out = append(out, m)
	}
	return out, nil
}

func (s *MemoryStore) SIsMember(_ context.Context, key, member string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, err := s.typed(key, kindSet)
	if err != nil || it == nil {
		return false, err
	}
	_, ok := it.set[member]
	return ok, nil
}

func (s *MemoryStore) HGetAll(_ context.Context, key string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, err := s.typed(key, kindHash)
	if err != nil {
		return nil, err
	}
	out := map[string]string{}
	if it == nil {
		return out, nil
	}
	for k, v := range it.hash {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryStore) HSet(_ context.Context, key string, fields map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hset(key, fields)
}

func (s *MemoryStore) hset(key string, fields map[string]string) error {
	it, err := s.typed(key, kindHash)
	if err != nil {
		return err
	}
	if it == nil {
		it = &memItem{kind: kindHash, hash: map[string]string{}}
		s.items[key] = it
	}
	for k, v := range fields {
		it.hash[k] = v
	}
	return nil
}

// Atomic applies the queued writes under a single lock acquisition.
func (s *MemoryStore) Atomic(_ context.Context, fn func(tx Tx) error) error {
	tx := &memTx{}
	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Type errors are checked first so a failing op never leaves a partial write.
	for _, op := range tx.ops {
		if op.kind == nil {
			continue
		}
		if it := s.lookup(op.key); it != nil && it.kind != *op.kind {
			return fmt.Errorf("kv: wrong type for key %q", op.key)
		}
	}
	for _, op := range tx.ops {
		if err := op.apply(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

type memOp struct {
	key   string
	kind  *memKind
	apply func(s *MemoryStore) error
}

type memTx struct {
	ops []memOp
}

func kindPtr(k memKind) *memKind { return &k }

func (t *memTx) Set(key, value string, ttl time.Duration) {
	t.ops = append(t.ops, memOp{key: key, apply: func(s *MemoryStore) error {
		s.set(key, value, ttl)
		return nil
	}})
}

func (t *memTx) Del(keys ...string) {
	for _, k := range keys {
		k := k
		t.ops = append(t.ops, memOp{key: k, apply: func(s *MemoryStore) error {
			delete(s.items, k)
			return nil
		}})
	}
}

func (t *memTx) SAdd(key string, members ...string) {
	t.ops = append(t.ops, memOp{key: key, kind: kindPtr(kindSet), apply: func(s *MemoryStore) error {
		return s.sadd(key, members)
	}})
}

func (t *memTx) SRem(key string, members ...string) {
	t.ops = append(t.ops, memOp{key: key, kind: kindPtr(kindSet), apply: func(s *MemoryStore) error {
		return s.srem(key, members)
	}})
}

func (t *memTx) HSet(key string, fields map[string]string) {
	copied := make(map[string]string, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	t.ops = append(t.ops, memOp{key: key, kind: kindPtr(kindHash), apply: func(s *MemoryStore) error {
		return s.hset(key, copied)
	}})
}

func (t *memTx) IncrBy(key string, n int64) {
	t.ops = append(t.ops, memOp{key: key, kind: kindPtr(kindString), apply: func(s *MemoryStore) error {
		_, err := s.incrBy(key, n)
		return err
	}})
}

func (t *memTx) Expire(key string, ttl time.Duration) {
	t.ops = append(t.ops, memOp{key: key, apply: func(s *MemoryStore) error {
		s.expire(key, ttl)
		return nil
	}})
}
