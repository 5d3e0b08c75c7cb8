package idempotency

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/battlechain/arenakit/kvstore"
)

const keyPrefix = "idempotency:"

// KVStore persists records as JSON in a kvstore.Store, so an operation key
// survives process restarts. Create is atomic within one process only.
type KVStore struct {
	mu sync.Mutex
	kv kvstore.Store
}

// NewKVStore wraps kv
func NewKVStore(kv kvstore.Store) *KVStore {
	return &KVStore{kv: kv}
}

func (s *KVStore) load(ctx context.Context, key string) (*Record, error) {
	raw, ok, err := s.kv.Get(ctx, keyPrefix+key)
	if err != nil {
		return nil, fmt.Errorf("load idempotency record: %w", err)
	}
	if !ok {
		return nil, ErrKeyNotFound
	}
	var r Record
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return nil, fmt.Errorf("decode idempotency record %q: %w", key, err)
	}
	return &r, nil
}

func (s *KVStore) save(ctx context.Context, r *Record) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, keyPrefix+r.Key, string(raw))
}

func (s *KVStore) Get(ctx context.Context, key string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx, key)
}

func (s *KVStore) Create(ctx context.Context, key string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.load(ctx, key)
	switch {
	case err == nil:
		return existing, ErrDuplicateKey
	case err != ErrKeyNotFound:
		return nil, err
	}

	now := time.Now().UTC()
	r := &Record{Key: key, Status: StatusPending, CreatedAt: now, UpdatedAt: now}
	if err := s.save(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *KVStore) Update(ctx context.Context, record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.load(ctx, record.Key); err != nil {
		return err
	}
	record.UpdatedAt = time.Now().UTC()
	return s.save(ctx, record)
}

func (s *KVStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kv.Delete(ctx, keyPrefix+key)
}
