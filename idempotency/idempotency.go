// Package idempotency records the outcome of logical write operations under a
// caller-chosen key so that retrying the same operation (after a crash, a
// receipt timeout or a double click) never submits a second transaction.
package idempotency

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Errors
var (
	// ErrDuplicateKey is returned when a record with the same key is already in flight
	ErrDuplicateKey = fmt.Errorf("duplicate idempotency key: operation already in progress")

	// ErrKeyNotFound is returned when looking up a non-existent key
	ErrKeyNotFound = fmt.Errorf("idempotency key not found")
)

// Status represents where a logical operation stands
type Status int

const (
	StatusPending   Status = iota // Accepted, no transaction hash yet
	StatusSubmitted               // A transaction hash is known, inclusion not confirmed
	StatusConfirmed               // Mined with a successful receipt
	StatusFailed                  // Failed before anything reached the network
	StatusAmbiguous               // Retries exhausted; an earlier attempt may still be mined
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSubmitted:
		return "submitted"
	case StatusConfirmed:
		return "confirmed"
	case StatusFailed:
		return "failed"
	case StatusAmbiguous:
		return "ambiguous"
	default:
		return "unknown"
	}
}

// Record is the persisted state of one logical operation
type Record struct {
	Key             string          `json:"key"`
	Status          Status          `json:"status"`
	TxHash          common.Hash     `json:"tx_hash"`
	ContractAddress *common.Address `json:"contract_address,omitempty"`
	BlockNumber     uint64          `json:"block_number,omitempty"`
	Error           string          `json:"error,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Store provides storage for idempotency records
type Store interface {
	// Get retrieves an existing record by key, or ErrKeyNotFound
	Get(ctx context.Context, key string) (*Record, error)

	// Create creates a pending record. If a live record exists it is returned
	// together with ErrDuplicateKey.
	Create(ctx context.Context, key string) (*Record, error)

	// Update overwrites an existing record
	Update(ctx context.Context, record *Record) error

	// Delete removes a record by key
	Delete(ctx context.Context, key string) error
}

// InMemoryStore keeps records in a map with an optional TTL
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
	ttl     time.Duration

	stopOnce sync.Once
	stop     chan struct{}
}

// NewInMemoryStore creates a new in-memory store. A zero ttl keeps records forever.
func NewInMemoryStore(ttl time.Duration) *InMemoryStore {
	s := &InMemoryStore{
		records: make(map[string]*Record),
		ttl:     ttl,
		stop:    make(chan struct{}),
	}
	if ttl > 0 {
		go s.evictLoop()
	}
	return s
}

// Stop ends the eviction goroutine
func (s *InMemoryStore) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *InMemoryStore) expired(r *Record, now time.Time) bool {
	return s.ttl > 0 && now.Sub(r.CreatedAt) > s.ttl
}

func (s *InMemoryStore) Get(_ context.Context, key string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[key]
	if !ok || s.expired(r, time.Now()) {
		return nil, ErrKeyNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *InMemoryStore) Create(_ context.Context, key string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if existing, ok := s.records[key]; ok && !s.expired(existing, now) {
		cp := *existing
		return &cp, ErrDuplicateKey
	}
	r := &Record{Key: key, Status: StatusPending, CreatedAt: now, UpdatedAt: now}
	s.records[key] = r
	cp := *r
	return &cp, nil
}

func (s *InMemoryStore) Update(_ context.Context, record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[record.Key]; !ok {
		return ErrKeyNotFound
	}
	record.UpdatedAt = time.Now()
	cp := *record
	s.records[record.Key] = &cp
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

// Size returns the number of records held, expired ones included until evicted
func (s *InMemoryStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *InMemoryStore) evictLoop() {
	ticker := time.NewTicker(s.ttl)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.evict(time.Now())
		}
	}
}

func (s *InMemoryStore) evict(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, r := range s.records {
		if s.expired(r, now) {
			delete(s.records, key)
		}
	}
}
