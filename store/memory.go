package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sicko7947/hrflow"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore implements hrflow.Store using in-memory storage (for testing)
type MemoryStore struct {
	values map[string]memoryEntry
	sets   map[string]map[string]struct{}
	now    func() time.Time
	mu     sync.RWMutex
}

// MemoryOption configures a MemoryStore
type MemoryOption func(*MemoryStore)

// WithMemoryClock overrides the clock used for expiry
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		s.now = now
	}
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		values: make(map[string]memoryEntry),
		sets:   make(map[string]map[string]struct{}),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ hrflow.Store = (*MemoryStore)(nil)

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Value operations

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, exists := s.values[key]
	if !exists || entry.expired(s.now()) {
		return nil, hrflow.ErrKeyNotFound
	}

	// Copy so callers cannot mutate stored bytes
	return append([]byte(nil), entry.value...), nil
}

func (s *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expiresAt = s.now().Add(ttl)
	}
	s.values[key] = entry

	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.values, key)
	delete(s.sets, key)

	return nil
}

func (s *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if entry, ok := s.values[key]; ok && !entry.expired(s.now()) {
		return true, nil
	}
	return len(s.sets[key]) > 0, nil
}

// Set operations

func (s *MemoryStore) AddMember(ctx context.Context, key, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.sets[key]
	if !ok {
		set = make(map[string]struct{})
		s.sets[key] = set
	}
	set[member] = struct{}{}

	return nil
}

func (s *MemoryStore) RemoveMember(ctx context.Context, key, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if set, ok := s.sets[key]; ok {
		delete(set, member)
		if len(set) == 0 {
			delete(s.sets, key)
		}
	}

	return nil
}

func (s *MemoryStore) Members(ctx context.Context, key string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	members := make([]string, 0, len(s.sets[key]))
	for m := range s.sets[key] {
		members = append(members, m)
	}
	sort.Strings(members)

	return members, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

// Keys returns the live value keys, sorted. Used by tests and debugging.
func (s *MemoryStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	keys := make([]string, 0, len(s.values))
	for k, e := range s.values {
		if !e.expired(now) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
