package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/platinummonkey/spoke-auth-bitbucket/pkg/observability"
)

// DefaultMaxEntries bounds the in-memory store when no capacity is configured
const DefaultMaxEntries = 10000

// MemoryOptions configures a MemoryStore
type MemoryOptions struct {
	MaxEntries int
	Metrics    *observability.Metrics
	Now        func() time.Time
}

// MemoryStore keeps entries in a size bounded LRU inside the process.
// Reads go straight to the LRU; removals of expired entries are serialized
// by mu and re-checked so a fresh entry written concurrently is never lost.
type MemoryStore struct {
	mu      sync.Mutex
	entries *lru.Cache[string, *Entry]
	metrics *observability.Metrics
	now     func() time.Time
}

// NewMemoryStore creates an in-memory store
func NewMemoryStore(opts MemoryOptions) (*MemoryStore, error) {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	entries, err := lru.New[string, *Entry](opts.MaxEntries)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}

	return &MemoryStore{
		entries: entries,
		metrics: opts.Metrics,
		now:     opts.Now,
	}, nil
}

// Get returns the entry for key; expired entries are evicted and reported absent
func (s *MemoryStore) Get(ctx context.Context, key string) (*Entry, error) {
	entry, ok := s.entries.Get(key)
	if !ok {
		return nil, nil
	}

	if entry.Expired(s.now()) {
		if s.removeIfExpired(key, s.now()) {
			s.metrics.RecordCacheEviction("expired", 1)
		}
		return nil, nil
	}

	return entry.clone(), nil
}

// Set stores a copy of entry; expiry is taken from entry.ExpiresAt
func (s *MemoryStore) Set(ctx context.Context, key string, entry *Entry, ttl time.Duration) error {
	if key == "" {
		return ErrInvalidCacheKey
	}

	s.mu.Lock()
	evicted := s.entries.Add(key, entry.clone())
	s.mu.Unlock()

	if evicted {
		s.metrics.RecordCacheEviction("capacity", 1)
	}
	return nil
}

// Delete removes key
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	s.entries.Remove(key)
	s.mu.Unlock()
	return nil
}

// Clear drops every entry
func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.entries.Purge()
	s.mu.Unlock()
	return nil
}

// Close releases the entries
func (s *MemoryStore) Close() error {
	return s.Clear(context.Background())
}

// Len returns the number of stored entries, expired ones included
func (s *MemoryStore) Len() int {
	return s.entries.Len()
}

// Sweep evicts every entry expired at now and returns how many were removed.
// It works on a snapshot of the keys and holds the lock for one key at a time.
func (s *MemoryStore) Sweep(now time.Time) int {
	removed := 0
	for _, key := range s.entries.Keys() {
		if s.removeIfExpired(key, now) {
			removed++
		}
	}
	s.metrics.RecordCacheEviction("expired", removed)
	return removed
}

func (s *MemoryStore) removeIfExpired(key string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Peek does not refresh recency
	entry, ok := s.entries.Peek(key)
	if !ok || !entry.Expired(now) {
		return false
	}
	return s.entries.Remove(key)
}
