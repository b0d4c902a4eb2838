// Package cursor persists search state between pages and slices the
// pending list into served pages.
package cursor

import (
	"context"
	"errors"
	"sync"
	"time"

	"placefinder/discoveryservice/internal/domain"
	"placefinder/discoveryservice/internal/metrics"
)

// ErrNotFound is returned when a cursor id has no stored state: it never
// existed, expired, or was deleted after its last page.
var ErrNotFound = errors.New("cursor not found")

// Store persists search state keyed by cursor id. Put overwrites; Delete
// of a missing cursor is a no-op.
type Store interface {
	Get(ctx context.Context, cursorID string) (domain.SearchState, error)
	Put(ctx context.Context, state domain.SearchState) error
	Delete(ctx context.Context, cursorID string) error
}

type memoryEntry struct {
	state     domain.SearchState
	expiresAt time.Time
}

// MemoryStore is the in-process backend: dev deployments and tests. A
// background sweeper evicts expired cursors.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	stop    chan struct{}
	once    sync.Once
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	store := &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		stop:    make(chan struct{}),
	}
	go store.sweep()
	return store
}

func (s *MemoryStore) Get(_ context.Context, cursorID string) (domain.SearchState, error) {
	s.mu.RLock()
	entry, ok := s.entries[cursorID]
	s.mu.RUnlock()
	if !ok || time.Now().After(entry.expiresAt) {
		return domain.SearchState{}, ErrNotFound
	}
	return entry.state, nil
}

func (s *MemoryStore) Put(_ context.Context, state domain.SearchState) error {
	s.mu.Lock()
	s.entries[state.CursorID] = memoryEntry{state: state, expiresAt: time.Now().Add(s.ttl)}
	metrics.ActiveSearches.Set(float64(len(s.entries)))
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, cursorID string) error {
	s.mu.Lock()
	delete(s.entries, cursorID)
	metrics.ActiveSearches.Set(float64(len(s.entries)))
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Close() {
	s.once.Do(func() { close(s.stop) })
}

func (s *MemoryStore) sweep() {
	interval := s.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			now := time.Now()
			s.mu.Lock()
			for id, entry := range s.entries {
				if now.After(entry.expiresAt) {
					delete(s.entries, id)
				}
			}
			metrics.ActiveSearches.Set(float64(len(s.entries)))
			s.mu.Unlock()
		}
	}
}
