// Package store replaces the browser's local key/value storage: JSON values
// keyed by session, held in memory or in memcached.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"
)

// ErrNilValue is returned by Set when asked to store a nil value.
var ErrNilValue = errors.New("store: nil value")

// Store defines the key/value backend for session state.
// Get decodes the stored JSON into dst and reports whether the key was present.
type Store interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// InMemoryStore implements Store using a mutex-guarded map with TTL-based expiration.
// Expired entries are removed on access.
type InMemoryStore struct {
	mu   sync.Mutex
	data map[string]entry
}

type entry struct {
	raw       []byte
	expiresAt time.Time // zero = no expiry
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		data: make(map[string]entry),
	}
}

// Get implements Store.Get. A value that no longer decodes is reported as an error.
func (s *InMemoryStore) Get(ctx context.Context, key string, dst any) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	s.mu.Lock()
	e, ok := s.data[key]
	if ok && !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		delete(s.data, key)
		ok = false
	}
	s.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(e.raw, dst); err != nil {
		return false, err
	}
	return true, nil
}

// Set implements Store.Set. ttl <= 0 keeps the entry until deleted.
func (s *InMemoryStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if value == nil {
		return ErrNilValue
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	e := entry{raw: raw}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}
	s.mu.Lock()
	s.data[key] = e
	s.mu.Unlock()
	return nil
}

// SetRaw stores bytes as-is. Used by tests to simulate corrupt entries.
func (s *InMemoryStore) SetRaw(key string, raw []byte) {
	s.mu.Lock()
	s.data[key] = entry{raw: raw}
	s.mu.Unlock()
}

// Delete implements Store.Delete. Deleting a missing key is not an error.
func (s *InMemoryStore) Delete(ctx context.Context, key string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
	return nil
}

// Len returns the number of entries, including expired ones not yet accessed.
func (s *InMemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}
