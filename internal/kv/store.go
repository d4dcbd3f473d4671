package kv

import (
	"fmt"
	"sync"
)

// Event signals that a key was written or removed.
type Event struct {
	Key string
}

// Store abstracts the persisted key-value backend. Values are opaque strings;
// serialization is the caller's concern. Watch delivers best-effort change
// notifications: a subscriber that falls behind may miss events and is
// expected to re-read on its own timer.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Remove(key string) error
	Range(fn func(key, value string) error) error
	LoadAll(all map[string]string)
	Watch() (<-chan Event, func())
	Close() error
}

// MemoryStore is a mutex-guarded map store with in-process notifications.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]string
	n    notifier
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

func (s *MemoryStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

func (s *MemoryStore) Set(key, value string) error {
	s.mu.Lock()
	s.data[key] = value
	s.mu.Unlock()
	s.n.publish(Event{Key: key})
	return nil
}

func (s *MemoryStore) Remove(key string) error {
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
	s.n.publish(Event{Key: key})
	return nil
}

func (s *MemoryStore) Range(fn func(key, value string) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for k, v := range s.data {
		if err := fn(k, v); err != nil {
			return fmt.Errorf("range callback failed: %w", err)
		}
	}
	return nil
}

// LoadAll replaces the store contents with the provided snapshot.
func (s *MemoryStore) LoadAll(all map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[string]string, len(all))
	for k, v := range all {
		s.data[k] = v
	}
}

func (s *MemoryStore) Watch() (<-chan Event, func()) { return s.n.subscribe() }

func (s *MemoryStore) Close() error { return nil }
