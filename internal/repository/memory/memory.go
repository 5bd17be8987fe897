package memory

import (
	"context"
	"sync"
)

// KeyValue is an in-process repository.KeyValue. Contents do not survive a restart.
type KeyValue struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewKeyValue creates an empty in-memory store.
func NewKeyValue() *KeyValue {
	return &KeyValue{data: make(map[string]string)}
}

// Get returns the value for key.
func (s *KeyValue) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok, nil
}

// MultiGet reads all keys under one lock.
func (s *KeyValue) MultiGet(_ context.Context, keys ...string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := s.data[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

// MultiSet writes all pairs under one lock.
func (s *KeyValue) MultiSet(_ context.Context, pairs map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range pairs {
		s.data[k] = v
	}
	return nil
}

// MultiRemove deletes all keys under one lock.
func (s *KeyValue) MultiRemove(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.data, k)
	}
	return nil
}

// Len returns the number of stored keys.
func (s *KeyValue) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
