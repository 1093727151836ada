// Package prefs is the small key-value preferences store that sits beside the
// entity store. It holds the ordering mode and the custom rank map.
package prefs

import (
	"fmt"
	"maps"
	"sort"
	"sync"

	"github.com/desertthunder/listx/internal/shared"
)

// Store is a key-value store whose batches are applied atomically.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(key string) (string, bool, error)
	// All returns a copy of every key and value.
	All() (map[string]string, error)
	// Apply sets and deletes keys as a single batch. A key in both set and del is deleted.
	Apply(set map[string]string, del []string) error
}

// MemoryStore keeps preferences in memory only.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore creates a store seeded with a copy of initial.
func NewMemoryStore(initial map[string]string) *MemoryStore {
	values := make(map[string]string, len(initial))
	maps.Copy(values, initial)
	return &MemoryStore{values: values}
}

func (s *MemoryStore) Get(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *MemoryStore) All() (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.values), nil
}

func (s *MemoryStore) Apply(set map[string]string, del []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = applyBatch(s.values, set, del)
	return nil
}

// applyBatch returns a new map with the batch applied; current is left untouched.
func applyBatch(current, set map[string]string, del []string) map[string]string {
	next := maps.Clone(current)
	if next == nil {
		next = make(map[string]string, len(set))
	}
	maps.Copy(next, set)
	for _, k := range del {
		delete(next, k)
	}
	return next
}

// Keys returns the sorted keys of values.
func Keys(values map[string]string) []string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: preferences %s: %v", shared.ErrStorage, op, err)
}
