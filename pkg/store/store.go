// Package store provides a generic, thread-safe, in-memory table keyed by
// numeric IDs for use by the shop twin. IDs are assigned sequentially so that
// seeded fixtures and tests see deterministic identifiers.
package store

import (
	"encoding/json"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// Store is a generic, thread-safe, in-memory table of T keyed by int64.
type Store[T any] struct {
	mu      sync.RWMutex
	items   map[int64]T
	order   []int64 // insertion order for deterministic listing
	counter atomic.Int64
}

// New creates an empty Store whose first assigned ID is 1.
func New[T any]() *Store[T] {
	return &Store[T]{
		items: make(map[int64]T),
		order: make([]int64, 0),
	}
}

// NextID reserves the next sequential ID.
func (s *Store[T]) NextID() int64 {
	return s.counter.Add(1)
}

// Set stores an item with the given ID. If the ID already exists, it is overwritten
// but its position in the insertion order is preserved. Setting an ID above the
// counter advances the counter so later NextID calls never collide.
func (s *Store[T]) Set(id int64, item T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.items[id]; !exists {
		s.order = append(s.order, id)
	}
	s.items[id] = item
	s.bumpLocked(id)
}

func (s *Store[T]) bumpLocked(id int64) {
	for {
		cur := s.counter.Load()
		if id <= cur || s.counter.CompareAndSwap(cur, id) {
			return
		}
	}
}

// Get retrieves an item by ID.
func (s *Store[T]) Get(id int64) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	return item, ok
}

// Update applies fn to the stored item under the write lock. It returns false
// when the ID is unknown or fn declines the change by returning false.
func (s *Store[T]) Update(id int64, fn func(*T) bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return false
	}
	if !fn(&item) {
		return false
	}
	s.items[id] = item
	return true
}

// Delete removes an item by ID. Returns true if the item existed.
func (s *Store[T]) Delete(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.items[id]; !exists {
		return false
	}
	delete(s.items, id)
	if i := slices.Index(s.order, id); i >= 0 {
		s.order = slices.Delete(s.order, i, i+1)
	}
	return true
}

// List returns all items in insertion order.
func (s *Store[T]) List() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]T, 0, len(s.order))
	for _, id := range s.order {
		result = append(result, s.items[id])
	}
	return result
}

// ListIDs returns all IDs in insertion order.
func (s *Store[T]) ListIDs() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.order)
}

// Count returns the number of items in the store.
func (s *Store[T]) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// MaxID returns the highest ID currently stored, or 0 when empty.
func (s *Store[T]) MaxID() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var max int64
	for id := range s.items {
		if id > max {
			max = id
		}
	}
	return max
}

// Filter returns items that match the given predicate, in insertion order.
func (s *Store[T]) Filter(predicate func(id int64, item T) bool) []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []T
	for _, id := range s.order {
		if predicate(id, s.items[id]) {
			result = append(result, s.items[id])
		}
	}
	return result
}

// Reset clears all items and resets the ID counter.
func (s *Store[T]) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[int64]T)
	s.order = make([]int64, 0)
	s.counter.Store(0)
}

// Snapshot returns all items as a JSON-serializable map.
func (s *Store[T]) Snapshot() map[int64]T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot := make(map[int64]T, len(s.items))
	for k, v := range s.items {
		snapshot[k] = v
	}
	return snapshot
}

// LoadSnapshot replaces all items from a snapshot map. IDs are sorted
// numerically to keep listing deterministic, and the counter continues from
// the highest loaded ID.
func (s *Store[T]) LoadSnapshot(snapshot map[int64]T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[int64]T, len(snapshot))
	s.order = make([]int64, 0, len(snapshot))
	s.counter.Store(0)
	for k, v := range snapshot {
		s.items[k] = v
		s.order = append(s.order, k)
		s.bumpLocked(k)
	}
	slices.Sort(s.order)
}

// MarshalJSON serializes the store to JSON (the items map).
func (s *Store[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Snapshot())
}

// UnmarshalJSON deserializes JSON into the store, replacing existing items.
func (s *Store[T]) UnmarshalJSON(data []byte) error {
	var snapshot map[int64]T
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return err
	}
	s.LoadSnapshot(snapshot)
	return nil
}

// Clock provides a simulated clock so order and transaction dates can be
// moved forward from the admin plane.
type Clock struct {
	mu     sync.RWMutex
	offset time.Duration
}

// NewClock creates a new simulated clock with no offset.
func NewClock() *Clock {
	return &Clock{}
}

// Now returns the current simulated time.
func (c *Clock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Now().Add(c.offset)
}

// Advance moves the simulated clock forward by the given duration.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offset += d
}

// Reset resets the clock offset to zero.
func (c *Clock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offset = 0
}

// Offset returns the current clock offset.
func (c *Clock) Offset() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.offset
}
