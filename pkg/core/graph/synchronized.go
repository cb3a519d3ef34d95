package graph

import "sync"

// Synchronized guards a Storage with a read-write mutex so that concurrent
// index builders can share it. Reads (Entry, Neighborhood) run in parallel;
// mutations are exclusive.
type Synchronized[K comparable, L Level] struct {
	mu    sync.RWMutex
	inner Storage[K, L]
}

// NewSynchronized wraps inner. inner must not be used directly afterwards.
func NewSynchronized[K comparable, L Level](inner Storage[K, L]) *Synchronized[K, L] {
	return &Synchronized[K, L]{inner: inner}
}

func (s *Synchronized[K, L]) Entry() (Entry[K, L], bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inner.Entry()
}

func (s *Synchronized[K, L]) Register(key K, level L) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inner.Register(key, level)
}

func (s *Synchronized[K, L]) Connect(lhs, rhs K, level L) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inner.Connect(lhs, rhs, level)
}

func (s *Synchronized[K, L]) Disconnect(lhs, rhs K, level L) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inner.Disconnect(lhs, rhs, level)
}

func (s *Synchronized[K, L]) Neighborhood(key K, level L) []K {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inner.Neighborhood(key, level)
}

// View runs fn with the wrapped storage while holding the read lock, for
// multi-step reads that need a consistent snapshot. fn must not mutate.
func (s *Synchronized[K, L]) View(fn func(inner Storage[K, L])) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.inner)
}

// Update runs fn with the wrapped storage while holding the write lock.
func (s *Synchronized[K, L]) Update(fn func(inner Storage[K, L])) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.inner)
}
