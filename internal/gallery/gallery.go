// Package gallery holds the enrolled identity templates the matcher scans.
// The store is written only by completed enrollment runs and read on every
// recognized face, so reads take a consistent copy-on-read snapshot and a
// publish is an atomic replace of the identity's template.
package gallery

import (
	"sync"
	"time"
)

// Template is one identity's enrolled face: the element-wise mean of the
// samples collected during its most recent successful enrollment.
type Template struct {
	ID         string
	Name       string
	Vector     []float32
	EnrolledAt time.Time
}

// Store maps identity -> template. Entries keep first-seen order so that
// snapshot scans (and therefore tie-breaks) are deterministic.
type Store struct {
	mu      sync.RWMutex
	entries map[string]Template
	order   []string
	index   *Index
}

// NewStore creates an empty gallery store.
func NewStore() *Store {
	return &Store{
		entries: make(map[string]Template),
	}
}

// AttachIndex keeps the ANN index in lockstep with the store: it is rebuilt
// from the current snapshot now and again after every Publish and Remove.
func (s *Store) AttachIndex(idx *Index) {
	s.mu.Lock()
	s.index = idx
	s.mu.Unlock()
	s.syncIndex()
}

// syncIndex rebuilds the attached index, if any. Must be called without
// holding s.mu: Rebuild reads the store through Snapshot.
func (s *Store) syncIndex() {
	s.mu.RLock()
	idx := s.index
	s.mu.RUnlock()
	if idx == nil {
		return
	}
	idx.Rebuild(s.Snapshot())
}

// Publish atomically replaces the identity's template. A reader never sees
// a partially-averaged vector: the template is fully built before this call.
func (s *Store) Publish(t Template) {
	s.mu.Lock()
	if _, exists := s.entries[t.ID]; !exists {
		s.order = append(s.order, t.ID)
	}
	// Copy the vector so later caller mutations cannot leak into readers.
	vec := make([]float32, len(t.Vector))
	copy(vec, t.Vector)
	t.Vector = vec
	s.entries[t.ID] = t
	s.mu.Unlock()

	s.syncIndex()
}

// Get returns the identity's template, if enrolled.
func (s *Store) Get(id string) (Template, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.entries[id]
	return t, ok
}

// Remove drops an identity from the gallery. No-op if not enrolled.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	if _, ok := s.entries[id]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.entries, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	s.syncIndex()
}

// Snapshot returns a consistent copy of all templates in first-seen order.
// A concurrent publish never partially overwrites a snapshot mid-scan.
func (s *Store) Snapshot() []Template {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Template, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.entries[id])
	}
	return out
}

// Len returns the number of enrolled identities.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// FindByName returns the first template whose display name matches after
// normalization (case- and diacritic-insensitive).
func (s *Store) FindByName(name string) (Template, bool) {
	want := NormalizeName(name)

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.order {
		t := s.entries[id]
		if NormalizeName(t.Name) == want {
			return t, true
		}
	}
	return Template{}, false
}
