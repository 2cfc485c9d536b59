// Package selection holds the set of units marked for batch operations.
package selection

import (
	"sort"
	"sync"

	"github.com/samber/lo"

	"github.com/alexjbarnes/sealbox/internal/models"
)

// Set is a concurrency-safe set of units keyed by id.
type Set struct {
	mu    sync.RWMutex
	units map[string]models.Unit
}

// New returns an empty Set.
func New() *Set {
	return &Set{units: make(map[string]models.Unit)}
}

// Add marks units.
func (s *Set) Add(units ...models.Unit) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range units {
		s.units[u.UnitID()] = u
	}
}

// Toggle flips the mark on u and reports whether it is now selected.
func (s *Set) Toggle(u models.Unit) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.units[u.UnitID()]; ok {
		delete(s.units, u.UnitID())
		return false
	}

	s.units[u.UnitID()] = u

	return true
}

// Has reports whether id is selected.
func (s *Set) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.units[id]

	return ok
}

// Len returns the number of selected units.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.units)
}

// IDs returns the selected ids in sorted order.
func (s *Set) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := lo.Keys(s.units)
	sort.Strings(ids)

	return ids
}

// Units returns the selected units ordered by id.
func (s *Set) Units() []models.Unit {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := lo.Keys(s.units)
	sort.Strings(ids)

	return lo.Map(ids, func(id string, _ int) models.Unit { return s.units[id] })
}

// Prune removes ids and returns how many were selected.
func (s *Set) Prune(ids ...string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0

	for _, id := range lo.Uniq(ids) {
		if _, ok := s.units[id]; ok {
			delete(s.units, id)
			removed++
		}
	}

	return removed
}

// Clear empties the set.
func (s *Set) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	clear(s.units)
}
