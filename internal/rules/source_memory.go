package rules

import (
	"context"
	"maps"
	"slices"
	"sync"
)

// MemorySource keeps rule sets in process memory.
type MemorySource struct {
	mu   sync.RWMutex
	sets map[int]Set
}

// NewMemorySource returns a source seeded with sets.
func NewMemorySource(seed ...map[int]Set) *MemorySource {
	m := &MemorySource{sets: make(map[int]Set)}
	for _, s := range seed {
		for section, set := range s {
			m.sets[section] = set.Clone()
		}
	}
	return m
}

func (m *MemorySource) Load(_ context.Context, section int) (Set, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set, ok := m.sets[section]
	if !ok {
		return Set{}, ErrNotFound
	}
	return set.Clone(), nil
}

func (m *MemorySource) Save(_ context.Context, section int, set Set) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets[section] = set.Clone()
	return nil
}

func (m *MemorySource) Sections(context.Context) ([]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Sorted(maps.Keys(m.sets)), nil
}
