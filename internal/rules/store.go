package rules

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/JaimeStill/sectional/internal/sections"
)

// Source is durable storage for rule sets.
type Source interface {
	// Load returns the stored set of section, or ErrNotFound.
	Load(ctx context.Context, section int) (Set, error)
	// Save replaces the stored set of section.
	Save(ctx context.Context, section int, set Set) error
	// Sections lists the sections that have a stored set.
	Sections(ctx context.Context) ([]int, error)
}

// Watcher is implemented by sources that can report external edits.
type Watcher interface {
	Watch(ctx context.Context, onChange func(section int)) error
}

// Store caches per-section rule sets loaded from a Source and merges learned
// rules into them. Registry strict patterns and form-path hints are always
// part of a section's set, so a missing or corrupt source degrades to them.
type Store struct {
	source   Source
	registry *sections.Registry
	logger   *slog.Logger

	mu       sync.RWMutex
	cache    map[int]Set
	degraded map[int]bool
	group    singleflight.Group
}

// NewStore creates a store over source. A nil source keeps rules in memory
// only.
func NewStore(source Source, registry *sections.Registry, logger *slog.Logger) *Store {
	if source == nil {
		source = NewMemorySource()
	}
	if registry == nil {
		registry = sections.Default()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{
		source:   source,
		registry: registry,
		logger:   logger.With("system", "rules"),
		cache:    make(map[int]Set),
		degraded: make(map[int]bool),
	}
}

// Registry returns the section registry the store seeds from.
func (s *Store) Registry() *sections.Registry {
	return s.registry
}

// Rules returns the rule set of section. The result is a copy; it never
// fails, and an unknown or unloadable section yields the registry baseline.
func (s *Store) Rules(ctx context.Context, section int) Set {
	s.mu.RLock()
	set, ok := s.cache[section]
	s.mu.RUnlock()
	if ok {
		return set.Clone()
	}

	v, _, _ := s.group.Do(strconv.Itoa(section), func() (any, error) {
		s.mu.RLock()
		cached, ok := s.cache[section]
		s.mu.RUnlock()
		if ok {
			return cached, nil
		}

		loaded, err := s.load(ctx, section)

		s.mu.Lock()
		defer s.mu.Unlock()
		if cached, ok := s.cache[section]; ok {
			return cached, nil
		}
		s.cache[section] = loaded
		if err != nil {
			s.degraded[section] = true
		}
		return loaded, nil
	})
	return v.(Set).Clone()
}

// load returns the baseline merged with the stored set of section. When the
// source fails for any reason other than ErrNotFound the baseline is returned
// together with the error.
func (s *Store) load(ctx context.Context, section int) (Set, error) {
	set := s.baseline(section)

	stored, err := s.source.Load(ctx, section)
	switch {
	case errors.Is(err, ErrNotFound):
		return set, nil
	case err != nil:
		s.logger.Warn("rule source unavailable, using baseline", "section", section, "error", err)
		return set, err
	}

	for _, r := range stored.Include {
		if r.Tier == "" {
			r.Tier = TierForm
		}
		if err := r.Validate(); err != nil {
			s.logger.Warn("dropping stored rule", "section", section, "pattern", r.Pattern, "error", err)
			continue
		}
		set.Include = append(set.Include, r)
	}
	for _, r := range stored.Exclude {
		if err := r.Validate(); err != nil {
			s.logger.Warn("dropping stored exclude", "section", section, "pattern", r.Pattern, "error", err)
			continue
		}
		set.Exclude = append(set.Exclude, r)
	}
	set.Dedupe()
	return set, nil
}

// baseline returns the rules the registry carries for section.
func (s *Store) baseline(section int) Set {
	set := Set{Include: []Rule{}, Exclude: []Rule{}}
	meta, ok := s.registry.Section(section)
	if !ok {
		return set
	}
	for _, p := range meta.Strict {
		set.Include = append(set.Include, FromSpec(p, TierStrict))
	}
	for _, p := range meta.Hints {
		set.Include = append(set.Include, FromSpec(p, TierForm))
	}
	return set
}

// Add merges rules into the include set of section and returns how many were
// added or upgraded. Rules without a tier are recorded as learned.
func (s *Store) Add(ctx context.Context, section int, rules ...Rule) int {
	if len(rules) == 0 {
		return 0
	}
	current := s.Rules(ctx, section)

	normalized := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if r.Tier == "" {
			r.Tier = TierLearned
		}
		if err := r.Validate(); err != nil {
			s.logger.Warn("rejecting rule", "section", section, "pattern", r.Pattern, "error", err)
			continue
		}
		normalized = append(normalized, r)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cached, ok := s.cache[section]; ok {
		current = cached.Clone()
	}
	n := current.Merge(normalized...)
	s.cache[section] = current
	return n
}

// Persist writes the non-baseline rules of section through the source. A
// section whose stored set could not be read is reloaded first and the cached
// rules are merged into it; if the source is still unreadable nothing is
// written, since saving would replace rules that were never seen.
func (s *Store) Persist(ctx context.Context, section int) error {
	set, err := s.reconcile(ctx, section)
	if err != nil {
		s.logger.Warn("refusing to persist degraded rule set", "section", section, "error", err)
		return fmt.Errorf("persist section %d: %w: %w", section, ErrUnavailable, err)
	}
	set.Include = slices.DeleteFunc(set.Include, func(r Rule) bool { return r.Tier == TierStrict })

	if err := s.source.Save(ctx, section, set); err != nil {
		s.logger.Warn("persisting rules failed", "section", section, "error", err)
		return fmt.Errorf("persist section %d: %w", section, err)
	}
	s.logger.Info("rules persisted", "section", section, "include", len(set.Include), "exclude", len(set.Exclude))
	return nil
}

// reconcile returns the current set of section. A degraded entry is reloaded
// from the source and the cached rules are folded into the stored ones.
func (s *Store) reconcile(ctx context.Context, section int) (Set, error) {
	s.mu.RLock()
	degraded := s.degraded[section]
	s.mu.RUnlock()
	if !degraded {
		return s.Rules(ctx, section), nil
	}

	fresh, err := s.load(ctx, section)
	if err != nil {
		return Set{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cached, ok := s.cache[section]; ok {
		fresh.Merge(cached.Include...)
		fresh.Exclude = append(fresh.Exclude, cached.Exclude...)
		fresh.Dedupe()
	}
	s.cache[section] = fresh
	delete(s.degraded, section)
	s.logger.Info("rule set recovered from source", "section", section)
	return fresh.Clone(), nil
}

// PersistAll persists every cached section and joins the failures.
func (s *Store) PersistAll(ctx context.Context) error {
	var errs []error
	for _, section := range s.Sections() {
		if err := s.Persist(ctx, section); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Invalidate drops the cached set of section so the next lookup reloads it.
func (s *Store) Invalidate(section int) {
	s.mu.Lock()
	delete(s.cache, section)
	delete(s.degraded, section)
	s.mu.Unlock()
	s.group.Forget(strconv.Itoa(section))
	s.logger.Debug("rule cache invalidated", "section", section)
}

// Sections returns the cached sections in ascending order.
func (s *Store) Sections() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.cache))
}

// Stored lists the sections that have persisted rules.
func (s *Store) Stored(ctx context.Context) []int {
	ids, err := s.source.Sections(ctx)
	if err != nil {
		s.logger.Warn("listing stored rule sets failed", "error", err)
		return nil
	}
	return ids
}

// Book compiles a snapshot of every registry section plus any section with
// stored or cached rules.
func (s *Store) Book(ctx context.Context) *Book {
	ids := s.registry.IDs()
	ids = append(ids, s.Stored(ctx)...)
	ids = append(ids, s.Sections()...)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	sets := make(map[int]Set, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if set := s.Rules(ctx, id); set.Len() > 0 {
			sets[id] = set
		}
	}
	return NewBook(sets, s.logger)
}

// Watch invalidates cached sections when the source reports external edits.
// It blocks until ctx is done. Sources that cannot watch return immediately.
func (s *Store) Watch(ctx context.Context) error {
	w, ok := s.source.(Watcher)
	if !ok {
		return nil
	}
	return w.Watch(ctx, s.Invalidate)
}
