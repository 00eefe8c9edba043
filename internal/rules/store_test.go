package rules_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/JaimeStill/sectional/internal/rules"
	"github.com/JaimeStill/sectional/internal/sections"
)

const profile = `
name: test
sections:
  - id: 1
    name: One
    strict:
      - pattern: '^strict_one'
        confidence: 0.99
  - id: 2
    name: Two
    hints:
      - pattern: '^hint_two'
        subsection: A
        confidence: 0.9
  - id: 3
    name: Three
`

type StoreSuite struct {
	suite.Suite
	ctx      context.Context
	registry *sections.Registry
	source   *rules.FileSource
	store    *rules.Store
}

func (s *StoreSuite) SetupTest() {
	reg, err := sections.Parse([]byte(profile))
	s.Require().NoError(err)

	s.ctx = context.Background()
	s.registry = reg
	s.source = rules.NewFileSource(s.T().TempDir())
	s.store = rules.NewStore(s.source, reg, nil)
}

func (s *StoreSuite) TestBaselineWhenNothingStored() {
	set := s.store.Rules(s.ctx, 1)
	s.Require().Len(set.Include, 1)
	s.Equal(rules.TierStrict, set.Include[0].Tier)

	set = s.store.Rules(s.ctx, 2)
	s.Require().Len(set.Include, 1)
	s.Equal(rules.TierForm, set.Include[0].Tier)
	s.Equal("A", set.Include[0].Subsection)

	s.Zero(s.store.Rules(s.ctx, 3).Len())
	s.Zero(s.store.Rules(s.ctx, 42).Len())
}

func (s *StoreSuite) TestCorruptFileDegradesToBaseline() {
	s.Require().NoError(os.WriteFile(s.source.Path(1), []byte("{not json"), 0o644))

	set := s.store.Rules(s.ctx, 1)
	s.Require().Len(set.Include, 1)
	s.Equal("^strict_one", set.Include[0].Pattern)
}

func (s *StoreSuite) TestStoredRulesMergeWithBaseline() {
	s.Require().NoError(s.source.Save(s.ctx, 1, rules.Set{
		Include: []rules.Rule{
			{Pattern: `^file_one`, Confidence: 0.8},
			{Pattern: `(`, Confidence: 0.8},
		},
	}))

	set := s.store.Rules(s.ctx, 1)
	s.Require().Len(set.Include, 2)
	s.Equal(rules.TierForm, set.Include[1].Tier)
}

func (s *StoreSuite) TestAddPrefersHigherConfidence() {
	s.Equal(2, s.store.Add(s.ctx, 3,
		rules.Rule{Pattern: `^learned`, Confidence: 0.6},
		rules.Rule{Pattern: `^other`, Confidence: 0.6},
		rules.Rule{Pattern: `[`, Confidence: 0.9},
	))
	s.Equal(0, s.store.Add(s.ctx, 3, rules.Rule{Pattern: `^learned`, Confidence: 0.5}))
	s.Equal(1, s.store.Add(s.ctx, 3, rules.Rule{Pattern: `^learned`, Confidence: 0.7}))

	set := s.store.Rules(s.ctx, 3)
	s.Require().Len(set.Include, 2)
	s.Equal(rules.TierLearned, set.Include[0].Tier)
	s.InDelta(0.7, set.Include[0].Confidence, 1e-9)
}

func (s *StoreSuite) TestRulesReturnsCopy() {
	set := s.store.Rules(s.ctx, 1)
	set.Include[0].Pattern = "mutated"
	s.Equal("^strict_one", s.store.Rules(s.ctx, 1).Include[0].Pattern)
}

func (s *StoreSuite) TestPersistRoundTrip() {
	s.store.Add(s.ctx, 1, rules.Rule{Pattern: `^learned_one`, Confidence: 0.75})
	s.Require().NoError(s.store.Persist(s.ctx, 1))

	_, err := os.Stat(filepath.Join(s.source.Dir(), "section-1.json"))
	s.Require().NoError(err)

	stored, err := s.source.Load(s.ctx, 1)
	s.Require().NoError(err)
	s.Require().Len(stored.Include, 1)
	s.Equal(`^learned_one`, stored.Include[0].Pattern)

	fresh := rules.NewStore(s.source, s.registry, nil)
	set := fresh.Rules(s.ctx, 1)
	s.Len(set.Include, 2)
	s.Equal([]int{1}, fresh.Stored(s.ctx))
}

func (s *StoreSuite) TestInvalidateReloads() {
	s.Len(s.store.Rules(s.ctx, 3).Include, 0)

	s.Require().NoError(s.source.Save(s.ctx, 3, rules.Set{
		Include: []rules.Rule{{Pattern: `^three`, Confidence: 0.8}},
	}))
	s.Len(s.store.Rules(s.ctx, 3).Include, 0)

	s.store.Invalidate(3)
	s.Len(s.store.Rules(s.ctx, 3).Include, 1)
}

func (s *StoreSuite) TestBookCoversRegistryAndLearned() {
	s.store.Add(s.ctx, 3, rules.Rule{Pattern: `^learned_three`, Confidence: 0.6})

	book := s.store.Book(s.ctx)
	s.Equal(3, book.Len())

	m, ok := book.Match("hint_two_field")
	s.Require().True(ok)
	s.Equal(2, m.Section)
	s.Equal("A", m.Subsection)

	m, ok = book.Match("learned_three_x")
	s.Require().True(ok)
	s.Equal(3, m.Section)
}

// flakySource fails the first failures loads of every section.
type flakySource struct {
	*rules.MemorySource
	failures int
	calls    map[int]int
}

func newFlakySource(failures int, seed map[int]rules.Set) *flakySource {
	return &flakySource{
		MemorySource: rules.NewMemorySource(seed),
		failures:     failures,
		calls:        make(map[int]int),
	}
}

func (f *flakySource) Load(ctx context.Context, section int) (rules.Set, error) {
	f.calls[section]++
	if f.calls[section] <= f.failures {
		return rules.Set{}, errors.New("connection reset")
	}
	return f.MemorySource.Load(ctx, section)
}

func (s *StoreSuite) TestPersistAfterTransientFailureKeepsStoredRules() {
	source := newFlakySource(1, map[int]rules.Set{
		3: {Include: []rules.Rule{{Pattern: `^stored`, Confidence: 0.8, Tier: rules.TierForm}}},
	})
	store := rules.NewStore(source, s.registry, nil)

	s.Zero(store.Rules(s.ctx, 3).Len())
	s.Equal(1, store.Add(s.ctx, 3, rules.Rule{Pattern: `^learned`, Confidence: 0.7}))
	s.Require().NoError(store.Persist(s.ctx, 3))

	stored, err := source.MemorySource.Load(s.ctx, 3)
	s.Require().NoError(err)
	patterns := make([]string, 0, len(stored.Include))
	for _, r := range stored.Include {
		patterns = append(patterns, r.Pattern)
	}
	s.ElementsMatch([]string{`^stored`, `^learned`}, patterns)
	s.Len(store.Rules(s.ctx, 3).Include, 2)
}

func (s *StoreSuite) TestPersistRefusesWhileSourceUnreadable() {
	source := newFlakySource(5, map[int]rules.Set{
		3: {Include: []rules.Rule{{Pattern: `^stored`, Confidence: 0.8, Tier: rules.TierForm}}},
	})
	store := rules.NewStore(source, s.registry, nil)

	store.Add(s.ctx, 3, rules.Rule{Pattern: `^learned`, Confidence: 0.7})
	err := store.Persist(s.ctx, 3)
	s.ErrorIs(err, rules.ErrUnavailable)
	s.ErrorIs(store.PersistAll(s.ctx), rules.ErrUnavailable)

	stored, err := source.MemorySource.Load(s.ctx, 3)
	s.Require().NoError(err)
	s.Require().Len(stored.Include, 1)
	s.Equal(`^stored`, stored.Include[0].Pattern)
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}
