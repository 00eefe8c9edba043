package learning_test

import (
	"context"
	"fmt"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/sectional/internal/alignment"
	"github.com/JaimeStill/sectional/internal/fields"
	"github.com/JaimeStill/sectional/internal/learning"
	"github.com/JaimeStill/sectional/internal/rules"
	"github.com/JaimeStill/sectional/internal/sections"
)

func TestScreenBroadness(t *testing.T) {
	l := learning.New(sections.Default(), learning.DefaultOptions(), nil)

	batch := make([]string, 0, 100)
	for i := range 40 {
		batch = append(batch, fmt.Sprintf("form1[0].Section12[0].School6_State[%d]", i))
	}
	for i := range 55 {
		batch = append(batch, fmt.Sprintf("form1[0].Section12[0].TextField11[%d]", i))
	}
	for i := range 5 {
		batch = append(batch, fmt.Sprintf("form1[0].Other[0].Widget[%d]", i))
	}

	broad := rules.Rule{Pattern: `Section12`, Confidence: 0.7}
	err := l.Screen(broad, batch)
	assert.ErrorIs(t, err, learning.ErrTooBroad)

	narrow := rules.Rule{Pattern: `School6_State`, Confidence: 0.7}
	assert.NoError(t, l.Screen(narrow, batch))
}

func TestScreenGenericTokens(t *testing.T) {
	l := learning.New(sections.Default(), learning.DefaultOptions(), nil)
	batch := []string{"a", "b", "c", "d", "e"}

	tests := []struct {
		pattern string
		err     error
	}{
		{`^form1\[0\]\.#subform\[\d+\]\.TextField11\[\d+\]$`, learning.ErrGeneric},
		{`RadioButtonList`, learning.ErrGeneric},
		{`(?i)Section\[`, learning.ErrGeneric},
		{`^form1\[0\]\.Section13_2\[0\]\.`, nil},
		{`(^|[^a-z])passport\d*([^a-z]|$)`, nil},
		{`([`, rules.ErrInvalidPattern},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			err := l.Screen(rules.Rule{Pattern: tt.pattern}, batch)
			if tt.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "form[].Section_[].TextField[]", learning.NormalizeName("form1[0].Section13_2[0].TextField11[3]"))
	assert.Equal(t, []string{"form1", "section13", "textfield11"}, learning.Tokens("form1[0].Section13_2[0].TextField11[3]"))
	assert.True(t, learning.Distinguishing("section13"))
	assert.False(t, learning.Distinguishing("section"))
	assert.False(t, learning.Distinguishing("textfield11"))
	assert.True(t, learning.Distinguishing("school6"))
}

const schoolProfile = `
sections:
  - id: 1
    pages: [1]
  - id: 2
    keywords: [school]
  - id: 3
    keywords: [employer]
`

type fixture struct {
	reg  *sections.Registry
	m    *fields.SectionMap
	refs alignment.References
}

func newFixture(t *testing.T, profile string) fixture {
	t.Helper()
	reg, err := sections.Parse([]byte(profile))
	require.NoError(t, err)

	m := fields.NewSectionMap()
	for i := range 3 {
		m.Insert(&fields.Categorized{
			Field:      fields.Field{ID: fmt.Sprintf("one-%d", i), Name: fmt.Sprintf("form1[0].Section1[0].TextField11[%d]", i), Page: 1},
			Section:    1,
			Confidence: 0.99,
			Explicit:   true,
		})
	}
	for i := range 4 {
		m.Insert(&fields.Categorized{Field: fields.Field{
			ID:    fmt.Sprintf("school-%d", i),
			Name:  fmt.Sprintf("form1[0].Schools[0].TextField11[%d]", i),
			Label: "School name",
		}})
	}
	for i := range 6 {
		m.Insert(&fields.Categorized{Field: fields.Field{
			ID:   fmt.Sprintf("misc-%d", i),
			Name: fmt.Sprintf("form1[0].Misc[0].TextField11[%d]", i),
		}})
	}

	return fixture{
		reg:  reg,
		m:    m,
		refs: alignment.FieldCounts(map[int]int{1: 3, 2: 4, 3: 2}),
	}
}

func patterns(rs []rules.Rule) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Pattern
	}
	return out
}

func TestProposeFromEvidence(t *testing.T) {
	fx := newFixture(t, schoolProfile)
	l := learning.New(fx.reg, learning.DefaultOptions(), nil)

	report := alignment.Evaluate(fx.m, fx.refs, alignment.Thresholds{})
	res := l.Propose(fx.m, report)

	assert.Equal(t, 10, res.Batch)
	assert.Equal(t, []int{2, 3}, res.Targets)
	require.Contains(t, res.Rules, 2)
	assert.NotContains(t, res.Rules, 1)
	assert.NotContains(t, res.Rules, 3)

	got := res.Rules[2]
	assert.Contains(t, patterns(got), `^form1\[0\]\.Schools\[0\]\.`)
	assert.InDelta(t, 0.9, got[0].Confidence, 1e-9)
	for _, r := range got {
		assert.Equal(t, rules.TierLearned, r.Tier)
		assert.NoError(t, r.Validate())
		assert.False(t, slices.Contains([]string{`TextField11`, `form1`}, r.Pattern))
	}
}

func TestProposeRejectsConflicts(t *testing.T) {
	fx := newFixture(t, `
sections:
  - id: 1
    pages: [1]
  - id: 2
    keywords: [school]
  - id: 3
    keywords: [school name]
`)
	l := learning.New(fx.reg, learning.DefaultOptions(), nil)

	res := l.Propose(fx.m, alignment.Evaluate(fx.m, fx.refs, alignment.Thresholds{}))

	structural := `^form1\[0\]\.Schools\[0\]\.`
	for section, rs := range res.Rules {
		assert.NotContains(t, patterns(rs), structural, "section %d", section)
	}

	var conflicted []int
	for _, r := range res.Rejected {
		if r.Pattern == structural {
			assert.Equal(t, learning.ErrConflict.Error(), r.Reason)
			conflicted = append(conflicted, r.Section)
		}
	}
	slices.Sort(conflicted)
	assert.Equal(t, []int{2, 3}, conflicted)
}

func TestProposeWithoutReferences(t *testing.T) {
	fx := newFixture(t, schoolProfile)
	l := learning.New(fx.reg, learning.DefaultOptions(), nil)

	res := l.Propose(fx.m, alignment.Evaluate(fx.m, nil, alignment.Thresholds{}))
	assert.Zero(t, res.Count())
}

func TestBatchSkipsProtectedAndConfident(t *testing.T) {
	m := fields.NewSectionMap()
	m.Insert(&fields.Categorized{Field: fields.Field{ID: "a", Name: "a"}})
	m.Insert(&fields.Categorized{Field: fields.Field{ID: "b", Name: "b"}, Section: 1, Confidence: 0.3})
	m.Insert(&fields.Categorized{Field: fields.Field{ID: "c", Name: "c"}, Section: 1, Confidence: 0.3, Explicit: true})
	m.Insert(&fields.Categorized{Field: fields.Field{ID: "d", Name: "d"}, Section: 1, Confidence: 0.9})
	m.Insert(&fields.Categorized{Field: fields.Field{ID: "e"}})

	l := learning.New(sections.Default(), learning.DefaultOptions(), nil)
	var ids []string
	for _, rec := range l.Batch(m) {
		ids = append(ids, rec.ID)
	}
	slices.Sort(ids)
	assert.Equal(t, []string{"a", "b"}, ids)
}

func TestLearnFeedsStore(t *testing.T) {
	fx := newFixture(t, schoolProfile)
	store := rules.NewStore(rules.NewMemorySource(), fx.reg, nil)
	l := learning.New(fx.reg, learning.DefaultOptions(), nil)
	ctx := context.Background()

	res := l.Learn(ctx, fx.m, alignment.Evaluate(fx.m, fx.refs, alignment.Thresholds{}), store)
	require.Positive(t, res.Added)
	assert.Equal(t, res.Count(), res.Added)

	m, ok := store.Book(ctx).Match("form1[0].Schools[0].TextField11[7]")
	require.True(t, ok)
	assert.Equal(t, 2, m.Section)

	again := l.Learn(ctx, fx.m, alignment.Evaluate(fx.m, fx.refs, alignment.Thresholds{}), store)
	assert.Zero(t, again.Added)
}
