package healing

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/sectional/internal/alignment"
	"github.com/JaimeStill/sectional/internal/fields"
	"github.com/JaimeStill/sectional/internal/rules"
	"github.com/JaimeStill/sectional/internal/sections"
)

const rankingProfile = `
sections:
  - id: 1
    pages: [[1, 2]]
  - id: 2
    pages: [3]
    keywords: [passport, issued]
  - id: 3
    pages: [20]
  - id: 4
    pages: [[4, 5]]
  - id: 5
  - id: 6
    pages: [3]
  - id: 7
    pages: [6]
    priority: 5
  - id: 8
    pages: [6]
    priority: 3
  - id: 9
    pages: [[6, 7]]
    priority: 1
  - id: 10
    pages: [30]
    priority: 1
rivalries:
  - {preferred: 9, over: 7}
`

func rankingEngine(t *testing.T, refs map[int]int, book *rules.Book) *Engine {
	t.Helper()
	reg, err := sections.Parse([]byte(rankingProfile))
	require.NoError(t, err)
	return New(reg, book, alignment.FieldCounts(refs), DefaultOptions(), nil)
}

func TestDestinationsRanking(t *testing.T) {
	tests := []struct {
		name   string
		refs   map[int]int
		placed map[int]int
		want   []int
	}{
		{
			name: "adjacent before larger deficit",
			refs: map[int]int{1: 1, 2: 2, 3: 10, 4: 3},
			want: []int{2, 4, 3},
		},
		{
			name: "equal gap by deficit",
			refs: map[int]int{1: 1, 2: 1, 6: 4},
			want: []int{6, 2},
		},
		{
			name: "sections without pages are unrelated",
			refs: map[int]int{1: 1, 3: 2, 5: 9},
			want: []int{5, 3},
		},
		{
			name:   "satisfied sections skipped",
			refs:   map[int]int{1: 1, 2: 1, 4: 2},
			placed: map[int]int{2: 1},
			want:   []int{4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := rankingEngine(t, tt.refs, nil)

			m := fields.NewSectionMap()
			for i := range 4 {
				m.Insert(&fields.Categorized{
					Field:      fields.Field{ID: fmt.Sprintf("s%d", i)},
					Section:    1,
					Confidence: 0.5,
				})
			}
			for section, n := range tt.placed {
				for i := range n {
					m.Insert(&fields.Categorized{
						Field:      fields.Field{ID: fmt.Sprintf("p%d-%d", section, i)},
						Section:    section,
						Confidence: 0.9,
					})
				}
			}

			assert.Equal(t, tt.want, e.destinations(m, 1))
		})
	}
}

func TestMovableRanking(t *testing.T) {
	excludePlain := rules.NewBook(map[int]rules.Set{
		2: {Exclude: []rules.Rule{{Pattern: `^plain`, Confidence: 1}}},
	}, nil)

	tests := []struct {
		name string
		book *rules.Book
		want []string
	}{
		{"confidence then keyword score", nil, []string{"low", "both", "one", "plain"}},
		{"excluded fields dropped", excludePlain, []string{"low", "both", "one"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := rankingEngine(t, map[int]int{1: 1, 2: 4}, tt.book)

			m := fields.NewSectionMap()
			for _, rec := range []struct {
				id, label string
				conf      float64
				explicit  bool
			}{
				{"plain", "Street", 0.5, false},
				{"one", "Passport number", 0.5, false},
				{"both", "Passport issued", 0.5, false},
				{"low", "", 0.3, false},
				{"pinned", "Passport", 0.1, true},
			} {
				m.Insert(&fields.Categorized{
					Field:      fields.Field{ID: rec.id, Name: rec.id, Label: rec.label},
					Section:    1,
					Confidence: rec.conf,
					Explicit:   rec.explicit,
				})
			}

			var got []string
			for _, rec := range e.movable(m, 1, 2) {
				got = append(got, rec.ID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOrderByDeficit(t *testing.T) {
	tests := []struct {
		name    string
		ids     []int
		deficit map[int]int
		want    []int
	}{
		{"larger deficit first", []int{9, 7}, map[int]int{7: 3, 9: 1}, []int{7, 9}},
		{"preferred rival at equal deficit", []int{7, 9}, map[int]int{7: 2, 9: 2}, []int{9, 7}},
		{"priority when not rivals", []int{10, 8}, map[int]int{8: 2, 10: 2}, []int{8, 10}},
		{"rivals without preference by priority", []int{9, 8}, map[int]int{8: 1, 9: 1}, []int{8, 9}},
		{"section number last", []int{10, 9}, map[int]int{9: 1, 10: 1}, []int{9, 10}},
	}

	e := rankingEngine(t, map[int]int{7: 1, 8: 1, 9: 1, 10: 1}, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ids := append([]int(nil), tt.ids...)
			e.orderByDeficit(ids, tt.deficit)
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestFixOversizedFillsAdjacentSectionFirst(t *testing.T) {
	e := rankingEngine(t, map[int]int{1: 1, 2: 1, 3: 5}, nil)

	m := fields.NewSectionMap()
	for id, conf := range map[string]float64{"a": 0.9, "b": 0.3, "c": 0.5} {
		m.Insert(&fields.Categorized{
			Field:      fields.Field{ID: id, Name: id},
			Section:    1,
			Confidence: conf,
		})
	}

	moves := e.FixOversized(m, e.Evaluate(m))
	assert.Equal(t, 2, moves)

	for id, want := range map[string]int{"a": 1, "b": 2, "c": 3} {
		rec, ok := m.Get(id)
		require.True(t, ok)
		assert.Equal(t, want, rec.Section, id)
	}
}
