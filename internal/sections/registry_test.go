package sections_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/sectional/internal/sections"
)

func TestDefault(t *testing.T) {
	reg := sections.Default()

	assert.Equal(t, "sf86", reg.Name())
	assert.Equal(t, 30, reg.Len())
	assert.Equal(t, 30, reg.Max())
	assert.Equal(t, []int{13, 18, 20}, reg.Fallbacks())
	assert.InDelta(t, 0.02, reg.Threshold(9), 1e-9)
	assert.InDelta(t, 0.1, reg.Threshold(1), 1e-9)
	assert.InDelta(t, 0.1, reg.Threshold(99), 1e-9)

	s, ok := reg.Section(9)
	require.True(t, ok)
	assert.Equal(t, "Citizenship", s.Name)
	assert.True(t, s.OnPage(7))
	assert.False(t, s.OnPage(8))
	assert.NotEmpty(t, s.Strict)
}

func TestClaimsForPage(t *testing.T) {
	reg := sections.Default()

	tests := []struct {
		name  string
		page  int
		first int
		count int
	}{
		{"shared page prefers rivalry winner", 6, 9, 3},
		{"single claimant", 20, 13, 1},
		{"selective service beats military", 34, 14, 2},
		{"no claimant", 500, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := reg.ClaimsForPage(tt.page)
			require.Len(t, claims, tt.count)
			if tt.count > 0 {
				assert.Equal(t, tt.first, claims[0])
			}
		})
	}
}

func TestOverride(t *testing.T) {
	reg := sections.Default()

	o, ok := reg.Override("form1[0].Sections7-9[0].RadioButtonList[1]")
	require.True(t, ok)
	assert.Equal(t, 9, o.Section)

	o, ok = reg.Override("form1[0].Continuation1[0].TextField[0]")
	require.True(t, ok)
	assert.Equal(t, 30, o.Section)

	_, ok = reg.Override("form1[0].Section12[0].TextField11[0]")
	assert.False(t, ok)
}

func TestParseRejectsInvalidProfiles(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"inverted range", "sections:\n  - id: 1\n    pages: [[5, 2]]\n"},
		{"duplicate section", "sections:\n  - id: 1\n  - id: 1\n"},
		{"zero id", "sections:\n  - id: 0\n"},
		{"override to unknown section", "sections:\n  - id: 1\noverrides:\n  - name: a\n    section: 4\n"},
		{"override with both keys", "sections:\n  - id: 1\noverrides:\n  - name: a\n    pattern: b\n    section: 1\n"},
		{"bad override pattern", "sections:\n  - id: 1\noverrides:\n  - pattern: '(['\n    section: 1\n"},
		{"rivalry to unknown section", "sections:\n  - id: 1\nrivalries:\n  - {preferred: 1, over: 2}\n"},
		{"malformed yaml", "sections: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := sections.Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestPageRangeForms(t *testing.T) {
	reg, err := sections.Parse([]byte(`
sections:
  - id: 1
    pages: [3]
  - id: 2
    pages: [[4, 6]]
  - id: 3
    pages:
      - {start: 7, end: 9}
`))
	require.NoError(t, err)

	s1, _ := reg.Section(1)
	s2, _ := reg.Section(2)
	s3, _ := reg.Section(3)
	assert.Equal(t, 1, s1.PageSpan())
	assert.Equal(t, 3, s2.PageSpan())
	assert.Equal(t, 3, s3.PageSpan())
	assert.Equal(t, "3", s1.Pages[0].String())
	assert.Equal(t, "4-6", s2.Pages[0].String())
	assert.Equal(t, 2, s1.PageDistance(5))
	assert.Equal(t, 0, reg.PageGap(1, 2))
	assert.Equal(t, 3, reg.PageGap(1, 3))
	assert.True(t, reg.Rivals(2, 2))
	assert.False(t, reg.Rivals(1, 2))
}

func TestExtend(t *testing.T) {
	reg, err := sections.Parse([]byte("sections:\n  - id: 1\n    name: One\n"))
	require.NoError(t, err)

	ext := reg.Extend(1, 2, 5)
	assert.Equal(t, []int{1, 2, 5}, ext.IDs())
	assert.Equal(t, []int{1}, reg.IDs())
	assert.Same(t, reg, reg.Extend(1))
}

func TestMatch(t *testing.T) {
	reg := sections.Default()

	id, score := reg.Match("Provide your passport number")
	assert.Equal(t, 8, id)
	assert.Positive(t, score)

	id, score = reg.Match("")
	assert.Zero(t, id)
	assert.Zero(t, score)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: tiny\nsections:\n  - id: 1\n    fallback: true\n"), 0o644))

	reg, err := sections.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "tiny", reg.Name())
	assert.Equal(t, []int{1}, reg.Fallbacks())

	_, err = sections.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
