package runs_test

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/sectional/internal/alignment"
	"github.com/JaimeStill/sectional/internal/rules"
	"github.com/JaimeStill/sectional/internal/runs"
	"github.com/JaimeStill/sectional/internal/sections"
	"github.com/JaimeStill/sectional/internal/workflow"
	"github.com/JaimeStill/sectional/pkg/query"
)

const profile = `
name: test
sections:
  - id: 1
    pages: [1]
  - id: 2
    pages: [2]
`

func fieldList(t *testing.T) []byte {
	t.Helper()
	var recs []map[string]any
	for i := range 3 {
		recs = append(recs, map[string]any{"name": fmt.Sprintf("form1[0].Section1[0].TextField11[%d]", i), "page": 1})
	}
	for i := range 2 {
		recs = append(recs, map[string]any{"name": fmt.Sprintf("form1[0].Section2[0].TextField11[%d]", i), "page": 2})
	}
	data, err := json.Marshal(map[string]any{"fields": recs})
	require.NoError(t, err)
	return data
}

func engine(t *testing.T) runs.Engine {
	t.Helper()
	reg, err := sections.Parse([]byte(profile))
	require.NoError(t, err)
	return runs.Engine{
		Runtime: &workflow.Runtime{
			Registry: reg,
			Rules:    rules.NewStore(rules.NewMemorySource(), reg, nil),
		},
		Options: workflow.DefaultOptions(),
	}
}

func TestExtract(t *testing.T) {
	t.Run("json by content", func(t *testing.T) {
		fs, err := runs.Extract("upload.bin", fieldList(t))
		require.NoError(t, err)
		assert.Len(t, fs, 5)
	})

	tests := []struct {
		name     string
		filename string
		data     string
	}{
		{"empty", "a.json", ""},
		{"unsupported", "notes.txt", "hello"},
		{"bad json", "a.json", "{\"fields\": ["},
		{"bad pdf", "a.pdf", "%PDF-1.7 truncated"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runs.Extract(tt.filename, []byte(tt.data))
			assert.ErrorIs(t, err, runs.ErrInvalidFile)
		})
	}
}

func TestPrepare(t *testing.T) {
	cmd := runs.CreateCommand{
		Filename:   "form.json",
		Data:       fieldList(t),
		References: alignment.FieldCounts(map[int]int{1: 3, 2: 2}),
		CreatedBy:  "alice",
	}

	p, err := runs.Prepare(context.Background(), engine(t), cmd)
	require.NoError(t, err)

	assert.Equal(t, "test", p.Run.Profile)
	assert.Equal(t, 5, p.Run.FieldCount)
	assert.Equal(t, runs.StatusAligned, p.Run.Status)
	assert.True(t, p.Run.Aligned)
	assert.Equal(t, 100.0, p.Run.Score)
	assert.Equal(t, runs.Prefix(p.Run.ID), p.Run.StorageKey)
	require.NotNil(t, p.Run.CreatedBy)
	assert.Equal(t, "alice", *p.Run.CreatedBy)
}

func TestPrepareDefaults(t *testing.T) {
	eng := engine(t)
	eng.References = alignment.FieldCounts(map[int]int{1: 3, 2: 5})

	p, err := runs.Prepare(context.Background(), eng, runs.CreateCommand{
		Filename:  "form.json",
		Data:      fieldList(t),
		MaxCycles: 1,
	})
	require.NoError(t, err)

	assert.Equal(t, runs.StatusUnaligned, p.Run.Status)
	assert.Equal(t, 1, p.Run.Cycles)
	assert.Nil(t, p.Run.CreatedBy)
}

func TestPrepareUnreferenced(t *testing.T) {
	eng := engine(t)
	eng.Runtime = nil

	p, err := runs.Prepare(context.Background(), eng, runs.CreateCommand{Filename: "form.json", Data: fieldList(t)})
	require.NoError(t, err)

	assert.Equal(t, runs.StatusUnreferenced, p.Run.Status)
	assert.Equal(t, "sf86", p.Run.Profile)
}

func TestPrepareCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := runs.Prepare(ctx, engine(t), runs.CreateCommand{Filename: "form.json", Data: fieldList(t)})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestArtifactKey(t *testing.T) {
	id := uuid.MustParse("2f1c7a52-8a8e-4cf4-9b0e-0b6f4f0c7c11")
	prefix := runs.Prefix(id)
	assert.Equal(t, "runs/2f1c7a52-8a8e-4cf4-9b0e-0b6f4f0c7c11/", prefix)

	key, err := runs.ArtifactKey(prefix, runs.ArtifactSections)
	require.NoError(t, err)
	assert.Equal(t, prefix+"sections.json", key)

	key, err = runs.ArtifactKey(prefix, runs.ArtifactSource)
	require.NoError(t, err)
	assert.Equal(t, prefix+"source", key)

	_, err = runs.ArtifactKey(prefix, "../secrets")
	assert.ErrorIs(t, err, runs.ErrUnknownArtifact)
}

func TestFiltersFromQuery(t *testing.T) {
	values := map[string][]string{
		"status":    {"aligned"},
		"aligned":   {"true"},
		"min_score": {"80.5"},
		"filename":  {"sf86"},
		"profile":   {""},
	}
	f := runs.FiltersFromQuery(values)

	require.NotNil(t, f.Status)
	assert.Equal(t, "aligned", *f.Status)
	require.NotNil(t, f.Aligned)
	assert.True(t, *f.Aligned)
	require.NotNil(t, f.MinScore)
	assert.Equal(t, 80.5, *f.MinScore)
	assert.Nil(t, f.Profile)
	assert.Nil(t, f.CreatedBy)

	bad := runs.FiltersFromQuery(map[string][]string{"aligned": {"maybe"}, "min_score": {"high"}})
	assert.Nil(t, bad.Aligned)
	assert.Nil(t, bad.MinScore)
}

func TestFiltersApply(t *testing.T) {
	status := "aligned"
	score := 90.0
	name := "sf86"
	f := runs.Filters{Status: &status, MinScore: &score, Filename: &name}

	projection := query.NewProjectionMap("public", "runs", "r").
		Project("status", "Status").
		Project("score", "Score").
		Project("filename", "Filename")
	sql, args := f.Apply(query.NewBuilder(projection)).BuildCount()

	assert.True(t, strings.Contains(sql, "r.status = $1"), sql)
	assert.True(t, strings.Contains(sql, "r.filename ILIKE $2"), sql)
	assert.True(t, strings.Contains(sql, "r.score >= $3"), sql)
	assert.Equal(t, []any{&status, "%sf86%", &score}, args)
}
