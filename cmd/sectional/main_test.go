package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/sectional/internal/alignment"
	"github.com/JaimeStill/sectional/internal/rules"
	"github.com/JaimeStill/sectional/internal/workflow"
)

const testProfile = `
name: test
sections:
  - id: 1
    name: One
    pages: [1]
  - id: 2
    name: Two
    pages: [2]
`

func write(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

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

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	profile := write(t, dir, "profile.yaml", []byte(testProfile))
	input := write(t, dir, "fields.json", fieldList(t))
	refs := write(t, dir, "refs.json", []byte(`{"1": 3, "2": 2}`))
	outDir := filepath.Join(dir, "out")

	out, err := execute(t, "run", input,
		"--profile", profile,
		"--references", refs,
		"--rules-dir=",
		"--out", outDir,
	)
	require.NoError(t, err)
	assert.Contains(t, out, "fields:     5")
	assert.Contains(t, out, "aligned:    true")
	assert.Contains(t, out, "SECTION")

	for _, name := range []string{"sections.json", "statistics.json", "result.json"} {
		assert.FileExists(t, filepath.Join(outDir, name))
	}

	data, err := os.ReadFile(filepath.Join(outDir, "result.json"))
	require.NoError(t, err)
	var result struct {
		Aligned   bool    `json:"aligned"`
		BestScore float64 `json:"best_score"`
	}
	require.NoError(t, json.Unmarshal(data, &result))
	assert.True(t, result.Aligned)
	assert.InDelta(t, 100, result.BestScore, 0.001)
}

func TestPrintResultSeparatesFinalAndBestScore(t *testing.T) {
	var buf bytes.Buffer
	printResult(&buf, 12, &workflow.Result{
		Report:    alignment.Report{Score: 85},
		BestScore: 90,
		BestCycle: 2,
		Cycles:    make([]workflow.Cycle, 3),
		Residual:  1,
	})

	out := buf.String()
	assert.Contains(t, out, "score:      85.00\n")
	assert.Contains(t, out, "best cycle: 90.00\n")
	assert.Contains(t, out, "cycles:     3 (best 2)\n")
	assert.NotContains(t, out, "SECTION")
}

func TestRunWithoutReferences(t *testing.T) {
	dir := t.TempDir()
	profile := write(t, dir, "profile.yaml", []byte(testProfile))
	input := write(t, dir, "fields.json", fieldList(t))

	out, err := execute(t, "run", input, "--profile", profile, "--rules-dir=")
	require.NoError(t, err)
	assert.Contains(t, out, "aligned:    false")
}

func TestRunErrors(t *testing.T) {
	dir := t.TempDir()
	input := write(t, dir, "fields.json", fieldList(t))

	_, err := execute(t, "run", filepath.Join(dir, "missing.json"), "--rules-dir=")
	assert.Error(t, err)

	_, err = execute(t, "run", input, "--profile", filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	_, err = execute(t, "run", input, "--references", write(t, dir, "bad.json", []byte(`{"x": 1}`)), "--rules-dir=")
	assert.Error(t, err)

	_, err = execute(t, "run")
	assert.Error(t, err)
}

func TestRulesCommands(t *testing.T) {
	dir := t.TempDir()
	profile := write(t, dir, "profile.yaml", []byte(testProfile))
	rulesDir := filepath.Join(dir, "rules")

	out, err := execute(t, "rules", "add", "2", `^extra_two`,
		"--profile", profile,
		"--rules-dir", rulesDir,
		"--confidence", "0.7",
		"--subsection", "B",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "section 2: 1 rule(s) added, 1 total")
	assert.FileExists(t, rules.NewFileSource(rulesDir).Path(2))

	out, err = execute(t, "rules", "show", "2", "--profile", profile, "--rules-dir", rulesDir)
	require.NoError(t, err)
	var set rules.Set
	require.NoError(t, json.Unmarshal([]byte(out), &set))
	require.Len(t, set.Include, 1)
	assert.Equal(t, "^extra_two", set.Include[0].Pattern)
	assert.Equal(t, "B", set.Include[0].Subsection)

	out, err = execute(t, "rules", "list", "--profile", profile, "--rules-dir", rulesDir)
	require.NoError(t, err)
	assert.Contains(t, out, "One")
	assert.Contains(t, out, "true")

	_, err = execute(t, "rules", "add", "2", "([", "--profile", profile, "--rules-dir", rulesDir)
	assert.ErrorIs(t, err, rules.ErrInvalidPattern)

	_, err = execute(t, "rules", "show", "zero", "--profile", profile)
	assert.ErrorIs(t, err, rules.ErrInvalidSection)

	_, err = execute(t, "rules", "add", "2", "^x", "--rules-dir=")
	assert.Error(t, err)
}

func TestProfileCommands(t *testing.T) {
	dir := t.TempDir()
	profile := write(t, dir, "profile.yaml", []byte(testProfile))

	out, err := execute(t, "profile", "show", "--profile", profile)
	require.NoError(t, err)
	assert.Contains(t, out, "profile:   test")
	assert.Contains(t, out, "sections:  2")

	out, err = execute(t, "profile", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "profile:   sf86")
	assert.Contains(t, out, "6-7")

	out, err = execute(t, "profile", "validate", profile)
	require.NoError(t, err)
	assert.Contains(t, out, `profile "test", 2 sections`)

	bad := write(t, dir, "bad.yaml", []byte("sections:\n  - id: 1\n    strict:\n      - pattern: '(['\n"))
	_, err = execute(t, "profile", "validate", bad)
	assert.ErrorIs(t, err, rules.ErrInvalidPattern)

	_, err = execute(t, "profile", "validate", filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
