package rules_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/sectional/internal/rules"
	"github.com/JaimeStill/sectional/internal/sections"
	"github.com/JaimeStill/sectional/pkg/routes"
)

type failingSource struct {
	*rules.MemorySource
}

func (failingSource) Save(context.Context, int, rules.Set) error {
	return errors.New("disk full")
}

func newHandlerMux(t *testing.T, source rules.Source, protect func(http.Handler) http.Handler) (*http.ServeMux, *rules.Store) {
	t.Helper()
	reg, err := sections.Parse([]byte(profile))
	require.NoError(t, err)

	store := rules.NewStore(source, reg, nil)
	h := rules.NewHandler(store, slog.New(slog.DiscardHandler))
	h.Protect = protect

	mux := http.NewServeMux()
	routes.Register(mux, h.Routes())
	return mux, store
}

func do(mux http.Handler, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHandlerList(t *testing.T) {
	source := rules.NewMemorySource(map[int]rules.Set{
		7: {Include: []rules.Rule{{Pattern: "^seven", Confidence: 0.8}}},
	})
	mux, _ := newHandlerMux(t, source, nil)

	rec := do(mux, "GET", "/rules", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var out []rules.Summary
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	require.Len(t, out, 4)

	assert.Equal(t, rules.Summary{Section: 1, Name: "One", Include: 1}, out[0])
	assert.Equal(t, rules.Summary{Section: 7, Include: 1, Stored: true}, out[3])
}

func TestHandlerGet(t *testing.T) {
	mux, _ := newHandlerMux(t, nil, nil)

	rec := do(mux, "GET", "/rules/2", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var set rules.Set
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&set))
	require.Len(t, set.Include, 1)
	assert.Equal(t, "^hint_two", set.Include[0].Pattern)

	assert.Equal(t, http.StatusBadRequest, do(mux, "GET", "/rules/zero", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(mux, "GET", "/rules/-4", "").Code)
}

func TestHandlerAdd(t *testing.T) {
	source := rules.NewMemorySource()
	mux, store := newHandlerMux(t, source, nil)

	body := `{"rules": [{"pattern": "^learned_three", "confidence": 0.7}], "persist": true}`
	rec := do(mux, "POST", "/rules/3", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res rules.AddResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	assert.Equal(t, rules.AddResult{Section: 3, Added: 1, Total: 1, Persisted: true}, res)

	stored, err := source.Load(context.Background(), 3)
	require.NoError(t, err)
	assert.Len(t, stored.Include, 1)

	m, ok := store.Book(context.Background()).Match("learned_three_field")
	require.True(t, ok)
	assert.Equal(t, 3, m.Section)
}

func TestHandlerAddRejects(t *testing.T) {
	mux, store := newHandlerMux(t, nil, nil)

	tests := []struct {
		name string
		body string
	}{
		{"invalid pattern", `{"rules": [{"pattern": "^ok", "confidence": 0.5}, {"pattern": "([", "confidence": 0.5}]}`},
		{"empty", `{"rules": []}`},
		{"unknown field", `{"patterns": []}`},
		{"malformed", `{"rules": [`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, http.StatusBadRequest, do(mux, "POST", "/rules/3", tt.body).Code)
		})
	}

	assert.Zero(t, store.Rules(context.Background(), 3).Len())
}

func TestHandlerPersistFailure(t *testing.T) {
	mux, _ := newHandlerMux(t, failingSource{rules.NewMemorySource()}, nil)

	rec := do(mux, "POST", "/rules/1/persist", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandlerReload(t *testing.T) {
	source := rules.NewMemorySource()
	mux, store := newHandlerMux(t, source, nil)
	ctx := context.Background()

	store.Add(ctx, 3, rules.Rule{Pattern: "^transient", Confidence: 0.6})
	require.Equal(t, 1, store.Rules(ctx, 3).Len())

	assert.Equal(t, http.StatusNoContent, do(mux, "POST", "/rules/3/reload", "").Code)
	assert.Zero(t, store.Rules(ctx, 3).Len())
}

func TestHandlerProtectsMutations(t *testing.T) {
	deny := func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
	}
	mux, _ := newHandlerMux(t, nil, deny)

	assert.Equal(t, http.StatusOK, do(mux, "GET", "/rules", "").Code)
	assert.Equal(t, http.StatusOK, do(mux, "GET", "/rules/1", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(mux, "POST", "/rules/1", `{"rules": []}`).Code)
	assert.Equal(t, http.StatusUnauthorized, do(mux, "POST", "/rules/1/persist", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(mux, "POST", "/rules/1/reload", "").Code)
}

func TestMapHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{rules.ErrNotFound, http.StatusNotFound},
		{rules.ErrInvalidPattern, http.StatusBadRequest},
		{rules.ErrInvalidSection, http.StatusBadRequest},
		{fmt.Errorf("persist section 3: %w: %w", rules.ErrUnavailable, errors.New("reset")), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, rules.MapHTTPStatus(tt.err))
		})
	}
}
