package runs_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/sectional/internal/runs"
	"github.com/JaimeStill/sectional/pkg/auth"
	"github.com/JaimeStill/sectional/pkg/pagination"
	"github.com/JaimeStill/sectional/pkg/routes"
	"github.com/JaimeStill/sectional/pkg/storage"
)

type mockSystem struct {
	listFn      func(ctx context.Context, page pagination.PageRequest, filters runs.Filters) (*pagination.PageResult[runs.Run], error)
	findFn      func(ctx context.Context, id uuid.UUID) (*runs.Run, error)
	createFn    func(ctx context.Context, cmd runs.CreateCommand) (*runs.Run, error)
	artifactsFn func(ctx context.Context, id uuid.UUID) ([]runs.ArtifactInfo, error)
	artifactFn  func(ctx context.Context, id uuid.UUID, name string) (io.ReadCloser, error)
	deleteFn    func(ctx context.Context, id uuid.UUID) error
}

func (m *mockSystem) Handler(maxUploadSize int64) *runs.Handler {
	return runs.NewHandler(m, slog.New(slog.DiscardHandler), pagination.Config{DefaultPageSize: 20, MaxPageSize: 100}, maxUploadSize)
}

func (m *mockSystem) List(ctx context.Context, page pagination.PageRequest, filters runs.Filters) (*pagination.PageResult[runs.Run], error) {
	return m.listFn(ctx, page, filters)
}

func (m *mockSystem) Find(ctx context.Context, id uuid.UUID) (*runs.Run, error) {
	return m.findFn(ctx, id)
}

func (m *mockSystem) Create(ctx context.Context, cmd runs.CreateCommand) (*runs.Run, error) {
	return m.createFn(ctx, cmd)
}

func (m *mockSystem) Artifacts(ctx context.Context, id uuid.UUID) ([]runs.ArtifactInfo, error) {
	return m.artifactsFn(ctx, id)
}

func (m *mockSystem) Artifact(ctx context.Context, id uuid.UUID, name string) (io.ReadCloser, error) {
	return m.artifactFn(ctx, id, name)
}

func (m *mockSystem) Delete(ctx context.Context, id uuid.UUID) error {
	return m.deleteFn(ctx, id)
}

func setupMux(sys *mockSystem, maxUpload int64) *http.ServeMux {
	mux := http.NewServeMux()
	routes.Register(mux, sys.Handler(maxUpload).Routes())
	return mux
}

func sampleRun() *runs.Run {
	return &runs.Run{
		ID:         uuid.New(),
		Filename:   "sf86.pdf",
		Profile:    "sf86",
		FieldCount: 6197,
		Score:      100,
		Aligned:    true,
		Status:     runs.StatusAligned,
		CreatedAt:  time.Now(),
	}
}

func multipartBody(t *testing.T, parts map[string]string, file []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if file != nil {
		fw, err := w.CreateFormFile("file", "form.json")
		require.NoError(t, err)
		_, err = fw.Write(file)
		require.NoError(t, err)
	}
	for k, v := range parts {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestHandlerList(t *testing.T) {
	var gotPage pagination.PageRequest
	var gotFilters runs.Filters
	sys := &mockSystem{
		listFn: func(_ context.Context, page pagination.PageRequest, f runs.Filters) (*pagination.PageResult[runs.Run], error) {
			gotPage, gotFilters = page, f
			r := pagination.NewPageResult([]runs.Run{*sampleRun()}, 1, page.Page, page.PageSize)
			return &r, nil
		},
	}

	rec := httptest.NewRecorder()
	setupMux(sys, 1<<20).ServeHTTP(rec, httptest.NewRequest("GET", "/runs?page=2&page_size=5&status=aligned&sort=-Score", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, gotPage.Page)
	assert.Equal(t, 5, gotPage.PageSize)
	require.NotNil(t, gotFilters.Status)
	assert.Equal(t, "aligned", *gotFilters.Status)

	var body pagination.PageResult[runs.Run]
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Len(t, body.Data, 1)
}

func TestHandlerFind(t *testing.T) {
	run := sampleRun()
	sys := &mockSystem{
		findFn: func(_ context.Context, id uuid.UUID) (*runs.Run, error) {
			if id == run.ID {
				return run, nil
			}
			return nil, runs.ErrNotFound
		},
	}
	mux := setupMux(sys, 1<<20)

	tests := []struct {
		name string
		path string
		want int
	}{
		{"found", "/runs/" + run.ID.String(), http.StatusOK},
		{"missing", "/runs/" + uuid.NewString(), http.StatusNotFound},
		{"bad id", "/runs/not-a-uuid", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest("GET", tt.path, nil))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestHandlerCreate(t *testing.T) {
	var got runs.CreateCommand
	sys := &mockSystem{
		createFn: func(_ context.Context, cmd runs.CreateCommand) (*runs.Run, error) {
			got = cmd
			return sampleRun(), nil
		},
	}

	body, ct := multipartBody(t, map[string]string{
		"references": `{"1": {"fields": 3}, "2": 2}`,
		"max_cycles": "3",
	}, []byte(`[{"name": "a"}]`))

	req := httptest.NewRequest("POST", "/runs", body)
	req.Header.Set("Content-Type", ct)
	req = req.WithContext(auth.WithClaims(req.Context(), auth.Claims{Subject: "alice"}))

	rec := httptest.NewRecorder()
	setupMux(sys, 1<<20).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "form.json", got.Filename)
	assert.Equal(t, `[{"name": "a"}]`, string(got.Data))
	assert.Equal(t, 3, got.MaxCycles)
	assert.Equal(t, "alice", got.CreatedBy)
	assert.Equal(t, 3, got.References.Expected(1))
	assert.Equal(t, 2, got.References.Expected(2))
}

func TestHandlerCreateRejects(t *testing.T) {
	sys := &mockSystem{
		createFn: func(_ context.Context, cmd runs.CreateCommand) (*runs.Run, error) {
			return nil, runs.ErrInvalidFile
		},
	}

	tests := []struct {
		name  string
		parts map[string]string
		file  []byte
		limit int64
		want  int
	}{
		{"missing file", nil, nil, 1 << 20, http.StatusBadRequest},
		{"bad references", map[string]string{"references": "{"}, []byte("[]"), 1 << 20, http.StatusBadRequest},
		{"bad max cycles", map[string]string{"max_cycles": "0"}, []byte("[]"), 1 << 20, http.StatusBadRequest},
		{"invalid file", nil, []byte("[]"), 1 << 20, http.StatusBadRequest},
		{"too large", nil, bytes.Repeat([]byte("x"), 4096), 512, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, ct := multipartBody(t, tt.parts, tt.file)
			req := httptest.NewRequest("POST", "/runs", body)
			req.Header.Set("Content-Type", ct)

			rec := httptest.NewRecorder()
			setupMux(sys, tt.limit).ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestHandlerArtifact(t *testing.T) {
	id := uuid.New()
	sys := &mockSystem{
		artifactFn: func(_ context.Context, got uuid.UUID, name string) (io.ReadCloser, error) {
			switch name {
			case runs.ArtifactSections:
				return io.NopCloser(strings.NewReader(`{"0":[]}`)), nil
			case runs.ArtifactResult:
				return nil, storage.ErrNotFound
			}
			return nil, runs.ErrUnknownArtifact
		},
	}
	mux := setupMux(sys, 1<<20)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/runs/"+id.String()+"/artifacts/sections", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, `{"0":[]}`, rec.Body.String())

	for name, want := range map[string]int{"result": http.StatusNotFound, "passwords": http.StatusNotFound} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest("GET", "/runs/"+id.String()+"/artifacts/"+name, nil))
		assert.Equal(t, want, rec.Code, name)
	}
}

func TestHandlerArtifacts(t *testing.T) {
	existing := uuid.New()
	sys := &mockSystem{
		artifactsFn: func(_ context.Context, id uuid.UUID) ([]runs.ArtifactInfo, error) {
			if id != existing {
				return nil, runs.ErrNotFound
			}
			return []runs.ArtifactInfo{{Name: runs.ArtifactSource, Key: "runs/x/source", Available: true}}, nil
		},
	}
	mux := setupMux(sys, 1<<20)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/runs/"+existing.String()+"/artifacts", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var infos []runs.ArtifactInfo
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&infos))
	require.Len(t, infos, 1)
	assert.True(t, infos[0].Available)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/runs/"+uuid.NewString()+"/artifacts", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerDelete(t *testing.T) {
	existing := uuid.New()
	sys := &mockSystem{
		deleteFn: func(_ context.Context, id uuid.UUID) error {
			if id == existing {
				return nil
			}
			return runs.ErrNotFound
		},
	}
	mux := setupMux(sys, 1<<20)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("DELETE", "/runs/"+existing.String(), nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("DELETE", "/runs/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMapHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{runs.ErrNotFound, http.StatusNotFound},
		{runs.ErrUnknownArtifact, http.StatusNotFound},
		{runs.ErrDuplicate, http.StatusConflict},
		{runs.ErrFileTooLarge, http.StatusRequestEntityTooLarge},
		{runs.ErrInvalidFile, http.StatusBadRequest},
		{storage.ErrNotFound, http.StatusNotFound},
		{context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, runs.MapHTTPStatus(tt.err), tt.err.Error())
	}
}
