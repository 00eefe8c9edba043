package openapi_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/sectional/pkg/openapi"
)

func TestNewSpec(t *testing.T) {
	spec := openapi.NewSpec("Test API", "1.0.0")
	spec.AddServer("/api")
	spec.SetDescription("A test API")

	assert.Equal(t, "3.1.0", spec.OpenAPI)
	assert.Equal(t, "Test API", spec.Info.Title)
	assert.Equal(t, "1.0.0", spec.Info.Version)
	assert.Equal(t, "A test API", spec.Info.Description)
	require.Len(t, spec.Servers, 1)
	assert.Equal(t, "/api", spec.Servers[0].URL)
	assert.Contains(t, spec.Components.Responses, "Unauthorized")
	assert.Contains(t, spec.Components.SecuritySchemes, "bearer")
}

func TestAddOperation(t *testing.T) {
	spec := openapi.NewSpec("Test", "1.0.0")
	get := &openapi.Operation{Summary: "get"}
	post := &openapi.Operation{Summary: "post"}

	spec.AddOperation("GET", "/runs/{id}", get)
	spec.AddOperation("post", "/runs/{id}", post)
	spec.AddOperation("PATCH", "/runs/{id}", &openapi.Operation{})

	item := spec.Paths["/runs/{id}"]
	require.NotNil(t, item)
	assert.Same(t, get, item.Get)
	assert.Same(t, post, item.Post)
	assert.Nil(t, item.Put)
	assert.Nil(t, item.Delete)
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, "#/components/schemas/Run", openapi.SchemaRef("Run").Ref)
	assert.Equal(t, "#/components/responses/NotFound", openapi.ResponseRef("NotFound").Ref)

	body := openapi.RequestBodyJSON("AddRequest", true)
	assert.True(t, body.Required)
	assert.Equal(t, "#/components/schemas/AddRequest", body.Content["application/json"].Schema.Ref)

	id := openapi.PathParam("id", "Run UUID")
	assert.Equal(t, "uuid", id.Schema.Format)

	section := openapi.IntPathParam("section", "Section number")
	require.NotNil(t, section.Schema.Minimum)
	assert.InDelta(t, 1.0, *section.Schema.Minimum, 0)

	arr := openapi.ArraySchema("Summary")
	assert.Equal(t, "array", arr.Type)
	assert.Equal(t, "#/components/schemas/Summary", arr.Items.Ref)
}

func TestConfigFinalize(t *testing.T) {
	t.Setenv("TEST_OPENAPI_TITLE", "Override")

	var cfg openapi.Config
	require.NoError(t, cfg.Finalize(&openapi.ConfigEnv{Title: "TEST_OPENAPI_TITLE"}))
	assert.Equal(t, "Override", cfg.Title)
	assert.NotEmpty(t, cfg.Description)

	cfg.Merge(&openapi.Config{Description: "merged"})
	assert.Equal(t, "merged", cfg.Description)
}

func TestServeAndWrite(t *testing.T) {
	spec := openapi.NewSpec("Test", "1.0.0")
	data, err := openapi.MarshalJSON(spec)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	openapi.ServeSpec(data)(rec, httptest.NewRequest("GET", "/openapi.json", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, "3.1.0", decoded["openapi"])

	path := filepath.Join(t.TempDir(), "openapi.json")
	require.NoError(t, openapi.WriteJSON(spec, path))
	written, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, string(data), string(written))
}
