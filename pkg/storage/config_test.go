package storage_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/sectional/pkg/storage"
)

func TestFinalizeDefaults(t *testing.T) {
	cfg := storage.Config{ConnectionString: "test-connection"}
	require.NoError(t, cfg.Finalize(nil))

	assert.Equal(t, "runs", cfg.ContainerName)
	assert.False(t, cfg.UsesCredential())
}

func TestFinalizeEnvOverrides(t *testing.T) {
	t.Setenv("TEST_CONTAINER", "artifacts")
	t.Setenv("TEST_SERVICE_URL", "https://acct.blob.core.windows.net/")

	env := &storage.Env{
		ContainerName: "TEST_CONTAINER",
		ServiceURL:    "TEST_SERVICE_URL",
	}

	var cfg storage.Config
	require.NoError(t, cfg.Finalize(env))

	assert.Equal(t, "artifacts", cfg.ContainerName)
	assert.True(t, cfg.UsesCredential())
}

func TestFinalizeValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     storage.Config
		wantErr string
	}{
		{"missing endpoint", storage.Config{ContainerName: "runs"}, "connection_string or service_url required"},
		{"connection string", storage.Config{ConnectionString: "conn"}, ""},
		{"service url", storage.Config{ServiceURL: "https://acct.blob.core.windows.net/"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Finalize(nil)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestMerge(t *testing.T) {
	base := storage.Config{ContainerName: "runs", ConnectionString: "base"}
	base.Merge(&storage.Config{ServiceURL: "https://acct.blob.core.windows.net/"})

	assert.Equal(t, "runs", base.ContainerName)
	assert.Equal(t, "base", base.ConnectionString)
	assert.False(t, base.UsesCredential(), "connection string takes precedence")
}

func TestMapHTTPStatus(t *testing.T) {
	assert.Equal(t, 404, storage.MapHTTPStatus(storage.ErrNotFound))
	assert.Equal(t, 400, storage.MapHTTPStatus(storage.ErrInvalidKey))
	assert.Equal(t, 400, storage.MapHTTPStatus(storage.ErrEmptyKey))
}
