package pagination_test

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/sectional/pkg/pagination"
	"github.com/JaimeStill/sectional/pkg/query"
)

func defaultConfig() pagination.Config {
	return pagination.Config{DefaultPageSize: 20, MaxPageSize: 100}
}

func TestConfigFinalize(t *testing.T) {
	var cfg pagination.Config
	require.NoError(t, cfg.Finalize(nil))
	assert.Equal(t, defaultConfig(), cfg)

	t.Setenv("TEST_PAGE_SIZE", "50")
	env := &pagination.ConfigEnv{DefaultPageSize: "TEST_PAGE_SIZE"}
	cfg = pagination.Config{}
	require.NoError(t, cfg.Finalize(env))
	assert.Equal(t, 50, cfg.DefaultPageSize)

	cfg = pagination.Config{DefaultPageSize: 200, MaxPageSize: 100}
	assert.Error(t, cfg.Finalize(nil))
}

func TestFromQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
		page  int
		size  int
	}{
		{"defaults", "", 1, 20},
		{"explicit", "page=3&page_size=10", 3, 10},
		{"clamped", "page=-1&page_size=1000", 1, 100},
		{"garbage", "page=x&page_size=y", 1, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values, err := url.ParseQuery(tt.query)
			require.NoError(t, err)

			req := pagination.FromQuery(values, defaultConfig())
			assert.Equal(t, tt.page, req.Page)
			assert.Equal(t, tt.size, req.PageSize)
		})
	}
}

func TestFromQuerySearchAndSort(t *testing.T) {
	values := url.Values{"search": {"sf86"}, "sort": {"-Score"}}
	req := pagination.FromQuery(values, defaultConfig())

	require.NotNil(t, req.Search)
	assert.Equal(t, "sf86", *req.Search)
	assert.Equal(t, []query.SortField{{Field: "Score", Descending: true}}, req.Sort)
}

func TestNewPageResult(t *testing.T) {
	tests := []struct {
		total, size, pages int
	}{
		{0, 20, 1},
		{20, 20, 1},
		{21, 20, 2},
		{95, 10, 10},
	}

	for _, tt := range tests {
		r := pagination.NewPageResult[int](nil, tt.total, 1, tt.size)
		assert.Equal(t, tt.pages, r.TotalPages, "total %d size %d", tt.total, tt.size)
		assert.NotNil(t, r.Data)
	}
}
