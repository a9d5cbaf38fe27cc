package httputil

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSON(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		expectError bool
	}{
		{
			name:        "valid JSON",
			body:        `{"name": "test"}`,
			expectError: false,
		},
		{
			name:        "invalid JSON",
			body:        `{invalid}`,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/test", bytes.NewBufferString(tt.body))
			var dest map[string]string

			err := ParseJSON(req, &dest)

			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, "test", dest["name"])
			}
		})
	}
}

func TestParsePathInt64(t *testing.T) {
	tests := []struct {
		name        string
		vars        map[string]string
		key         string
		want        int64
		expectError bool
	}{
		{
			name: "valid int64",
			vars: map[string]string{"post_id": "42"},
			key:  "post_id",
			want: 42,
		},
		{
			name:        "missing parameter",
			vars:        map[string]string{},
			key:         "post_id",
			expectError: true,
		},
		{
			name:        "not a number",
			vars:        map[string]string{"post_id": "abc"},
			key:         "post_id",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/test", nil)
			req = mux.SetURLVars(req, tt.vars)

			got, err := ParsePathInt64(req, tt.key)

			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestParseQueryInt(t *testing.T) {
	tests := []struct {
		name        string
		url         string
		key         string
		defaultVal  int
		want        int
		expectError bool
	}{
		{
			name:       "present",
			url:        "/test?page=3",
			key:        "page",
			defaultVal: 1,
			want:       3,
		},
		{
			name:       "absent uses default",
			url:        "/test",
			key:        "page",
			defaultVal: 1,
			want:       1,
		},
		{
			name:        "invalid",
			url:         "/test?page=xyz",
			key:         "page",
			defaultVal:  1,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.url, nil)

			got, err := ParseQueryInt(req, tt.key, tt.defaultVal)

			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestParseQueryString(t *testing.T) {
	req := httptest.NewRequest("GET", "/test?sort=created_at_asc", nil)

	assert.Equal(t, "created_at_asc", ParseQueryString(req, "sort", "created_at_desc"))
	assert.Equal(t, "created_at_desc", ParseQueryString(req, "missing", "created_at_desc"))
}

func TestParsePagination(t *testing.T) {
	tests := []struct {
		name      string
		url       string
		maxLimit  int
		wantPage  int
		wantLimit int
		wantErr   string
	}{
		{
			name:      "defaults",
			url:       "/posts",
			maxLimit:  50,
			wantPage:  1,
			wantLimit: 10,
		},
		{
			name:      "explicit values",
			url:       "/posts?page=2&limit=25",
			maxLimit:  50,
			wantPage:  2,
			wantLimit: 25,
		},
		{
			name:     "zero page",
			url:      "/posts?page=0",
			maxLimit: 50,
			wantErr:  "Page must be greater than 0",
		},
		{
			name:     "negative page",
			url:      "/posts?page=-1",
			maxLimit: 50,
			wantErr:  "Page must be greater than 0",
		},
		{
			name:     "limit over cap",
			url:      "/posts?limit=51",
			maxLimit: 50,
			wantErr:  "Limit must be between 1 and 50",
		},
		{
			name:     "limit not a number",
			url:      "/posts?limit=ten",
			maxLimit: 100,
			wantErr:  "Limit must be between 1 and 100",
		},
		{
			name:      "limit at cap",
			url:       "/posts?limit=100",
			maxLimit:  100,
			wantPage:  1,
			wantLimit: 100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.url, nil)

			page, limit, err := ParsePagination(req, tt.maxLimit)

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantErr, err.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPage, page)
			assert.Equal(t, tt.wantLimit, limit)
		})
	}
}

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	handler := Chain(mw("first"), mw("second"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	assert.Equal(t, []string{"first", "second", "handler"}, order)
}
