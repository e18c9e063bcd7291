package rewrite

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedirect_Status(t *testing.T) {
	tests := []struct {
		name       string
		permanent  bool
		statusCode int
		want       int
		wantErr    bool
	}{
		{"temporary default", false, 0, http.StatusTemporaryRedirect, false},
		{"permanent default", true, 0, http.StatusPermanentRedirect, false},
		{"explicit 301", true, http.StatusMovedPermanently, http.StatusMovedPermanently, false},
		{"explicit 302", false, http.StatusFound, http.StatusFound, false},
		{"not a redirect", false, http.StatusOK, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rd, err := NewRedirect("/old/:slug", "/new/:slug", tt.permanent, tt.statusCode, nil, nil)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, rd.Status)
		})
	}
}

func TestRedirectSet_Resolve(t *testing.T) {
	blog, err := NewRedirect("/blog/:slug", "/news/:slug", true, 0, nil, nil)
	require.NoError(t, err)
	docs, err := NewRedirect("/docs", "https://docs.example.com", false, 0, nil, nil)
	require.NoError(t, err)
	set := NewRedirectSet(blog, docs)

	loc, status, err := set.Resolve(httptest.NewRequest(http.MethodGet, "/blog/launch?ref=mail", nil))
	require.NoError(t, err)
	assert.Equal(t, "/news/launch?ref=mail", loc)
	assert.Equal(t, http.StatusPermanentRedirect, status)

	loc, status, err = set.Resolve(httptest.NewRequest(http.MethodGet, "/docs", nil))
	require.NoError(t, err)
	assert.Equal(t, "https://docs.example.com", loc)
	assert.Equal(t, http.StatusTemporaryRedirect, status)

	_, _, err = set.Resolve(httptest.NewRequest(http.MethodGet, "/api/users", nil))
	assert.ErrorIs(t, err, ErrNoMatch)

	var empty *RedirectSet
	_, _, err = empty.Resolve(httptest.NewRequest(http.MethodGet, "/blog/x", nil))
	assert.ErrorIs(t, err, ErrNoMatch)
}
