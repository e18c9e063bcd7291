package bundle

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaharia-lab/cryptodash/internal/config"
)

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"index.html":            {Data: []byte("<html>app</html>")},
		"favicon.ico":           {Data: []byte("ico")},
		"assets/app.js":         {Data: []byte("console.log(1)")},
		"about.html":            {Data: []byte("about")},
		"docs/index.html":       {Data: []byte("docs")},
		"docs/getting-started":  {Data: []byte("plain")},
		"assets/fonts/mono.ttf": {Data: []byte("font")},
	}
}

func TestSelect(t *testing.T) {
	embedded := testFS()
	dist := t.TempDir()
	notDir := filepath.Join(dist, "file")
	require.NoError(t, os.WriteFile(notDir, nil, 0600))

	t.Run("standalone uses embedded", func(t *testing.T) {
		fsys, err := Select(config.OutputStandalone, embedded, "")
		require.NoError(t, err)
		assert.True(t, Has(fsys, "index.html"))
	})

	t.Run("standalone without bundle is dev mode", func(t *testing.T) {
		fsys, err := Select(config.OutputStandalone, nil, "")
		require.NoError(t, err)
		assert.Nil(t, fsys)
	})

	t.Run("export requires bundle", func(t *testing.T) {
		_, err := Select(config.OutputExport, nil, "")
		assert.ErrorIs(t, err, ErrNoBundle)
	})

	t.Run("server reads dist dir", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(dist, "index.html"), []byte("disk"), 0600))
		fsys, err := Select(config.OutputServer, embedded, dist)
		require.NoError(t, err)
		assert.True(t, Has(fsys, "index.html"))
		assert.False(t, Has(fsys, "favicon.ico"))
	})

	t.Run("server missing dist dir", func(t *testing.T) {
		_, err := Select(config.OutputServer, embedded, filepath.Join(dist, "missing"))
		assert.Error(t, err)
	})

	t.Run("server dist is a file", func(t *testing.T) {
		_, err := Select(config.OutputServer, embedded, notDir)
		assert.ErrorContains(t, err, "not a directory")
	})

	t.Run("unknown mode", func(t *testing.T) {
		_, err := Select("hybrid", embedded, "")
		assert.ErrorContains(t, err, "unknown output mode")
	})
}

func TestLookup(t *testing.T) {
	fsys := testFS()

	tests := []struct {
		path   string
		want   string
		wantOK bool
	}{
		{"/", "index.html", true},
		{"/favicon.ico", "favicon.ico", true},
		{"/assets/app.js", "assets/app.js", true},
		{"/docs", "docs/index.html", true},
		{"/docs/", "docs/index.html", true},
		{"/about", "about.html", true},
		{"/docs/getting-started", "docs/getting-started", true},
		{"/assets", "", false},
		{"/dashboard", "", false},
		{"/../index.html", "index.html", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := Lookup(fsys, tt.path)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHas(t *testing.T) {
	fsys := testFS()
	assert.True(t, Has(fsys, "index.html"))
	assert.False(t, Has(fsys, "assets"))
	assert.False(t, Has(fsys, "/index.html"))
	assert.False(t, Has(nil, "index.html"))
}

func TestExport(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")

	n, err := Export(context.Background(), testFS(), dir)
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	data, err := os.ReadFile(filepath.Join(dir, "assets", "fonts", "mono.ttf"))
	require.NoError(t, err)
	assert.Equal(t, "font", string(data))

	data, err = os.ReadFile(filepath.Join(dir, "index.html"))
	require.NoError(t, err)
	assert.Equal(t, "<html>app</html>", string(data))
}

func TestExport_Errors(t *testing.T) {
	_, err := Export(context.Background(), nil, t.TempDir())
	assert.ErrorIs(t, err, ErrNoBundle)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Export(ctx, testFS(), t.TempDir())
	assert.ErrorIs(t, err, context.Canceled)
}
