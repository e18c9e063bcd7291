// Package bundle locates the frontend build output for the configured output
// mode and writes static exports.
package bundle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/shaharia-lab/cryptodash/internal/config"
)

// IndexFile is the SPA entry document.
const IndexFile = "index.html"

// ErrNoBundle is returned when the binary was built without an embedded
// frontend bundle.
var ErrNoBundle = errors.New("binary carries no frontend bundle (built with the dev tag?)")

// Select returns the file system the gateway serves for mode. The embedded
// bundle may be nil in dev builds; Select then returns a nil FS for
// standalone mode so the caller can fall back to the dev server.
func Select(mode config.OutputMode, embedded fs.FS, distDir string) (fs.FS, error) {
	switch mode {
	case config.OutputStandalone, "":
		return embedded, nil
	case config.OutputExport:
		if embedded == nil {
			return nil, ErrNoBundle
		}
		return embedded, nil
	case config.OutputServer:
		info, err := os.Stat(distDir)
		if err != nil {
			return nil, fmt.Errorf("frontend dist directory: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("frontend dist %q is not a directory", distDir)
		}
		return os.DirFS(distDir), nil
	default:
		return nil, fmt.Errorf("unknown output mode %q", mode)
	}
}

// Has reports whether name is a regular file in fsys.
func Has(fsys fs.FS, name string) bool {
	if fsys == nil || !fs.ValidPath(name) {
		return false
	}
	info, err := fs.Stat(fsys, name)
	return err == nil && info.Mode().IsRegular()
}

// Lookup maps a clean URL path to a bundle file: the exact file, then
// <path>/index.html, then <path>.html.
func Lookup(fsys fs.FS, urlPath string) (string, bool) {
	name := path.Clean("/" + urlPath)[1:]
	if name == "" {
		name = "."
	}

	candidates := []string{name, path.Join(name, IndexFile)}
	if name != "." {
		candidates = append(candidates, name+".html")
	}
	for _, c := range candidates {
		if Has(fsys, c) {
			return c, true
		}
	}
	return "", false
}

// Export copies every file in fsys below dir and returns the number of
// files written.
func Export(ctx context.Context, fsys fs.FS, dir string) (int, error) {
	if fsys == nil {
		return 0, ErrNoBundle
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return 0, fmt.Errorf("creating export directory: %w", err)
	}

	count := 0
	err := fs.WalkDir(fsys, ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		dst := filepath.Join(dir, filepath.FromSlash(name))
		if d.IsDir() {
			return os.MkdirAll(dst, 0750)
		}
		if err := copyFile(fsys, name, dst); err != nil {
			return err
		}
		count++
		return nil
	})
	if err != nil {
		return count, fmt.Errorf("exporting bundle: %w", err)
	}
	return count, nil
}

func copyFile(fsys fs.FS, name, dst string) error {
	src, err := fsys.Open(name)
	if err != nil {
		return err
	}
	defer src.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return out.Close()
}
