//go:build dev

package main

import "io/fs"

// getFrontendFS returns nil in dev mode; the gateway then proxies page
// requests to the configured dev server.
func getFrontendFS() (fs.FS, error) {
	return nil, nil
}
