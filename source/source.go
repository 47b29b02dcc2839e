// Package source retrieves raw tile bytes from a pyramid's backing store,
// either a local file tree or a remote HTTP server.
//
// Tiles live at "{base-without-extension}_files/{level}/{col}_{row}.{format}"
// relative to the descriptor location. External tile generators reproduce
// this layout exactly; it must not be altered.
package source

import (
	"errors"
	"net/url"
	"path"
	"strings"
)

var (
	ErrNotFound  = errors.New("deepzoom: tile not found")
	ErrTransport = errors.New("deepzoom: tile transport failed")
)

// IsURL reports whether src is an http(s) URL rather than a local path.
func IsURL(src string) bool {
	u, err := url.Parse(src)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https")
}

// FilesBase strips the descriptor extension from src and appends the
// "_files" suffix.
func FilesBase(src string) string {
	return strings.TrimSuffix(src, path.Ext(src)) + "_files"
}
