// Package static embeds the browser front end.
package static

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed all:dist
var distFS embed.FS

// FS returns the embedded dist directory.
func FS() fs.FS {
	fsys, err := fs.Sub(distFS, "dist")
	if err != nil {
		panic(err)
	}
	return fsys
}

// GetFileSystem returns an http.FileSystem for the embedded dist directory.
func GetFileSystem() http.FileSystem {
	return http.FS(FS())
}

// HasDist returns true if the dist directory has an index page.
func HasDist() bool {
	_, err := fs.Stat(FS(), "index.html")
	return err == nil
}
