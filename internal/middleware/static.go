package middleware

import (
	"net/http"
	"os"
	"path/filepath"
)

// StaticFileServer serves uploaded receipt images from the local store
// directory. Missing files are a plain 404; receipts are immutable once
// written so long cache lifetimes are safe.
func StaticFileServer(dir string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(dir, filepath.Clean("/"+r.URL.Path))

		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Cache-Control", "public, max-age=2592000")
		http.ServeFile(w, r, path)
	})
}
