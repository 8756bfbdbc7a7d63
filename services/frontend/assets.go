package frontend

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static
var assets embed.FS

// StaticHandler serves the embedded stylesheet and any future static files.
// Assets are immutable per build, so clients may cache them briefly.
func StaticHandler() http.Handler {
	root, err := fs.Sub(assets, "static")
	if err != nil {
		panic(err)
	}
	files := http.FileServer(http.FS(root))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=300")
		files.ServeHTTP(w, r)
	})
}
