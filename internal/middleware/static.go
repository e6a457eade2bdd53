package middleware

import (
	"net/http"
	"os"
	"path/filepath"
)

const placeholderSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 400 225"><rect width="400" height="225" fill="#e2e8f0"/><path d="M60 170l70-80 50 55 40-40 120 65z" fill="#94a3b8"/><circle cx="310" cy="65" r="24" fill="#cbd5e1"/><text x="200" y="205" text-anchor="middle" font-family="Arial" font-size="14" fill="#64748b">itinero</text></svg>`

// StaticFileServer serves destination cover images, falling back to a
// placeholder image when a cover is missing.
func StaticFileServer(dir string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(dir, filepath.Clean(r.URL.Path))

		if _, err := os.Stat(path); err == nil {
			w.Header().Set("Cache-Control", "public, max-age=2592000")
			http.ServeFile(w, r, path)
			return
		}

		w.Header().Set("Content-Type", "image/svg+xml")
		w.Header().Set("Cache-Control", "public, max-age=86400")
		w.Write([]byte(placeholderSVG))
	})
}
