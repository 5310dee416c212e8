package main

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/tallyhq/tally/server/internal/alerts"
	"github.com/tallyhq/tally/server/internal/api"
	"github.com/tallyhq/tally/server/internal/auth"
	"github.com/tallyhq/tally/server/internal/config"
	"github.com/tallyhq/tally/server/internal/metrics"
	"github.com/tallyhq/tally/server/internal/store"
)

// newHTTPHandler mounts the REST API (behind the API key check), /metrics,
// the websocket stream and, when uiDir is set, the dashboard.
func newHTTPHandler(st *store.Store, al *alerts.Engine, stream http.Handler, ac config.AuthConfig, uiDir string) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/", auth.HTTPMiddleware(ac.Mode, ac.EffectiveHeader(), ac.Key(), api.New(st, al)))
	mux.Handle("/metrics", metrics.Handler(st, al))
	mux.Handle("/ws/stream", stream)
	if uiDir != "" {
		mux.Handle("/", spaHandler(uiDir))
	}
	return mux
}

// spaHandler serves files from dir and falls back to index.html for paths
// that do not exist, so client-side routes survive a reload.
func spaHandler(dir string) http.Handler {
	files := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := filepath.Join(dir, filepath.FromSlash(filepath.Clean("/"+r.URL.Path)))
		if _, err := os.Stat(p); os.IsNotExist(err) {
			http.ServeFile(w, r, filepath.Join(dir, "index.html"))
			return
		}
		files.ServeHTTP(w, r)
	})
}
