package api

import (
	"net/http"
	"strings"
)

// openPaths are reachable without an API key.
var openPaths = map[string]bool{
	"/healthz": true,
	"/readyz":  true,
	"/metrics": true,
}

// RequireKey enforces the X-API-KEY header on every non-open path. With
// no API_KEY configured the verifier allows everything (dev mode).
func (s *Server) RequireKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if openPaths[r.URL.Path] || strings.HasPrefix(r.URL.Path, "/metrics") {
			next.ServeHTTP(w, r)
			return
		}
		if !s.Auth.Allow(r.Header.Get("X-API-KEY")) {
			writeProblem(w, http.StatusForbidden, "Forbidden", "Invalid or missing API key", r.URL.Path)
			return
		}
		next.ServeHTTP(w, r)
	})
}
