// health.go - Liveness and status probes.
package server

import (
	"net/http"
	"os"
	"time"
)

// healthHandler handles GET /health: pure liveness, no dependencies.
func (s *Server) healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// statusHandler handles GET /status: liveness plus auth mode and a
// storage check. The status degrades when the upload directory is
// unreachable.
func (s *Server) statusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		code := http.StatusOK
		if _, err := os.Stat(s.store.DataDir()); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		writeJSON(w, code, map[string]any{
			"status":        status,
			"timestamp":     time.Now().UTC().Format(time.RFC3339),
			"guarded":       s.gate.Guarded(),
			"files":         s.store.Count(),
			"version":       s.cfg.Build.Version,
			"uptimeSeconds": int64(time.Since(s.started).Seconds()),
		})
	}
}
