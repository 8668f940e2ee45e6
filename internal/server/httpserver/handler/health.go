package handler

import (
	"net/http"
	"time"
)

// handleHealth handles GET /health.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": h.build.Version,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// handleReady handles GET /ready. The server is ready once a panic
// partition is bound.
func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	panicPart, _ := h.engine.Bound()
	if panicPart == "" {
		h.writeError(w, r, http.StatusServiceUnavailable, CodeNotReady, "panic partition not bound", nil)
		return
	}
	h.writeJSON(w, r, http.StatusOK, map[string]string{
		"status":    "ready",
		"partition": panicPart,
		"time":      time.Now().UTC().Format(time.RFC3339),
	})
}
