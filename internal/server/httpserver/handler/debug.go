package handler

import (
	"net/http"
)

// handleTrigger handles POST /debug/trigger.
func (h *Handler) handleTrigger(w http.ResponseWriter, r *http.Request) {
	rep, ok := h.engine.Trigger()
	if !ok {
		h.writeError(w, r, http.StatusConflict, CodeCaptureBusy, "capture already in progress", nil)
		return
	}

	resp := TriggerResponse{Capture: rep}
	if _, snapPart := h.engine.Bound(); snapPart != "" {
		last := h.engine.LastSnapshot()
		resp.Snapshot = &last
	}
	h.writeJSON(w, r, http.StatusOK, resp)
}

// handleCrash handles POST /debug/crash. The response is written before
// the crash goroutine runs; the process exits shortly after.
func (h *Handler) handleCrash(w http.ResponseWriter, r *http.Request) {
	h.logger.Warn("debug crash requested", "request_id", getRequestID(r))
	h.writeJSON(w, r, http.StatusAccepted, map[string]bool{"crashing": true})
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	h.engine.Crash()
}
