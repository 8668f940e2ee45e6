package handler

import (
	"errors"
	"net/http"

	"github.com/yndnr/apanic-go/internal/core/apanic"
	"github.com/yndnr/apanic-go/internal/core/record"
)

// handleMemdumpStatus handles GET /memdump/status.
func (h *Handler) handleMemdumpStatus(w http.ResponseWriter, r *http.Request) {
	_, snapPart := h.engine.Bound()
	resp := MemdumpStatusResponse{Partition: snapPart}

	if last := h.engine.LastSnapshot(); last.Result != "" {
		resp.LastSnapshot = &last
	}

	hdr, err := h.engine.SnapshotHeader()
	switch {
	case err == nil:
		resp.Present = true
		resp.Snapshot = &SnapshotInfo{
			Time:        hdr.Timestamp().UTC(),
			SDRAMOffset: hdr.SDRAMOffset,
			SDRAMLength: hdr.SDRAMLength,
		}
	case errors.Is(err, apanic.ErrUnbound),
		errors.Is(err, record.ErrBadMagic),
		errors.Is(err, record.ErrVersionMismatch):
	default:
		h.handleEngineError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, resp)
}
