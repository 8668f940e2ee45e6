package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/yndnr/apanic-go/internal/core/apanic"
)

// MaxReadCount bounds a single ranged segment read.
const MaxReadCount = 4 << 20

// HeaderEOF reports whether a ranged read ended at the segment end.
const HeaderEOF = "X-Apanic-EOF"

func knownSegment(name string) bool {
	return name == apanic.SegmentConsole || name == apanic.SegmentThreads
}

// handleStatus handles GET /apanic/status.
func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	panicPart, snapPart := h.engine.Bound()
	resp := StatusResponse{
		State:             h.engine.State(),
		PanicPartition:    panicPart,
		SnapshotPartition: snapPart,
		Segments:          []SegmentInfo{},
	}

	if hdr := h.engine.Header(); !hdr.IsZero() {
		resp.Header = &HeaderInfo{
			ConsoleOffset: hdr.ConsoleOffset,
			ConsoleLength: hdr.ConsoleLength,
			ThreadsOffset: hdr.ThreadsOffset,
			ThreadsLength: hdr.ThreadsLength,
		}
	}
	for _, s := range h.engine.Segments() {
		resp.Segments = append(resp.Segments, SegmentInfo{
			Name:   s.Name(),
			Size:   s.Size(),
			Offset: s.Offset(),
		})
	}
	if last := h.engine.LastCapture(); last.ID != "" {
		resp.LastCapture = &last
	}

	h.writeJSON(w, r, http.StatusOK, resp)
}

// handleReadSegment handles GET /apanic/{segment}.
//
// Without query parameters the whole segment is streamed. With offset and
// count exactly that range is returned; a range reaching past the recorded
// length is rejected with 416 and no bytes.
func (h *Handler) handleReadSegment(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("segment")
	if !knownSegment(name) {
		h.writeError(w, r, http.StatusNotFound, CodeNotAvailable, "unknown segment: "+name, nil)
		return
	}

	q := r.URL.Query()
	if !q.Has("offset") && !q.Has("count") {
		h.streamSegment(w, r, name)
		return
	}

	off, err := strconv.ParseInt(q.Get("offset"), 10, 64)
	if err != nil || off < 0 {
		h.writeError(w, r, http.StatusBadRequest, CodeBadRequest, "offset must be a non-negative integer", nil)
		return
	}
	count, err := strconv.ParseInt(q.Get("count"), 10, 64)
	if err != nil || count < 0 || count > MaxReadCount {
		h.writeError(w, r, http.StatusBadRequest, CodeBadRequest,
			"count must be between 0 and "+strconv.Itoa(MaxReadCount), nil)
		return
	}

	buf := make([]byte, count)
	n, eof, err := h.engine.ReadSegment(name, buf, off)
	if err != nil {
		h.handleEngineError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(n))
	w.Header().Set(HeaderEOF, strconv.FormatBool(eof))
	w.WriteHeader(http.StatusOK)
	w.Write(buf[:n])
}

func (h *Handler) streamSegment(w http.ResponseWriter, r *http.Request, name string) {
	seg, ok := h.engine.Segment(name)
	if !ok {
		h.writeError(w, r, http.StatusNotFound, CodeNotAvailable, "segment not available: "+name, nil)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.FormatInt(seg.Size(), 10))
	w.Header().Set(HeaderEOF, "true")
	w.WriteHeader(http.StatusOK)

	// The record can be erased mid-stream; the client then sees a short body.
	if _, err := io.Copy(w, io.NewSectionReader(seg, 0, seg.Size())); err != nil {
		h.logger.Warn("segment stream interrupted", "segment", name, "error", err)
	}
}

// handleErase handles POST /apanic/{segment}. Writing to either segment
// erases the whole record; the erase runs on the engine worker.
func (h *Handler) handleErase(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("segment")
	if !knownSegment(name) {
		h.writeError(w, r, http.StatusNotFound, CodeNotAvailable, "unknown segment: "+name, nil)
		return
	}

	h.engine.RequestErase()
	h.logger.Info("erase requested", "segment", name, "request_id", getRequestID(r))
	h.writeJSON(w, r, http.StatusAccepted, EraseResponse{Scheduled: true, Segment: name})
}
