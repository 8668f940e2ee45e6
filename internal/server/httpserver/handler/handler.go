package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/yndnr/apanic-go/internal/core/apanic"
	"github.com/yndnr/apanic-go/internal/infra/buildinfo"
	"github.com/yndnr/apanic-go/internal/telemetry/logger"
)

// Error codes carried in X-Error-Code and the response envelope.
const (
	CodeBadRequest     = "AP-ARG-4000"
	CodeNotAvailable   = "AP-SEG-4040"
	CodeOutOfRange     = "AP-SEG-4160"
	CodeCaptureBusy    = "AP-DBG-4090"
	CodeNotReady       = "AP-SYS-5030"
	CodeInternal       = "AP-SYS-5000"
	CodeUnauthorized   = "AP-AUTH-4010"
	CodeTooManyRequest = "AP-SYS-4290"
)

// Config holds the handler dependencies.
type Config struct {
	Engine *apanic.Engine
	Logger *slog.Logger

	// EnableTrigger registers POST /debug/trigger.
	EnableTrigger bool
	// AllowCrash registers POST /debug/crash.
	AllowCrash bool
}

// Handler serves the record, memdump and debug endpoints.
type Handler struct {
	engine *apanic.Engine
	logger *slog.Logger
	build  buildinfo.Info
	mux    *http.ServeMux
}

// New creates a new Handler.
func New(cfg Config) *Handler {
	l := cfg.Logger
	if l == nil {
		l = slog.Default()
	}
	h := &Handler{
		engine: cfg.Engine,
		logger: l,
		build:  buildinfo.Get(),
		mux:    http.NewServeMux(),
	}

	h.registerRoutes(cfg)
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes(cfg Config) {
	h.mux.HandleFunc("GET /health", h.handleHealth)
	h.mux.HandleFunc("GET /ready", h.handleReady)

	h.mux.HandleFunc("GET /apanic/status", h.handleStatus)
	h.mux.HandleFunc("GET /apanic/{segment}", h.handleReadSegment)
	h.mux.HandleFunc("POST /apanic/{segment}", h.handleErase)

	h.mux.HandleFunc("GET /memdump/status", h.handleMemdumpStatus)

	if cfg.EnableTrigger {
		h.mux.HandleFunc("POST /debug/trigger", h.handleTrigger)
	}
	if cfg.AllowCrash {
		h.mux.HandleFunc("POST /debug/crash", h.handleCrash)
	}
}

// writeJSON writes a JSON response with standard envelope format.
func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	requestID := getRequestID(r)
	response := NewResponse(requestID, data)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", requestID)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// writeError writes an error response with standard envelope format.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	requestID := getRequestID(r)
	response := NewErrorResponse(requestID, code, message, details)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Code", code)
	w.Header().Set("X-Request-ID", requestID)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

// getRequestID returns the ID set by the RequestID middleware, falling back
// to the inbound header.
func getRequestID(r *http.Request) string {
	if id := logger.RequestIDFromContext(r.Context()); id != "" {
		return id
	}
	return r.Header.Get("X-Request-ID")
}

// handleEngineError converts engine errors to HTTP responses.
func (h *Handler) handleEngineError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, apanic.ErrUnbound), errors.Is(err, apanic.ErrNotPublished):
		h.writeError(w, r, http.StatusNotFound, CodeNotAvailable, err.Error(), nil)
	case errors.Is(err, apanic.ErrOutOfRange):
		h.writeError(w, r, http.StatusRequestedRangeNotSatisfiable, CodeOutOfRange, err.Error(), nil)
	default:
		h.logger.Error("internal error", "path", r.URL.Path, "error", err)
		h.writeError(w, r, http.StatusInternalServerError, CodeInternal, "internal server error", nil)
	}
}
