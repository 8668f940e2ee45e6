package localserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/yndnr/apanic-go/internal/core/apanic"
	"github.com/yndnr/apanic-go/internal/infra/buildinfo"
)

// Reply error codes.
const (
	CodeUnknown      = "unknown"
	CodeUsage        = "usage"
	CodeNotAvailable = "not_available"
	CodeOutOfRange   = "out_of_range"
	CodeBusy         = "busy"
	CodeDisabled     = "disabled"
	CodeInternal     = "internal"
)

// MaxReadCount bounds a single read command.
const MaxReadCount = 4 << 20

// Status is the reply body of the status command.
type Status struct {
	State             apanic.State           `json:"state"`
	PanicPartition    string                 `json:"panic_partition,omitempty"`
	SnapshotPartition string                 `json:"snapshot_partition,omitempty"`
	Segments          map[string]int64       `json:"segments"`
	LastCapture       *apanic.CaptureReport  `json:"last_capture,omitempty"`
	LastSnapshot      *apanic.SnapshotReport `json:"last_snapshot,omitempty"`
}

// Handler handles local management commands.
type Handler struct {
	engine        *apanic.Engine
	logger        *slog.Logger
	enableTrigger bool
	onShutdown    func()
	onReload      func() error
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithLogger sets the handler logger.
func WithLogger(l *slog.Logger) HandlerOption {
	return func(h *Handler) { h.logger = l }
}

// WithTrigger enables the trigger command.
func WithTrigger(enabled bool) HandlerOption {
	return func(h *Handler) { h.enableTrigger = enabled }
}

// WithShutdown sets the function run by the shutdown command.
func WithShutdown(fn func()) HandlerOption {
	return func(h *Handler) { h.onShutdown = fn }
}

// WithReload sets the function run by the reload command.
func WithReload(fn func() error) HandlerOption {
	return func(h *Handler) { h.onReload = fn }
}

// NewHandler creates a new Handler.
func NewHandler(engine *apanic.Engine, opts ...HandlerOption) *Handler {
	h := &Handler{
		engine: engine,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Execute executes a local management command and writes the framed reply.
func (h *Handler) Execute(w io.Writer, cmd string, args []string) error {
	switch cmd {
	case "status":
		return h.handleStatus(w)
	case "read":
		return h.handleRead(w, args)
	case "clear":
		return h.handleClear(w)
	case "trigger":
		return h.handleTrigger(w)
	case "reload":
		return h.handleReload(w)
	case "version":
		return writeJSON(w, buildinfo.Get())
	case "shutdown":
		return h.handleShutdown(w)
	default:
		return writeErr(w, CodeUnknown, "unknown command: "+cmd)
	}
}

func (h *Handler) handleStatus(w io.Writer) error {
	panicPart, snapPart := h.engine.Bound()
	st := Status{
		State:             h.engine.State(),
		PanicPartition:    panicPart,
		SnapshotPartition: snapPart,
		Segments:          make(map[string]int64),
	}
	for _, s := range h.engine.Segments() {
		st.Segments[s.Name()] = s.Size()
	}
	if last := h.engine.LastCapture(); last.ID != "" {
		st.LastCapture = &last
	}
	if last := h.engine.LastSnapshot(); last.Result != "" {
		st.LastSnapshot = &last
	}
	return writeJSON(w, st)
}

func (h *Handler) handleRead(w io.Writer, args []string) error {
	if len(args) != 3 {
		return writeErr(w, CodeUsage, "read <segment> <offset> <count>")
	}
	off, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || off < 0 {
		return writeErr(w, CodeUsage, "offset must be a non-negative integer")
	}
	count, err := strconv.ParseInt(args[2], 10, 64)
	if err != nil || count < 0 || count > MaxReadCount {
		return writeErr(w, CodeUsage, fmt.Sprintf("count must be between 0 and %d", MaxReadCount))
	}

	buf := make([]byte, count)
	n, eof, err := h.engine.ReadSegment(args[0], buf, off)
	switch {
	case errors.Is(err, apanic.ErrUnbound), errors.Is(err, apanic.ErrNotPublished):
		return writeErr(w, CodeNotAvailable, err.Error())
	case errors.Is(err, apanic.ErrOutOfRange):
		return writeErr(w, CodeOutOfRange, err.Error())
	case err != nil:
		h.logger.Error("local read failed", "segment", args[0], "error", err)
		return writeErr(w, CodeInternal, err.Error())
	}
	return writeOK(w, buf[:n], eof)
}

func (h *Handler) handleClear(w io.Writer) error {
	h.engine.RequestErase()
	h.logger.Info("erase requested over local socket")
	return writeOK(w, []byte("erase scheduled\n"), false)
}

func (h *Handler) handleTrigger(w io.Writer) error {
	if !h.enableTrigger {
		return writeErr(w, CodeDisabled, "trigger is disabled")
	}
	rep, ok := h.engine.Trigger()
	if !ok {
		return writeErr(w, CodeBusy, "capture already in progress")
	}
	return writeJSON(w, rep)
}

func (h *Handler) handleReload(w io.Writer) error {
	if h.onReload == nil {
		return writeErr(w, CodeDisabled, "reload is not configured")
	}
	if err := h.onReload(); err != nil {
		return writeErr(w, CodeInternal, err.Error())
	}
	return writeOK(w, []byte("configuration reloaded\n"), false)
}

func (h *Handler) handleShutdown(w io.Writer) error {
	if h.onShutdown == nil {
		return writeErr(w, CodeDisabled, "shutdown is not configured")
	}
	if err := writeOK(w, []byte("shutting down\n"), false); err != nil {
		return err
	}
	h.logger.Info("shutdown requested over local socket")
	go h.onShutdown()
	return nil
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return writeErr(w, CodeInternal, err.Error())
	}
	return writeOK(w, data, false)
}

func writeOK(w io.Writer, body []byte, eof bool) error {
	header := "OK " + strconv.Itoa(len(body))
	if eof {
		header += " eof"
	}
	if _, err := io.WriteString(w, header+"\n"); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}

func writeErr(w io.Writer, code, message string) error {
	message = strings.ReplaceAll(message, "\n", " ")
	_, err := io.WriteString(w, "ERR "+code+" "+message+"\n")
	return err
}
