package apanic

import (
	"context"
	"crypto/rand"
	"errors"
	"io"
	"math"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/apanic-go/internal/core/record"
	"github.com/yndnr/apanic-go/internal/infra/diag"
	"github.com/yndnr/apanic-go/internal/storage/blockdev"
	"github.com/yndnr/apanic-go/internal/telemetry/logger"
)

// Event identifies what reported the failure.
type Event int

const (
	EventPanic Event = iota + 1
	EventTrigger
	EventCrash
)

func (ev Event) String() string {
	switch ev {
	case EventPanic:
		return "panic"
	case EventTrigger:
		return "trigger"
	case EventCrash:
		return "crash"
	default:
		return "unknown"
	}
}

// State is the capture state machine position.
type State string

const (
	StateIdle      State = "idle"
	StateCapturing State = "capturing"
	StateCommitted State = "committed"
	StateAborted   State = "aborted"
)

// CaptureReport describes one capture attempt.
type CaptureReport struct {
	ID            string    `json:"id"`
	Event         string    `json:"event"`
	State         State     `json:"state"`
	Reason        string    `json:"reason,omitempty"`
	ConsoleLength int64     `json:"console_length"`
	ThreadsLength int64     `json:"threads_length"`
	Started       time.Time `json:"started"`
	Finished      time.Time `json:"finished"`
}

// Notify is the failure notifier. It never fails and never blocks on a
// capture already in progress: a second call made while the first is still
// capturing returns immediately.
func (e *Engine) Notify(ev Event) {
	e.notify(ev)
}

// Trigger runs the failure notifier on demand. ok is false when a capture
// was already in progress.
func (e *Engine) Trigger() (rep CaptureReport, ok bool) {
	return e.notify(EventTrigger)
}

// State returns StateCapturing while the failure path runs and StateIdle
// otherwise.
func (e *Engine) State() State {
	if e.guard.Load() {
		return StateCapturing
	}
	return StateIdle
}

// LastCapture returns the report of the most recent capture attempt.
func (e *Engine) LastCapture() CaptureReport {
	e.statusMu.Lock()
	defer e.statusMu.Unlock()
	return e.last
}

func (e *Engine) notify(ev Event) (CaptureReport, bool) {
	if !e.guard.CompareAndSwap(false, true) {
		return CaptureReport{}, false
	}
	defer e.guard.Store(false)

	rep := CaptureReport{
		ID:      newCaptureID(e.now()),
		Event:   ev.String(),
		State:   StateCapturing,
		Started: e.now(),
	}
	e.setLast(rep)
	log := e.logger.With("capture_id", rep.ID, "event", rep.Event)

	if !e.lockWithin(e.cfg.CaptureLockTimeout) {
		log.Error("capture aborted, engine lock not acquired", "timeout", e.cfg.CaptureLockTimeout.String())
		return e.finish(rep, StateAborted, "engine busy"), true
	}
	defer e.mu.Unlock()

	rep = e.captureLocked(log, rep)
	if e.memory != nil {
		e.snapshotLocked(log)
	}
	return rep, true
}

func (e *Engine) captureLocked(log logger.Logger, rep CaptureReport) CaptureReport {
	p := e.panicPart
	if p == nil {
		log.Warn("no panic partition bound, skipping capture")
		return e.finish(rep, StateAborted, "unbound")
	}
	if err := p.Probe(); err != nil {
		log.Error("panic backing device not detected", "partition", p.Name(), "error", err)
		return e.finish(rep, StateAborted, "device not detected")
	}
	if e.header.Magic != 0 {
		log.Error("crash partition in use", "partition", p.Name())
		return e.finish(rep, StateAborted, "partition in use")
	}

	banner := diag.NewBanner(context.Background(), e.now())
	log.Error("capturing crash state", banner.Attrs()...)

	limit := p.Size()
	if limit > math.MaxUint32 {
		limit = math.MaxUint32
	}

	consoleLen := e.captureLog(log, p, record.ConsoleOffset, limit)
	threadsOff := record.ThreadsOffsetFor(record.ConsoleOffset, consoleLen)

	e.logs.Clear()
	threadsLen := e.captureTasks(log, p, threadsOff, limit)

	rep.ConsoleLength = consoleLen
	rep.ThreadsLength = threadsLen

	e.zeroScratch()
	hdr := record.NewPanicHeader(
		uint32(record.ConsoleOffset), uint32(consoleLen),
		uint32(threadsOff), uint32(threadsLen),
	)
	hdr.Encode(e.scratch)
	if _, err := p.WriteAt(e.scratch[:record.HeaderRegionSize], 0); err != nil {
		log.Error("panic header write failed", "partition", p.Name(), "error", err)
		return e.finish(rep, StateAborted, "header write failed")
	}

	e.header = hdr
	e.publishLocked()
	log.Info("panic dump successfully written",
		"partition", p.Name(),
		"console_length", consoleLen,
		"threads_offset", threadsOff,
		"threads_length", threadsLen,
	)
	return e.finish(rep, StateCommitted, "")
}

func (e *Engine) captureTasks(log logger.Logger, p blockdev.Partition, off, limit int64) int64 {
	e.consoles.DisableConsoles()
	defer e.consoles.EnableConsoles()

	if err := e.tasks.DumpTasks(e.logs); err != nil {
		log.Error("task dump failed", "error", err)
	}
	return e.captureLog(log, p, off, limit)
}

// captureLog drains the log source into p starting at off, one page at a
// time. Only the bytes held when the drain starts are copied; lines logged
// meanwhile are not included. It returns the number of log
// bytes committed; a write failure ends the capture with what was already
// written.
func (e *Engine) captureLog(log logger.Logger, p blockdev.Partition, off, limit int64) int64 {
	start, end := e.logs.Extent()
	src := io.NewSectionReader(e.logs, start, end-start)

	var idx int64
	for {
		n, err := src.ReadAt(e.scratch, idx)
		if err != nil && !errors.Is(err, io.EOF) {
			log.Error("log copy failed", "offset", idx, "error", err)
			return idx
		}
		if n <= 0 {
			return idx
		}
		clear(e.scratch[n:])

		size := record.AlignUp(int64(n), record.SectorSize)
		if off+size > limit {
			log.Error("panic partition full", "offset", off, "size", limit)
			return idx
		}
		if _, err := p.WriteAt(e.scratch[:size], off); err != nil {
			log.Error("flash write failed", "offset", off, "error", err)
			return idx
		}
		idx += int64(n)
		off += int64(n)

		if n < len(e.scratch) {
			return idx
		}
	}
}

func (e *Engine) finish(rep CaptureReport, state State, reason string) CaptureReport {
	rep.State = state
	rep.Reason = reason
	rep.Finished = e.now()
	e.setLast(rep)
	e.observer.CaptureFinished(string(state), rep.ConsoleLength, rep.ThreadsLength)
	return rep
}

func (e *Engine) setLast(rep CaptureReport) {
	e.statusMu.Lock()
	defer e.statusMu.Unlock()
	e.last = rep
}

func newCaptureID(t time.Time) string {
	id, err := ulid.New(ulid.Timestamp(t), ulid.Monotonic(rand.Reader, 0))
	if err != nil {
		return ""
	}
	return strings.ToLower(id.String())
}
