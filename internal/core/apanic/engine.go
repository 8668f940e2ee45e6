package apanic

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/yndnr/apanic-go/internal/core/record"
	"github.com/yndnr/apanic-go/internal/infra/diag"
	"github.com/yndnr/apanic-go/internal/storage/blockdev"
	"github.com/yndnr/apanic-go/internal/storage/memsource"
	"github.com/yndnr/apanic-go/internal/telemetry/logbuf"
	"github.com/yndnr/apanic-go/internal/telemetry/logger"
)

// Segment names.
const (
	SegmentConsole = "console"
	SegmentThreads = "threads"
)

// Partition roles reported to the observer.
const (
	RolePanic    = "panic"
	RoleSnapshot = "snapshot"
)

var (
	ErrUnbound      = errors.New("apanic: partition not bound")
	ErrNotPublished = errors.New("apanic: segment not published")
	ErrOutOfRange   = errors.New("apanic: read exceeds segment length")
)

// LogSource is the console log the writer drains. Positions are absolute:
// Extent names the held bytes and ReadAt keeps reading them by position
// while other writers append.
type LogSource interface {
	io.Writer
	io.ReaderAt
	Extent() (start, end int64)
	Clear()
}

// ConsoleSwitch silences interactive console sinks during the stack dump.
type ConsoleSwitch interface {
	DisableConsoles()
	EnableConsoles()
}

// TaskDumper writes the state of every task.
type TaskDumper interface {
	DumpTasks(w io.Writer) error
}

// Watchdog can be disabled before a long snapshot write.
type Watchdog interface {
	Disable()
}

// Observer receives engine outcomes. Implementations must not block.
type Observer interface {
	CaptureFinished(state string, consoleBytes, threadsBytes int64)
	EraseFinished(err error)
	SegmentRead(segment, result string)
	PartitionBound(role string, bound bool)
	SnapshotFinished(result string)
}

// Config holds engine settings.
type Config struct {
	// CaptureLockTimeout bounds how long the failure path waits for the
	// engine mutex before it gives up on the capture.
	CaptureLockTimeout time.Duration

	// EraseMaxBytesPerSec limits erase bandwidth. Zero means unlimited.
	// The wipe holds the engine mutex, so a slow erase also delays any
	// capture raised meanwhile past CaptureLockTimeout.
	EraseMaxBytesPerSec int64
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		CaptureLockTimeout: 2 * time.Second,
	}
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithLogSource sets the console log drained on capture.
func WithLogSource(src LogSource) Option {
	return func(e *Engine) { e.logs = src }
}

// WithConsoles sets the console switch used around the stack dump.
func WithConsoles(c ConsoleSwitch) Option {
	return func(e *Engine) { e.consoles = c }
}

// WithTaskDumper sets the task state dumper.
func WithTaskDumper(d TaskDumper) Option {
	return func(e *Engine) { e.tasks = d }
}

// WithWatchdog sets the watchdog disabled before a snapshot.
func WithWatchdog(w Watchdog) Option {
	return func(e *Engine) { e.watchdog = w }
}

// WithMemorySource enables full-memory snapshots from src.
func WithMemorySource(src memsource.Source) Option {
	return func(e *Engine) { e.memory = src }
}

// WithObserver sets the outcome observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Engine owns the scratch buffer, the bound partitions and the in-memory
// copy of the committed header.
type Engine struct {
	cfg Config

	logger   logger.Logger
	logs     LogSource
	consoles ConsoleSwitch
	tasks    TaskDumper
	watchdog Watchdog
	memory   memsource.Source
	observer Observer
	now      func() time.Time
	limiter  *rate.Limiter

	guard atomic.Bool
	erase chan struct{}

	mu        sync.Mutex
	scratch   []byte
	header    record.PanicHeader
	panicPart blockdev.Partition
	snapPart  blockdev.Partition
	segments  map[string]*Segment

	statusMu sync.Mutex
	last     CaptureReport
	lastSnap SnapshotReport
}

// New creates an unbound engine.
func New(cfg Config, opts ...Option) *Engine {
	if cfg.CaptureLockTimeout <= 0 {
		cfg.CaptureLockTimeout = DefaultConfig().CaptureLockTimeout
	}

	e := &Engine{
		cfg:      cfg,
		logger:   logger.Default(),
		consoles: noopConsoles{},
		tasks:    diag.Stacks{},
		watchdog: noopWatchdog{},
		observer: noopObserver{},
		now:      time.Now,
		erase:    make(chan struct{}, 1),
		scratch:  make([]byte, record.PageSize),
		segments: make(map[string]*Segment),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logs == nil {
		e.logs = logbuf.NewRing(logbuf.DefaultSize)
	}
	if cfg.EraseMaxBytesPerSec > 0 {
		burst := record.PageSize
		if int64(burst) > cfg.EraseMaxBytesPerSec {
			burst = int(cfg.EraseMaxBytesPerSec)
		}
		e.limiter = rate.NewLimiter(rate.Limit(cfg.EraseMaxBytesPerSec), burst)
	}
	e.logger = e.logger.With("component", "apanic")
	return e
}

// lockWithin acquires the engine mutex, giving up after d. The failure path
// uses it so a failure raised while the mutex is held cannot hang forever.
func (e *Engine) lockWithin(d time.Duration) bool {
	if e.mu.TryLock() {
		return true
	}
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
		if e.mu.TryLock() {
			return true
		}
	}
	return false
}

func (e *Engine) zeroScratch() {
	clear(e.scratch)
}

// Header returns the in-memory copy of the committed header. It is zero
// when no valid record is held.
func (e *Engine) Header() record.PanicHeader {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.header
}

// Bound reports which partitions are bound.
func (e *Engine) Bound() (panicPart, snapshotPart string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.panicPart != nil {
		panicPart = e.panicPart.Name()
	}
	if e.snapPart != nil {
		snapshotPart = e.snapPart.Name()
	}
	return panicPart, snapshotPart
}

type noopConsoles struct{}

func (noopConsoles) DisableConsoles() {}
func (noopConsoles) EnableConsoles()  {}

type noopWatchdog struct{}

func (noopWatchdog) Disable() {}

type noopObserver struct{}

func (noopObserver) CaptureFinished(string, int64, int64) {}
func (noopObserver) EraseFinished(error)                  {}
func (noopObserver) SegmentRead(string, string)           {}
func (noopObserver) PartitionBound(string, bool)          {}
func (noopObserver) SnapshotFinished(string)              {}
