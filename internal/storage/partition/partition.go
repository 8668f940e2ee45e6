package partition

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/yndnr/apanic-go/internal/storage/blockdev"
)

// DefaultDir is where block partitions are linked by label.
const DefaultDir = "/dev/block/by-name"

var ErrStarted = errors.New("partition: already started")

// Listener receives partition lifecycle events.
type Listener interface {
	PartitionAdded(p blockdev.Partition)
	PartitionRemoved(p blockdev.Partition)
}

// Source is something that announces partitions to listeners.
type Source interface {
	Register(name string, l Listener)
	Start() error
	Stop() error
}

// Watcher announces partitions that appear in or vanish from a directory.
type Watcher struct {
	dir     string
	options blockdev.Options
	logger  *slog.Logger

	mu      sync.Mutex
	subs    map[string][]Listener
	bound   map[string]*blockdev.File
	fs      *fsnotify.Watcher
	done    chan struct{}
	stopped chan struct{}
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithLogger sets the logger for the watcher.
func WithLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// WithOpenOptions sets how announced partitions are opened.
func WithOpenOptions(opts blockdev.Options) WatcherOption {
	return func(w *Watcher) {
		w.options = opts
	}
}

// NewWatcher watches dir, or DefaultDir when dir is empty.
func NewWatcher(dir string, opts ...WatcherOption) *Watcher {
	if dir == "" {
		dir = DefaultDir
	}
	w := &Watcher{
		dir:     dir,
		options: blockdev.Options{Sync: true},
		logger:  slog.Default(),
		subs:    make(map[string][]Listener),
		bound:   make(map[string]*blockdev.File),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Register subscribes l to the partition labelled name. Registrations made
// after Start only see later events.
func (w *Watcher) Register(name string, l Listener) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.subs[name] = append(w.subs[name], l)
}

// Start announces partitions that already exist and then follows the
// directory until Stop.
func (w *Watcher) Start() error {
	w.mu.Lock()
	if w.fs != nil {
		w.mu.Unlock()
		return ErrStarted
	}
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return fmt.Errorf("partition: watcher: %w", err)
	}
	if err := fs.Add(w.dir); err != nil {
		fs.Close()
		w.mu.Unlock()
		return fmt.Errorf("partition: watch %s: %w", w.dir, err)
	}
	w.fs = fs
	w.done = make(chan struct{})
	w.stopped = make(chan struct{})
	names := make([]string, 0, len(w.subs))
	for name := range w.subs {
		names = append(names, name)
	}
	w.mu.Unlock()

	for _, name := range names {
		if _, err := os.Stat(filepath.Join(w.dir, name)); err == nil {
			w.added(name)
		}
	}

	w.logger.Info("partition watcher started", "dir", w.dir, "labels", names)
	go w.loop(fs)
	return nil
}

func (w *Watcher) loop(fs *fsnotify.Watcher) {
	defer close(w.stopped)

	for {
		select {
		case event, ok := <-fs.Events:
			if !ok {
				return
			}
			name := filepath.Base(event.Name)
			switch {
			case event.Has(fsnotify.Create):
				w.added(name)
			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				w.removed(name)
			}
		case err, ok := <-fs.Errors:
			if !ok {
				return
			}
			w.logger.Error("partition watcher error", "error", err)
		case <-w.done:
			return
		}
	}
}

// Stop stops following the directory and announces removal of every
// partition that is still bound.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	fs := w.fs
	if fs == nil {
		w.mu.Unlock()
		return nil
	}
	w.fs = nil
	close(w.done)
	names := make([]string, 0, len(w.bound))
	for name := range w.bound {
		names = append(names, name)
	}
	w.mu.Unlock()

	err := fs.Close()
	<-w.stopped

	for _, name := range names {
		w.removed(name)
	}
	w.logger.Info("partition watcher stopped", "dir", w.dir)
	if err != nil {
		return fmt.Errorf("partition: close watcher: %w", err)
	}
	return nil
}

func (w *Watcher) added(name string) {
	w.mu.Lock()
	subs := w.subs[name]
	if len(subs) == 0 {
		w.mu.Unlock()
		return
	}
	if _, ok := w.bound[name]; ok {
		w.mu.Unlock()
		return
	}

	path := filepath.Join(w.dir, name)
	dev, err := blockdev.Open(name, path, w.options)
	if err != nil {
		w.mu.Unlock()
		w.logger.Error("failed to open partition", "partition", name, "path", path, "error", err)
		return
	}
	w.bound[name] = dev
	subs = append([]Listener(nil), subs...)
	w.mu.Unlock()

	w.logger.Info("partition added", "partition", name, "path", path, "size", dev.Size())
	for _, l := range subs {
		l.PartitionAdded(dev)
	}
}

func (w *Watcher) removed(name string) {
	w.mu.Lock()
	dev, ok := w.bound[name]
	if !ok {
		w.mu.Unlock()
		return
	}
	delete(w.bound, name)
	subs := append([]Listener(nil), w.subs[name]...)
	w.mu.Unlock()

	w.logger.Info("partition removed", "partition", name)
	for _, l := range subs {
		l.PartitionRemoved(dev)
	}
	if err := dev.Close(); err != nil {
		w.logger.Warn("failed to close partition", "partition", name, "error", err)
	}
}

// Static announces a fixed set of partitions on Start and withdraws them on
// Stop.
type Static struct {
	mu    sync.Mutex
	parts map[string]blockdev.Partition
	subs  map[string][]Listener
}

// NewStatic serves the given partitions by name.
func NewStatic(parts ...blockdev.Partition) *Static {
	s := &Static{
		parts: make(map[string]blockdev.Partition, len(parts)),
		subs:  make(map[string][]Listener),
	}
	for _, p := range parts {
		s.parts[p.Name()] = p
	}
	return s
}

func (s *Static) Register(name string, l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[name] = append(s.subs[name], l)
}

func (s *Static) Start() error {
	for name, p := range s.snapshot() {
		for _, l := range s.listeners(name) {
			l.PartitionAdded(p)
		}
	}
	return nil
}

func (s *Static) Stop() error {
	for name, p := range s.snapshot() {
		for _, l := range s.listeners(name) {
			l.PartitionRemoved(p)
		}
	}
	return nil
}

func (s *Static) snapshot() map[string]blockdev.Partition {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]blockdev.Partition, len(s.parts))
	for k, v := range s.parts {
		out[k] = v
	}
	return out
}

func (s *Static) listeners(name string) []Listener {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Listener(nil), s.subs[name]...)
}
