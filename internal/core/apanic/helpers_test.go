package apanic

import (
	"bytes"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yndnr/apanic-go/internal/core/record"
	"github.com/yndnr/apanic-go/internal/storage/blockdev"
	"github.com/yndnr/apanic-go/internal/telemetry/logbuf"
	"github.com/yndnr/apanic-go/internal/telemetry/logger"
)

const testPartitionSize = 64 << 10

type fakeTasks struct {
	text string
	hook func()
}

func (f *fakeTasks) DumpTasks(w io.Writer) error {
	if f.hook != nil {
		f.hook()
	}
	_, err := io.WriteString(w, f.text)
	return err
}

type consoleRecorder struct {
	mu    sync.Mutex
	calls []string
}

func (c *consoleRecorder) DisableConsoles() { c.record("disable") }
func (c *consoleRecorder) EnableConsoles()  { c.record("enable") }

func (c *consoleRecorder) record(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, s)
}

type watchdogCounter struct{ disabled int }

func (w *watchdogCounter) Disable() { w.disabled++ }

type observerRecorder struct {
	mu        sync.Mutex
	captures  []string
	erases    []error
	reads     map[string]int
	bound     map[string]bool
	snapshots []string
}

func newObserverRecorder() *observerRecorder {
	return &observerRecorder{reads: make(map[string]int), bound: make(map[string]bool)}
}

func (o *observerRecorder) CaptureFinished(state string, _, _ int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.captures = append(o.captures, state)
}

func (o *observerRecorder) EraseFinished(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.erases = append(o.erases, err)
}

func (o *observerRecorder) SegmentRead(segment, result string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.reads[segment+"/"+result]++
}

func (o *observerRecorder) PartitionBound(role string, bound bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.bound[role] = bound
}

func (o *observerRecorder) SnapshotFinished(result string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.snapshots = append(o.snapshots, result)
}

type testRig struct {
	engine   *Engine
	ring     *logbuf.Ring
	tasks    *fakeTasks
	consoles *consoleRecorder
	observer *observerRecorder
}

func newTestRig(t *testing.T, opts ...Option) *testRig {
	t.Helper()

	log, err := logger.New(logger.Config{Output: io.Discard, Format: "text"})
	require.NoError(t, err)

	rig := &testRig{
		ring:     logbuf.NewRing(256 << 10),
		tasks:    &fakeTasks{text: "goroutine 1 [running]:\nmain.main()\n"},
		consoles: &consoleRecorder{},
		observer: newObserverRecorder(),
	}
	base := []Option{
		WithLogger(log),
		WithLogSource(rig.ring),
		WithTaskDumper(rig.tasks),
		WithConsoles(rig.consoles),
		WithObserver(rig.observer),
	}
	rig.engine = New(DefaultConfig(), append(base, opts...)...)
	return rig
}

// pattern returns n bytes that differ at every position inside a page.
func pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte('a' + i%23)
	}
	return b
}

// writeRecord lays out a committed record directly on p.
func writeRecord(t *testing.T, p blockdev.Partition, h record.PanicHeader, console, threads []byte) {
	t.Helper()
	buf := make([]byte, record.HeaderRegionSize)
	h.Encode(buf)
	_, err := p.WriteAt(buf, 0)
	require.NoError(t, err)
	if len(console) > 0 {
		_, err = p.WriteAt(console, int64(h.ConsoleOffset))
		require.NoError(t, err)
	}
	if len(threads) > 0 {
		_, err = p.WriteAt(threads, int64(h.ThreadsOffset))
		require.NoError(t, err)
	}
}

func readAll(t *testing.T, e *Engine, name string) []byte {
	t.Helper()
	s, ok := e.Segment(name)
	require.True(t, ok, "segment %s not published", name)
	var buf bytes.Buffer
	_, err := io.Copy(&buf, io.NewSectionReader(s, 0, s.Size()))
	require.NoError(t, err)
	return buf.Bytes()
}
