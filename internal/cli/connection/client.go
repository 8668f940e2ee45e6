package connection

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/yndnr/apanic-go/internal/core/apanic"
)

var (
	// ErrOutOfRange is returned when the server rejects a read offset.
	ErrOutOfRange = errors.New("read offset out of range")

	// ErrNotAvailable is returned when a segment is not published.
	ErrNotAvailable = errors.New("segment not available")
)

// ChunkSize is the read size used by SegmentReader.
const ChunkSize = 256 << 10

// Error is an error reported by the server.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Segment describes one published segment.
type Segment struct {
	Name   string `json:"name"`
	Size   int64  `json:"size"`
	Offset int64  `json:"offset,omitempty" table:"wide"`
}

// Status is the engine status as reported over either transport.
type Status struct {
	State             string                 `json:"state"`
	PanicPartition    string                 `json:"panic_partition,omitempty"`
	SnapshotPartition string                 `json:"snapshot_partition,omitempty"`
	Segments          []Segment              `json:"segments"`
	LastCapture       *apanic.CaptureReport  `json:"last_capture,omitempty"`
	LastSnapshot      *apanic.SnapshotReport `json:"last_snapshot,omitempty"`
}

// Segment returns the named segment if it is published.
func (s *Status) Segment(name string) (Segment, bool) {
	for _, seg := range s.Segments {
		if seg.Name == name {
			return seg, true
		}
	}
	return Segment{}, false
}

// TriggerResult is the outcome of a debug capture.
type TriggerResult struct {
	Capture  apanic.CaptureReport   `json:"capture"`
	Snapshot *apanic.SnapshotReport `json:"snapshot,omitempty"`
}

// Client is the set of operations both transports support.
type Client interface {
	Status(ctx context.Context) (*Status, error)
	ReadAt(ctx context.Context, segment string, p []byte, off int64) (n int, eof bool, err error)
	Clear(ctx context.Context) error
	Trigger(ctx context.Context) (*TriggerResult, error)
	Version(ctx context.Context) (string, error)
	Close() error
}

func segmentsFromMap(m map[string]int64) []Segment {
	segs := make([]Segment, 0, len(m))
	for name, size := range m {
		segs = append(segs, Segment{Name: name, Size: size})
	}
	sort.Slice(segs, func(i, j int) bool { return segs[i].Name < segs[j].Name })
	return segs
}

// SegmentReader returns a reader that pulls the named segment through c,
// starting at off, in ChunkSize reads. The segment size is taken from the
// first Status call so no read reaches past the recorded length.
func SegmentReader(ctx context.Context, c Client, segment string, off int64) io.Reader {
	return &segmentReader{ctx: ctx, c: c, segment: segment, off: off, size: -1}
}

type segmentReader struct {
	ctx     context.Context
	c       Client
	segment string
	off     int64
	size    int64
}

func (r *segmentReader) Read(p []byte) (int, error) {
	if r.size < 0 {
		st, err := r.c.Status(r.ctx)
		if err != nil {
			return 0, err
		}
		seg, ok := st.Segment(r.segment)
		if !ok {
			return 0, fmt.Errorf("%w: %s", ErrNotAvailable, r.segment)
		}
		if r.off > seg.Size {
			return 0, fmt.Errorf("%w: offset %d, length %d", ErrOutOfRange, r.off, seg.Size)
		}
		r.size = seg.Size
	}

	remaining := r.size - r.off
	if remaining <= 0 {
		return 0, io.EOF
	}
	if len(p) > ChunkSize {
		p = p[:ChunkSize]
	}
	if int64(len(p)) > remaining {
		p = p[:remaining]
	}

	n, eof, err := r.c.ReadAt(r.ctx, r.segment, p, r.off)
	r.off += int64(n)
	if err != nil {
		return n, err
	}
	if eof {
		r.size = r.off
	}
	if n == 0 {
		return 0, io.ErrNoProgress
	}
	return n, nil
}
