package apanic

import (
	"fmt"
	"io"

	"github.com/yndnr/apanic-go/internal/core/record"
)

// Read results reported to the observer.
const (
	readOK       = "ok"
	readRejected = "rejected"
	readMissing  = "missing"
	readError    = "error"
)

// Segment is a published, read-only payload range of the committed record.
type Segment struct {
	e      *Engine
	name   string
	offset int64
	length int64
}

func (s *Segment) Name() string { return s.name }

// Size is the recorded segment length.
func (s *Segment) Size() int64 { return s.length }

// Offset is where the segment starts on the partition.
func (s *Segment) Offset() int64 { return s.offset }

// ReadAt implements io.ReaderAt. Unlike ReadSegment it follows io.ReaderAt
// conventions: a read running past the end returns the available bytes and
// io.EOF.
func (s *Segment) ReadAt(p []byte, off int64) (int, error) {
	if off >= s.length {
		return 0, io.EOF
	}
	want := p
	if off+int64(len(p)) > s.length {
		want = p[:s.length-off]
	}
	n, eof, err := s.e.ReadSegment(s.name, want, off)
	if err != nil {
		return n, err
	}
	if eof {
		return n, io.EOF
	}
	return n, nil
}

// Segment returns the published segment with the given name.
func (e *Engine) Segment(name string) (*Segment, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.segments[name]
	return s, ok
}

// Segments returns the published segments.
func (e *Engine) Segments() []*Segment {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]*Segment, 0, len(e.segments))
	for _, name := range []string{SegmentConsole, SegmentThreads} {
		if s, ok := e.segments[name]; ok {
			out = append(out, s)
		}
	}
	return out
}

// ReadSegment copies len(p) bytes of the named segment starting at off into
// p. A request reaching past the recorded length is rejected with
// ErrOutOfRange and copies nothing. eof reports that the request ended
// exactly at the segment end.
func (e *Engine) ReadSegment(name string, p []byte, off int64) (n int, eof bool, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.panicPart == nil {
		e.observer.SegmentRead(name, readMissing)
		return 0, false, ErrUnbound
	}
	s, ok := e.segments[name]
	if !ok {
		e.observer.SegmentRead(name, readMissing)
		return 0, false, fmt.Errorf("%w: %s", ErrNotPublished, name)
	}

	count := int64(len(p))
	if off < 0 || off > s.length || count > s.length-off {
		e.observer.SegmentRead(name, readRejected)
		return 0, false, fmt.Errorf("%w: offset %d count %d length %d", ErrOutOfRange, off, count, s.length)
	}
	if count == 0 {
		return 0, off == s.length, nil
	}

	n, err = e.readRangeLocked(p, s.offset+off)
	if err != nil {
		e.observer.SegmentRead(name, readError)
		e.logger.Error("segment read failed", "segment", name, "offset", off, "count", count, "error", err)
		return n, false, err
	}
	e.observer.SegmentRead(name, readOK)
	return n, off+count == s.length, nil
}

// readRangeLocked fills p from absolute partition offset start using whole
// sector reads into the scratch buffer.
func (e *Engine) readRangeLocked(p []byte, start int64) (int, error) {
	part := e.panicPart
	size := part.Size()
	end := start + int64(len(p))

	sector := start &^ (record.SectorSize - 1)
	copied := 0
	for sector < end {
		span := record.AlignUp(end-sector, record.SectorSize)
		if span > int64(len(e.scratch)) {
			span = int64(len(e.scratch))
		}
		if sector+span > size {
			span = size - sector
		}
		if span <= 0 {
			return copied, fmt.Errorf("apanic: read %s at %d: %w", part.Name(), sector, ErrOutOfRange)
		}

		e.zeroScratch()
		if _, err := part.ReadAt(e.scratch[:span], sector); err != nil && err != io.EOF {
			return copied, fmt.Errorf("apanic: read %s at %d: %w", part.Name(), sector, err)
		}

		lo := max(start, sector)
		hi := min(end, sector+span)
		copied += copy(p[lo-start:hi-start], e.scratch[lo-sector:hi-sector])
		sector += span
	}
	return copied, nil
}
