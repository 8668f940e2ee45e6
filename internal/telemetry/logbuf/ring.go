package logbuf

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

// DefaultSize is the ring capacity used when none is configured.
const DefaultSize = 128 << 10

var ErrOverwritten = errors.New("logbuf: position already overwritten")

// Ring is a fixed-capacity log buffer. Writes append at the tail and evict
// the oldest bytes once the ring is full.
//
// Every byte has an absolute position counted from the first byte ever
// written. Extent and ReadAt work on absolute positions, so a window taken
// once keeps naming the same bytes while writers keep appending.
type Ring struct {
	mu   sync.Mutex
	buf  []byte
	head int   // index of the oldest byte
	n    int   // bytes held
	end  int64 // absolute position of the next byte written
}

// NewRing returns an empty ring holding at most size bytes.
func NewRing(size int) *Ring {
	if size <= 0 {
		size = DefaultSize
	}
	return &Ring{buf: make([]byte, size)}
}

// Write appends p. It never fails; when p is larger than the ring only its
// tail is kept.
func (r *Ring) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	written := len(p)
	r.end += int64(written)

	capacity := len(r.buf)
	if len(p) >= capacity {
		copy(r.buf, p[len(p)-capacity:])
		r.head = 0
		r.n = capacity
		return written, nil
	}

	tail := (r.head + r.n) % capacity
	c := copy(r.buf[tail:], p)
	if c < len(p) {
		copy(r.buf, p[c:])
	}

	r.n += len(p)
	if r.n > capacity {
		r.head = (r.head + r.n - capacity) % capacity
		r.n = capacity
	}
	return written, nil
}

// Extent returns the absolute positions of the oldest held byte and of the
// next byte to be written.
func (r *Ring) Extent() (start, end int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.end - int64(r.n), r.end
}

// ReadAt copies held bytes starting at absolute position pos. It fails with
// ErrOverwritten once pos has been evicted or cleared, and returns io.EOF
// with a short count at the tail. Ring implements io.ReaderAt so a window
// from Extent can be read through io.NewSectionReader.
func (r *Ring) ReadAt(p []byte, pos int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	oldest := r.end - int64(r.n)
	if pos < oldest {
		return 0, fmt.Errorf("%w: %d < %d", ErrOverwritten, pos, oldest)
	}
	return r.copyLocked(p, pos-oldest)
}

func (r *Ring) copyLocked(p []byte, off int64) (int, error) {
	if off >= int64(r.n) {
		return 0, io.EOF
	}

	capacity := len(r.buf)
	avail := r.n - int(off)
	want := len(p)
	if want > avail {
		want = avail
	}

	start := (r.head + int(off)) % capacity
	c := copy(p[:want], r.buf[start:])
	if c < want {
		copy(p[c:want], r.buf)
	}

	if want < len(p) {
		return want, io.EOF
	}
	return want, nil
}

// Len returns the number of bytes held.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.n
}

// Cap returns the ring capacity.
func (r *Ring) Cap() int {
	return len(r.buf)
}

// Clear drops everything held. Absolute positions keep counting.
func (r *Ring) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.head = 0
	r.n = 0
}

// Bytes returns a copy of the held content, oldest first.
func (r *Ring) Bytes() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]byte, r.n)
	got, _ := r.copyLocked(out, 0)
	return out[:got]
}
