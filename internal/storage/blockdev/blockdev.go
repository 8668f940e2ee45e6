// Package blockdev provides raw partition access for the panic engine.
package blockdev

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

var (
	ErrOutOfRange = errors.New("blockdev: access out of range")
	ErrNotPresent = errors.New("blockdev: device not present")
	ErrClosed     = errors.New("blockdev: device closed")
)

// Partition is a bound raw storage region together with the operations the
// engine is allowed to run against it. Reads and writes are synchronous:
// when WriteAt returns without error the bytes are on stable storage.
type Partition interface {
	Name() string
	Size() int64
	Probe() error
	ReadAt(p []byte, off int64) (int, error)
	WriteAt(p []byte, off int64) (int, error)
}

// Sectors returns the number of whole sectors of the given size in p.
func Sectors(p Partition, sectorSize int64) int64 {
	return p.Size() / sectorSize
}

func checkRange(size int64, n int, off int64) error {
	if off < 0 || off > size || int64(n) > size-off {
		return fmt.Errorf("%w: offset %d count %d size %d", ErrOutOfRange, off, n, size)
	}
	return nil
}

// Options configures how a file-backed partition is opened.
type Options struct {
	// Sync opens the node with O_SYNC so every write reaches the device
	// before returning. Without it WriteAt issues an fsync itself.
	Sync bool

	// ReadOnly opens the node for reading only.
	ReadOnly bool
}

// File is a partition backed by a block device node or a regular file.
type File struct {
	name string
	path string
	size int64
	sync bool

	mu     sync.RWMutex
	f      *os.File
	closed bool
}

// Open opens the node at path as partition name. The size is taken by
// seeking to the end, which also works for block device nodes whose stat
// size is zero.
func Open(name, path string, opts Options) (*File, error) {
	flags := os.O_RDWR
	if opts.ReadOnly {
		flags = os.O_RDONLY
	}
	if opts.Sync && !opts.ReadOnly {
		flags |= os.O_SYNC
	}

	f, err := os.OpenFile(path, flags, 0)
	if err != nil {
		return nil, fmt.Errorf("blockdev: open %s: %w", path, err)
	}

	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("blockdev: size %s: %w", path, err)
	}

	return &File{
		name: name,
		path: path,
		size: size,
		sync: opts.Sync,
		f:    f,
	}, nil
}

// Create makes a zero-filled regular file of the given size and opens it.
// It is used for development setups that emulate a partition with a file.
func Create(name, path string, size int64, opts Options) (*File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("blockdev: create %s: %w", path, err)
	}
	if err := f.Truncate(size); err != nil {
		f.Close()
		return nil, fmt.Errorf("blockdev: truncate %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("blockdev: close %s: %w", path, err)
	}
	return Open(name, path, opts)
}

func (d *File) Name() string { return d.name }

func (d *File) Size() int64 { return d.size }

// Path returns the node the partition was opened from.
func (d *File) Path() string { return d.path }

// Probe checks that the node is still present and answers a one-sector read.
func (d *File) Probe() error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrClosed
	}
	if _, err := os.Stat(d.path); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrNotPresent, d.path, err)
	}
	if d.size == 0 {
		return nil
	}

	var sector [512]byte
	n := int64(len(sector))
	if d.size < n {
		n = d.size
	}
	if _, err := d.f.ReadAt(sector[:n], 0); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrNotPresent, d.path, err)
	}
	return nil
}

func (d *File) ReadAt(p []byte, off int64) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return 0, ErrClosed
	}
	if err := checkRange(d.size, len(p), off); err != nil {
		return 0, err
	}
	return d.f.ReadAt(p, off)
}

func (d *File) WriteAt(p []byte, off int64) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return 0, ErrClosed
	}
	if err := checkRange(d.size, len(p), off); err != nil {
		return 0, err
	}

	n, err := d.f.WriteAt(p, off)
	if err != nil {
		return n, err
	}
	if !d.sync {
		if err := d.f.Sync(); err != nil {
			return n, fmt.Errorf("blockdev: fsync %s: %w", d.path, err)
		}
	}
	return n, nil
}

// Close releases the node. Further I/O fails with ErrClosed.
func (d *File) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	return d.f.Close()
}

// Memory is a RAM-backed partition.
type Memory struct {
	name string

	mu   sync.RWMutex
	data []byte
}

// NewMemory returns a zero-filled partition of the given size.
func NewMemory(name string, size int64) *Memory {
	return &Memory{
		name: name,
		data: make([]byte, size),
	}
}

func (m *Memory) Name() string { return m.name }

func (m *Memory) Size() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.data))
}

func (m *Memory) Probe() error { return nil }

func (m *Memory) ReadAt(p []byte, off int64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := checkRange(int64(len(m.data)), len(p), off); err != nil {
		return 0, err
	}
	return copy(p, m.data[off:]), nil
}

func (m *Memory) WriteAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := checkRange(int64(len(m.data)), len(p), off); err != nil {
		return 0, err
	}
	return copy(m.data[off:], p), nil
}

// Bytes returns a copy of the partition contents.
func (m *Memory) Bytes() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]byte(nil), m.data...)
}
