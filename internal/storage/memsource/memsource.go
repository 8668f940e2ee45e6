package memsource

import (
	"errors"
	"fmt"
	"os"
	"runtime/debug"
	"sync"

	"github.com/edsrzf/mmap-go"
)

var ErrNoBanks = errors.New("memsource: no memory banks")

// Bank is one contiguous memory region.
type Bank struct {
	Name string
	Data []byte
}

// Size returns the bank length in bytes.
func (b Bank) Size() int64 { return int64(len(b.Data)) }

// Source enumerates memory banks. Returned banks stay valid until the next
// call to Banks.
type Source interface {
	Banks() ([]Bank, error)
}

// Largest returns the biggest bank. Ties keep the first one listed.
func Largest(banks []Bank) (Bank, error) {
	if len(banks) == 0 {
		return Bank{}, ErrNoBanks
	}
	best := banks[0]
	for _, b := range banks[1:] {
		if b.Size() > best.Size() {
			best = b
		}
	}
	return best, nil
}

// Static serves a fixed set of banks.
type Static []Bank

func (s Static) Banks() ([]Bank, error) {
	if len(s) == 0 {
		return nil, ErrNoBanks
	}
	return s, nil
}

// HeapDump produces a single "heap" bank holding a runtime heap dump.
type HeapDump struct {
	dir string

	mu   sync.Mutex
	file *os.File
	data mmap.MMap
}

// NewHeapDump keeps its scratch files in dir; an empty dir uses the system
// temporary directory.
func NewHeapDump(dir string) *HeapDump {
	return &HeapDump{dir: dir}
}

// Banks dumps the heap and maps the result. The previous mapping is
// released first.
func (h *HeapDump) Banks() ([]Bank, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.releaseLocked(); err != nil {
		return nil, err
	}

	f, err := os.CreateTemp(h.dir, "apanic-heap-*.dump")
	if err != nil {
		return nil, fmt.Errorf("memsource: create scratch: %w", err)
	}
	// The mapping outlives the directory entry.
	_ = os.Remove(f.Name())

	debug.WriteHeapDump(f.Fd())

	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("memsource: stat scratch: %w", err)
	}
	if st.Size() == 0 {
		f.Close()
		return nil, ErrNoBanks
	}

	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("memsource: map heap dump: %w", err)
	}

	h.file = f
	h.data = data
	return []Bank{{Name: "heap", Data: data}}, nil
}

// Close releases the current mapping.
func (h *HeapDump) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.releaseLocked()
}

func (h *HeapDump) releaseLocked() error {
	var errs []error
	if h.data != nil {
		errs = append(errs, h.data.Unmap())
		h.data = nil
	}
	if h.file != nil {
		errs = append(errs, h.file.Close())
		h.file = nil
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("memsource: release: %w", err)
	}
	return nil
}
