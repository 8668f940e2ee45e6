// Package blockdevtest provides fault-injecting partitions for tests.
package blockdevtest

import (
	"errors"
	"sync"

	"github.com/yndnr/apanic-go/internal/storage/blockdev"
)

// ErrInjected is returned by injected failures.
var ErrInjected = errors.New("blockdevtest: injected failure")

// Faulty wraps a partition and lets tests fail individual operations.
// Hooks receive the 1-based call number of the operation kind.
type Faulty struct {
	blockdev.Partition

	mu     sync.Mutex
	writes int
	reads  int

	WriteHook func(call int, off int64, n int) error
	ReadHook  func(call int, off int64, n int) error
	ProbeErr  error
}

// Wrap returns a Faulty partition with no failures configured.
func Wrap(p blockdev.Partition) *Faulty {
	return &Faulty{Partition: p}
}

// FailWritesAt fails every write that starts at one of the given offsets.
func (f *Faulty) FailWritesAt(offsets ...int64) *Faulty {
	set := make(map[int64]struct{}, len(offsets))
	for _, off := range offsets {
		set[off] = struct{}{}
	}
	f.WriteHook = func(_ int, off int64, _ int) error {
		if _, ok := set[off]; ok {
			return ErrInjected
		}
		return nil
	}
	return f
}

// FailWritesFrom fails every write at or past the given offset.
func (f *Faulty) FailWritesFrom(limit int64) *Faulty {
	f.WriteHook = func(_ int, off int64, _ int) error {
		if off >= limit {
			return ErrInjected
		}
		return nil
	}
	return f
}

func (f *Faulty) Probe() error {
	f.mu.Lock()
	err := f.ProbeErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.Partition.Probe()
}

func (f *Faulty) ReadAt(p []byte, off int64) (int, error) {
	f.mu.Lock()
	f.reads++
	call, hook := f.reads, f.ReadHook
	f.mu.Unlock()

	if hook != nil {
		if err := hook(call, off, len(p)); err != nil {
			return 0, err
		}
	}
	return f.Partition.ReadAt(p, off)
}

func (f *Faulty) WriteAt(p []byte, off int64) (int, error) {
	f.mu.Lock()
	f.writes++
	call, hook := f.writes, f.WriteHook
	f.mu.Unlock()

	if hook != nil {
		if err := hook(call, off, len(p)); err != nil {
			return 0, err
		}
	}
	return f.Partition.WriteAt(p, off)
}

// Writes returns the number of write calls seen so far.
func (f *Faulty) Writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}
