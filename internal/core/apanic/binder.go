package apanic

import (
	"errors"
	"io"

	"github.com/yndnr/apanic-go/internal/core/record"
	"github.com/yndnr/apanic-go/internal/storage/blockdev"
)

// PartitionAdded binds p as the panic partition and publishes the record it
// holds, if any. Only the header page is read.
func (e *Engine) PartitionAdded(p blockdev.Partition) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.panicPart != nil && e.panicPart != p {
		e.logger.Warn("replacing bound panic partition", "old", e.panicPart.Name(), "new", p.Name())
	}
	e.panicPart = p
	e.header = record.PanicHeader{}
	e.retractLocked()

	e.zeroScratch()
	n := int64(len(e.scratch))
	if size := p.Size(); size < n {
		n = size
	}
	if _, err := p.ReadAt(e.scratch[:n], 0); err != nil && !errors.Is(err, io.EOF) {
		e.logger.Error("failed to read panic header, staying unbound", "partition", p.Name(), "error", err)
		e.panicPart = nil
		e.observer.PartitionBound(RolePanic, false)
		return
	}

	e.logger.Info("panic partition bound", "partition", p.Name(), "size", p.Size())
	e.observer.PartitionBound(RolePanic, true)

	hdr, err := record.DecodePanicHeader(e.scratch[:n])
	switch {
	case errors.Is(err, record.ErrVersionMismatch):
		e.logger.Warn("panic header version mismatch, ignoring record", "partition", p.Name(), "error", err)
		return
	case err != nil:
		e.logger.Info("no panic data on partition", "partition", p.Name())
		return
	}
	if err := hdr.Validate(p.Size()); err != nil {
		e.logger.Warn("garbled panic header, ignoring record", "partition", p.Name(), "error", err)
		return
	}

	e.header = hdr
	e.publishLocked()
	e.logger.Info("panic record found",
		"partition", p.Name(),
		"console_offset", hdr.ConsoleOffset,
		"console_length", hdr.ConsoleLength,
		"threads_offset", hdr.ThreadsOffset,
		"threads_length", hdr.ThreadsLength,
	)
}

// PartitionRemoved unbinds p if it is the bound panic partition and retracts
// the published segments.
func (e *Engine) PartitionRemoved(p blockdev.Partition) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.panicPart == nil || e.panicPart != p {
		return
	}
	e.panicPart = nil
	e.header = record.PanicHeader{}
	e.retractLocked()
	e.observer.PartitionBound(RolePanic, false)
	e.logger.Info("panic partition unbound", "partition", p.Name())
}

// SnapshotListener returns the listener that binds the snapshot partition.
// The snapshot header is a commit marker and is not read at bind time.
func (e *Engine) SnapshotListener() *SnapshotBinder {
	return &SnapshotBinder{e: e}
}

// SnapshotBinder binds the full-memory snapshot partition of an Engine.
type SnapshotBinder struct {
	e *Engine
}

func (b *SnapshotBinder) PartitionAdded(p blockdev.Partition) {
	e := b.e
	e.mu.Lock()
	defer e.mu.Unlock()

	e.snapPart = p
	e.observer.PartitionBound(RoleSnapshot, true)
	e.logger.Info("snapshot partition bound", "partition", p.Name(), "size", p.Size())
}

func (b *SnapshotBinder) PartitionRemoved(p blockdev.Partition) {
	e := b.e
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.snapPart == nil || e.snapPart != p {
		return
	}
	e.snapPart = nil
	e.observer.PartitionBound(RoleSnapshot, false)
	e.logger.Info("snapshot partition unbound", "partition", p.Name())
}

func (e *Engine) publishLocked() {
	e.retractLocked()
	h := e.header
	if h.ConsoleLength > 0 {
		e.segments[SegmentConsole] = &Segment{
			e:      e,
			name:   SegmentConsole,
			offset: int64(h.ConsoleOffset),
			length: int64(h.ConsoleLength),
		}
	}
	if h.ThreadsLength > 0 {
		e.segments[SegmentThreads] = &Segment{
			e:      e,
			name:   SegmentThreads,
			offset: int64(h.ThreadsOffset),
			length: int64(h.ThreadsLength),
		}
	}
}

func (e *Engine) retractLocked() {
	clear(e.segments)
}
