package apanic

import (
	"errors"
	"io"
	"math"
	"time"

	"github.com/yndnr/apanic-go/internal/core/record"
	"github.com/yndnr/apanic-go/internal/storage/memsource"
	"github.com/yndnr/apanic-go/internal/telemetry/logger"
)

// Snapshot results.
const (
	SnapshotWritten = "written"
	SnapshotAbsent  = "absent"
	SnapshotFailed  = "failed"
)

// SnapshotReport describes the last full-memory snapshot attempt.
type SnapshotReport struct {
	Result string    `json:"result"`
	Reason string    `json:"reason,omitempty"`
	Bank   string    `json:"bank,omitempty"`
	Length int64     `json:"length"`
	Time   time.Time `json:"time"`
}

// snapshotLocked writes the largest memory bank to the snapshot partition.
// The header page is zeroed first and rewritten only after the payload
// write succeeded, so a failed snapshot always reads back as absent.
func (e *Engine) snapshotLocked(log logger.Logger) {
	p := e.snapPart
	if p == nil {
		return
	}

	e.watchdog.Disable()
	if err := p.Probe(); err != nil {
		log.Error("full memory dump backing device not detected", "partition", p.Name(), "error", err)
		e.finishSnapshot(SnapshotReport{Result: SnapshotAbsent, Reason: "device not detected"})
		return
	}

	e.zeroScratch()
	if _, err := p.WriteAt(e.scratch, 0); err != nil {
		log.Error("memdump erase header failed", "partition", p.Name(), "error", err)
		e.finishSnapshot(SnapshotReport{Result: SnapshotFailed, Reason: "erase header failed"})
		return
	}

	banks, err := e.memory.Banks()
	if err != nil {
		log.Error("memory banks unavailable", "error", err)
		e.finishSnapshot(SnapshotReport{Result: SnapshotFailed, Reason: "no memory banks"})
		return
	}
	bank, err := memsource.Largest(banks)
	if err != nil {
		log.Error("memory banks unavailable", "error", err)
		e.finishSnapshot(SnapshotReport{Result: SnapshotFailed, Reason: "no memory banks"})
		return
	}
	if bank.Size() > math.MaxUint32-record.SnapshotPayloadOffset {
		log.Error("memory bank too large for snapshot header", "bank", bank.Name, "size", bank.Size())
		e.finishSnapshot(SnapshotReport{Result: SnapshotFailed, Reason: "bank too large", Bank: bank.Name})
		return
	}

	if _, err := p.WriteAt(bank.Data, record.SnapshotPayloadOffset); err != nil {
		log.Error("full memory write failed", "partition", p.Name(), "bank", bank.Name, "error", err)
		e.finishSnapshot(SnapshotReport{Result: SnapshotFailed, Reason: "payload write failed", Bank: bank.Name})
		return
	}

	now := e.now()
	e.zeroScratch()
	record.NewSnapshotHeader(now, record.SnapshotPayloadOffset, uint32(bank.Size())).Encode(e.scratch)
	if _, err := p.WriteAt(e.scratch, 0); err != nil {
		log.Error("memdump header write failed", "partition", p.Name(), "error", err)
		e.finishSnapshot(SnapshotReport{Result: SnapshotFailed, Reason: "header write failed", Bank: bank.Name})
		return
	}

	log.Info("full memory dump successfully written", "partition", p.Name(), "bank", bank.Name, "length", bank.Size())
	e.finishSnapshot(SnapshotReport{Result: SnapshotWritten, Bank: bank.Name, Length: bank.Size(), Time: now})
}

func (e *Engine) finishSnapshot(rep SnapshotReport) {
	if rep.Time.IsZero() {
		rep.Time = e.now()
	}
	e.statusMu.Lock()
	e.lastSnap = rep
	e.statusMu.Unlock()
	e.observer.SnapshotFinished(rep.Result)
}

// LastSnapshot returns the report of the most recent snapshot attempt.
func (e *Engine) LastSnapshot() SnapshotReport {
	e.statusMu.Lock()
	defer e.statusMu.Unlock()
	return e.lastSnap
}

// SnapshotHeader reads the committed snapshot header. record.ErrBadMagic
// and record.ErrVersionMismatch mean no valid snapshot is stored.
func (e *Engine) SnapshotHeader() (record.SnapshotHeader, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p := e.snapPart
	if p == nil {
		return record.SnapshotHeader{}, ErrUnbound
	}

	e.zeroScratch()
	n := int64(record.SnapshotHeaderSize)
	if p.Size() < n {
		return record.SnapshotHeader{}, record.ErrBadMagic
	}
	if _, err := p.ReadAt(e.scratch[:n], 0); err != nil && !errors.Is(err, io.EOF) {
		return record.SnapshotHeader{}, err
	}
	return record.DecodeSnapshotHeader(e.scratch[:n])
}
