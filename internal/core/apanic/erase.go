package apanic

import (
	"context"
	"fmt"

	"github.com/yndnr/apanic-go/internal/core/record"
)

// RequestErase schedules an erase of the panic partition. It never blocks
// and performs no I/O; a request that is already pending absorbs it.
func (e *Engine) RequestErase() {
	select {
	case e.erase <- struct{}{}:
		e.logger.Debug("erase scheduled")
	default:
		e.logger.Debug("erase already pending")
	}
}

// Run is the erase worker. It blocks until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-e.erase:
			_ = e.EraseNow(ctx)
		}
	}
}

// EraseNow zero-fills the bound panic partition, resets the in-memory
// header and retracts both segments. The header and segments are reset even
// when zeroing fails. Once started the erase is not interrupted by ctx.
//
// The engine mutex is held for the whole wipe, rate-limit waits included, so
// a capture raised meanwhile gives up after CaptureLockTimeout.
func (e *Engine) EraseNow(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var err error
	if p := e.panicPart; p != nil {
		err = e.zeroFillLocked(context.WithoutCancel(ctx))
		if err != nil {
			e.logger.Error("erase failed", "partition", p.Name(), "error", err)
		} else {
			e.logger.Info("panic partition erased", "partition", p.Name(), "size", p.Size())
		}
	}

	e.header = record.PanicHeader{}
	e.retractLocked()
	e.observer.EraseFinished(err)
	return err
}

func (e *Engine) zeroFillLocked(ctx context.Context) error {
	p := e.panicPart
	size := p.Size()

	e.zeroScratch()
	for off := int64(0); off < size; off += int64(len(e.scratch)) {
		n := min(int64(len(e.scratch)), size-off)
		if e.limiter != nil {
			if err := e.limiter.WaitN(ctx, int(min(n, int64(e.limiter.Burst())))); err != nil {
				return fmt.Errorf("apanic: erase rate limit: %w", err)
			}
		}
		if _, err := p.WriteAt(e.scratch[:n], off); err != nil {
			return fmt.Errorf("apanic: erase %s at %d: %w", p.Name(), off, err)
		}
	}
	return nil
}
