package diag

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"runtime/debug"
	"runtime/pprof"
	"time"

	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
)

var processStart = time.Now()

// Banner is the context line logged right before a capture starts.
type Banner struct {
	Time   time.Time
	Uptime time.Duration
	// HostUptime is false when the host uptime could not be read and Uptime
	// is the process uptime instead.
	HostUptime bool
}

// NewBanner stamps now with the host uptime.
func NewBanner(ctx context.Context, now time.Time) Banner {
	b := Banner{Time: now.UTC()}
	secs, err := host.UptimeWithContext(ctx)
	if err != nil {
		b.Uptime = now.Sub(processStart)
		return b
	}
	b.Uptime = time.Duration(secs) * time.Second
	b.HostUptime = true
	return b
}

// Attrs returns the banner as slog key/value pairs.
func (b Banner) Attrs() []any {
	return []any{
		"utc", b.Time.Format("2006-01-02 15:04:05.000000000"),
		"uptime", b.Uptime.String(),
		"host_uptime", b.HostUptime,
	}
}

func (b Banner) String() string {
	return fmt.Sprintf("%s UTC (uptime %s)", b.Time.Format("2006-01-02 15:04:05.000000000"), b.Uptime)
}

// Stacks dumps every goroutine stack.
type Stacks struct{}

// DumpTasks writes all goroutine stacks to w in the panic traceback format.
func (Stacks) DumpTasks(w io.Writer) error {
	p := pprof.Lookup("goroutine")
	if p == nil {
		buf := make([]byte, 1<<20)
		_, err := w.Write(buf[:runtime.Stack(buf, true)])
		return err
	}
	return p.WriteTo(w, 2)
}

// Harden makes fatal runtime errors print every goroutine and turns memory
// faults on the calling goroutine into recoverable panics.
func Harden() {
	debug.SetTraceback("all")
	debug.SetPanicOnFault(true)
}

// HostMemory reports total and available physical memory in bytes.
func HostMemory(ctx context.Context) (total, available uint64, err error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("diag: virtual memory: %w", err)
	}
	return vm.Total, vm.Available, nil
}
