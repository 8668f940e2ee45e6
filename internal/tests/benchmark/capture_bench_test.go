package benchmark

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"testing"

	"github.com/yndnr/apanic-go/internal/core/apanic"
	"github.com/yndnr/apanic-go/internal/core/record"
	"github.com/yndnr/apanic-go/internal/storage/blockdev"
	"github.com/yndnr/apanic-go/internal/storage/memsource"
	"github.com/yndnr/apanic-go/internal/telemetry/logbuf"
)

// RingSizes are the console log sizes captured per run.
var RingSizes = []int{16 << 10, 128 << 10, 1 << 20}

type tasks []byte

func (t tasks) DumpTasks(w io.Writer) error {
	_, err := w.Write(t)
	return err
}

func fillRing(ring *logbuf.Ring) {
	line := []byte("level=ERROR msg=\"worker stalled\" worker=3 queue=ingest\n")
	for ring.Len() < ring.Cap() {
		ring.Write(line)
	}
}

func newEngine(ring *logbuf.Ring, p blockdev.Partition) *apanic.Engine {
	e := apanic.New(apanic.DefaultConfig(),
		apanic.WithLogSource(ring),
		apanic.WithTaskDumper(tasks(bytes.Repeat([]byte("goroutine 7 [chan receive]:\n"), 256))),
	)
	e.PartitionAdded(p)
	return e
}

// BenchmarkCapture measures a full capture onto a RAM partition, erasing
// between iterations.
func BenchmarkCapture(b *testing.B) {
	for _, size := range RingSizes {
		b.Run(fmt.Sprintf("ring=%dKiB", size>>10), func(b *testing.B) {
			ring := logbuf.NewRing(size)
			p := blockdev.NewMemory("kpanic", int64(size)+(64<<10))
			e := newEngine(ring, p)
			ctx := context.Background()

			b.SetBytes(int64(size))
			b.ReportAllocs()
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				b.StopTimer()
				fillRing(ring)
				b.StartTimer()

				rep, _ := e.Trigger()
				if rep.State != apanic.StateCommitted {
					b.Fatalf("capture %s: %s", rep.State, rep.Reason)
				}

				b.StopTimer()
				if err := e.EraseNow(ctx); err != nil {
					b.Fatalf("erase: %v", err)
				}
				b.StartTimer()
			}
		})
	}
}

// BenchmarkCaptureFile measures a capture onto a file-backed partition with
// synchronous writes.
func BenchmarkCaptureFile(b *testing.B) {
	const size = 128 << 10

	p, err := blockdev.Create("kpanic", filepath.Join(b.TempDir(), "kpanic.img"), size+(64<<10), blockdev.Options{Sync: true})
	if err != nil {
		b.Fatalf("create: %v", err)
	}
	defer p.Close()

	ring := logbuf.NewRing(size)
	e := newEngine(ring, p)
	ctx := context.Background()

	b.SetBytes(size)
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		b.StopTimer()
		fillRing(ring)
		b.StartTimer()

		if rep, _ := e.Trigger(); rep.State != apanic.StateCommitted {
			b.Fatalf("capture %s: %s", rep.State, rep.Reason)
		}

		b.StopTimer()
		if err := e.EraseNow(ctx); err != nil {
			b.Fatalf("erase: %v", err)
		}
		b.StartTimer()
	}
}

// BenchmarkReadSegment measures sequential retrieval of a captured console.
func BenchmarkReadSegment(b *testing.B) {
	const size = 1 << 20

	ring := logbuf.NewRing(size)
	fillRing(ring)
	e := newEngine(ring, blockdev.NewMemory("kpanic", size+(64<<10)))
	rep, _ := e.Trigger()
	if rep.State != apanic.StateCommitted {
		b.Fatalf("capture %s: %s", rep.State, rep.Reason)
	}

	buf := make([]byte, 64<<10)
	b.SetBytes(rep.ConsoleLength)
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		var off int64
		for {
			n, eof, err := e.ReadSegment("console", buf, off)
			if err != nil {
				b.Fatalf("read: %v", err)
			}
			off += int64(n)
			if eof {
				break
			}
		}
	}
}

// BenchmarkSnapshot measures a memory snapshot of an 8 MiB bank.
func BenchmarkSnapshot(b *testing.B) {
	const bank = 8 << 20

	e := apanic.New(apanic.DefaultConfig(),
		apanic.WithMemorySource(memsource.Static{{Name: "sdram", Data: make([]byte, bank)}}),
	)
	e.SnapshotListener().PartitionAdded(blockdev.NewMemory("memdump", bank+record.SnapshotPayloadOffset))

	b.SetBytes(bank)
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		e.Trigger()
		if rep := e.LastSnapshot(); rep.Result != apanic.SnapshotWritten {
			b.Fatalf("snapshot %s: %s", rep.Result, rep.Reason)
		}
	}
}
