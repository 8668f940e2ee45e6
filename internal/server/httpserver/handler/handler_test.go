package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/yndnr/apanic-go/internal/core/apanic"
	"github.com/yndnr/apanic-go/internal/core/record"
	"github.com/yndnr/apanic-go/internal/storage/blockdev"
	"github.com/yndnr/apanic-go/internal/telemetry/logger"
)

const testConsole = "kernel: Oops at 0xdead\n"

func newTestEngine(t *testing.T) *apanic.Engine {
	t.Helper()
	log, err := logger.New(logger.Config{Output: io.Discard, Format: "text"})
	if err != nil {
		t.Fatalf("logger.New() error = %v", err)
	}
	return apanic.New(apanic.DefaultConfig(), apanic.WithLogger(log))
}

// bindRecord binds a partition holding a committed console-only record.
func bindRecord(t *testing.T, e *apanic.Engine) *blockdev.Memory {
	t.Helper()
	p := blockdev.NewMemory("kpanic", 64<<10)

	hdr := make([]byte, record.HeaderRegionSize)
	threadsOff := record.ThreadsOffsetFor(record.ConsoleOffset, int64(len(testConsole)))
	record.NewPanicHeader(record.ConsoleOffset, uint32(len(testConsole)), uint32(threadsOff), 0).Encode(hdr)
	if _, err := p.WriteAt(hdr, 0); err != nil {
		t.Fatalf("WriteAt(header) error = %v", err)
	}
	if _, err := p.WriteAt([]byte(testConsole), record.ConsoleOffset); err != nil {
		t.Fatalf("WriteAt(console) error = %v", err)
	}

	e.PartitionAdded(p)
	return p
}

func newTestHandler(t *testing.T, cfg Config) *Handler {
	t.Helper()
	if cfg.Engine == nil {
		cfg.Engine = newTestEngine(t)
	}
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(cfg)
}

func do(h http.Handler, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, data any) Response {
	t.Helper()
	resp := Response{Data: data}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func TestHealth(t *testing.T) {
	h := newTestHandler(t, Config{})

	rec := do(h, http.MethodGet, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if resp := decode(t, rec, nil); resp.Code != "OK" {
		t.Errorf("code = %q, want OK", resp.Code)
	}
}

func TestReady(t *testing.T) {
	e := newTestEngine(t)
	h := newTestHandler(t, Config{Engine: e})

	if rec := do(h, http.MethodGet, "/ready"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("unbound status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}

	bindRecord(t, e)
	if rec := do(h, http.MethodGet, "/ready"); rec.Code != http.StatusOK {
		t.Errorf("bound status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestStatus(t *testing.T) {
	e := newTestEngine(t)
	h := newTestHandler(t, Config{Engine: e})

	var empty StatusResponse
	decode(t, do(h, http.MethodGet, "/apanic/status"), &empty)
	if empty.PanicPartition != "" || len(empty.Segments) != 0 || empty.Header != nil {
		t.Errorf("unbound status = %+v", empty)
	}

	bindRecord(t, e)

	var st StatusResponse
	decode(t, do(h, http.MethodGet, "/apanic/status"), &st)
	if st.State != apanic.StateIdle {
		t.Errorf("State = %q, want idle", st.State)
	}
	if st.PanicPartition != "kpanic" {
		t.Errorf("PanicPartition = %q", st.PanicPartition)
	}
	if len(st.Segments) != 1 || st.Segments[0].Name != apanic.SegmentConsole {
		t.Fatalf("Segments = %+v, want console only", st.Segments)
	}
	if st.Segments[0].Size != int64(len(testConsole)) {
		t.Errorf("console size = %d", st.Segments[0].Size)
	}
	if st.Header == nil || st.Header.ConsoleOffset != record.ConsoleOffset {
		t.Errorf("Header = %+v", st.Header)
	}
}

func TestReadSegment_Whole(t *testing.T) {
	e := newTestEngine(t)
	bindRecord(t, e)
	h := newTestHandler(t, Config{Engine: e})

	rec := do(h, http.MethodGet, "/apanic/console")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Body.String(); got != testConsole {
		t.Errorf("body = %q, want %q", got, testConsole)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/octet-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestReadSegment_Range(t *testing.T) {
	e := newTestEngine(t)
	bindRecord(t, e)
	h := newTestHandler(t, Config{Engine: e})

	rec := do(h, http.MethodGet, "/apanic/console?offset=8&count=4")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Body.String(); got != testConsole[8:12] {
		t.Errorf("body = %q, want %q", got, testConsole[8:12])
	}
	if rec.Header().Get(HeaderEOF) != "false" {
		t.Errorf("%s = %q, want false", HeaderEOF, rec.Header().Get(HeaderEOF))
	}

	tail := len(testConsole) - 5
	rec = do(h, http.MethodGet, "/apanic/console?offset="+strconv.Itoa(tail)+"&count=5")
	if rec.Header().Get(HeaderEOF) != "true" {
		t.Errorf("%s = %q at segment end, want true", HeaderEOF, rec.Header().Get(HeaderEOF))
	}
}

func TestReadSegment_Errors(t *testing.T) {
	e := newTestEngine(t)
	bindRecord(t, e)
	h := newTestHandler(t, Config{Engine: e})

	tests := []struct {
		name   string
		target string
		status int
		code   string
	}{
		{"past end", "/apanic/console?offset=10&count=100", http.StatusRequestedRangeNotSatisfiable, CodeOutOfRange},
		{"offset overflow", "/apanic/console?offset=9223372036854775807&count=1", http.StatusRequestedRangeNotSatisfiable, CodeOutOfRange},
		{"bad offset", "/apanic/console?offset=x&count=1", http.StatusBadRequest, CodeBadRequest},
		{"negative offset", "/apanic/console?offset=-1&count=1", http.StatusBadRequest, CodeBadRequest},
		{"count too large", "/apanic/console?offset=0&count=99999999", http.StatusBadRequest, CodeBadRequest},
		{"unpublished", "/apanic/threads", http.StatusNotFound, CodeNotAvailable},
		{"unpublished range", "/apanic/threads?offset=0&count=1", http.StatusNotFound, CodeNotAvailable},
		{"unknown", "/apanic/kmsg", http.StatusNotFound, CodeNotAvailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(h, http.MethodGet, tt.target)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			if got := rec.Header().Get("X-Error-Code"); got != tt.code {
				t.Errorf("X-Error-Code = %q, want %q", got, tt.code)
			}
		})
	}
}

func TestErase(t *testing.T) {
	e := newTestEngine(t)
	bindRecord(t, e)
	h := newTestHandler(t, Config{Engine: e})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Run(ctx)

	rec := do(h, http.MethodPost, "/apanic/threads")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(e.Segments()) > 0 {
		if time.Now().After(deadline) {
			t.Fatal("segments still published after erase")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if rec := do(h, http.MethodGet, "/apanic/console"); rec.Code != http.StatusNotFound {
		t.Errorf("read after erase status = %d, want 404", rec.Code)
	}

	if rec := do(h, http.MethodPost, "/apanic/kmsg"); rec.Code != http.StatusNotFound {
		t.Errorf("unknown segment erase status = %d, want 404", rec.Code)
	}
}

func TestMemdumpStatus(t *testing.T) {
	e := newTestEngine(t)
	h := newTestHandler(t, Config{Engine: e})

	var st MemdumpStatusResponse
	decode(t, do(h, http.MethodGet, "/memdump/status"), &st)
	if st.Present || st.Partition != "" {
		t.Errorf("unbound memdump status = %+v", st)
	}

	p := blockdev.NewMemory("memdump", 16<<10)
	buf := make([]byte, record.SnapshotHeaderSize)
	record.NewSnapshotHeader(time.Unix(1700000000, 0), record.SnapshotPayloadOffset, 4096).Encode(buf)
	if _, err := p.WriteAt(buf, 0); err != nil {
		t.Fatalf("WriteAt() error = %v", err)
	}
	e.SnapshotListener().PartitionAdded(p)

	st = MemdumpStatusResponse{}
	decode(t, do(h, http.MethodGet, "/memdump/status"), &st)
	if !st.Present || st.Snapshot == nil {
		t.Fatalf("memdump status = %+v, want present", st)
	}
	if st.Snapshot.SDRAMLength != 4096 || st.Snapshot.Time.Unix() != 1700000000 {
		t.Errorf("Snapshot = %+v", st.Snapshot)
	}
}

func TestDebugRoutes_Disabled(t *testing.T) {
	h := newTestHandler(t, Config{})

	if rec := do(h, http.MethodPost, "/debug/trigger"); rec.Code != http.StatusNotFound {
		t.Errorf("trigger status = %d, want 404", rec.Code)
	}
	if rec := do(h, http.MethodPost, "/debug/crash"); rec.Code != http.StatusNotFound {
		t.Errorf("crash status = %d, want 404", rec.Code)
	}
}

func TestDebugTrigger(t *testing.T) {
	e := newTestEngine(t)
	e.PartitionAdded(blockdev.NewMemory("kpanic", 64<<10))
	h := newTestHandler(t, Config{Engine: e, EnableTrigger: true})

	var tr TriggerResponse
	rec := do(h, http.MethodPost, "/debug/trigger")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	decode(t, rec, &tr)
	if tr.Capture.State != apanic.StateCommitted {
		t.Errorf("capture state = %q, reason %q", tr.Capture.State, tr.Capture.Reason)
	}
	if tr.Capture.Event != apanic.EventTrigger.String() {
		t.Errorf("capture event = %q", tr.Capture.Event)
	}

	// A committed record is never overwritten by a later capture.
	rec = do(h, http.MethodPost, "/debug/trigger")
	tr = TriggerResponse{}
	decode(t, rec, &tr)
	if tr.Capture.State != apanic.StateAborted || !strings.Contains(tr.Capture.Reason, "in use") {
		t.Errorf("second capture = %+v, want aborted partition in use", tr.Capture)
	}
}
