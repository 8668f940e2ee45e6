package connection

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

// fakeSocket serves the local protocol from a fixed console payload.
func fakeSocket(t *testing.T, console []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "apanic.sock")
	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go serveFake(conn, console)
		}
	}()
	return path
}

func serveFake(conn net.Conn, console []byte) {
	defer conn.Close()
	ok := func(body string, eof bool) {
		h := "OK " + strconv.Itoa(len(body))
		if eof {
			h += " eof"
		}
		io.WriteString(conn, h+"\n"+body)
	}

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		f := strings.Fields(scanner.Text())
		switch f[0] {
		case "status":
			ok(`{"state":"idle","segments":{"threads":80,"console":`+strconv.Itoa(len(console))+`}}`, false)
		case "version":
			ok(`{"version":"9.9.9"}`, false)
		case "read":
			off, _ := strconv.Atoi(f[2])
			count, _ := strconv.Atoi(f[3])
			if off > len(console) {
				io.WriteString(conn, "ERR out_of_range offset past end\n")
				continue
			}
			end := min(off+count, len(console))
			ok(string(console[off:end]), end == len(console))
		case "trigger":
			io.WriteString(conn, "ERR disabled trigger is disabled\n")
		default:
			ok("", false)
		}
	}
}

func TestSocketClient_Connect_NonexistentSocket(t *testing.T) {
	client := NewSocketClient(filepath.Join(t.TempDir(), "missing.sock"))
	if err := client.Connect(); err == nil {
		t.Error("Connect to nonexistent socket should fail")
	}
	if err := client.Close(); err != nil {
		t.Errorf("Close without connection should not error: %v", err)
	}
}

func TestSocketClient_Status(t *testing.T) {
	client := NewSocketClient(fakeSocket(t, []byte("boom\n")))
	defer client.Close()

	st, err := client.Status(context.Background())
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if st.State != "idle" || len(st.Segments) != 2 {
		t.Fatalf("Status() = %+v", st)
	}
	if st.Segments[0].Name != "console" || st.Segments[0].Size != 5 {
		t.Errorf("segments not sorted by name: %+v", st.Segments)
	}

	v, err := client.Version(context.Background())
	if err != nil || v != "9.9.9" {
		t.Errorf("Version() = %q, %v", v, err)
	}
}

func TestSocketClient_ReplyError(t *testing.T) {
	client := NewSocketClient(fakeSocket(t, nil))
	defer client.Close()

	_, err := client.Trigger(context.Background())
	var replyErr *Error
	if !errors.As(err, &replyErr) {
		t.Fatalf("Trigger() error = %v, want *Error", err)
	}
	if replyErr.Code != "disabled" || replyErr.Message != "trigger is disabled" {
		t.Errorf("reply error = %+v", replyErr)
	}

	if err := client.Clear(context.Background()); err != nil {
		t.Errorf("connection unusable after ERR reply: %v", err)
	}
}

func TestSegmentReader_Socket(t *testing.T) {
	console := bytes.Repeat([]byte("0123456789abcdef"), ChunkSize/16+10)
	client := NewSocketClient(fakeSocket(t, console))
	defer client.Close()

	got, err := io.ReadAll(SegmentReader(context.Background(), client, "console", 0))
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if !bytes.Equal(got, console) {
		t.Errorf("read %d bytes, want %d", len(got), len(console))
	}

	tail, err := io.ReadAll(SegmentReader(context.Background(), client, "console", int64(len(console)-3)))
	if err != nil || string(tail) != "def" {
		t.Errorf("tail = %q, %v", tail, err)
	}

	_, _, err = client.ReadAt(context.Background(), "console", make([]byte, 4), int64(len(console)+1))
	if !errors.Is(err, ErrOutOfRange) {
		t.Errorf("ReadAt() error = %v, want ErrOutOfRange", err)
	}
}

func TestReadReply_Malformed(t *testing.T) {
	for _, in := range []string{"\n", "OK\n", "OK -1\n", "HELLO\n", "OK 10\nshort"} {
		if _, _, err := readReply(bufio.NewReader(strings.NewReader(in))); err == nil {
			t.Errorf("readReply(%q) should fail", in)
		}
	}
}

func TestSegmentReader_Unpublished(t *testing.T) {
	client := NewSocketClient(fakeSocket(t, []byte("console")))
	defer client.Close()

	_, err := io.ReadAll(SegmentReader(context.Background(), client, "missing", 0))
	if !errors.Is(err, ErrNotAvailable) {
		t.Errorf("ReadAll() error = %v, want ErrNotAvailable", err)
	}

	_, err = io.ReadAll(SegmentReader(context.Background(), client, "console", 99))
	if !errors.Is(err, ErrOutOfRange) {
		t.Errorf("ReadAll() error = %v, want ErrOutOfRange", err)
	}
}
