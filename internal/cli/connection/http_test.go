package connection

import (
	"bytes"
	"context"
	"encoding/pem"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func TestNewHTTPClient(t *testing.T) {
	tests := []struct {
		name       string
		server     string
		wantPrefix string
	}{
		{"with http prefix", "http://localhost:5080", "http://localhost:5080"},
		{"with https prefix", "https://localhost:5080", "https://localhost:5080"},
		{"without prefix", "localhost:5080", "http://localhost:5080"},
		{"trailing slash", "http://device.lan/", "http://device.lan"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewHTTPClient(tt.server, "")
			if client.BaseURL() != tt.wantPrefix {
				t.Errorf("BaseURL() = %q, want %q", client.BaseURL(), tt.wantPrefix)
			}
		})
	}
}

func TestHTTPClient_Headers(t *testing.T) {
	var gotAuth, gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte(`{"code":"OK","data":{"status":"healthy","version":"1.2.3"}}`))
	}))
	defer server.Close()

	v, err := NewHTTPClient(server.URL, "s3cret").Version(context.Background())
	if err != nil {
		t.Fatalf("Version() error = %v", err)
	}
	if v != "1.2.3" {
		t.Errorf("Version() = %q", v)
	}
	if gotAuth != "Bearer s3cret" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if !strings.HasPrefix(gotUA, "apanic-cli/") {
		t.Errorf("User-Agent = %q", gotUA)
	}

	NewHTTPClient(server.URL, "").Version(context.Background())
	if gotAuth != "" {
		t.Errorf("Authorization should be empty without a token, got %q", gotAuth)
	}
}

func TestHTTPClient_Status(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/apanic/status" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`{"code":"OK","data":{"state":"idle","panic_partition":"kpanic",
			"segments":[{"name":"console","size":2248,"offset":1024}]}}`))
	}))
	defer server.Close()

	st, err := NewHTTPClient(server.URL, "").Status(context.Background())
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	seg, ok := st.Segment("console")
	if st.PanicPartition != "kpanic" || !ok || seg.Size != 2248 || seg.Offset != 1024 {
		t.Errorf("Status() = %+v", st)
	}
	if _, ok := st.Segment("threads"); ok {
		t.Error("threads should not be published")
	}
}

func TestHTTPClient_ReadAt(t *testing.T) {
	payload := []byte("console line one\nconsole line two\n")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("offset") == "100" {
			w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
			return
		}
		if r.URL.Path != "/apanic/console" || q.Get("offset") != "17" || q.Get("count") != "64" {
			t.Errorf("request = %s", r.URL)
		}
		w.Header().Set(HeaderEOF, "true")
		w.Write(payload[17:])
	}))
	defer server.Close()

	c := NewHTTPClient(server.URL, "")
	buf := make([]byte, 64)
	n, eof, err := c.ReadAt(context.Background(), "console", buf, 17)
	if err != nil {
		t.Fatalf("ReadAt() error = %v", err)
	}
	if !eof || string(buf[:n]) != "console line two\n" {
		t.Errorf("ReadAt() = %q eof=%v", buf[:n], eof)
	}

	_, _, err = c.ReadAt(context.Background(), "console", buf, 100)
	if !errors.Is(err, ErrOutOfRange) {
		t.Errorf("ReadAt() past end error = %v, want ErrOutOfRange", err)
	}
}

func TestHTTPClient_ClearAndTrigger(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %q, want POST", r.Method)
		}
		paths = append(paths, r.URL.Path)
		switch r.URL.Path {
		case "/apanic/console":
			w.WriteHeader(http.StatusAccepted)
			w.Write([]byte(`{"code":"OK","data":{"scheduled":true,"segment":"console"}}`))
		case "/debug/trigger":
			w.WriteHeader(http.StatusConflict)
			w.Write([]byte(`{"code":"AP-DBG-4090","message":"capture already in progress"}`))
		}
	}))
	defer server.Close()

	c := NewHTTPClient(server.URL, "")
	if err := c.Clear(context.Background()); err != nil {
		t.Errorf("Clear() error = %v", err)
	}

	_, err := c.Trigger(context.Background())
	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.Code != "AP-DBG-4090" {
		t.Errorf("Trigger() error = %v", err)
	}
	if strings.Join(paths, ",") != "/apanic/console,/debug/trigger" {
		t.Errorf("paths = %v", paths)
	}
}

func TestHTTPClient_Download(t *testing.T) {
	payload := bytes.Repeat([]byte("t"), 4096)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/apanic/threads" {
			w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
		}
		w.Write(payload)
	}))
	defer server.Close()

	tests := []struct {
		segment  string
		wantSize int64
	}{
		{"threads", int64(len(payload))},
		// No Content-Length above the net/http buffer size means chunked.
		{"console", -1},
	}

	for _, tt := range tests {
		t.Run(tt.segment, func(t *testing.T) {
			body, size, err := NewHTTPClient(server.URL, "").Download(context.Background(), tt.segment)
			if err != nil {
				t.Fatalf("Download() error = %v", err)
			}
			defer body.Close()

			got, _ := io.ReadAll(body)
			if size != tt.wantSize {
				t.Errorf("size = %d, want %d", size, tt.wantSize)
			}
			if !bytes.Equal(got, payload) {
				t.Errorf("len = %d, want %d", len(got), len(payload))
			}
		})
	}
}

func TestParseResponse_Error(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantErrMsg string
	}{
		{
			name:       "with error envelope",
			status:     404,
			body:       `{"code":"AP-SEG-4040","message":"segment not published"}`,
			wantErrMsg: "[AP-SEG-4040] segment not published",
		},
		{
			name:       "without envelope",
			status:     500,
			body:       `not json`,
			wantErrMsg: "status 500",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			resp, err := http.Get(server.URL)
			if err != nil {
				t.Fatal(err)
			}
			err = ParseResponse(resp, nil)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErrMsg) {
				t.Errorf("error = %q, want to contain %q", err.Error(), tt.wantErrMsg)
			}
		})
	}
}

func TestParseResponse_NilTarget(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"OK","data":"ignored"}`))
	}))
	defer server.Close()

	resp, err := http.Get(server.URL)
	if err != nil {
		t.Fatal(err)
	}
	if err := ParseResponse(resp, nil); err != nil {
		t.Errorf("ParseResponse with nil target should not error: %v", err)
	}
}

func TestHTTPClient_CustomRoots(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"OK","data":{"status":"healthy","version":"tls"}}`))
	}))
	defer server.Close()

	caFile := filepath.Join(t.TempDir(), "ca.pem")
	caPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: server.Certificate().Raw})
	if err := os.WriteFile(caFile, caPEM, 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := NewHTTPClient(server.URL, "").Version(context.Background()); err == nil {
		t.Error("untrusted server certificate should be rejected")
	}

	m := NewManager()
	if err := m.Connect(&Connection{Server: server.URL, CACert: caFile}); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer m.Disconnect()

	hc, err := m.HTTP()
	if err != nil {
		t.Fatal(err)
	}
	if v, err := hc.Version(context.Background()); err != nil || v != "tls" {
		t.Errorf("Version() = %q, %v", v, err)
	}

	insecure := NewHTTPClient(server.URL, "", WithInsecureSkipVerify())
	if _, err := insecure.Version(context.Background()); err != nil {
		t.Errorf("insecure client error = %v", err)
	}
}
