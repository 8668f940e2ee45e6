package command

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
)

// mockServer creates a test HTTP server with custom handlers.
type mockServer struct {
	*httptest.Server
	handlers map[string]http.HandlerFunc
}

// newMockServer creates a new mock server.
func newMockServer(t *testing.T) *mockServer {
	m := &mockServer{
		handlers: make(map[string]http.HandlerFunc),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handler, ok := m.handlers[r.Method+" "+r.URL.Path]; ok {
			handler(w, r)
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(m.Close)
	return m
}

// handle registers a handler for "METHOD /path".
func (m *mockServer) handle(pattern string, handler http.HandlerFunc) {
	m.handlers[pattern] = handler
}

// jsonResponse writes a success envelope around data.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"code":    "OK",
		"message": "Success",
		"data":    data,
	})
}

// errorResponse writes an error envelope.
func errorResponse(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"code":    code,
		"message": message,
	})
}

// runApp runs the CLI against server with the given arguments and returns
// what it wrote to stdout and stderr. A fresh profile file is used unless
// args select one.
func runApp(t *testing.T, server *mockServer, stdin string, args ...string) (string, string, error) {
	t.Helper()
	return runAppWithConfig(t, filepath.Join(t.TempDir(), "cli.yaml"), server, stdin, args...)
}

func runAppWithConfig(t *testing.T, cfgPath string, server *mockServer, stdin string, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	app := App()
	app.Writer = &stdout
	app.ErrWriter = &stderr
	app.Reader = strings.NewReader(stdin)

	full := []string{"apanic-cli", "--config", cfgPath}
	if server != nil {
		full = append(full, "--server", server.URL)
	}
	full = append(full, args...)

	err := app.RunContext(context.Background(), full)
	return stdout.String(), stderr.String(), err
}

func sampleStatus() map[string]any {
	return map[string]any{
		"state":           "committed",
		"panic_partition": "kpanic",
		"segments": []map[string]any{
			{"name": "console", "size": 12, "offset": 1024},
			{"name": "threads", "size": 8, "offset": 2048},
		},
		"last_capture": map[string]any{
			"id":             "01hxcapture",
			"event":          "panic",
			"state":          "committed",
			"console_length": 12,
			"threads_length": 8,
		},
	}
}
