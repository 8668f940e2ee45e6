package command

import (
	"net/http"
	"strings"
	"testing"
)

func TestSystemCommand(t *testing.T) {
	cmd := SystemCommand()
	if cmd.Name != "system" || len(cmd.Aliases) == 0 || cmd.Aliases[0] != "sys" {
		t.Errorf("command = %q %v", cmd.Name, cmd.Aliases)
	}

	subNames := make(map[string]bool)
	for _, sub := range cmd.Subcommands {
		subNames[sub.Name] = true
		if sub.Action == nil {
			t.Errorf("%s has no action", sub.Name)
		}
	}
	for _, name := range []string{"health", "version", "reload", "shutdown"} {
		if !subNames[name] {
			t.Errorf("missing subcommand: %s", name)
		}
	}
}

func TestSystemHealth(t *testing.T) {
	server := newMockServer(t)
	server.handle("GET /health", func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusOK, map[string]string{"status": "healthy", "version": "1.4.0"})
	})

	out, _, err := runApp(t, server, "", "sys", "health")
	if err != nil {
		t.Fatalf("system health: %v", err)
	}
	if !strings.Contains(out, "Server is healthy") || !strings.Contains(out, "1.4.0") {
		t.Errorf("output:\n%s", out)
	}
}

func TestSystemVersion(t *testing.T) {
	server := newMockServer(t)
	server.handle("GET /health", func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusOK, map[string]string{"status": "healthy", "version": "1.4.0"})
	})

	out, _, err := runApp(t, server, "", "-o", "json", "system", "version")
	if err != nil {
		t.Fatalf("system version: %v", err)
	}
	if !strings.Contains(out, `"server": "1.4.0"`) || !strings.Contains(out, `"go_version"`) {
		t.Errorf("output:\n%s", out)
	}
}

func TestSystemReload_NeedsSocket(t *testing.T) {
	server := newMockServer(t)
	_, _, err := runApp(t, server, "", "system", "reload")
	if err == nil || !strings.Contains(err.Error(), "local socket") {
		t.Errorf("error = %v", err)
	}
}

func TestMemdumpStatus(t *testing.T) {
	server := newMockServer(t)
	server.handle("GET /memdump/status", func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusOK, map[string]any{
			"partition": "memdump",
			"present":   true,
			"snapshot":  map[string]any{"time": "2026-03-01T12:00:00Z", "sdram_offset": 4096, "sdram_length": 1 << 20},
		})
	})

	out, _, err := runApp(t, server, "", "memdump", "status")
	if err != nil {
		t.Fatalf("memdump status: %v", err)
	}
	for _, want := range []string{"present", "true", "snapshot.sdram_length", "1048576", "2026-03-01T12:00:00Z"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
