package command

import (
	"strings"
	"testing"
)

func TestApp_Commands(t *testing.T) {
	app := App()
	if app.Name != "apanic-cli" {
		t.Errorf("Name = %q", app.Name)
	}

	names := make(map[string]bool)
	for _, cmd := range app.Commands {
		names[cmd.Name] = true
	}
	for _, want := range []string{"dump", "memdump", "debug", "system", "profile", "shell"} {
		if !names[want] {
			t.Errorf("missing command: %s", want)
		}
	}
}

func TestApp_GlobalFlags(t *testing.T) {
	flagNames := make(map[string]bool)
	for _, f := range globalFlags() {
		for _, n := range f.Names() {
			flagNames[n] = true
		}
	}
	for _, want := range []string{"config", "profile", "p", "server", "s", "token", "socket", "insecure", "timeout", "output", "o", "wide", "verbose"} {
		if !flagNames[want] {
			t.Errorf("missing global flag: %s", want)
		}
	}
}

func TestApp_RejectsUnknownOutput(t *testing.T) {
	server := newMockServer(t)
	_, _, err := runApp(t, server, "", "--output", "xml", "dump", "status")
	if err == nil || !strings.Contains(err.Error(), "xml") {
		t.Errorf("error = %v, want unknown format", err)
	}
}

func TestApp_MissingSocket(t *testing.T) {
	_, _, err := runApp(t, nil, "", "--socket", t.TempDir()+"/none.sock", "dump", "status")
	if err == nil {
		t.Error("expected connect error")
	}
}
