package repl

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestHistory_AddGet(t *testing.T) {
	h := NewHistory("")
	h.Add("cmd1")
	h.Add("cmd2")
	h.Add("cmd2")
	h.Add("cmd3")

	if got := h.Entries(); !reflect.DeepEqual(got, []string{"cmd1", "cmd2", "cmd3"}) {
		t.Errorf("entries = %v", got)
	}
	if h.Get(0) != "cmd3" || h.Get(2) != "cmd1" {
		t.Errorf("Get(0)=%q Get(2)=%q", h.Get(0), h.Get(2))
	}
	if h.Get(3) != "" || h.Get(-1) != "" {
		t.Error("out of range Get should return empty")
	}
}

func TestHistory_Add_MaxSize(t *testing.T) {
	h := NewHistory("")
	h.maxSize = 3

	for _, cmd := range []string{"cmd1", "cmd2", "cmd3", "cmd4"} {
		h.Add(cmd)
	}
	if got := h.Entries(); !reflect.DeepEqual(got, []string{"cmd2", "cmd3", "cmd4"}) {
		t.Errorf("entries = %v", got)
	}
}

func TestHistory_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "history")

	h := NewHistory(path)
	h.Add("dump status")
	h.Add("dump show console")
	if err := h.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	st, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if st.Mode().Perm() != 0600 {
		t.Errorf("mode = %v, want 0600", st.Mode().Perm())
	}

	loaded := NewHistory(path)
	loaded.maxSize = 1
	if err := loaded.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := loaded.Entries(); !reflect.DeepEqual(got, []string{"dump show console"}) {
		t.Errorf("entries = %v", got)
	}
}

func TestHistory_LoadMissingAndMemoryOnly(t *testing.T) {
	h := NewHistory(filepath.Join(t.TempDir(), "none"))
	if err := h.Load(); err != nil {
		t.Errorf("Load of missing file: %v", err)
	}

	mem := NewHistory("")
	mem.Add("x")
	if err := mem.Save(); err != nil {
		t.Errorf("Save without file: %v", err)
	}
	if err := mem.Load(); err != nil {
		t.Errorf("Load without file: %v", err)
	}
}

func TestDefaultHistoryPath(t *testing.T) {
	if p := DefaultHistoryPath(); p != "" && filepath.Base(p) != "history" {
		t.Errorf("DefaultHistoryPath() = %q", p)
	}
}
