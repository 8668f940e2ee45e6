package logbuf

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// Switch turns gated console handlers on and off. The zero value is
// enabled.
type Switch struct {
	disabled atomic.Bool
}

// NewSwitch returns an enabled switch.
func NewSwitch() *Switch {
	return &Switch{}
}

// DisableConsoles stops every handler gated by s.
func (s *Switch) DisableConsoles() { s.disabled.Store(true) }

// EnableConsoles resumes every handler gated by s.
func (s *Switch) EnableConsoles() { s.disabled.Store(false) }

// Open reports whether gated handlers forward records.
func (s *Switch) Open() bool { return !s.disabled.Load() }

// Gate wraps h so it only forwards records while s is open.
func (s *Switch) Gate(h slog.Handler) slog.Handler {
	return &gate{inner: h, sw: s}
}

var _ slog.Handler = (*gate)(nil)

type gate struct {
	inner slog.Handler
	sw    *Switch
}

func (g *gate) Enabled(ctx context.Context, level slog.Level) bool {
	return g.sw.Open() && g.inner.Enabled(ctx, level)
}

func (g *gate) Handle(ctx context.Context, r slog.Record) error {
	if !g.sw.Open() {
		return nil
	}
	return g.inner.Handle(ctx, r)
}

func (g *gate) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &gate{inner: g.inner.WithAttrs(attrs), sw: g.sw}
}

func (g *gate) WithGroup(name string) slog.Handler {
	return &gate{inner: g.inner.WithGroup(name), sw: g.sw}
}
