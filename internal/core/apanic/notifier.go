package apanic

import (
	"errors"
	"fmt"
	"runtime/debug"
)

var ErrDebugCrash = errors.New("apanic: debug crash requested")

// Catch reports a panic unwinding the calling goroutine and then resumes
// it, so the process still dies. Use it as the first deferred call of a
// goroutine:
//
//	defer engine.Catch()
func (e *Engine) Catch() {
	r := recover()
	if r == nil {
		return
	}
	e.logger.Error("fatal panic", "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
	ev := EventPanic
	if err, ok := r.(error); ok && errors.Is(err, ErrDebugCrash) {
		ev = EventCrash
	}
	e.Notify(ev)
	panic(r)
}

// Guard runs fn with Catch armed.
func (e *Engine) Guard(fn func()) {
	defer e.Catch()
	fn()
}

// Go runs fn on a new goroutine with Catch armed.
func (e *Engine) Go(fn func()) {
	go e.Guard(fn)
}

// Crash panics a guarded goroutine. The capture runs and the process then
// exits with the panic.
func (e *Engine) Crash() {
	e.logger.Warn("debug crash requested")
	e.Go(func() {
		panic(ErrDebugCrash)
	})
}
