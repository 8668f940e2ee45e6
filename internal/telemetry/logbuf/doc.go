// Package logbuf holds the in-process console log.
//
// Ring is a bounded byte ring that every log line is fanned into. The panic
// engine fixes a window with Extent when it captures the console, drains
// that window with ReadAt, and clears the ring before dumping goroutine
// stacks through it.
//
// Switch gates the interactive console handler so the engine can silence
// the console while it pushes a large stack dump through the ring.
package logbuf
