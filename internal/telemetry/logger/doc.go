// Package logger provides structured logging for apanic.
//
// Every record is fanned out to two sinks with slog-multi:
//
//   - the console (stderr by default), gated by a logbuf.Switch so the
//     capture path can silence it during a stack dump
//   - the console ring, in text form, which is what a crash capture
//     persists as the console segment
//
// Attributes whose key names a credential are redacted before they reach
// either sink, since ring content ends up on the panic partition.
package logger
