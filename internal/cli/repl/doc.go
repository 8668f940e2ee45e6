// Package repl provides the interactive shell of apanic-cli.
//
// Each input line is split into arguments and handed to an Executor, which
// runs it as a regular apanic-cli command line. The shell understands a few
// builtins of its own: help, history, exit and quit.
//
//   - repl.go: the read loop and line splitting
//   - completer.go: command completion
//   - history.go: history persistence
package repl
