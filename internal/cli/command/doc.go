// Package command provides CLI command definitions for apanic-cli.
//
// Commands are built with urfave/cli/v2:
//
//   - root.go: root command, global flags, connection setup
//   - dump.go: panic record status, segment download and erase
//   - memdump.go: memory snapshot status
//   - debug.go: debug capture and crash triggers
//   - system.go: health, version, reload and shutdown
//   - profile.go: saved connection profiles
//   - shell.go: interactive mode
//
// Every command parses its flags, talks to the server through the
// connection package and renders its result with the output package.
package command
