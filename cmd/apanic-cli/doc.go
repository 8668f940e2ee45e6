// Package main provides the entry point for apanic-cli.
//
// apanic-cli reads, saves and erases the crash record held by an
// apanic-server, over HTTP or the server's local socket.
package main
