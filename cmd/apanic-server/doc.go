// Package main provides the entry point for apanic-server.
//
// apanic-server binds the panic and memdump partitions, arms the capture
// engine for its own process and serves the stored crash record over HTTP
// and a local unix socket.
package main
