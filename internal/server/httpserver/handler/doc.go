// Package handler provides HTTP request handlers for apanic-server.
//
// Record endpoints:
//
//   - GET /apanic/status: engine state, bound partitions and segments
//   - GET /apanic/{segment}: segment bytes, whole or by offset and count
//   - POST /apanic/{segment}: schedule an erase of the panic partition
//   - GET /memdump/status: last snapshot attempt and committed header
//
// Debug endpoints are registered only when enabled:
//
//   - POST /debug/trigger: run the failure path and keep running
//   - POST /debug/crash: panic a guarded goroutine and exit
//
// JSON responses share the Response envelope. Segment reads return the raw
// bytes as application/octet-stream.
package handler
