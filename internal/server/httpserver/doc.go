// Package httpserver provides the HTTP/HTTPS server for apanic-server.
//
// Routes are served by the handler package; this package adds the
// middleware chain and the listener:
//
//   - Record endpoints: /apanic/status, /apanic/{segment}
//   - Snapshot endpoint: /memdump/status
//   - Debug endpoints: /debug/trigger, /debug/crash (opt-in)
//   - Health endpoints: /health, /ready, /metrics
//
// Mutating routes require the configured bearer token when one is set.
package httpserver
