// Package connection provides the transports apanic-cli uses to reach a
// running apanic-server:
//
//   - http.go: HTTP/HTTPS client for the management API
//   - socket.go: client for the framed local socket protocol
//   - manager.go: transport selection and the shared Client interface
//
// Both transports expose the same segment operations, so commands work
// the same whether they run on the device or remotely.
package connection
