// Package localserver provides the Unix socket server for local management.
//
// Clients send one command per line and receive a framed reply:
//
//	OK <length>[ eof]\n<length bytes>
//	ERR <code> <message>\n
//
// Commands:
//
//   - status: engine and snapshot status as JSON
//   - read <segment> <offset> <count>: raw segment bytes
//   - clear: schedule an erase of the panic partition
//   - trigger: run the failure path (when enabled)
//   - reload: re-read the configuration file
//   - version: build information as JSON
//   - shutdown: stop the server
//
// Access is controlled by file system permissions on the socket.
package localserver
