// Package diag collects process diagnostics for crash capture: the
// timestamp banner written ahead of a capture, goroutine stack dumps, and
// host facts reported by status endpoints.
package diag
