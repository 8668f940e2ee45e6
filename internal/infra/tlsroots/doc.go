// Package tlsroots loads the TLS material of the HTTP transport: trusted
// roots for apanic-cli and a hot-reloaded key pair for apanic-server.
package tlsroots
