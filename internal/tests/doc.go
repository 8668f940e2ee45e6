// Package tests holds end-to-end tests that run the engine behind its HTTP
// and local socket servers and talk to it with the CLI clients.
package tests
