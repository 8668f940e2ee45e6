// Package apanic is the crash capture engine.
//
// An Engine is bound to a panic partition (and optionally a snapshot
// partition) through partition.Listener events. When a fatal failure is
// reported through Notify, the engine writes the console log and the
// goroutine stacks to the panic partition in page-sized chunks and commits
// the record by writing its header last. The committed record is published
// as two read-only segments, "console" and "threads", until it is erased.
//
// Every path that touches the scratch buffer, the in-memory header or the
// published segments holds the engine mutex. The failure path additionally
// passes an atomic guard first so a failure raised during a capture returns
// immediately instead of blocking on the mutex.
package apanic
