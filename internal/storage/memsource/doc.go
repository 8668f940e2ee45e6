// Package memsource supplies the memory banks a full-memory snapshot is
// taken from.
//
// The default source, HeapDump, asks the runtime for a heap dump, writes it
// to a scratch file and maps that file read-only so the snapshot writer can
// stream it to the partition in one write.
package memsource
