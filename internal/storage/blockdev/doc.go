// Package blockdev provides raw partition access for the panic engine.
//
// A Partition is the storage collaborator handed to the engine when a
// partition appears: a named region with probe, read and write operations.
// Implementations:
//
//   - File: a block device node (or a regular file standing in for one),
//     written synchronously with O_SYNC or an fsync after every write
//   - Memory: a RAM-backed region for development mode and tests
//
// All offsets are absolute byte offsets into the partition. Accesses that
// cross the end of the partition fail with ErrOutOfRange instead of growing
// the backing file.
package blockdev
