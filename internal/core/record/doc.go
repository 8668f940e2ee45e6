// Package record defines the on-disk layout of a panic record.
//
// A panic partition starts with a fixed 24-byte header followed by two
// payload segments:
//
//	offset 0     [PanicHeader:24][zero padding up to 1024]
//	offset 1024  [console payload]
//	aligned 1024 [threads payload]
//
// Header wire format (little-endian):
//
//	[magic:4 0xdeadf00d][version:4][console_offset:4][console_length:4]
//	[threads_offset:4][threads_length:4]
//
// A memory snapshot partition starts with a 36-byte header; the payload
// begins at the first page boundary:
//
//	[magic:8 "MEM-DUMP"][version:4][ts_sec:4][ts_nsec:4]
//	[sdram_offset:4][sdram_length:4][sram_offset:4][sram_length:4]
//
// The snapshot header is written only after its payload, so its presence is
// the commit marker for the whole snapshot.
package record
