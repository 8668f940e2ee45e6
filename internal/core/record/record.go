package record

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"
)

// Layout constants shared by the writer, the binder and the readers.
const (
	SectorSize = 512
	PageSize   = 4096

	// HeaderRegionSize is the span reserved for the panic header. The whole
	// region is rewritten on commit.
	HeaderRegionSize = 1024

	// ConsoleOffset is where the console payload always starts.
	ConsoleOffset = HeaderRegionSize

	// ThreadsAlign is the alignment of the threads payload.
	ThreadsAlign = 1024
)

const (
	PanicMagic   uint32 = 0xdeadf00d
	PanicVersion uint32 = 1

	PanicHeaderSize = 24
)

const (
	SnapshotMagic            = "MEM-DUMP"
	SnapshotMagicSize        = 8
	SnapshotVersion   uint32 = 1

	SnapshotHeaderSize = 36

	// SnapshotPayloadOffset is the first page boundary after the header.
	SnapshotPayloadOffset = PageSize
)

var (
	ErrBadMagic        = errors.New("record: bad magic")
	ErrVersionMismatch = errors.New("record: version mismatch")
	ErrCorruptRange    = errors.New("record: segment range out of bounds")
)

// PanicHeader is the committed header of a panic record.
type PanicHeader struct {
	Magic         uint32
	Version       uint32
	ConsoleOffset uint32
	ConsoleLength uint32
	ThreadsOffset uint32
	ThreadsLength uint32
}

// NewPanicHeader returns a header stamped with the current magic and version.
func NewPanicHeader(consoleOffset, consoleLength, threadsOffset, threadsLength uint32) PanicHeader {
	return PanicHeader{
		Magic:         PanicMagic,
		Version:       PanicVersion,
		ConsoleOffset: consoleOffset,
		ConsoleLength: consoleLength,
		ThreadsOffset: threadsOffset,
		ThreadsLength: threadsLength,
	}
}

// IsZero reports whether no record is held.
func (h PanicHeader) IsZero() bool {
	return h == PanicHeader{}
}

// Encode writes the header into buf, which must hold PanicHeaderSize bytes.
// Bytes past the header are left untouched.
func (h PanicHeader) Encode(buf []byte) {
	_ = buf[PanicHeaderSize-1]
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	binary.LittleEndian.PutUint32(buf[4:8], h.Version)
	binary.LittleEndian.PutUint32(buf[8:12], h.ConsoleOffset)
	binary.LittleEndian.PutUint32(buf[12:16], h.ConsoleLength)
	binary.LittleEndian.PutUint32(buf[16:20], h.ThreadsOffset)
	binary.LittleEndian.PutUint32(buf[20:24], h.ThreadsLength)
}

// DecodePanicHeader parses buf. Magic and version must match exactly;
// anything else is reported as an error and must be treated as no record.
func DecodePanicHeader(buf []byte) (PanicHeader, error) {
	if len(buf) < PanicHeaderSize {
		return PanicHeader{}, io.ErrUnexpectedEOF
	}

	h := PanicHeader{
		Magic:         binary.LittleEndian.Uint32(buf[0:4]),
		Version:       binary.LittleEndian.Uint32(buf[4:8]),
		ConsoleOffset: binary.LittleEndian.Uint32(buf[8:12]),
		ConsoleLength: binary.LittleEndian.Uint32(buf[12:16]),
		ThreadsOffset: binary.LittleEndian.Uint32(buf[16:20]),
		ThreadsLength: binary.LittleEndian.Uint32(buf[20:24]),
	}
	if h.Magic != PanicMagic {
		return PanicHeader{}, ErrBadMagic
	}
	if h.Version != PanicVersion {
		return PanicHeader{}, fmt.Errorf("%w: %d != %d", ErrVersionMismatch, h.Version, PanicVersion)
	}
	return h, nil
}

// Validate checks that both segments lie inside a partition of the given
// size, that the console ends at or before ThreadsOffset, and that threads
// start on a ThreadsAlign boundary. The ordering and alignment checks apply
// even when ThreadsLength is zero. A size of zero skips the bounds check.
func (h PanicHeader) Validate(partitionSize int64) error {
	consoleEnd := uint64(h.ConsoleOffset) + uint64(h.ConsoleLength)
	threadsEnd := uint64(h.ThreadsOffset) + uint64(h.ThreadsLength)

	if h.ConsoleLength > 0 && h.ConsoleOffset < HeaderRegionSize {
		return fmt.Errorf("%w: console offset %d inside header region", ErrCorruptRange, h.ConsoleOffset)
	}
	if consoleEnd > uint64(h.ThreadsOffset) {
		return fmt.Errorf("%w: console [%d,%d) overlaps threads at %d",
			ErrCorruptRange, h.ConsoleOffset, consoleEnd, h.ThreadsOffset)
	}
	if h.ThreadsOffset%ThreadsAlign != 0 {
		return fmt.Errorf("%w: threads offset %d not %d-byte aligned",
			ErrCorruptRange, h.ThreadsOffset, ThreadsAlign)
	}
	if partitionSize > 0 {
		if consoleEnd > uint64(partitionSize) || threadsEnd > uint64(partitionSize) {
			return fmt.Errorf("%w: record ends past partition size %d", ErrCorruptRange, partitionSize)
		}
	}
	return nil
}

// AlignUp rounds n up to a multiple of align, which must be a power of two.
func AlignUp(n, align int64) int64 {
	return (n + align - 1) &^ (align - 1)
}

// ThreadsOffsetFor returns where the threads payload starts given the
// console range actually captured.
func ThreadsOffsetFor(consoleOffset, consoleLength int64) int64 {
	off := AlignUp(consoleOffset+consoleLength, ThreadsAlign)
	if off == 0 {
		return ThreadsAlign
	}
	return off
}

// SnapshotHeader is the commit marker of a memory snapshot.
type SnapshotHeader struct {
	Magic       [SnapshotMagicSize]byte
	Version     uint32
	TimeSec     uint32
	TimeNsec    uint32
	SDRAMOffset uint32
	SDRAMLength uint32
	SRAMOffset  uint32
	SRAMLength  uint32
}

// NewSnapshotHeader describes a committed SDRAM payload captured at ts.
func NewSnapshotHeader(ts time.Time, sdramOffset, sdramLength uint32) SnapshotHeader {
	h := SnapshotHeader{
		Version:     SnapshotVersion,
		TimeSec:     uint32(ts.Unix()),
		TimeNsec:    uint32(ts.Nanosecond()),
		SDRAMOffset: sdramOffset,
		SDRAMLength: sdramLength,
	}
	copy(h.Magic[:], SnapshotMagic)
	return h
}

// Timestamp returns the capture time stored in the header.
func (h SnapshotHeader) Timestamp() time.Time {
	return time.Unix(int64(h.TimeSec), int64(h.TimeNsec))
}

// Encode writes the header into buf, which must hold SnapshotHeaderSize bytes.
func (h SnapshotHeader) Encode(buf []byte) {
	_ = buf[SnapshotHeaderSize-1]
	copy(buf[0:8], h.Magic[:])
	binary.LittleEndian.PutUint32(buf[8:12], h.Version)
	binary.LittleEndian.PutUint32(buf[12:16], h.TimeSec)
	binary.LittleEndian.PutUint32(buf[16:20], h.TimeNsec)
	binary.LittleEndian.PutUint32(buf[20:24], h.SDRAMOffset)
	binary.LittleEndian.PutUint32(buf[24:28], h.SDRAMLength)
	binary.LittleEndian.PutUint32(buf[28:32], h.SRAMOffset)
	binary.LittleEndian.PutUint32(buf[32:36], h.SRAMLength)
}

// DecodeSnapshotHeader parses buf. A missing or mismatching magic or version
// means the payload must be treated as absent.
func DecodeSnapshotHeader(buf []byte) (SnapshotHeader, error) {
	if len(buf) < SnapshotHeaderSize {
		return SnapshotHeader{}, io.ErrUnexpectedEOF
	}

	var h SnapshotHeader
	copy(h.Magic[:], buf[0:8])
	if string(h.Magic[:]) != SnapshotMagic {
		return SnapshotHeader{}, ErrBadMagic
	}
	h.Version = binary.LittleEndian.Uint32(buf[8:12])
	if h.Version != SnapshotVersion {
		return SnapshotHeader{}, fmt.Errorf("%w: %d != %d", ErrVersionMismatch, h.Version, SnapshotVersion)
	}
	h.TimeSec = binary.LittleEndian.Uint32(buf[12:16])
	h.TimeNsec = binary.LittleEndian.Uint32(buf[16:20])
	h.SDRAMOffset = binary.LittleEndian.Uint32(buf[20:24])
	h.SDRAMLength = binary.LittleEndian.Uint32(buf[24:28])
	h.SRAMOffset = binary.LittleEndian.Uint32(buf[28:32])
	h.SRAMLength = binary.LittleEndian.Uint32(buf[32:36])
	return h, nil
}
