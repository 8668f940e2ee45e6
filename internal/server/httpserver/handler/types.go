package handler

import (
	"time"

	"github.com/yndnr/apanic-go/internal/core/apanic"
)

// Response is the standard API response envelope.
// All JSON responses use this format.
type Response struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
	Details   any    `json:"details,omitempty"`
}

// NewResponse creates a success response.
func NewResponse(requestID string, data any) *Response {
	return &Response{
		Code:      "OK",
		Message:   "Success",
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(requestID, code, message string, details any) *Response {
	return &Response{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Details:   details,
	}
}

// HeaderInfo is the committed panic header as seen by clients.
type HeaderInfo struct {
	ConsoleOffset uint32 `json:"console_offset"`
	ConsoleLength uint32 `json:"console_length"`
	ThreadsOffset uint32 `json:"threads_offset"`
	ThreadsLength uint32 `json:"threads_length"`
}

// SegmentInfo describes one published segment.
type SegmentInfo struct {
	Name   string `json:"name"`
	Size   int64  `json:"size"`
	Offset int64  `json:"offset"`
}

// StatusResponse is the response body for GET /apanic/status.
type StatusResponse struct {
	State             apanic.State          `json:"state"`
	PanicPartition    string                `json:"panic_partition,omitempty"`
	SnapshotPartition string                `json:"snapshot_partition,omitempty"`
	Header            *HeaderInfo           `json:"header,omitempty"`
	Segments          []SegmentInfo         `json:"segments"`
	LastCapture       *apanic.CaptureReport `json:"last_capture,omitempty"`
}

// SnapshotInfo is the committed snapshot header as seen by clients.
type SnapshotInfo struct {
	Time        time.Time `json:"time"`
	SDRAMOffset uint32    `json:"sdram_offset"`
	SDRAMLength uint32    `json:"sdram_length"`
}

// MemdumpStatusResponse is the response body for GET /memdump/status.
type MemdumpStatusResponse struct {
	Partition    string                 `json:"partition,omitempty"`
	Present      bool                   `json:"present"`
	Snapshot     *SnapshotInfo          `json:"snapshot,omitempty"`
	LastSnapshot *apanic.SnapshotReport `json:"last_snapshot,omitempty"`
}

// EraseResponse is the response body for POST /apanic/{segment}.
type EraseResponse struct {
	Scheduled bool   `json:"scheduled"`
	Segment   string `json:"segment"`
}

// TriggerResponse is the response body for POST /debug/trigger.
type TriggerResponse struct {
	Capture  apanic.CaptureReport   `json:"capture"`
	Snapshot *apanic.SnapshotReport `json:"snapshot,omitempty"`
}
