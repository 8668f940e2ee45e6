package connection

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/yndnr/apanic-go/internal/core/apanic"
)

// Reply error codes that map onto client errors.
const codeOutOfRange = "out_of_range"

// SocketClient speaks the line protocol of the local management socket.
// One command is in flight at a time.
type SocketClient struct {
	path    string
	timeout time.Duration

	mu   sync.Mutex
	conn net.Conn
	r    *bufio.Reader
}

// NewSocketClient creates a new socket client.
func NewSocketClient(socketPath string) *SocketClient {
	return &SocketClient{path: socketPath, timeout: 30 * time.Second}
}

// Connect connects to the local socket.
func (c *SocketClient) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked()
}

func (c *SocketClient) connectLocked() error {
	if c.conn != nil {
		return nil
	}
	conn, err := net.DialTimeout("unix", c.path, c.timeout)
	if err != nil {
		return fmt.Errorf("connect %s: %w", c.path, err)
	}
	c.conn = conn
	c.r = bufio.NewReader(conn)
	return nil
}

// Close closes the socket connection.
func (c *SocketClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn, c.r = nil, nil
	return err
}

// Execute sends one command line and returns the reply body and its eof
// flag. An ERR reply is returned as *Error.
func (c *SocketClient) Execute(ctx context.Context, cmd string, args ...string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.connectLocked(); err != nil {
		return nil, false, err
	}

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	c.conn.SetDeadline(deadline)

	line := strings.Join(append([]string{cmd}, args...), " ") + "\n"
	if _, err := io.WriteString(c.conn, line); err != nil {
		c.dropLocked()
		return nil, false, err
	}

	body, eof, err := readReply(c.r)
	if err != nil {
		if _, ok := err.(*Error); !ok {
			c.dropLocked()
		}
		return nil, false, err
	}
	return body, eof, nil
}

// dropLocked discards a connection whose framing can no longer be trusted.
func (c *SocketClient) dropLocked() {
	c.conn.Close()
	c.conn, c.r = nil, nil
}

// readReply parses one "OK <len>[ eof]" or "ERR <code> <message>" reply.
func readReply(r *bufio.Reader) ([]byte, bool, error) {
	header, err := r.ReadString('\n')
	if err != nil {
		return nil, false, fmt.Errorf("read reply: %w", err)
	}
	fields := strings.Fields(header)
	if len(fields) == 0 {
		return nil, false, fmt.Errorf("read reply: empty header")
	}

	switch fields[0] {
	case "OK":
		if len(fields) < 2 {
			return nil, false, fmt.Errorf("read reply: malformed header %q", header)
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil || n < 0 {
			return nil, false, fmt.Errorf("read reply: bad length %q", fields[1])
		}
		body := make([]byte, n)
		if _, err := io.ReadFull(r, body); err != nil {
			return nil, false, fmt.Errorf("read reply body: %w", err)
		}
		return body, len(fields) > 2 && fields[2] == "eof", nil
	case "ERR":
		code, msg := "", ""
		if len(fields) > 1 {
			code = fields[1]
		}
		if len(fields) > 2 {
			msg = strings.Join(fields[2:], " ")
		}
		return nil, false, &Error{Code: code, Message: msg}
	default:
		return nil, false, fmt.Errorf("read reply: unexpected header %q", header)
	}
}

func (c *SocketClient) executeJSON(ctx context.Context, target any, cmd string, args ...string) error {
	body, _, err := c.Execute(ctx, cmd, args...)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("parse %s reply: %w", cmd, err)
	}
	return nil
}

// Status runs the status command.
func (c *SocketClient) Status(ctx context.Context) (*Status, error) {
	var raw struct {
		Status
		Segments map[string]int64 `json:"segments"`
	}
	if err := c.executeJSON(ctx, &raw, "status"); err != nil {
		return nil, err
	}
	st := raw.Status
	st.Segments = segmentsFromMap(raw.Segments)
	return &st, nil
}

// ReadAt runs the read command.
func (c *SocketClient) ReadAt(ctx context.Context, segment string, p []byte, off int64) (int, bool, error) {
	body, eof, err := c.Execute(ctx, "read", segment,
		strconv.FormatInt(off, 10), strconv.Itoa(len(p)))
	if err != nil {
		if e, ok := err.(*Error); ok && e.Code == codeOutOfRange {
			return 0, false, ErrOutOfRange
		}
		return 0, false, err
	}
	return copy(p, body), eof, nil
}

// Clear runs the clear command.
func (c *SocketClient) Clear(ctx context.Context) error {
	_, _, err := c.Execute(ctx, "clear")
	return err
}

// Trigger runs the trigger command.
func (c *SocketClient) Trigger(ctx context.Context) (*TriggerResult, error) {
	var rep apanic.CaptureReport
	if err := c.executeJSON(ctx, &rep, "trigger"); err != nil {
		return nil, err
	}
	return &TriggerResult{Capture: rep}, nil
}

// Version runs the version command.
func (c *SocketClient) Version(ctx context.Context) (string, error) {
	var info struct {
		Version string `json:"version"`
	}
	if err := c.executeJSON(ctx, &info, "version"); err != nil {
		return "", err
	}
	return info.Version, nil
}

// Reload runs the reload command.
func (c *SocketClient) Reload(ctx context.Context) error {
	_, _, err := c.Execute(ctx, "reload")
	return err
}

// Shutdown runs the shutdown command.
func (c *SocketClient) Shutdown(ctx context.Context) error {
	_, _, err := c.Execute(ctx, "shutdown")
	return err
}
