package output

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// ProgressWriter forwards writes to an underlying writer and renders the
// running byte count on a status writer, typically stderr.
type ProgressWriter struct {
	dst    io.Writer
	status io.Writer
	title  string
	width  int

	mu      sync.Mutex
	total   int64
	written int64
}

// NewProgressWriter wraps dst. A total of zero or less renders only the
// byte count.
func NewProgressWriter(dst, status io.Writer, title string, total int64) *ProgressWriter {
	return &ProgressWriter{
		dst:    dst,
		status: status,
		title:  title,
		width:  40,
		total:  total,
	}
}

func (p *ProgressWriter) Write(b []byte) (int, error) {
	n, err := p.dst.Write(b)

	p.mu.Lock()
	p.written += int64(n)
	p.render()
	p.mu.Unlock()
	return n, err
}

// Written returns the bytes written so far.
func (p *ProgressWriter) Written() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written
}

// Finish renders the final state and ends the status line.
func (p *ProgressWriter) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.render()
	fmt.Fprintln(p.status)
}

func (p *ProgressWriter) render() {
	if p.total <= 0 {
		fmt.Fprintf(p.status, "\r%s %s", p.title, formatBytes(p.written))
		return
	}

	percent := min(float64(p.written)/float64(p.total), 1)
	filled := int(float64(p.width) * percent)
	bar := strings.Repeat("#", filled) + strings.Repeat(".", p.width-filled)

	fmt.Fprintf(p.status, "\r%s [%s] %3.0f%% (%s/%s)",
		p.title, bar, percent*100, formatBytes(p.written), formatBytes(p.total))
}

// formatBytes formats bytes to a human readable string.
func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
