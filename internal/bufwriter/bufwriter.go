// Package bufwriter provides a buffered write-closer.
package bufwriter

import (
	"bufio"
	"errors"
	"io"

	"github.com/ninedraft/gemcore/internal/multierr"
)

// Writer buffers writes to the underlying io.WriteCloser.
// Close flushes the buffer before closing the target.
type Writer struct {
	closed bool
	target io.Closer
	*bufio.Writer
}

// DefaultBufferSize is used if the buffer size is <= 0.
const DefaultBufferSize = 4 << 10

// ErrClosed is returned by writes and by Close after the writer is closed.
var ErrClosed = errors.New("writer is closed")

// New creates a buffered writer on top of w.
func New(w io.WriteCloser, bufSize int) *Writer {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	return &Writer{
		target: w,
		Writer: bufio.NewWriterSize(w, bufSize),
	}
}

// Reset discards buffered data and switches the writer to w.
func (wr *Writer) Reset(w io.WriteCloser) {
	wr.closed = false
	wr.target = w
	wr.Writer.Reset(w)
}

func (wr *Writer) Write(p []byte) (int, error) {
	if wr.closed {
		return 0, ErrClosed
	}
	return wr.Writer.Write(p)
}

// WriteString writes s to the buffer.
func (wr *Writer) WriteString(s string) (int, error) {
	if wr.closed {
		return 0, ErrClosed
	}
	return wr.Writer.WriteString(s)
}

// Close flushes buffered data and closes the target.
// The target is closed even if flushing fails.
func (wr *Writer) Close() error {
	if wr.closed {
		return ErrClosed
	}
	wr.closed = true
	return multierr.Combine(
		wr.Flush(),
		wr.target.Close(),
	)
}
