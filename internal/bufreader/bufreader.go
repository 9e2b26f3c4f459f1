// Package bufreader provides a buffered read-closer with bounded line reads.
package bufreader

import (
	"bufio"
	"errors"
	"io"
)

type (
	// Reader is a buffered io.ReadCloser. Close closes the underlying reader.
	Reader struct {
		closer
		*buf
	}

	buf    = bufio.Reader
	closer = io.Closer
)

// DefaultBufferSize is used if buffer size is <= 0.
const DefaultBufferSize = 16 << 10

// ErrLineTooLong means that a line exceeds the limit passed to ReadLine.
var ErrLineTooLong = errors.New("line is too long")

// New creates a buffered reader on top of rc.
func New(rc io.ReadCloser, bufSize int) *Reader {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	return &Reader{
		closer: rc,
		buf:    bufio.NewReaderSize(rc, bufSize),
	}
}

// Reset discards buffered data and switches the reader to rc.
func (re *Reader) Reset(rc io.ReadCloser) {
	re.closer = rc
	re.buf.Reset(rc)
}

// Bufio returns the underlying buffered reader.
func (re *Reader) Bufio() *bufio.Reader {
	return re.buf
}

// ReadLine reads bytes until '\n' or end of stream and returns them without the '\n'.
// A line which ends with the stream is returned with a nil error.
// If the stream ends before any byte is read, then io.EOF is returned.
// If the line holds more than max bytes, ReadLine stops reading and returns ErrLineTooLong.
func (re *Reader) ReadLine(max int) ([]byte, error) {
	var line, _, err = ReadLine(re.buf, max)
	return line, err
}

// ReadLine is the ReadLine method for a plain bufio.Reader.
// It also reports whether the line was terminated by '\n' rather than by the end of stream.
func ReadLine(re *bufio.Reader, max int) (line []byte, terminated bool, err error) {
	for {
		var chunk, errSlice = re.ReadSlice('\n')
		var size = len(line) + len(chunk)
		if errSlice == nil {
			size--
		}
		if size > max {
			return nil, false, ErrLineTooLong
		}
		line = append(line, chunk...)

		switch {
		case errSlice == nil:
			return line[:len(line)-1], true, nil
		case errors.Is(errSlice, bufio.ErrBufferFull):
			continue
		case errors.Is(errSlice, io.EOF) && len(line) == 0:
			return nil, false, io.EOF
		case errors.Is(errSlice, io.EOF):
			return line, false, nil
		default:
			return nil, false, errSlice
		}
	}
}
