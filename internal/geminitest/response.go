package geminitest

import (
	"fmt"
	"io"
	"strings"

	"github.com/ninedraft/gemcore/gemini"
	"github.com/ninedraft/gemcore/gemini/status"
	"github.com/ninedraft/gemcore/internal/bufwriter"
)

// ResponseWriter writes a response header and body.
type ResponseWriter interface {
	// WriteStatus writes the header. Headers other than success close the response.
	WriteStatus(code status.Code, meta string)
	// WriteRaw writes header bytes as is, so tests can send malformed headers.
	WriteRaw(header string)
	io.WriteCloser
}

type responseWriter struct {
	headerWritten bool
	closed        bool
	writer        *bufwriter.Writer
}

func newResponseWriter(wr io.WriteCloser) *responseWriter {
	return &responseWriter{
		writer: bufwriter.New(wr, 0),
	}
}

var metaSanitizer = strings.NewReplacer(
	"\r\n", " ",
	"\n", " ",
	"\r", " ",
)

func (rw *responseWriter) WriteStatus(code status.Code, meta string) {
	if rw.headerWritten || rw.closed {
		return
	}
	if code.Class() == status.Success && meta == "" {
		meta = gemini.MIMEGemtext
	}
	_, _ = fmt.Fprintf(rw.writer, "%d %s\r\n", code.Int(), metaSanitizer.Replace(meta))
	rw.headerWritten = true
	if code.Class() != status.Success {
		_ = rw.Close()
	}
}

func (rw *responseWriter) WriteRaw(header string) {
	if rw.headerWritten || rw.closed {
		return
	}
	_, _ = rw.writer.WriteString(header)
	rw.headerWritten = true
}

func (rw *responseWriter) Write(data []byte) (int, error) {
	if rw.closed {
		return 0, bufwriter.ErrClosed
	}
	rw.WriteStatus(status.Success, gemini.MIMEGemtext)
	return rw.writer.Write(data)
}

func (rw *responseWriter) Close() error {
	if rw.closed {
		return bufwriter.ErrClosed
	}
	rw.WriteStatus(status.Success, gemini.MIMEGemtext)
	if rw.closed {
		return nil
	}
	rw.closed = true
	return rw.writer.Close()
}
