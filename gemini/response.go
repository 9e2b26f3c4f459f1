package gemini

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/ninedraft/gemcore/gemini/status"
	"github.com/ninedraft/gemcore/internal/bufreader"
)

// Response is a successful server response: either *TextResponse or *BinaryResponse.
//
//	switch resp := resp.(type) {
//	case *gemini.TextResponse:
//		render(resp.Lines)
//	case *gemini.BinaryResponse:
//		defer resp.Close()
//		io.Copy(dst, resp)
//	}
type Response interface {
	ResponseHeader() Header
	Close() error
}

// Header describes the response header.
type Header struct {
	Status status.Code
	// Meta is the MIME type of the body.
	Meta string
	// URL is the final request URL, after all redirects.
	URL string
}

// ResponseHeader returns a copy of the header.
func (header Header) ResponseHeader() Header {
	return header
}

// TextResponse is a gemtext document, read completely.
// The connection is already closed.
type TextResponse struct {
	Header
	Lines []string
}

var _ Response = (*TextResponse)(nil)

// Text joins lines back into a document.
func (resp *TextResponse) Text() string {
	return strings.Join(resp.Lines, "\n")
}

// Close is a no-op.
func (resp *TextResponse) Close() error {
	return nil
}

// ErrAlreadyClosed is returned by repeated BinaryResponse.Close calls and by reads after Close.
var ErrAlreadyClosed = errors.New("response is already closed")

// BinaryResponse streams a non-gemtext body directly from the connection.
// The caller owns the connection and must call Close exactly once.
// Close may be called concurrently with Read to abort a slow transfer.
type BinaryResponse struct {
	Header
	body   *bufreader.Reader
	closed atomic.Bool
}

var _ Response = (*BinaryResponse)(nil)

func (resp *BinaryResponse) Read(p []byte) (int, error) {
	if resp.closed.Load() {
		return 0, ErrAlreadyClosed
	}
	return resp.body.Read(p)
}

// Close closes the underlying connection.
func (resp *BinaryResponse) Close() error {
	if !resp.closed.CompareAndSwap(false, true) {
		return ErrAlreadyClosed
	}
	return resp.body.Close()
}
