package gemini

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ninedraft/gemcore/gemini/status"
	"github.com/ninedraft/gemcore/internal/bufreader"
)

// MaxHeaderSize is the maximum size of a response header line, excluding the CRLF or LF terminator.
const MaxHeaderSize = 4096

var (
	errEmptyHeader = errors.New("server closed the connection without a response header")
	errStatusCode  = errors.New("status must be two digits")
)

// ParseResponseHeader reads a gemini header in form of "<code>[<SP><meta>]<CR?><LF>".
// The line may end with the stream instead of a line feed. Meta is trimmed.
// Status codes are not range-checked: any two digits are returned.
// Bytes after the header stay in re, so the body can be read from it.
//
// Errors: ErrInvalidResponse for empty or malformed headers,
// ErrResponseTooLarge if the header exceeds MaxHeaderSize,
// ErrTimeout and ErrTransport for read failures.
func ParseResponseHeader(re *bufio.Reader) (status.Code, string, error) {
	// one extra byte for the CR of a CRLF terminator
	var line, _, errLine = bufreader.ReadLine(re, MaxHeaderSize+1)
	switch {
	case errors.Is(errLine, io.EOF):
		return status.Undefined, "", newError(KindInvalidResponse, "", errEmptyHeader)
	case errors.Is(errLine, bufreader.ErrLineTooLong):
		return status.Undefined, "", errHeaderTooLarge(errLine)
	case errLine != nil:
		return status.Undefined, "", classifyNetError("", fmt.Errorf("reading header: %w", errLine))
	}

	var header = strings.TrimSuffix(string(line), "\r")
	if len(header) > MaxHeaderSize {
		return status.Undefined, "", errHeaderTooLarge(bufreader.ErrLineTooLong)
	}
	var rawCode, meta, _ = strings.Cut(header, " ")
	if len(rawCode) != 2 || !isDigit(rawCode[0]) || !isDigit(rawCode[1]) {
		return status.Undefined, "", newError(KindInvalidResponse, "",
			fmt.Errorf("%w: got %q", errStatusCode, rawCode))
	}
	var code = status.Code(10*int(rawCode[0]-'0') + int(rawCode[1]-'0'))
	return code, strings.TrimSpace(meta), nil
}

func errHeaderTooLarge(cause error) *Error {
	return newError(KindResponseTooLarge, "", fmt.Errorf("header exceeds %d bytes: %w", MaxHeaderSize, cause))
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}
