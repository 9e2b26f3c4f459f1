package gemini

import (
	"errors"
	"fmt"
	"net"
	urlpkg "net/url"
	"strings"
)

// Scheme is the only URI scheme the client requests.
const Scheme = "gemini"

// DefaultPort is used for URIs without an explicit port.
const DefaultPort = "1965"

// MaxURISize is the maximum request URI size in bytes.
const MaxURISize = 1024

var (
	errURITooLong  = fmt.Errorf("URI is longer than %d bytes", MaxURISize)
	errUserInfo    = errors.New("URI must not contain user info")
	errBadScheme   = errors.New("URI scheme must be " + Scheme)
	errMissingHost = errors.New("URI has no host")
)

const requestSeparator = "\r\n"

// ValidateURI checks a candidate request URI.
// Checks are applied in order: size, user info, scheme, host.
// Every failure is reported as ErrInvalidURI.
func ValidateURI(raw string) (*urlpkg.URL, error) {
	if len(raw) > MaxURISize {
		return nil, newError(KindInvalidURI, "", errURITooLong)
	}

	var u, errParse = urlpkg.Parse(raw)
	if errParse != nil {
		return nil, newError(KindInvalidURI, raw, errParse)
	}
	if u.User != nil && u.User.String() != "" {
		return nil, newError(KindInvalidURI, raw, errUserInfo)
	}

	// url.Parse lowercases the scheme, so check the raw text
	var scheme, _, hasScheme = strings.Cut(raw, ":")
	if !hasScheme || scheme != Scheme {
		return nil, newError(KindInvalidURI, raw, errBadScheme)
	}

	if u.Hostname() == "" {
		return nil, newError(KindInvalidURI, raw, errMissingHost)
	}
	return u, nil
}

// requestLine formats the request payload: the URI followed by CRLF.
// Literal "%2F" escapes are sent as plain slashes.
func requestLine(uri string) string {
	return strings.ReplaceAll(uri, "%2F", "/") + requestSeparator
}

// hostPort returns a dial address for u, falling back to DefaultPort.
func hostPort(u *urlpkg.URL) string {
	var port = u.Port()
	if port == "" {
		port = DefaultPort
	}
	return net.JoinHostPort(u.Hostname(), port)
}
