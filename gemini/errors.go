package gemini

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/ninedraft/gemcore/gemini/status"
)

// Kind classifies client failures.
type Kind int

// Client failure kinds.
// Kinds between KindInputRequired and KindCertificateNotValid are reported by the server,
// the rest are detected by the client itself.
const (
	KindUnknown Kind = iota
	KindInvalidURI
	KindInvalidResponse
	KindResponseTooLarge
	KindTooManyRedirects
	KindInputRequired
	KindTemporaryFailure
	KindServerUnavailable
	KindCGIError
	KindProxyError
	KindSlowDown
	KindPermanentFailure
	KindNotFound
	KindGone
	KindProxyRequestRefused
	KindBadRequest
	KindClientCertificateRequired
	KindCertificateNotAuthorized
	KindCertificateNotValid
	KindUnimplementedCase
	KindTimeout
	KindHostUnresolvable
	KindTransport
	KindUntrusted
)

var kindNames = [...]string{
	KindUnknown:                   "unknown error",
	KindInvalidURI:                "invalid URI",
	KindInvalidResponse:           "invalid response",
	KindResponseTooLarge:          "response is too large",
	KindTooManyRedirects:          "too many redirects",
	KindInputRequired:             "input required",
	KindTemporaryFailure:          "temporary failure",
	KindServerUnavailable:         "server unavailable",
	KindCGIError:                  "CGI error",
	KindProxyError:                "proxy error",
	KindSlowDown:                  "slow down",
	KindPermanentFailure:          "permanent failure",
	KindNotFound:                  "not found",
	KindGone:                      "gone",
	KindProxyRequestRefused:       "proxy request refused",
	KindBadRequest:                "bad request",
	KindClientCertificateRequired: "client certificate required",
	KindCertificateNotAuthorized:  "certificate not authorized",
	KindCertificateNotValid:       "certificate not valid",
	KindUnimplementedCase:         "unimplemented status",
	KindTimeout:                   "timeout",
	KindHostUnresolvable:          "host unresolvable",
	KindTransport:                 "transport failure",
	KindUntrusted:                 "untrusted server certificate",
}

func (kind Kind) String() string {
	if kind < 0 || int(kind) >= len(kindNames) {
		return "Kind(" + strconv.Itoa(int(kind)) + ")"
	}
	return kindNames[kind]
}

// Error is a classified client failure.
// Use errors.Is with the ErrXxx values to match a kind
// and errors.As to access the server supplied meta.
type Error struct {
	Kind Kind
	// Code is the response status code, if the failure was reported by the server.
	Code status.Code
	// Meta is the raw meta field of the response: prompt, failure description or wait hint.
	Meta string
	// Sensitive is set for input prompts, which expect a secret.
	Sensitive bool
	// URL of the request that produced the failure.
	URL string
	// Err is the underlying cause, for example a network error.
	Err error
}

func (err *Error) Error() string {
	var str = &strings.Builder{}
	_, _ = str.WriteString("gemini: ")
	_, _ = str.WriteString(err.Kind.String())
	if err.Code != status.Undefined {
		_, _ = str.WriteString(" (" + strconv.Itoa(err.Code.Int()) + ")")
	}
	if err.URL != "" {
		_, _ = str.WriteString(" " + err.URL)
	}
	if err.Meta != "" {
		_, _ = str.WriteString(": " + strconv.Quote(err.Meta))
	}
	if err.Err != nil {
		_, _ = str.WriteString(": " + err.Err.Error())
	}
	return str.String()
}

func (err *Error) Unwrap() error {
	return err.Err
}

// Is reports whether target is an *Error of the same kind.
func (err *Error) Is(target error) bool {
	var t, ok = target.(*Error)
	return ok && t.Kind == err.Kind
}

// Prompt returns the input prompt of a KindInputRequired failure.
func (err *Error) Prompt() string {
	if err.Kind != KindInputRequired {
		return ""
	}
	return err.Meta
}

// WaitHint interprets meta of a KindSlowDown failure as a number of seconds.
// The client never waits by itself: backoff is up to the caller.
func (err *Error) WaitHint() (time.Duration, bool) {
	if err.Kind != KindSlowDown {
		return 0, false
	}
	var seconds, errParse = strconv.Atoi(strings.TrimSpace(err.Meta))
	if errParse != nil || seconds < 0 {
		return 0, false
	}
	return time.Duration(seconds) * time.Second, true
}

// Kind sentinels. Match with errors.Is.
var (
	ErrInvalidURI                = &Error{Kind: KindInvalidURI}
	ErrInvalidResponse           = &Error{Kind: KindInvalidResponse}
	ErrResponseTooLarge          = &Error{Kind: KindResponseTooLarge}
	ErrTooManyRedirects          = &Error{Kind: KindTooManyRedirects}
	ErrInputRequired             = &Error{Kind: KindInputRequired}
	ErrTemporaryFailure          = &Error{Kind: KindTemporaryFailure}
	ErrServerUnavailable         = &Error{Kind: KindServerUnavailable}
	ErrCGIError                  = &Error{Kind: KindCGIError}
	ErrProxyError                = &Error{Kind: KindProxyError}
	ErrSlowDown                  = &Error{Kind: KindSlowDown}
	ErrPermanentFailure          = &Error{Kind: KindPermanentFailure}
	ErrNotFound                  = &Error{Kind: KindNotFound}
	ErrGone                      = &Error{Kind: KindGone}
	ErrProxyRequestRefused       = &Error{Kind: KindProxyRequestRefused}
	ErrBadRequest                = &Error{Kind: KindBadRequest}
	ErrClientCertificateRequired = &Error{Kind: KindClientCertificateRequired}
	ErrCertificateNotAuthorized  = &Error{Kind: KindCertificateNotAuthorized}
	ErrCertificateNotValid       = &Error{Kind: KindCertificateNotValid}
	ErrUnimplementedCase         = &Error{Kind: KindUnimplementedCase}
	ErrTimeout                   = &Error{Kind: KindTimeout}
	ErrHostUnresolvable          = &Error{Kind: KindHostUnresolvable}
	ErrTransport                 = &Error{Kind: KindTransport}
	ErrUntrusted                 = &Error{Kind: KindUntrusted}
)

// KindOf returns the kind of a client failure, or KindUnknown if err is not an *Error.
func KindOf(err error) Kind {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.Kind
	}
	return KindUnknown
}

func newError(kind Kind, url string, cause error) *Error {
	return &Error{
		Kind: kind,
		URL:  url,
		Err:  cause,
	}
}
