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

// DefaultMaxTextSize bounds gemtext bodies, line feeds included.
const DefaultMaxTextSize = 5_000_000

// outcome is the result of a single exchange.
// Exactly one of resp, redirect and err is set.
type outcome struct {
	resp     Response
	redirect string
	err      error
}

var errEmptyRedirect = errors.New("redirect without a target")

// failureKinds maps failure codes to error kinds.
// Codes without their own entry fall back to the entry of their class.
var failureKinds = map[status.Code]Kind{
	status.TemporaryFailure:          KindTemporaryFailure,
	status.ServerUnavailable:         KindServerUnavailable,
	status.CGIError:                  KindCGIError,
	status.ProxyError:                KindProxyError,
	status.SlowDown:                  KindSlowDown,
	status.PermanentFailure:          KindPermanentFailure,
	status.NotFound:                  KindNotFound,
	status.Gone:                      KindGone,
	status.ProxyRequestRefused:       KindProxyRequestRefused,
	status.BadRequest:                KindBadRequest,
	status.ClientCertificateRequired: KindClientCertificateRequired,
	status.CertificateNotAuthorized:  KindCertificateNotAuthorized,
	status.CertificateNotValid:       KindCertificateNotValid,
}

// dispatch routes a parsed header to its outcome.
// Success bodies are read from re: eagerly for gemtext, lazily for everything else.
func (client *Client) dispatch(url string, code status.Code, meta string, re *bufreader.Reader) outcome {
	var header = Header{Status: code, Meta: meta, URL: url}
	switch code.Class() {
	case status.Input:
		return outcome{err: &Error{
			Kind:      KindInputRequired,
			Code:      code,
			Meta:      meta,
			Sensitive: code == status.InputSensitive,
			URL:       url,
		}}
	case status.Success:
		if !isGemtext(meta) {
			return outcome{resp: &BinaryResponse{Header: header, body: re}}
		}
		var lines, errLines = readLines(re.Bufio(), client.maxTextSize())
		if errLines != nil {
			errLines.URL = url
			return outcome{err: errLines}
		}
		return outcome{resp: &TextResponse{Header: header, Lines: lines}}
	case status.Redirect:
		if meta == "" {
			return outcome{err: &Error{Kind: KindInvalidResponse, Code: code, URL: url, Err: errEmptyRedirect}}
		}
		return outcome{redirect: meta}
	case status.TemporaryFailure, status.PermanentFailure, status.ClientCertificateRequired:
		var kind, ok = failureKinds[code]
		if !ok {
			kind = failureKinds[code.Class()]
		}
		return outcome{err: &Error{Kind: kind, Code: code, Meta: meta, URL: url}}
	default:
		return outcome{err: &Error{Kind: KindUnimplementedCase, Code: code, Meta: meta, URL: url}}
	}
}

// readLines reads a gemtext body until the end of stream, splitting it on line feeds.
// Line feeds count against limit. Trailing carriage returns are dropped.
func readLines(re *bufio.Reader, limit int) ([]string, *Error) {
	var lines []string
	var total = 0
	for {
		var line, terminated, errLine = bufreader.ReadLine(re, limit-total)
		switch {
		case errors.Is(errLine, io.EOF):
			return lines, nil
		case errors.Is(errLine, bufreader.ErrLineTooLong):
			return nil, errTextTooLarge(limit, errLine)
		case errLine != nil:
			return nil, classifyNetError("", fmt.Errorf("reading body: %w", errLine))
		}
		total += len(line)
		if terminated {
			total++
		}
		if total > limit {
			return nil, errTextTooLarge(limit, nil)
		}
		lines = append(lines, strings.TrimSuffix(string(line), "\r"))
	}
}

var errTextLimit = errors.New("text body is too large")

func errTextTooLarge(limit int, cause error) *Error {
	if cause == nil {
		cause = errTextLimit
	}
	return newError(KindResponseTooLarge, "", fmt.Errorf("text body exceeds %d bytes: %w", limit, cause))
}
