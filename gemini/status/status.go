// Package status describes gemini response status codes.
package status

import "strconv"

// Code is a gemini protocol status code.
// Reference document: gemini://geminiprotocol.net/docs/protocol-specification.gmi
type Code int

// Int returns an integer code representation.
func (code Code) Int() int {
	return int(code)
}

// Text returns a code text representation in "integer_code text_description" format.
func Text(code Code) string {
	return strconv.Itoa(code.Int()) + " " + code.String()
}

const (
	// Undefined is a default empty status code value.
	Undefined Code = 0

	// Input means that the resource accepts a line of user input. <META> is a prompt.
	// The input is sent back as the query component of the same URL.
	Input Code = 10
	// InputSensitive is Input for secrets: the input must not be echoed.
	InputSensitive Code = 11

	// Success means that a response body follows the header. <META> is a MIME type.
	Success Code = 20

	// Redirect is a temporary redirect. <META> is a new, possibly relative, URL.
	Redirect Code = 30
	// RedirectPermanent means that the resource should be requested from the new URL in future.
	RedirectPermanent Code = 31

	// TemporaryFailure means that an identical request may succeed in the future.
	TemporaryFailure Code = 40
	// ServerUnavailable means overload or maintenance (cf HTTP 503).
	ServerUnavailable Code = 41
	// CGIError means that a dynamic content generator died or timed out.
	CGIError Code = 42
	// ProxyError means that a proxy could not complete a transaction with the remote host.
	ProxyError Code = 43
	// SlowDown means that rate limiting is in effect. <META> is a number of seconds to wait.
	SlowDown Code = 44

	// PermanentFailure means that identical requests will reliably fail.
	PermanentFailure Code = 50
	// NotFound means that the resource could not be found (cf HTTP 404).
	NotFound Code = 51
	// Gone means that the resource is no longer available and will not be available again.
	Gone Code = 52
	// ProxyRequestRefused means that the server does not accept proxy requests for the domain.
	ProxyRequestRefused Code = 53
	// BadRequest means that the server was unable to parse the request (cf HTTP 400).
	BadRequest Code = 59

	// ClientCertificateRequired means that the resource requires a client certificate.
	ClientCertificateRequired Code = 60
	// CertificateNotAuthorized means that the certificate is not authorized for the resource.
	CertificateNotAuthorized Code = 61
	// CertificateNotValid means that the certificate itself was rejected.
	CertificateNotValid Code = 62
)

var names = map[Code]string{
	Undefined:                 "<UNDEFINED STATUS CODE>",
	Input:                     "INPUT",
	InputSensitive:            "SENSITIVE INPUT",
	Success:                   "SUCCESS",
	Redirect:                  "REDIRECT - TEMPORARY",
	RedirectPermanent:         "REDIRECT - PERMANENT",
	TemporaryFailure:          "TEMPORARY FAILURE",
	ServerUnavailable:         "SERVER UNAVAILABLE",
	CGIError:                  "CGI ERROR",
	ProxyError:                "PROXY ERROR",
	SlowDown:                  "SLOW DOWN",
	PermanentFailure:          "PERMANENT FAILURE",
	NotFound:                  "NOT FOUND",
	Gone:                      "GONE",
	ProxyRequestRefused:       "PROXY REQUEST REFUSED",
	BadRequest:                "BAD REQUEST",
	ClientCertificateRequired: "CLIENT CERTIFICATE REQUIRED",
	CertificateNotAuthorized:  "CERTIFICATE NOT AUTHORIZED",
	CertificateNotValid:       "CERTIFICATE NOT VALID",
}

func (code Code) String() string {
	if name, ok := names[code]; ok {
		return name
	}
	if class := code.Class(); class != Undefined {
		return names[class]
	}
	return "Code(" + strconv.Itoa(code.Int()) + ")"
}

// Class rounds code down to its category constant:
// Input, Success, Redirect, TemporaryFailure, PermanentFailure or ClientCertificateRequired.
// Returns Undefined for codes outside of the [10, 69] range.
func (code Code) Class() Code {
	if code < Input || code > ClientCertificateRequired+9 {
		return Undefined
	}
	return code / 10 * 10
}

// Known reports whether code is one of the defined constants.
func (code Code) Known() bool {
	var _, ok = names[code]
	return ok && code != Undefined
}

// AllCodes returns every defined status code except Undefined, in ascending order.
func AllCodes() []Code {
	return []Code{
		Input, InputSensitive,
		Success,
		Redirect, RedirectPermanent,
		TemporaryFailure, ServerUnavailable, CGIError, ProxyError, SlowDown,
		PermanentFailure, NotFound, Gone, ProxyRequestRefused, BadRequest,
		ClientCertificateRequired, CertificateNotAuthorized, CertificateNotValid,
	}
}
