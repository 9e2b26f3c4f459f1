package gemini

import (
	"crypto/tls"
	"errors"
)

// TrustPolicy decides whether the server certificate presented during a TLS handshake is trusted.
// Verify is called for every connection; host is the requested host name.
// A non-nil error aborts the handshake and the request fails with ErrUntrusted.
type TrustPolicy interface {
	Verify(host string, state tls.ConnectionState) error
}

// TrustFunc is a function adapter for TrustPolicy.
type TrustFunc func(host string, state tls.ConnectionState) error

// Verify calls fn(host, state).
func (fn TrustFunc) Verify(host string, state tls.ConnectionState) error {
	return fn(host, state)
}

// AcceptAll trusts every certificate chain.
// This is the default policy: gemini servers are mostly self-signed,
// and the proper trust-on-first-use model must be supplied by the caller (see package tofu).
var AcceptAll TrustPolicy = TrustFunc(func(string, tls.ConnectionState) error {
	return nil
})

// ErrInvalidServerName means that the server certificate doesn't match the server domain.
var ErrInvalidServerName = errors.New("server domain and server TLS domain name don't match")

// VerifyHostname trusts certificates issued for the requested host, regardless of the issuer.
var VerifyHostname TrustPolicy = TrustFunc(func(host string, state tls.ConnectionState) error {
	return tlsVerifyDomain(&state, host)
})

// TrustChain combines policies: a certificate is trusted if every policy trusts it.
func TrustChain(policies ...TrustPolicy) TrustPolicy {
	return TrustFunc(func(host string, state tls.ConnectionState) error {
		for _, policy := range policies {
			if err := policy.Verify(host, state); err != nil {
				return err
			}
		}
		return nil
	})
}

func tlsVerifyDomain(cs *tls.ConnectionState, domain string) error {
	if len(cs.PeerCertificates) == 0 {
		return ErrInvalidServerName
	}
	var leaf = cs.PeerCertificates[0]
	// self-signed certificates often carry the domain in the legacy Common Name only
	if leaf.Subject.CommonName == domain {
		return nil
	}
	if leaf.VerifyHostname(domain) == nil {
		return nil
	}
	return ErrInvalidServerName
}
