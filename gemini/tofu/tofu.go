// Package tofu implements a trust-on-first-use certificate policy for gemini clients.
//
// The first certificate seen for a host is pinned by its SHA-256 fingerprint;
// later connections to the host must present the same certificate.
// Pins live in memory only. Callers who need them across restarts
// can read them with Pins and restore them with Pin.
package tofu

import (
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/ninedraft/gemcore/gemini"
)

// ErrCertificateChanged means that a known host presented a certificate other than the pinned one.
var ErrCertificateChanged = errors.New("server certificate has changed since the first visit")

// ErrNoCertificate means that the server presented no certificate at all.
var ErrNoCertificate = errors.New("server presented no certificate")

// Fingerprint is a SHA-256 digest of a DER encoded certificate.
type Fingerprint [sha256.Size]byte

// FingerprintOf returns the fingerprint of a DER encoded certificate.
func FingerprintOf(der []byte) Fingerprint {
	return sha256.Sum256(der)
}

func (fp Fingerprint) String() string {
	return hex.EncodeToString(fp[:])
}

// ParseFingerprint parses a hex encoded fingerprint, as produced by Fingerprint.String.
func ParseFingerprint(s string) (Fingerprint, error) {
	var fp Fingerprint
	var raw, errDecode = hex.DecodeString(s)
	if errDecode != nil {
		return fp, fmt.Errorf("decoding fingerprint: %w", errDecode)
	}
	if len(raw) != len(fp) {
		return fp, fmt.Errorf("fingerprint must be %d bytes, got %d", len(fp), len(raw))
	}
	copy(fp[:], raw)
	return fp, nil
}

// Policy is an in-memory trust-on-first-use gemini.TrustPolicy.
// Empty value is ready to use. Safe for concurrent use.
type Policy struct {
	mu   sync.Mutex
	pins map[string]Fingerprint
}

var _ gemini.TrustPolicy = (*Policy)(nil)

// Verify pins the leaf certificate of an unknown host and checks it for a known one.
func (policy *Policy) Verify(host string, state tls.ConnectionState) error {
	if len(state.PeerCertificates) == 0 {
		return ErrNoCertificate
	}
	var got = FingerprintOf(state.PeerCertificates[0].Raw)
	host = normalizeHost(host)

	policy.mu.Lock()
	defer policy.mu.Unlock()
	var pinned, known = policy.pins[host]
	if !known {
		policy.pin(host, got)
		return nil
	}
	if pinned != got {
		return fmt.Errorf("%w: host %s: pinned %s, got %s", ErrCertificateChanged, host, pinned, got)
	}
	return nil
}

// Pin sets the trusted fingerprint of host, replacing any previous pin.
func (policy *Policy) Pin(host string, fp Fingerprint) {
	policy.mu.Lock()
	defer policy.mu.Unlock()
	policy.pin(normalizeHost(host), fp)
}

func (policy *Policy) pin(host string, fp Fingerprint) {
	if policy.pins == nil {
		policy.pins = map[string]Fingerprint{}
	}
	policy.pins[host] = fp
}

// Forget drops the pin of host: the next certificate will be trusted on first use again.
func (policy *Policy) Forget(host string) {
	policy.mu.Lock()
	defer policy.mu.Unlock()
	delete(policy.pins, normalizeHost(host))
}

// Lookup returns the pinned fingerprint of host.
func (policy *Policy) Lookup(host string) (Fingerprint, bool) {
	policy.mu.Lock()
	defer policy.mu.Unlock()
	var fp, ok = policy.pins[normalizeHost(host)]
	return fp, ok
}

// Hosts returns known hosts in ascending order.
func (policy *Policy) Hosts() []string {
	policy.mu.Lock()
	var hosts = maps.Keys(policy.pins)
	policy.mu.Unlock()
	slices.Sort(hosts)
	return hosts
}

// Pins returns a snapshot of all pins.
func (policy *Policy) Pins() map[string]Fingerprint {
	policy.mu.Lock()
	defer policy.mu.Unlock()
	return maps.Clone(policy.pins)
}

func normalizeHost(host string) string {
	return strings.ToLower(strings.TrimSuffix(host, "."))
}
