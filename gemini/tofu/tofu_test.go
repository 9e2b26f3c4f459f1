package tofu_test

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ninedraft/gemcore/gemini"
	"github.com/ninedraft/gemcore/gemini/internal/tester"
	"github.com/ninedraft/gemcore/gemini/tofu"
	"github.com/ninedraft/gemcore/internal/geminitest"
)

func newCert(test *testing.T, host string) tls.Certificate {
	test.Helper()
	var cert, err = geminitest.Certificate(host)
	require.NoError(test, err)
	return cert
}

func stateOf(cert tls.Certificate) tls.ConnectionState {
	return tls.ConnectionState{PeerCertificates: []*x509.Certificate{cert.Leaf}}
}

func TestPolicyVerify(test *testing.T) {
	var first, second = newCert(test, "example.com"), newCert(test, "example.com")
	var policy = &tofu.Policy{}

	require.NoError(test, policy.Verify("example.com", stateOf(first)), "first use must be trusted")
	require.NoError(test, policy.Verify("example.com", stateOf(first)))
	require.NoError(test, policy.Verify("EXAMPLE.com.", stateOf(first)), "host names are case insensitive")
	require.ErrorIs(test, policy.Verify("example.com", stateOf(second)), tofu.ErrCertificateChanged)

	require.NoError(test, policy.Verify("other.org", stateOf(second)), "pins are per host")
	require.Equal(test, []string{"example.com", "other.org"}, policy.Hosts())

	var pinned, ok = policy.Lookup("example.com")
	require.True(test, ok)
	require.Equal(test, tofu.FingerprintOf(first.Certificate[0]), pinned)

	policy.Forget("example.com")
	require.NoError(test, policy.Verify("example.com", stateOf(second)), "forgotten hosts are trusted on first use again")

	require.ErrorIs(test, policy.Verify("example.com", tls.ConnectionState{}), tofu.ErrNoCertificate)
}

func TestPolicyPins(test *testing.T) {
	var cert = newCert(test, "example.com")
	var policy = &tofu.Policy{}
	require.Empty(test, policy.Hosts())
	require.NoError(test, policy.Verify("example.com", stateOf(cert)))

	var restored = &tofu.Policy{}
	for host, fp := range policy.Pins() {
		restored.Pin(host, fp)
	}
	require.NoError(test, restored.Verify("example.com", stateOf(cert)))
	require.ErrorIs(test, restored.Verify("example.com", stateOf(newCert(test, "example.com"))),
		tofu.ErrCertificateChanged)

	var pins = policy.Pins()
	delete(pins, "example.com")
	require.Equal(test, []string{"example.com"}, policy.Hosts(), "Pins must return a copy")
}

func TestFingerprint(test *testing.T) {
	var fp = tofu.FingerprintOf([]byte("certificate"))
	var parsed, err = tofu.ParseFingerprint(fp.String())
	require.NoError(test, err)
	require.Equal(test, fp, parsed)

	_, err = tofu.ParseFingerprint("zz")
	require.Error(test, err)
	_, err = tofu.ParseFingerprint("abcd")
	require.Error(test, err)
}

func TestClientWithPolicy(test *testing.T) {
	var dialer = &tester.TLSDialer{
		Certificate: newCert(test, "example.com"),
		Response:    "20 text/gemini\r\nhello\n",
	}
	test.Cleanup(dialer.Wait)
	var client = &gemini.Client{Dial: dialer.Dial, Trust: &tofu.Policy{}}

	for i := 0; i < 2; i++ {
		var _, err = client.Fetch(context.Background(), "gemini://example.com/")
		require.NoError(test, err)
	}

	dialer.SetCertificate(newCert(test, "example.com"))
	var _, err = client.Fetch(context.Background(), "gemini://example.com/")
	require.ErrorIs(test, err, gemini.ErrUntrusted)
	require.ErrorIs(test, err, tofu.ErrCertificateChanged)
}
