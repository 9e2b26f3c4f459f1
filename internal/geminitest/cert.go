package geminitest

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"net"
	"time"
)

const certLifetime = 24 * time.Hour

// Certificate issues a self-signed certificate for hosts.
// The first host is used as the subject common name, IP hosts are put into IP SANs.
// Every call generates a fresh key, so two certificates for the same host differ.
func Certificate(hosts ...string) (tls.Certificate, error) {
	if len(hosts) == 0 {
		hosts = []string{"localhost"}
	}
	var key, errKey = ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if errKey != nil {
		return tls.Certificate{}, fmt.Errorf("generating key: %w", errKey)
	}
	var serial, errSerial = rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 62))
	if errSerial != nil {
		return tls.Certificate{}, fmt.Errorf("generating serial number: %w", errSerial)
	}
	var now = time.Now()
	var template = &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName:   hosts[0],
			Organization: []string{"geminitest"},
		},
		NotBefore:             now.Add(-time.Minute),
		NotAfter:              now.Add(certLifetime),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	for _, host := range hosts {
		if ip := net.ParseIP(host); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
			continue
		}
		template.DNSNames = append(template.DNSNames, host)
	}

	var der, errCert = x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if errCert != nil {
		return tls.Certificate{}, fmt.Errorf("creating certificate: %w", errCert)
	}
	var leaf, errParse = x509.ParseCertificate(der)
	if errParse != nil {
		return tls.Certificate{}, fmt.Errorf("parsing certificate: %w", errParse)
	}
	return tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  key,
		Leaf:        leaf,
	}, nil
}

// TLSConfig returns a server config which presents cert.
func TLSConfig(cert tls.Certificate) *tls.Config {
	return &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{cert},
	}
}
