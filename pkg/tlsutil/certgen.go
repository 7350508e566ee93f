// Package tlsutil generates the certificates the mock needs for local HTTPS:
// a self-signed server certificate when none is configured, and CA-signed
// client certificates for exercising the certificate-authentication path in
// tests.
package tlsutil

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"net"
	"time"
)

// CertificateConfig contains options for certificate generation.
type CertificateConfig struct {
	// Organization name for the certificate subject.
	Organization string
	// CommonName (CN) for the certificate subject.
	CommonName string
	// DNSNames are additional SANs.
	DNSNames []string
	// IPAddresses are additional IP SANs.
	IPAddresses []net.IP
	// ValidFor is the validity duration.
	ValidFor time.Duration
	// IsCA marks the certificate as a certificate authority.
	IsCA bool
}

// DefaultServerConfig returns a configuration suitable for a localhost HTTPS
// listener.
func DefaultServerConfig() *CertificateConfig {
	return &CertificateConfig{
		Organization: "mock-drc",
		CommonName:   "localhost",
		DNSNames:     []string{"localhost"},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1"), net.ParseIP("::1")},
		ValidFor:     365 * 24 * time.Hour,
	}
}

// GeneratedCertificate holds a generated certificate with its private key and
// PEM encodings.
type GeneratedCertificate struct {
	Certificate *x509.Certificate
	PrivateKey  *ecdsa.PrivateKey
	CertPEM     []byte
	KeyPEM      []byte
}

// TLSCertificate converts the generated pair into a tls.Certificate usable in
// a tls.Config.
func (g *GeneratedCertificate) TLSCertificate() (tls.Certificate, error) {
	return tls.X509KeyPair(g.CertPEM, g.KeyPEM)
}

func newTemplate(cfg *CertificateConfig) (*x509.Certificate, error) {
	serialLimit := new(big.Int).Lsh(big.NewInt(1), 128)
	serial, err := rand.Int(rand.Reader, serialLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial number: %w", err)
	}

	notBefore := time.Now()
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{cfg.Organization},
			CommonName:   cfg.CommonName,
		},
		NotBefore:             notBefore,
		NotAfter:              notBefore.Add(cfg.ValidFor),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
		DNSNames:              cfg.DNSNames,
		IPAddresses:           cfg.IPAddresses,
	}
	if cfg.IsCA {
		template.IsCA = true
		template.KeyUsage |= x509.KeyUsageCertSign
	}
	return template, nil
}

func finish(certDER []byte, key *ecdsa.PrivateKey) (*GeneratedCertificate, error) {
	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}

	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal private key: %w", err)
	}

	return &GeneratedCertificate{
		Certificate: cert,
		PrivateKey:  key,
		CertPEM:     pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER}),
		KeyPEM:      pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}),
	}, nil
}

// GenerateSelfSigned generates a self-signed certificate with the given
// configuration. Pass nil for localhost server defaults.
func GenerateSelfSigned(cfg *CertificateConfig) (*GeneratedCertificate, error) {
	if cfg == nil {
		cfg = DefaultServerConfig()
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate private key: %w", err)
	}

	template, err := newTemplate(cfg)
	if err != nil {
		return nil, err
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("failed to create certificate: %w", err)
	}
	return finish(certDER, key)
}

// GenerateSigned generates a certificate signed by the given CA. Used to mint
// client certificates against the configured client CA.
func GenerateSigned(cfg *CertificateConfig, ca *GeneratedCertificate) (*GeneratedCertificate, error) {
	if ca == nil || ca.Certificate == nil || ca.PrivateKey == nil {
		return nil, errors.New("ca certificate and key are required")
	}
	if cfg == nil {
		return nil, errors.New("certificate config is required")
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate private key: %w", err)
	}

	template, err := newTemplate(cfg)
	if err != nil {
		return nil, err
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, ca.Certificate, &key.PublicKey, ca.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create certificate: %w", err)
	}
	return finish(certDER, key)
}

// DecodeCertPEM decodes the first CERTIFICATE block from PEM data.
func DecodeCertPEM(certPEM []byte) (*x509.Certificate, error) {
	block, _ := pem.Decode(certPEM)
	if block == nil {
		return nil, errors.New("failed to decode PEM block")
	}
	if block.Type != "CERTIFICATE" {
		return nil, fmt.Errorf("unexpected PEM block type: %s", block.Type)
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}
	return cert, nil
}
