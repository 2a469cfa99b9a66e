package cryptoutils

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

// CACertBundle represents one or more CA certificates in PEM format.
type CACertBundle []byte

// NewCACertBundle creates a bundle from PEM-encoded data, requiring at least one certificate.
func NewCACertBundle(data []byte) (CACertBundle, error) {
	bundle := CACertBundle(data)
	certs, err := bundle.GetX509Certs()
	if err != nil {
		return nil, err
	}
	if len(certs) == 0 {
		return nil, errors.New("invalid CA bundle: no certificates found")
	}
	return bundle, nil
}

// GetX509Certs returns every certificate of the bundle. Non-certificate blocks are skipped.
func (b CACertBundle) GetX509Certs() ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	rest := []byte(b)
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("invalid CA certificate structure: %w", err)
		}
		certs = append(certs, cert)
	}
	return certs, nil
}

// PEMTrustStore turns a path to a PEM CA bundle into client TLS configuration.
// The bundle is added to the system roots when available.
type PEMTrustStore struct{}

func (PEMTrustStore) TLSConfig(_ context.Context, ref string) (*tls.Config, error) {
	data, err := os.ReadFile(ref)
	if err != nil {
		return nil, fmt.Errorf("failed to read trust store: %w", err)
	}

	bundle, err := NewCACertBundle(data)
	if err != nil {
		return nil, err
	}
	certs, err := bundle.GetX509Certs()
	if err != nil {
		return nil, err
	}

	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}
	for _, cert := range certs {
		pool.AddCert(cert)
	}

	return &tls.Config{
		RootCAs:    pool,
		MinVersion: tls.VersionTLS12,
	}, nil
}
