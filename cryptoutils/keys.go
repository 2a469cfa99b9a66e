package cryptoutils

import (
	"crypto"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	"github.com/ruteri/tdf-pipeline/interfaces"
)

// PrivateKeyPEM represents a private key in PEM format.
type PrivateKeyPEM []byte

// NewPrivateKeyPEM creates a new private key object from PEM-encoded data with validation.
func NewPrivateKeyPEM(data []byte) (PrivateKeyPEM, error) {
	key := PrivateKeyPEM(data)
	if _, err := key.GetPrivateKey(); err != nil {
		return nil, err
	}
	return key, nil
}

// Validate checks if the private key is properly formed.
func (priv PrivateKeyPEM) Validate() error {
	_, err := priv.GetPrivateKey()
	return err
}

// GetPrivateKey returns the parsed private key.
func (priv PrivateKeyPEM) GetPrivateKey() (crypto.PrivateKey, error) {
	block, _ := pem.Decode(priv)
	if block == nil {
		return nil, errors.New("invalid private key: not in PEM format")
	}

	switch block.Type {
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("invalid PKCS#8 private key: %w", err)
		}
		return key, nil
	case "RSA PRIVATE KEY":
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("invalid PKCS#1 private key: %w", err)
		}
		return key, nil
	case "EC PRIVATE KEY":
		key, err := x509.ParseECPrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("invalid EC private key: %w", err)
		}
		return key, nil
	default:
		return nil, fmt.Errorf("invalid private key: unsupported PEM block type %q", block.Type)
	}
}

// PublicKeyPEM represents an RSA public key, or a certificate carrying one, in PEM format.
type PublicKeyPEM []byte

// NewPublicKeyPEM creates a new public key object from PEM-encoded data with validation.
func NewPublicKeyPEM(data []byte) (PublicKeyPEM, error) {
	key := PublicKeyPEM(data)
	if _, err := key.GetRSAPublicKey(); err != nil {
		return nil, err
	}
	return key, nil
}

// Validate checks if the public key is properly formed.
func (pub PublicKeyPEM) Validate() error {
	_, err := pub.GetRSAPublicKey()
	return err
}

// GetRSAPublicKey returns the parsed RSA public key.
func (pub PublicKeyPEM) GetRSAPublicKey() (*rsa.PublicKey, error) {
	block, _ := pem.Decode(pub)
	if block == nil {
		return nil, errors.New("invalid public key: not in PEM format")
	}

	var key any
	var err error
	switch block.Type {
	case "CERTIFICATE":
		var cert *x509.Certificate
		cert, err = x509.ParseCertificate(block.Bytes)
		if err == nil {
			key = cert.PublicKey
		}
	case "PUBLIC KEY":
		key, err = x509.ParsePKIXPublicKey(block.Bytes)
	case "RSA PUBLIC KEY":
		key, err = x509.ParsePKCS1PublicKey(block.Bytes)
	default:
		return nil, fmt.Errorf("invalid public key: unsupported PEM block type %q", block.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid public key structure: %w", err)
	}

	rsaKey, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: %T", interfaces.ErrUnsupportedKey, key)
	}
	return rsaKey, nil
}

// LoadVerificationKey reads the RS256 assertion verification key from a PEM file.
func LoadVerificationKey(path string) (*rsa.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read verification key: %w", err)
	}
	return PublicKeyPEM(data).GetRSAPublicKey()
}
