package interfaces

import (
	"context"
	"crypto"
	"crypto/rsa"
	"crypto/tls"
	"io"
)

// PlatformSettings are the operator inputs used to build the shared SDK client.
// Any change to them invalidates the current client.
type PlatformSettings struct {
	// Endpoint is the platform endpoint in gRPC compatible form (no scheme).
	Endpoint string
	// ClientID and ClientSecret are the client credential pair.
	ClientID     string
	ClientSecret string
	// UsePlaintext disables TLS on the platform connection.
	UsePlaintext bool
	// TrustStoreRef optionally references CA material trusted for the platform connection.
	TrustStoreRef string
}

// Equal reports whether two settings would build the same client.
func (s PlatformSettings) Equal(other PlatformSettings) bool {
	return s == other
}

// ClientConfig is what a ClientBuilder receives: resolved settings plus TLS material.
type ClientConfig struct {
	PlatformEndpoint string
	ClientID         string
	ClientSecret     string
	UsePlaintext     bool
	// TLSConfig is nil when no trust store is configured.
	TLSConfig *tls.Config
}

// AssertionVerification configures how assertions of a ZTDF are checked on read.
type AssertionVerification struct {
	// Disabled turns assertion verification off entirely.
	Disabled bool
	// Key verifies RS256 signed assertions when set.
	Key *rsa.PublicKey
}

// TDFClient is the narrow view of the Trusted Data SDK used by the pipeline.
// Implementations hold the platform connection and the KAS client.
type TDFClient interface {
	// CreateTDF writes a ZTDF container for the plaintext read from r.
	CreateTDF(ctx context.Context, w io.Writer, r io.ReadSeeker, cfg *ConversionConfig) error

	// LoadTDF opens the ZTDF read from r and writes the recovered plaintext to w.
	LoadTDF(ctx context.Context, w io.Writer, r io.ReadSeeker, verification AssertionVerification) error

	// CreateNanoTDF writes a NanoTDF container for the plaintext read from r.
	CreateNanoTDF(ctx context.Context, w io.Writer, r io.Reader, cfg *ConversionConfig) error

	// ReadNanoTDF opens the NanoTDF read from r and writes the recovered plaintext to w.
	ReadNanoTDF(ctx context.Context, w io.Writer, r io.ReadSeeker) error

	// Close releases the platform connection.
	Close() error
}

// ClientBuilder constructs a TDFClient. Building may dial the platform.
type ClientBuilder func(ctx context.Context, cfg ClientConfig) (TDFClient, error)

// PrivateKeyProvider yields the private key used to sign assertions.
// Providers return ErrKeyNotFound when no key is available.
type PrivateKeyProvider interface {
	PrivateKey(ctx context.Context) (crypto.PrivateKey, error)
}

// TrustMaterialProvider turns a trust store reference into client TLS configuration.
type TrustMaterialProvider interface {
	TLSConfig(ctx context.Context, ref string) (*tls.Config, error)
}
