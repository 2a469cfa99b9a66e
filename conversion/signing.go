package conversion

import (
	"crypto"
	"crypto/rsa"
	"encoding/base64"
	"fmt"

	"github.com/go-jose/go-jose/v4"
	"github.com/ruteri/tdf-pipeline/interfaces"
)

// NewSigningKeyMaterial wraps an RSA private key as RS256 signing material.
// The public counterpart is derived from it and both share an RFC 7638 key id.
func NewSigningKeyMaterial(key crypto.PrivateKey) (*interfaces.SigningKeyMaterial, error) {
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok || rsaKey == nil {
		return nil, fmt.Errorf("%w: %T", interfaces.ErrUnsupportedKey, key)
	}

	private := jose.JSONWebKey{
		Key:       rsaKey,
		Algorithm: string(jose.RS256),
		Use:       "sig",
	}
	if !private.Valid() {
		return nil, fmt.Errorf("%w: invalid RSA key", interfaces.ErrUnsupportedKey)
	}

	public := private.Public()
	thumbprint, err := public.Thumbprint(crypto.SHA256)
	if err != nil {
		return nil, fmt.Errorf("failed to compute key thumbprint: %w", err)
	}
	private.KeyID = base64.RawURLEncoding.EncodeToString(thumbprint)
	public.KeyID = private.KeyID

	return &interfaces.SigningKeyMaterial{
		Algorithm:  interfaces.SigningAlgorithmRS256,
		PrivateKey: private,
		PublicKey:  public,
	}, nil
}
