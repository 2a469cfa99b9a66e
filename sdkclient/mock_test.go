package sdkclient

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"testing"

	"github.com/ruteri/tdf-pipeline/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeClient_RoundTrip(t *testing.T) {
	ctx := context.Background()
	client := NewFakeClient()
	cfg := interfaces.NewConversionConfig(
		interfaces.KASEndpointList{"https://kas"},
		interfaces.NewDataAttributeSet("https://example.com/attr/a/value/b"),
		nil, nil,
	)

	var container bytes.Buffer
	require.NoError(t, client.CreateTDF(ctx, &container, bytes.NewReader([]byte("plaintext")), cfg))
	assert.NotEqual(t, []byte("plaintext"), container.Bytes())

	var plaintext bytes.Buffer
	require.NoError(t, client.LoadTDF(ctx, &plaintext, bytes.NewReader(container.Bytes()), interfaces.AssertionVerification{Disabled: true}))
	assert.Equal(t, "plaintext", plaintext.String())

	// Containers of one format are rejected by the other.
	err := client.ReadNanoTDF(ctx, &plaintext, bytes.NewReader(container.Bytes()))
	assert.ErrorIs(t, err, ErrNotAContainer)

	require.Len(t, client.Configs(), 1)
	assert.Same(t, cfg, client.Configs()[0])
}

func TestFakeClient_VerificationKey(t *testing.T) {
	ctx := context.Background()
	signer, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	other, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	client := NewFakeClient()
	cfg := interfaces.NewConversionConfig(
		interfaces.KASEndpointList{"https://kas"},
		interfaces.NewDataAttributeSet("a"),
		[]interfaces.AssertionDeclaration{{ID: "a1"}},
		&interfaces.SigningKeyMaterial{Algorithm: interfaces.SigningAlgorithmRS256},
	)
	kid, err := keyID(&signer.PublicKey)
	require.NoError(t, err)
	key := cfg.SigningKey()
	key.PublicKey.KeyID = kid
	cfg = interfaces.NewConversionConfig(cfg.Endpoints(), cfg.Attributes(), cfg.Assertions(), key)

	var container bytes.Buffer
	require.NoError(t, client.CreateTDF(ctx, &container, bytes.NewReader([]byte("data")), cfg))

	var out bytes.Buffer
	require.NoError(t, client.LoadTDF(ctx, &out, bytes.NewReader(container.Bytes()), interfaces.AssertionVerification{Key: &signer.PublicKey}))
	assert.Equal(t, "data", out.String())

	err = client.LoadTDF(ctx, &out, bytes.NewReader(container.Bytes()), interfaces.AssertionVerification{Key: &other.PublicKey})
	assert.ErrorIs(t, err, ErrAssertionVerification)
}
