package config

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/ruteri/tdf-pipeline/converter"
	"github.com/ruteri/tdf-pipeline/interfaces"
	"github.com/ruteri/tdf-pipeline/sdkclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeKey(t *testing.T) (string, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "signing.pem")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), 0600))
	return path, key
}

func writePublicKey(t *testing.T, key *rsa.PrivateKey) string {
	t.Helper()
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "verify.pem")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), 0600))
	return path
}

func TestOperator_BuildRejectsInvalid(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	_, err := Operator{}.Build(logger, sdkclient.NewFakeClient().Builder(nil))
	assert.ErrorIs(t, err, ErrMissingPlatformEndpoint)
}

func TestOperator_BuildRejectsBadKeyURI(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	o := validOperator()
	o.SignAssertions = true
	o.PrivateKeyURI = "ftp://keys/signing.pem"

	_, err := o.Build(logger, sdkclient.NewFakeClient().Builder(nil))
	assert.Error(t, err)
}

func TestRuntime_SignedRoundTrip(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	keyPath, key := writeKey(t)

	o := validOperator()
	o.DefaultKASEndpoint = "https://kas.example.com"
	o.SignAssertions = true
	o.PrivateKeyURI = "file://" + keyPath
	o.VerifyAssertions = true
	o.VerificationKeyPath = writePublicKey(t, key)

	fake := sdkclient.NewFakeClient()
	var built []interfaces.ClientConfig
	rt, err := o.Build(logger, fake.Builder(&built))
	require.NoError(t, err)

	encryptor, err := rt.Converter(converter.DirectionEncrypt, interfaces.FormatZTDF)
	require.NoError(t, err)
	decryptor, err := rt.Converter(converter.DirectionDecrypt, interfaces.FormatZTDF)
	require.NoError(t, err)

	item := interfaces.Item{
		ID: "doc",
		Attributes: interfaces.NewAttributes(map[string]string{
			"tdf_attribute":    "https://example.com/attr/a/value/b",
			"tdf_assertion_01": `{"id":"h","type":"handling","scope":"tdo","appliesToState":"encrypted","statement":{"format":"string","value":"secret"}}`,
		}),
		Payload: []byte("plaintext"),
	}

	ctx := context.Background()
	encrypted, err := encryptor.Convert(ctx, []interfaces.Item{item})
	require.NoError(t, err)
	require.Len(t, encrypted, 1)
	require.Equal(t, interfaces.RouteSuccess, encrypted[0].Route, "%v", encrypted[0].Err)

	configs := fake.Configs()
	require.Len(t, configs, 1)
	require.NotNil(t, configs[0].SigningKey())
	assert.Equal(t, interfaces.KASEndpointList{"https://kas.example.com"}, configs[0].Endpoints())

	decrypted, err := decryptor.Convert(ctx, []interfaces.Item{encrypted[0].Item})
	require.NoError(t, err)
	require.Len(t, decrypted, 1)
	require.Equal(t, interfaces.RouteSuccess, decrypted[0].Route, "%v", decrypted[0].Err)
	assert.Equal(t, []byte("plaintext"), decrypted[0].Item.Payload)

	require.Len(t, built, 1)
	assert.Equal(t, o.Platform.Endpoint, built[0].PlatformEndpoint)
	assert.Equal(t, uint64(1), rt.Clients.Generation())

	require.NoError(t, rt.Close())
	assert.True(t, fake.Closed())
}

func TestRuntime_UnknownDirection(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rt, err := validOperator().Build(logger, sdkclient.NewFakeClient().Builder(nil))
	require.NoError(t, err)

	_, err = rt.Converter(converter.Direction("sideways"), interfaces.FormatZTDF)
	assert.Error(t, err)
}
