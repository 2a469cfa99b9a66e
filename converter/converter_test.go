package converter

import (
	"bytes"
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/ruteri/tdf-pipeline/conversion"
	"github.com/ruteri/tdf-pipeline/interfaces"
	"github.com/ruteri/tdf-pipeline/sdkclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testAssertion = `{"id":"handling-1","type":"handling","scope":"tdo","appliesToState":"encrypted","statement":{"format":"json","value":"{}"}}`

type keyProvider struct {
	key crypto.PrivateKey
}

func (p keyProvider) PrivateKey(context.Context) (crypto.PrivateKey, error) {
	return p.key, nil
}

type failingSource struct {
	err error
}

func (s failingSource) Acquire(context.Context) (interfaces.TDFClient, func(), error) {
	return nil, nil, s.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newManager(client *sdkclient.FakeClient) *sdkclient.Manager {
	return sdkclient.NewManager(testLogger(), interfaces.PlatformSettings{Endpoint: "localhost:8080", UsePlaintext: true}, client.Builder(nil), nil)
}

func newAssembler(cfg conversion.AssemblerConfig) *conversion.Assembler {
	if cfg.DefaultKASEndpoint == "" {
		cfg.DefaultKASEndpoint = "http://localhost:8080/kas"
	}
	return conversion.NewAssembler(testLogger(), cfg)
}

func item(id string, payload []byte, kv ...string) interfaces.Item {
	m := map[string]string{}
	for i := 0; i+1 < len(kv); i += 2 {
		m[kv[i]] = kv[i+1]
	}
	return interfaces.Item{ID: id, Attributes: interfaces.NewAttributes(m), Payload: payload}
}

func routes(outcomes []interfaces.Outcome) []interfaces.Route {
	out := make([]interfaces.Route, len(outcomes))
	for i, o := range outcomes {
		out[i] = o.Route
	}
	return out
}

func TestEncryptor_BatchIsolation(t *testing.T) {
	client := sdkclient.NewFakeClient()
	enc := NewEncryptor(testLogger(), interfaces.FormatZTDF, newManager(client), newAssembler(conversion.AssemblerConfig{}))

	var batch []interfaces.Item
	for i := 0; i < 5; i++ {
		attrs := "https://example.com/attr/c/value/s"
		if i == 2 {
			attrs = ""
		}
		batch = append(batch, item(fmt.Sprintf("item-%d", i), []byte(fmt.Sprintf("payload %d", i)), "tdf_attribute", attrs))
	}

	outcomes, err := enc.Convert(context.Background(), batch)
	require.NoError(t, err)
	require.Len(t, outcomes, 5)
	assert.Equal(t, []interfaces.Route{
		interfaces.RouteSuccess, interfaces.RouteSuccess, interfaces.RouteFailure, interfaces.RouteSuccess, interfaces.RouteSuccess,
	}, routes(outcomes))

	for i, outcome := range outcomes {
		assert.Equal(t, batch[i].ID, outcome.Item.ID)
	}

	failure := outcomes[2]
	assert.ErrorIs(t, failure.Err, interfaces.ErrNoDataAttributes)
	assert.True(t, interfaces.IsConfigurationError(failure.Err))
	assert.Equal(t, []byte("payload 2"), failure.Item.Payload)
	_, hasMIME := failure.Item.Attributes.Get(interfaces.MIMETypeAttribute)
	assert.False(t, hasMIME)

	success := outcomes[0]
	assert.NoError(t, success.Err)
	assert.NotEqual(t, []byte("payload 0"), success.Item.Payload)
	mime, _ := success.Item.Attributes.Get(interfaces.MIMETypeAttribute)
	assert.Equal(t, "application/ztdf+zip", mime)
	// original attributes are kept
	attr, _ := success.Item.Attributes.Get(interfaces.DataAttributesAttribute)
	assert.Equal(t, "https://example.com/attr/c/value/s", attr)

	assert.Len(t, client.Configs(), 4)
}

func TestEncryptor_MalformedAssertionIsolated(t *testing.T) {
	client := sdkclient.NewFakeClient()
	enc := NewEncryptor(testLogger(), interfaces.FormatZTDF, newManager(client), newAssembler(conversion.AssemblerConfig{}))

	const attr = "https://example.com/attr/c/value/s"
	malformed := `{"id":"handling-1","type":"handling","appliesToState":"encrypted","statement":{"format":"json","value":"{}"}}`
	batch := []interfaces.Item{
		item("first", []byte("payload 0"), "tdf_attribute", attr, "tdf_assertion_1", testAssertion),
		item("broken", []byte("payload 1"), "tdf_attribute", attr, "tdf_assertion_x", malformed),
		item("plain", []byte("payload 2"), "tdf_attribute", attr),
		item("last", []byte("payload 3"), "tdf_attribute", attr, "tdf_assertion_1", testAssertion),
	}

	outcomes, err := enc.Convert(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, []interfaces.Route{
		interfaces.RouteSuccess, interfaces.RouteFailure, interfaces.RouteSuccess, interfaces.RouteSuccess,
	}, routes(outcomes))

	broken := outcomes[1]
	assert.Equal(t, "broken", broken.Item.ID)
	assert.ErrorIs(t, broken.Err, interfaces.ErrInvalidAssertion)
	assert.True(t, interfaces.IsConfigurationError(broken.Err))
	assert.ErrorContains(t, broken.Err, "tdf_assertion_x")
	assert.Equal(t, []byte("payload 1"), broken.Item.Payload)
	raw, _ := broken.Item.Attributes.Get("tdf_assertion_x")
	assert.Equal(t, malformed, raw)

	for _, i := range []int{0, 2, 3} {
		assert.NoError(t, outcomes[i].Err)
		assert.NotEqual(t, batch[i].Payload, outcomes[i].Item.Payload)
	}
	assert.Len(t, client.Configs(), 3)
}

func TestRoundTrip(t *testing.T) {
	for _, format := range []interfaces.ContainerFormat{interfaces.FormatZTDF, interfaces.FormatNanoTDF} {
		t.Run(format.String(), func(t *testing.T) {
			client := sdkclient.NewFakeClient()
			manager := newManager(client)
			enc := NewEncryptor(testLogger(), format, manager, newAssembler(conversion.AssemblerConfig{}))
			dec := NewDecryptor(testLogger(), format, manager, DecryptorConfig{})

			payload := []byte{0x00, 0x01, 0xfe, 0xff, 'd', 'a', 't', 'a'}
			encrypted, err := enc.Convert(context.Background(), []interfaces.Item{item("a", payload, "tdf_attribute", "x")})
			require.NoError(t, err)
			require.Equal(t, interfaces.RouteSuccess, encrypted[0].Route)
			mime, _ := encrypted[0].Item.Attributes.Get(interfaces.MIMETypeAttribute)
			assert.Equal(t, format.ContentType(), mime)

			decrypted, err := dec.Convert(context.Background(), []interfaces.Item{encrypted[0].Item})
			require.NoError(t, err)
			require.Equal(t, interfaces.RouteSuccess, decrypted[0].Route)
			assert.Equal(t, payload, decrypted[0].Item.Payload)
			assert.Equal(t, uint64(1), manager.Generation())
		})
	}
}

func TestEncryptor_SizeGuard(t *testing.T) {
	client := sdkclient.NewFakeClient()
	enc := NewEncryptor(testLogger(), interfaces.FormatNanoTDF, newManager(client), newAssembler(conversion.AssemblerConfig{}))

	atLimit := item("at-limit", make([]byte, interfaces.MaxNanoTDFPayloadSize), "tdf_attribute", "x")
	overLimit := item("over-limit", make([]byte, interfaces.MaxNanoTDFPayloadSize+1), "tdf_attribute", "x")
	overLimitNoAttrs := item("over-limit-invalid", make([]byte, interfaces.MaxNanoTDFPayloadSize+1))

	outcomes, err := enc.Convert(context.Background(), []interfaces.Item{atLimit, overLimit, overLimitNoAttrs})
	require.NoError(t, err)
	assert.Equal(t, []interfaces.Route{interfaces.RouteSuccess, interfaces.RouteSizeExceeded, interfaces.RouteFailure}, routes(outcomes))
	assert.ErrorIs(t, outcomes[1].Err, ErrPayloadTooLarge)
	assert.Len(t, outcomes[1].Item.Payload, int(interfaces.MaxNanoTDFPayloadSize+1))

	// only the item at the limit reached the SDK
	assert.Len(t, client.Configs(), 1)
}

func TestEncryptor_ZTDFHasNoSizeGuard(t *testing.T) {
	client := sdkclient.NewFakeClient()
	enc := NewEncryptor(testLogger(), interfaces.FormatZTDF, newManager(client), newAssembler(conversion.AssemblerConfig{}))

	outcomes, err := enc.Convert(context.Background(), []interfaces.Item{
		item("big", make([]byte, interfaces.MaxNanoTDFPayloadSize+1), "tdf_attribute", "x"),
	})
	require.NoError(t, err)
	assert.Equal(t, interfaces.RouteSuccess, outcomes[0].Route)
}

func TestEncryptor_SDKFailure(t *testing.T) {
	client := sdkclient.NewFakeClient()
	client.Fail = func(input []byte) error {
		if bytes.Equal(input, []byte("poison")) {
			return errors.New("kas unavailable")
		}
		return nil
	}
	enc := NewEncryptor(testLogger(), interfaces.FormatZTDF, newManager(client), newAssembler(conversion.AssemblerConfig{}))

	outcomes, err := enc.Convert(context.Background(), []interfaces.Item{
		item("ok", []byte("fine"), "tdf_attribute", "x"),
		item("bad", []byte("poison"), "tdf_attribute", "x"),
	})
	require.NoError(t, err)
	assert.Equal(t, []interfaces.Route{interfaces.RouteSuccess, interfaces.RouteFailure}, routes(outcomes))

	var conversionErr *interfaces.ConversionError
	require.ErrorAs(t, outcomes[1].Err, &conversionErr)
	assert.Equal(t, "create ztdf", conversionErr.Op)
	assert.Equal(t, []byte("poison"), outcomes[1].Item.Payload)
}

func TestConvert_ClientBuildErrorAbortsBatch(t *testing.T) {
	source := failingSource{err: &interfaces.ClientBuildError{Err: errors.New("connection refused")}}
	batch := []interfaces.Item{item("a", []byte("x"), "tdf_attribute", "x")}

	enc := NewEncryptor(testLogger(), interfaces.FormatZTDF, source, newAssembler(conversion.AssemblerConfig{}))
	outcomes, err := enc.Convert(context.Background(), batch)
	require.Error(t, err)
	assert.True(t, interfaces.IsClientBuildError(err))
	assert.Nil(t, outcomes)

	dec := NewDecryptor(testLogger(), interfaces.FormatNanoTDF, source, DecryptorConfig{})
	outcomes, err = dec.Convert(context.Background(), batch)
	require.Error(t, err)
	assert.True(t, interfaces.IsClientBuildError(err))
	assert.Nil(t, outcomes)
}

func TestConvert_EmptyBatch(t *testing.T) {
	enc := NewEncryptor(testLogger(), interfaces.FormatZTDF, failingSource{err: errors.New("must not be called")}, newAssembler(conversion.AssemblerConfig{}))
	outcomes, err := enc.Convert(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, outcomes)
}

func TestDecryptor_Verification(t *testing.T) {
	signer, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	other, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	client := sdkclient.NewFakeClient()
	manager := newManager(client)
	enc := NewEncryptor(testLogger(), interfaces.FormatZTDF, manager, newAssembler(conversion.AssemblerConfig{
		SignAssertions: true,
		KeyProvider:    keyProvider{key: signer},
	}))

	encrypted, err := enc.Convert(context.Background(), []interfaces.Item{
		item("signed", []byte("secret"), "tdf_attribute", "x", "tdf_assertion_1", testAssertion),
	})
	require.NoError(t, err)
	require.Equal(t, interfaces.RouteSuccess, encrypted[0].Route)
	require.NotNil(t, client.Configs()[0].SigningKey())
	batch := []interfaces.Item{encrypted[0].Item, encrypted[0].Item}

	t.Run("verified with the signing key", func(t *testing.T) {
		loads := 0
		dec := NewDecryptor(testLogger(), interfaces.FormatZTDF, manager, DecryptorConfig{
			VerifyAssertions: true,
			LoadVerificationKey: func() (*rsa.PublicKey, error) {
				loads++
				return &signer.PublicKey, nil
			},
		})
		outcomes, err := dec.Convert(context.Background(), batch)
		require.NoError(t, err)
		assert.Equal(t, []interfaces.Route{interfaces.RouteSuccess, interfaces.RouteSuccess}, routes(outcomes))
		assert.Equal(t, []byte("secret"), outcomes[0].Item.Payload)
		assert.Equal(t, 1, loads, "verification key is loaded once per batch")
	})

	t.Run("wrong key fails items", func(t *testing.T) {
		dec := NewDecryptor(testLogger(), interfaces.FormatZTDF, manager, DecryptorConfig{
			VerifyAssertions:    true,
			LoadVerificationKey: func() (*rsa.PublicKey, error) { return &other.PublicKey, nil },
		})
		outcomes, err := dec.Convert(context.Background(), batch)
		require.NoError(t, err)
		assert.Equal(t, []interfaces.Route{interfaces.RouteFailure, interfaces.RouteFailure}, routes(outcomes))
		assert.ErrorIs(t, outcomes[0].Err, sdkclient.ErrAssertionVerification)
		assert.Equal(t, encrypted[0].Item.Payload, outcomes[0].Item.Payload)
	})

	t.Run("verification disabled", func(t *testing.T) {
		dec := NewDecryptor(testLogger(), interfaces.FormatZTDF, manager, DecryptorConfig{})
		outcomes, err := dec.Convert(context.Background(), batch[:1])
		require.NoError(t, err)
		assert.Equal(t, interfaces.RouteSuccess, outcomes[0].Route)

		verifications := client.Verifications()
		assert.True(t, verifications[len(verifications)-1].Disabled)
	})

	t.Run("unloadable key aborts the batch", func(t *testing.T) {
		dec := NewDecryptor(testLogger(), interfaces.FormatZTDF, manager, DecryptorConfig{
			VerifyAssertions:    true,
			LoadVerificationKey: func() (*rsa.PublicKey, error) { return nil, errors.New("no such file") },
		})
		outcomes, err := dec.Convert(context.Background(), batch)
		require.Error(t, err)
		assert.True(t, interfaces.IsConfigurationError(err))
		assert.Nil(t, outcomes)
	})

	t.Run("missing loader aborts the batch", func(t *testing.T) {
		dec := NewDecryptor(testLogger(), interfaces.FormatZTDF, manager, DecryptorConfig{VerifyAssertions: true})
		_, err := dec.Convert(context.Background(), batch)
		assert.True(t, interfaces.IsConfigurationError(err))
	})
}

func TestDecryptor_NotAContainer(t *testing.T) {
	client := sdkclient.NewFakeClient()
	dec := NewDecryptor(testLogger(), interfaces.FormatNanoTDF, newManager(client), DecryptorConfig{})

	outcomes, err := dec.Convert(context.Background(), []interfaces.Item{item("plain", []byte("not encrypted"))})
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, interfaces.RouteFailure, outcomes[0].Route)
	assert.ErrorIs(t, outcomes[0].Err, sdkclient.ErrNotAContainer)
	assert.Equal(t, []byte("not encrypted"), outcomes[0].Item.Payload)
}

func TestEncryptor_PassesConfigToSDK(t *testing.T) {
	client := &sdkclient.MockClient{}
	client.On("CreateNanoTDF", mock.Anything, mock.Anything, mock.Anything, mock.MatchedBy(func(cfg *interfaces.ConversionConfig) bool {
		return len(cfg.Endpoints()) == 2 && cfg.Endpoints()[0] == "https://kas-a" && cfg.Attributes().Contains("https://example.com/attr/a/value/b")
	})).Return(nil).Once()

	manager := sdkclient.NewManager(testLogger(), interfaces.PlatformSettings{}, func(context.Context, interfaces.ClientConfig) (interfaces.TDFClient, error) {
		return client, nil
	}, nil)
	enc := NewEncryptor(testLogger(), interfaces.FormatNanoTDF, manager, newAssembler(conversion.AssemblerConfig{}))

	outcomes, err := enc.Convert(context.Background(), []interfaces.Item{
		item("a", []byte("x"), "kas_url", "https://kas-a,https://kas-b", "tdf_attribute", "https://example.com/attr/a/value/b"),
	})
	require.NoError(t, err)
	assert.Equal(t, interfaces.RouteSuccess, outcomes[0].Route)
	client.AssertExpectations(t)
}
