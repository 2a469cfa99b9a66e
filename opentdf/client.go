// Package opentdf implements interfaces.TDFClient on the OpenTDF platform SDK.
package opentdf

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/opentdf/platform/sdk"
	"github.com/ruteri/tdf-pipeline/interfaces"
)

// Client adapts *sdk.SDK to interfaces.TDFClient.
type Client struct {
	sdk *sdk.SDK
	log *slog.Logger
}

// NewClientBuilder returns a ClientBuilder connecting to the platform with
// client credentials.
func NewClientBuilder(log *slog.Logger) interfaces.ClientBuilder {
	return func(_ context.Context, cfg interfaces.ClientConfig) (interfaces.TDFClient, error) {
		s, err := sdk.New(cfg.PlatformEndpoint, sdkOptions(cfg)...)
		if err != nil {
			return nil, fmt.Errorf("failed to create SDK: %w", err)
		}
		return &Client{sdk: s, log: log}, nil
	}
}

func sdkOptions(cfg interfaces.ClientConfig) []sdk.Option {
	opts := []sdk.Option{sdk.WithClientCredentials(cfg.ClientID, cfg.ClientSecret, nil)}
	if cfg.UsePlaintext {
		opts = append(opts, sdk.WithInsecurePlaintextConn())
	}
	if cfg.TLSConfig != nil {
		opts = append(opts, sdk.WithTLSCredentials(cfg.TLSConfig, nil))
	}
	return opts
}

// CreateTDF writes a ZTDF container wrapping r to w, keyed to every KAS
// endpoint of cfg and carrying its data attributes and assertions.
func (c *Client) CreateTDF(_ context.Context, w io.Writer, r io.ReadSeeker, cfg *interfaces.ConversionConfig) error {
	opts := []sdk.TDFOption{
		sdk.WithKasInformation(kasInfo(cfg.Endpoints())...),
		sdk.WithDataAttributes(cfg.Attributes().Values()...),
	}
	if assertions := assertionConfigs(cfg); len(assertions) > 0 {
		opts = append(opts, sdk.WithAssertions(assertions...))
	}

	_, err := c.sdk.CreateTDF(w, r, opts...)
	return err
}

// LoadTDF decrypts the ZTDF container in r into w. Assertion signatures are
// checked according to verification.
func (c *Client) LoadTDF(_ context.Context, w io.Writer, r io.ReadSeeker, verification interfaces.AssertionVerification) error {
	reader, err := c.sdk.LoadTDF(r, readerOptions(verification)...)
	if err != nil {
		return err
	}
	_, err = reader.WriteTo(w)
	return err
}

// CreateNanoTDF writes a NanoTDF container to w. NanoTDF holds a single KAS,
// so only the first endpoint of cfg is used.
func (c *Client) CreateNanoTDF(_ context.Context, w io.Writer, r io.Reader, cfg *interfaces.ConversionConfig) error {
	nanoConfig, err := c.sdk.NewNanoTDFConfig()
	if err != nil {
		return err
	}

	endpoints := cfg.Endpoints()
	if len(endpoints) == 0 {
		return interfaces.ErrNoKASEndpoints
	}
	if err := nanoConfig.SetKasURL(endpoints[0]); err != nil {
		return fmt.Errorf("invalid KAS endpoint %q: %w", endpoints[0], err)
	}
	if err := nanoConfig.SetAttributes(cfg.Attributes().Values()); err != nil {
		return fmt.Errorf("invalid data attributes: %w", err)
	}

	_, err = c.sdk.CreateNanoTDF(w, r, *nanoConfig)
	return err
}

// ReadNanoTDF decrypts the NanoTDF container in r into w.
func (c *Client) ReadNanoTDF(_ context.Context, w io.Writer, r io.ReadSeeker) error {
	_, err := c.sdk.ReadNanoTDF(w, r)
	return err
}

// Close releases the SDK connections.
func (c *Client) Close() error {
	c.log.Info("SDK - close")
	return c.sdk.Close()
}

func kasInfo(endpoints interfaces.KASEndpointList) []sdk.KASInfo {
	infos := make([]sdk.KASInfo, 0, len(endpoints))
	for _, endpoint := range endpoints {
		infos = append(infos, sdk.KASInfo{URL: endpoint})
	}
	return infos
}

func assertionConfigs(cfg *interfaces.ConversionConfig) []sdk.AssertionConfig {
	declarations := cfg.Assertions()
	if len(declarations) == 0 {
		return nil
	}

	var signingKey sdk.AssertionKey
	if key := cfg.SigningKey(); key != nil {
		signingKey = sdk.AssertionKey{Alg: sdk.AssertionKeyAlgRS256, Key: key.PrivateKey.Key}
	}

	configs := make([]sdk.AssertionConfig, 0, len(declarations))
	for _, d := range declarations {
		configs = append(configs, sdk.AssertionConfig{
			ID:             d.ID,
			Type:           assertionType(d.Type),
			Scope:          assertionScope(d.Scope),
			AppliesToState: appliesToState(d.AppliesToState),
			Statement: sdk.Statement{
				Format: d.Statement.Format,
				Value:  d.Statement.Value,
			},
			SigningKey: signingKey,
		})
	}
	return configs
}

func readerOptions(verification interfaces.AssertionVerification) []sdk.TDFReaderOption {
	switch {
	case verification.Disabled:
		return []sdk.TDFReaderOption{sdk.WithDisableAssertionVerification(true)}
	case verification.Key != nil:
		return []sdk.TDFReaderOption{sdk.WithAssertionVerificationKeys(sdk.AssertionVerificationKeys{
			DefaultKey: sdk.AssertionKey{Alg: sdk.AssertionKeyAlgRS256, Key: verification.Key},
		})}
	default:
		return nil
	}
}

func assertionType(t interfaces.AssertionType) sdk.AssertionType {
	if t == interfaces.AssertionTypeHandling {
		return sdk.HandlingAssertion
	}
	return sdk.BaseAssertion
}

func assertionScope(s interfaces.AssertionScope) sdk.Scope {
	if s == interfaces.AssertionScopePayload {
		return sdk.PayloadScope
	}
	return sdk.TrustedDataObjScope
}

func appliesToState(s interfaces.AppliesToState) sdk.AppliesToState {
	if s == interfaces.AppliesToStateUnencrypted {
		return sdk.Unencrypted
	}
	return sdk.Encrypted
}
