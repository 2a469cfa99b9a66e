package converter

import (
	"bytes"
	"context"
	"crypto/rsa"
	"log/slog"

	"github.com/ruteri/tdf-pipeline/interfaces"
)

// VerificationKeyLoader loads the RS256 public key assertions are verified with.
type VerificationKeyLoader func() (*rsa.PublicKey, error)

// DecryptorConfig holds the operator's assertion verification settings.
// They only apply to ZTDF.
type DecryptorConfig struct {
	// VerifyAssertions enables verification with the key from LoadVerificationKey.
	// When false verification is explicitly disabled.
	VerifyAssertions    bool
	LoadVerificationKey VerificationKeyLoader
}

// Decryptor recovers plaintext from containers of one format.
type Decryptor struct {
	format  interfaces.ContainerFormat
	clients ClientSource
	cfg     DecryptorConfig
	log     *slog.Logger
}

// NewDecryptor creates a Decryptor reading containers of the given format.
func NewDecryptor(log *slog.Logger, format interfaces.ContainerFormat, clients ClientSource, cfg DecryptorConfig) *Decryptor {
	return &Decryptor{
		format:  format,
		clients: clients,
		cfg:     cfg,
		log:     log,
	}
}

// Format returns the consumed container format.
func (d *Decryptor) Format() interfaces.ContainerFormat {
	return d.format
}

// Convert decrypts the batch. The verification settings are resolved once,
// before the first item; failing to load the key aborts the batch.
func (d *Decryptor) Convert(ctx context.Context, batch []interfaces.Item) ([]interfaces.Outcome, error) {
	var verification interfaces.AssertionVerification
	prepare := func() error {
		var err error
		verification, err = d.verification()
		return err
	}

	return runBatch(ctx, d.log, d.clients, DirectionDecrypt, d.format, batch, prepare,
		func(ctx context.Context, client interfaces.TDFClient, item interfaces.Item) interfaces.Outcome {
			return d.decrypt(ctx, client, item, verification)
		})
}

func (d *Decryptor) verification() (interfaces.AssertionVerification, error) {
	if !d.format.SupportsAssertions() {
		return interfaces.AssertionVerification{}, nil
	}
	if !d.cfg.VerifyAssertions {
		return interfaces.AssertionVerification{Disabled: true}, nil
	}
	if d.cfg.LoadVerificationKey == nil {
		return interfaces.AssertionVerification{}, interfaces.NewConfigurationError(interfaces.ErrKeyNotFound, "assertion verification enabled without a verification key")
	}

	key, err := d.cfg.LoadVerificationKey()
	if err != nil {
		return interfaces.AssertionVerification{}, interfaces.NewConfigurationError(err, "could not load assertion verification key")
	}
	return interfaces.AssertionVerification{Key: key}, nil
}

func (d *Decryptor) decrypt(ctx context.Context, client interfaces.TDFClient, item interfaces.Item, verification interfaces.AssertionVerification) interfaces.Outcome {
	container := bytes.NewReader(item.Payload)

	var out bytes.Buffer
	var err error
	switch d.format {
	case interfaces.FormatNanoTDF:
		err = client.ReadNanoTDF(ctx, &out, container)
	default:
		err = client.LoadTDF(ctx, &out, container, verification)
	}
	if err != nil {
		return failed(item, &interfaces.ConversionError{Op: "read " + d.format.String(), Err: err})
	}

	return interfaces.Outcome{
		Item: interfaces.Item{
			ID:         item.ID,
			Attributes: item.Attributes,
			Payload:    out.Bytes(),
		},
		Route: interfaces.RouteSuccess,
	}
}
