package conversion

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/ruteri/tdf-pipeline/interfaces"
)

// AssemblerConfig holds the operator inputs used for every item.
type AssemblerConfig struct {
	// DefaultKASEndpoint is used when an item carries no kas_url attribute.
	// ${VAR} expressions are expanded once, at construction.
	DefaultKASEndpoint string

	// SignAssertions enables RS256 signing of assertions when a key is available.
	SignAssertions bool

	// KeyProvider supplies the signing key. May be nil.
	KeyProvider interfaces.PrivateKeyProvider
}

// Assembler builds the ConversionConfig of single items.
type Assembler struct {
	defaultKASEndpoint string
	signAssertions     bool
	keyProvider        interfaces.PrivateKeyProvider
	log                *slog.Logger
}

// NewAssembler creates an Assembler.
func NewAssembler(log *slog.Logger, cfg AssemblerConfig) *Assembler {
	return &Assembler{
		defaultKASEndpoint: os.ExpandEnv(cfg.DefaultKASEndpoint),
		signAssertions:     cfg.SignAssertions,
		keyProvider:        cfg.KeyProvider,
		log:                log,
	}
}

// Assemble resolves endpoints, data attributes and, for formats carrying them,
// assertions with optional signing material. The first failure is returned as a
// *interfaces.ConfigurationError and no config is produced.
func (a *Assembler) Assemble(ctx context.Context, item interfaces.Item, format interfaces.ContainerFormat) (*interfaces.ConversionConfig, error) {
	endpoints, err := ResolveKASEndpoints(item.Attributes, a.defaultKASEndpoint)
	if err != nil {
		return nil, err
	}

	attributes, err := ResolveDataAttributes(item.Attributes)
	if err != nil {
		return nil, err
	}

	if !format.SupportsAssertions() {
		return interfaces.NewConversionConfig(endpoints, attributes, nil, nil), nil
	}

	assertions, err := BuildAssertions(item.Attributes)
	if err != nil {
		return nil, err
	}

	var signingKey *interfaces.SigningKeyMaterial
	if a.signAssertions && len(assertions) > 0 {
		signingKey, err = a.signingKey(ctx)
		if err != nil {
			return nil, err
		}
		if signingKey == nil {
			a.log.Debug("no signing key available, assertions left unsigned", "item", item.ID)
		}
	}

	return interfaces.NewConversionConfig(endpoints, attributes, assertions, signingKey), nil
}

// signingKey returns nil without error when the provider has no key to offer.
func (a *Assembler) signingKey(ctx context.Context) (*interfaces.SigningKeyMaterial, error) {
	if a.keyProvider == nil {
		return nil, nil
	}

	key, err := a.keyProvider.PrivateKey(ctx)
	if errors.Is(err, interfaces.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, interfaces.NewConfigurationError(err, "could not load signing key")
	}
	if key == nil {
		return nil, nil
	}

	material, err := NewSigningKeyMaterial(key)
	if err != nil {
		return nil, interfaces.NewConfigurationError(err, "could not use signing key")
	}
	return material, nil
}
