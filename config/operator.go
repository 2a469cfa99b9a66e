// Package config holds the operator configuration shared by the binaries.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ruteri/tdf-pipeline/interfaces"
	"github.com/ruteri/tdf-pipeline/pipeline"
)

// DefaultPullSize is the number of items taken per batch when unset.
const DefaultPullSize = pipeline.DefaultPullSize

var (
	ErrMissingPlatformEndpoint  = errors.New("platform endpoint is required")
	ErrMissingClientCredentials = errors.New("client id and client secret are required")
	ErrMissingPrivateKey        = errors.New("signing assertions requires a private key URI")
	ErrMissingVerificationKey   = errors.New("verifying assertions requires a verification key path")
	ErrInvalidPullSize          = errors.New("pull size must be at least 1")
)

// Operator is the operator supplied configuration of a pipeline.
type Operator struct {
	Platform interfaces.PlatformSettings

	// DefaultKASEndpoint is used when an item carries no kas_url attribute.
	// ${VAR} expressions are expanded once at startup.
	DefaultKASEndpoint string

	SignAssertions bool
	// PrivateKeyURI is file:///path/key.pem or vault://host:port/<mount>/<path>?field=<f>.
	PrivateKeyURI string

	VerifyAssertions bool
	// VerificationKeyPath points to a PEM certificate or public key.
	VerificationKeyPath string

	PullSize int
}

// WithDefaults returns a copy of o with unset fields defaulted.
func (o Operator) WithDefaults() Operator {
	if o.PullSize == 0 {
		o.PullSize = DefaultPullSize
	}
	return o
}

// Validate checks that the configuration is complete and consistent.
func (o Operator) Validate() error {
	var errs []error

	if strings.TrimSpace(o.Platform.Endpoint) == "" {
		errs = append(errs, ErrMissingPlatformEndpoint)
	}
	if o.Platform.ClientID == "" || o.Platform.ClientSecret == "" {
		errs = append(errs, ErrMissingClientCredentials)
	}
	if o.SignAssertions && o.PrivateKeyURI == "" {
		errs = append(errs, ErrMissingPrivateKey)
	}
	if o.VerifyAssertions && o.VerificationKeyPath == "" {
		errs = append(errs, ErrMissingVerificationKey)
	}
	if o.PullSize < 1 {
		errs = append(errs, fmt.Errorf("%w: %d", ErrInvalidPullSize, o.PullSize))
	}

	return errors.Join(errs...)
}
