package interfaces

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingKASEndpoint is returned when an item has no kas_url attribute and
	// the operator configured no default endpoint.
	ErrMissingKASEndpoint = errors.New("missing KAS endpoint")

	// ErrNoKASEndpoints is returned when the endpoint source is empty after splitting.
	ErrNoKASEndpoints = errors.New("no endpoints")

	// ErrNoDataAttributes is returned when an item carries no data attributes.
	ErrNoDataAttributes = errors.New("no data attributes")

	// ErrInvalidAssertion is returned for malformed or schema-invalid assertion declarations.
	ErrInvalidAssertion = errors.New("invalid assertion")

	// ErrUnsupportedKey is returned when key material is not an RSA key.
	ErrUnsupportedKey = errors.New("unsupported key type")

	// ErrKeyNotFound is returned by key providers that have no key to offer.
	ErrKeyNotFound = errors.New("key not found")

	// ErrItemNotFound is returned by item stores for unknown item ids.
	ErrItemNotFound = errors.New("item not found")
)

// ConfigurationError reports a problem with the configuration of a single item,
// or with operator configuration needed before a batch can start.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %v", e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// NewConfigurationError wraps err, optionally prefixed with a formatted context message.
func NewConfigurationError(err error, format string, args ...any) *ConfigurationError {
	if format == "" {
		return &ConfigurationError{Err: err}
	}
	return &ConfigurationError{Err: fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)}
}

// ConversionError reports a failure surfaced by the SDK while creating or reading a container.
type ConversionError struct {
	Op  string
	Err error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("conversion error: %s: %v", e.Op, e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// ClientBuildError reports that the shared SDK client could not be constructed.
// It is fatal for the batch being processed.
type ClientBuildError struct {
	Err error
}

func (e *ClientBuildError) Error() string {
	return fmt.Sprintf("could not build SDK client: %v", e.Err)
}

func (e *ClientBuildError) Unwrap() error {
	return e.Err
}

// IsConfigurationError reports whether err is or wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

// IsClientBuildError reports whether err is or wraps a ClientBuildError.
func IsClientBuildError(err error) bool {
	var target *ClientBuildError
	return errors.As(err, &target)
}
