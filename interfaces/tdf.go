package interfaces

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-jose/go-jose/v4"
)

// ContainerFormat identifies the trusted data container produced or consumed.
type ContainerFormat int

const (
	// FormatZTDF is the zip based container carrying a manifest and optional assertions.
	FormatZTDF ContainerFormat = iota
	// FormatNanoTDF is the compact, size bounded container.
	FormatNanoTDF
)

// MaxNanoTDFPayloadSize is the largest payload accepted for NanoTDF creation.
const MaxNanoTDFPayloadSize int64 = 16777218

// ParseContainerFormat maps a format name to a ContainerFormat.
func ParseContainerFormat(name string) (ContainerFormat, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "ztdf", "tdf":
		return FormatZTDF, nil
	case "nanotdf", "nano":
		return FormatNanoTDF, nil
	default:
		return 0, fmt.Errorf("unsupported container format: %q", name)
	}
}

// String returns the canonical format name.
func (f ContainerFormat) String() string {
	switch f {
	case FormatZTDF:
		return "ztdf"
	case FormatNanoTDF:
		return "nanotdf"
	default:
		return "unknown"
	}
}

// ContentType returns the MIME type attached to items encrypted into this format.
func (f ContainerFormat) ContentType() string {
	switch f {
	case FormatZTDF:
		return "application/ztdf+zip"
	case FormatNanoTDF:
		return "application/nanotdf"
	default:
		return "application/octet-stream"
	}
}

// SizeBounded reports whether the format enforces MaxNanoTDFPayloadSize.
func (f ContainerFormat) SizeBounded() bool {
	return f == FormatNanoTDF
}

// SupportsAssertions reports whether assertion declarations apply to the format.
func (f ContainerFormat) SupportsAssertions() bool {
	return f == FormatZTDF
}

// AssertionType classifies an assertion. The zero value means unset.
type AssertionType int

const (
	AssertionTypeUnset AssertionType = iota
	AssertionTypeBase
	AssertionTypeHandling
)

// AssertionScope tells what an assertion is bound to. The zero value means unset.
type AssertionScope int

const (
	AssertionScopeUnset AssertionScope = iota
	AssertionScopeTrustedDataObject
	AssertionScopePayload
)

// AppliesToState tells whether the statement describes encrypted or plaintext data.
// The zero value means unset.
type AppliesToState int

const (
	AppliesToStateUnset AppliesToState = iota
	AppliesToStateEncrypted
	AppliesToStateUnencrypted
)

// ParseAssertionType maps text to an AssertionType; unknown text yields AssertionTypeUnset.
func ParseAssertionType(s string) AssertionType {
	switch strings.ToLower(s) {
	case "base", "other":
		return AssertionTypeBase
	case "handling":
		return AssertionTypeHandling
	default:
		return AssertionTypeUnset
	}
}

func (t AssertionType) String() string {
	switch t {
	case AssertionTypeBase:
		return "base"
	case AssertionTypeHandling:
		return "handling"
	default:
		return ""
	}
}

// ParseAssertionScope maps text to an AssertionScope; unknown text yields AssertionScopeUnset.
func ParseAssertionScope(s string) AssertionScope {
	switch strings.ToLower(s) {
	case "tdo", "trusteddataobj", "trusteddataobject":
		return AssertionScopeTrustedDataObject
	case "payload":
		return AssertionScopePayload
	default:
		return AssertionScopeUnset
	}
}

func (s AssertionScope) String() string {
	switch s {
	case AssertionScopeTrustedDataObject:
		return "tdo"
	case AssertionScopePayload:
		return "payload"
	default:
		return ""
	}
}

// ParseAppliesToState maps text to an AppliesToState; unknown text yields AppliesToStateUnset.
func ParseAppliesToState(s string) AppliesToState {
	switch strings.ToLower(s) {
	case "encrypted":
		return AppliesToStateEncrypted
	case "unencrypted":
		return AppliesToStateUnencrypted
	default:
		return AppliesToStateUnset
	}
}

func (s AppliesToState) String() string {
	switch s {
	case AppliesToStateEncrypted:
		return "encrypted"
	case AppliesToStateUnencrypted:
		return "unencrypted"
	default:
		return ""
	}
}

// Statement is the content of an assertion.
type Statement struct {
	Value  string
	Format string
}

// AssertionDeclaration is one validated assertion parsed from item metadata.
type AssertionDeclaration struct {
	ID             string
	Type           AssertionType
	Scope          AssertionScope
	AppliesToState AppliesToState
	Statement      Statement
}

// SigningAlgorithmRS256 is the only algorithm used to sign assertions.
const SigningAlgorithmRS256 = "RS256"

// SigningKeyMaterial carries the key used to sign an item's assertions and
// its public counterpart for verification configuration.
type SigningKeyMaterial struct {
	Algorithm  string
	PrivateKey jose.JSONWebKey
	PublicKey  jose.JSONWebKey
}

// KASEndpointList is an ordered list of Key Access Service endpoints.
type KASEndpointList []string

// DataAttributeSet is a set of policy attribute URIs.
type DataAttributeSet struct {
	values map[string]struct{}
}

// NewDataAttributeSet builds a set, collapsing duplicates.
func NewDataAttributeSet(values ...string) DataAttributeSet {
	set := DataAttributeSet{values: make(map[string]struct{}, len(values))}
	for _, v := range values {
		set.values[v] = struct{}{}
	}
	return set
}

// Len returns the number of distinct attributes.
func (s DataAttributeSet) Len() int {
	return len(s.values)
}

// Contains reports whether the attribute URI is in the set.
func (s DataAttributeSet) Contains(v string) bool {
	_, ok := s.values[v]
	return ok
}

// Values returns the attributes in lexical order.
func (s DataAttributeSet) Values() []string {
	out := make([]string, 0, len(s.values))
	for v := range s.values {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Equal compares two sets ignoring order.
func (s DataAttributeSet) Equal(other DataAttributeSet) bool {
	if len(s.values) != len(other.values) {
		return false
	}
	for v := range s.values {
		if !other.Contains(v) {
			return false
		}
	}
	return true
}

// ConversionConfig is the per-item configuration handed to the SDK.
// It is built once per item and never mutated afterwards.
type ConversionConfig struct {
	endpoints  KASEndpointList
	attributes DataAttributeSet
	assertions []AssertionDeclaration
	signingKey *SigningKeyMaterial
}

// NewConversionConfig copies its inputs into a new ConversionConfig.
// signingKey may be nil.
func NewConversionConfig(endpoints KASEndpointList, attributes DataAttributeSet, assertions []AssertionDeclaration, signingKey *SigningKeyMaterial) *ConversionConfig {
	cfg := &ConversionConfig{
		endpoints:  append(KASEndpointList(nil), endpoints...),
		attributes: NewDataAttributeSet(attributes.Values()...),
		assertions: append([]AssertionDeclaration(nil), assertions...),
	}
	if signingKey != nil {
		key := *signingKey
		cfg.signingKey = &key
	}
	return cfg
}

// Endpoints returns the KAS endpoints in resolution order.
func (c *ConversionConfig) Endpoints() KASEndpointList {
	return append(KASEndpointList(nil), c.endpoints...)
}

// Attributes returns the data attribute set.
func (c *ConversionConfig) Attributes() DataAttributeSet {
	return NewDataAttributeSet(c.attributes.Values()...)
}

// Assertions returns the assertion declarations in metadata key order.
func (c *ConversionConfig) Assertions() []AssertionDeclaration {
	return append([]AssertionDeclaration(nil), c.assertions...)
}

// SigningKey returns the signing key material, or nil when assertions are unsigned.
func (c *ConversionConfig) SigningKey() *SigningKeyMaterial {
	if c.signingKey == nil {
		return nil
	}
	key := *c.signingKey
	return &key
}
