// Package interfaces defines the core types and contracts of the TDF conversion
// pipeline, separating definitions from their implementations.
//
// # Items and Routing
//
// Item: an opaque payload with read-only metadata (Attributes). Metadata is only
// reached through typed accessors keyed by AttributeKey.
//
// Route/Outcome: every item of a batch ends in exactly one Route (success, failure,
// exceeds_size_limit). Failed items keep their original payload.
//
// # Conversion Configuration
//
// ConversionConfig: the immutable per-item aggregate of KAS endpoints, data
// attributes, assertion declarations and optional signing key material.
//
// AssertionDeclaration: a validated assertion parsed from a tdf_assertion_ attribute.
//
// # Collaborators
//
//   - TDFClient: the narrow view of the Trusted Data SDK (create/read containers)
//   - ClientBuilder: constructs a TDFClient from ClientConfig
//   - PrivateKeyProvider: yields the assertion signing key
//   - TrustMaterialProvider: turns a trust store reference into TLS configuration
//   - ItemStore: supplies and receives items for the host runner
//   - BatchConverter: converts one batch
//
// # Error Types
//
//   - ConfigurationError: invalid per-item or operator configuration
//   - ConversionError: failure surfaced by the SDK
//   - ClientBuildError: the shared SDK client could not be built; fatal for the batch
package interfaces
