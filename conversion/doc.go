// Package conversion derives the per-item ConversionConfig from item metadata and
// operator defaults.
//
// Resolution is split into small pure steps that each fail with a
// *interfaces.ConfigurationError:
//
//   - ResolveKASEndpoints: kas_url attribute, falling back to the operator default
//   - ResolveDataAttributes: tdf_attribute attribute, mandatory and non-empty
//   - BuildAssertions: one declaration per tdf_assertion_ attribute, validated fail-fast
//   - NewSigningKeyMaterial: RS256 key material for signing assertions
//
// Assembler combines them into one immutable config and never returns a partial one.
package conversion
