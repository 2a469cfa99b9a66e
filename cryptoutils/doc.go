// Package cryptoutils provides the key and certificate material used around
// TDF conversion.
//
// # Key Material
//
// PrivateKeyPEM and PublicKeyPEM wrap PEM encoded keys with validation:
//
//   - PrivateKeyPEM accepts PKCS#8 ("PRIVATE KEY"), PKCS#1 ("RSA PRIVATE KEY")
//     and SEC 1 ("EC PRIVATE KEY") blocks
//   - PublicKeyPEM accepts an X.509 certificate, a PKIX public key or a PKCS#1
//     RSA public key, and yields the RSA key used to verify RS256 assertions
//
// # Providers
//
// Signing keys are supplied through interfaces.PrivateKeyProvider:
//
//   - FilePrivateKeyProvider reads a PEM file
//   - VaultPrivateKeyProvider reads a PEM string from a Vault KV v2 secret
//
// PrivateKeyProviderFor selects one from a URI:
//
//	file:///etc/tdf/signing-key.pem
//	vault://vault.example.com:8200/secret/tdf/signing?field=private_key
//
// Vault authentication uses the standard VAULT_TOKEN environment variable.
//
// # Trust Material
//
// PEMTrustStore implements interfaces.TrustMaterialProvider from a PEM bundle of
// CA certificates, producing the TLS configuration of the platform connection.
package cryptoutils
