// Package interfaces defines the types shared by the provisioning components:
// the two protocol messages and their wire encoding, the identity reported by a
// verified attestation report, the provisioned secrets, the material source
// abstraction and the error taxonomy.
//
// # Messages
//
// Message1 travels from the enclave host to the provider and carries the raw
// attestation report together with the enclave's ephemeral P-256 public key.
// Message2 travels back and carries the shared key and key share, each encrypted
// to that ephemeral key, plus the provider certificate. Both messages use a fixed
// little-endian layout; see wire.go.
//
// # Errors
//
// Errors form a two-level taxonomy. Every specific error wraps its category:
//
//	ErrConfiguration        ErrKeyFileNotFound, ErrMaterialNotFound, ErrBackendUnavailable, ErrInvalidLocationURI
//	ErrMalformedMessage     ErrInvalidPublicKey
//	ErrAttestationFailure   ErrReportVerificationFailed, ErrSignerMismatch, ErrPolicyViolation, ErrReportDataMismatch
//	ErrCryptographicFailure ErrKeyParse, ErrNotRSAKey, ErrEncryptionBufferTooSmall, ErrEncryptionFailed
package interfaces
