package interfaces

import (
	"errors"
	"fmt"
)

// Error taxonomy of the provisioning protocol. Specific errors wrap their
// category so callers can match either with errors.Is.
var (
	// ErrConfiguration covers missing or unreadable operator material. Fatal at startup.
	ErrConfiguration = errors.New("configuration error")

	// ErrKeyFileNotFound is returned when the provider key file cannot be read.
	ErrKeyFileNotFound = fmt.Errorf("%w: key file not found", ErrConfiguration)

	// ErrMaterialNotFound is returned when a material source has no content at its location.
	ErrMaterialNotFound = fmt.Errorf("%w: material not found", ErrConfiguration)

	// ErrBackendUnavailable is returned when a material backend cannot be reached.
	ErrBackendUnavailable = fmt.Errorf("%w: material backend unavailable", ErrConfiguration)

	// ErrInvalidLocationURI is returned when a material location URI is malformed or unsupported.
	ErrInvalidLocationURI = fmt.Errorf("%w: invalid material location URI", ErrConfiguration)
)

var (
	// ErrMalformedMessage is returned for structurally invalid protocol messages.
	ErrMalformedMessage = errors.New("malformed message")

	// ErrInvalidPublicKey is returned when the enclave public key is not a point on P-256.
	ErrInvalidPublicKey = fmt.Errorf("%w: invalid public key", ErrMalformedMessage)
)

var (
	// ErrAttestationFailure is the category of every attestation gate rejection.
	ErrAttestationFailure = errors.New("attestation failure")

	ErrReportVerificationFailed = fmt.Errorf("%w: report verification failed", ErrAttestationFailure)
	ErrSignerMismatch           = fmt.Errorf("%w: signer mismatch", ErrAttestationFailure)
	ErrPolicyViolation          = fmt.Errorf("%w: policy violation", ErrAttestationFailure)
	ErrReportDataMismatch       = fmt.Errorf("%w: report data mismatch", ErrAttestationFailure)
)

var (
	// ErrCryptographicFailure covers key parse and encryption errors from the primitives.
	ErrCryptographicFailure = errors.New("cryptographic failure")

	ErrKeyParse                 = fmt.Errorf("%w: key parse error", ErrCryptographicFailure)
	ErrNotRSAKey                = fmt.Errorf("%w: not an RSA key", ErrKeyParse)
	ErrEncryptionBufferTooSmall = fmt.Errorf("%w: encryption buffer too small", ErrCryptographicFailure)
	ErrEncryptionFailed         = fmt.Errorf("%w: encryption failed", ErrCryptographicFailure)
)
