package interfaces

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
)

const (
	// ECP256KeySize is the field width of a P-256 coordinate or scalar.
	ECP256KeySize = 32

	// EnclavePublicKeySize is the size of an enclave ephemeral public key on the wire:
	// little-endian x followed by little-endian y.
	EnclavePublicKeySize = 2 * ECP256KeySize

	// SecretKeySize is the size of the shared key and of the key share.
	SecretKeySize = 16

	// CiphertextCapacity is the fixed size of each ciphertext buffer in message2.
	CiphertextCapacity = 256

	// MaxUserCertSize is the fixed size of the certificate buffer in message2,
	// including the terminating NUL.
	MaxUserCertSize = 2000

	// SignerIDSize is the size of a reported signer identity (MRSIGNER).
	SignerIDSize = 32

	// ProductIDSize is the size of the product identifier in a parsed report.
	ProductIDSize = 16

	// MaxReportSize bounds the report carried in message1.
	MaxReportSize = 1 << 20

	// Message2Size is the serialized size of message2.
	Message2Size = 2*CiphertextCapacity + MaxUserCertSize + 4
)

// SecretKey is a fixed-size symmetric key released to an attested enclave.
type SecretKey [SecretKeySize]byte

// NewSecretKey accepts either exactly SecretKeySize raw bytes or their hex encoding
// (surrounding whitespace and an optional 0x prefix are ignored for hex).
func NewSecretKey(data []byte) (SecretKey, error) {
	var key SecretKey
	if len(data) == SecretKeySize {
		copy(key[:], data)
		return key, nil
	}

	clean := bytes.TrimPrefix(bytes.TrimSpace(data), []byte("0x"))
	if len(clean) != 2*SecretKeySize {
		return SecretKey{}, fmt.Errorf("%w: secret key must be %d raw bytes or %d hex characters, got %d bytes", ErrConfiguration, SecretKeySize, 2*SecretKeySize, len(data))
	}
	if _, err := hex.Decode(key[:], clean); err != nil {
		return SecretKey{}, fmt.Errorf("%w: invalid secret key hex: %v", ErrConfiguration, err)
	}
	return key, nil
}

// ProvisionedSecrets are the two symmetric secrets released after successful attestation.
type ProvisionedSecrets struct {
	SharedKey SecretKey
	KeyShare  SecretKey
}

// UserCert is the provider credential copied into every message2. It travels
// NUL-terminated, so it must not contain NUL bytes itself.
type UserCert []byte

// NewUserCert validates a provider credential. A single trailing NUL is accepted and stripped.
func NewUserCert(data []byte) (UserCert, error) {
	data = bytes.TrimSuffix(data, []byte{0})
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty user certificate", ErrConfiguration)
	}
	if bytes.IndexByte(data, 0) >= 0 {
		return nil, fmt.Errorf("%w: user certificate contains a NUL byte", ErrConfiguration)
	}
	if len(data)+1 > MaxUserCertSize {
		return nil, fmt.Errorf("%w: user certificate is %d bytes, at most %d allowed", ErrConfiguration, len(data), MaxUserCertSize-1)
	}

	cert := make(UserCert, len(data))
	copy(cert, data)
	return cert, nil
}

// Validate checks if the certificate can be carried in message2.
func (c UserCert) Validate() error {
	_, err := NewUserCert(c)
	return err
}

// WireLen is the value of user_cert_len in message2, counting the terminator.
func (c UserCert) WireLen() uint32 {
	return uint32(len(c) + 1)
}

// Message1 is sent by the enclave host to request provisioning.
type Message1 struct {
	// Report is the raw remote attestation report.
	Report []byte

	// PublicKey is the enclave's ephemeral P-256 public key, little-endian x || y.
	PublicKey [EnclavePublicKeySize]byte
}

// Message2 carries the secrets, encrypted to the enclave's ephemeral key.
type Message2 struct {
	SharedKeyCiphertext [CiphertextCapacity]byte
	KeyShareCiphertext  [CiphertextCapacity]byte

	// SharedKeyCiphertextLen and KeyShareCiphertextLen are the number of meaningful bytes
	// in the buffers above. They are not part of the wire format.
	SharedKeyCiphertextLen int
	KeyShareCiphertextLen  int

	UserCert UserCert
}

// SharedKey returns the meaningful part of the shared key ciphertext buffer.
func (m *Message2) SharedKey() []byte {
	return m.SharedKeyCiphertext[:m.SharedKeyCiphertextLen]
}

// KeyShare returns the meaningful part of the key share ciphertext buffer.
func (m *Message2) KeyShare() []byte {
	return m.KeyShareCiphertext[:m.KeyShareCiphertextLen]
}

// ReportIdentity is the identity extracted from a verified remote report.
type ReportIdentity struct {
	// SignerID is the digest of the enclave signing key (MRSIGNER).
	SignerID [SignerIDSize]byte

	ProductID       [ProductIDSize]byte
	SecurityVersion uint32

	// ReportData is the caller-chosen value bound into the report.
	ReportData []byte

	Debug bool
}

// NewReportIdentity copies variable-length report fields into a ReportIdentity,
// validating their sizes.
func NewReportIdentity(signerID, productID []byte, securityVersion uint32, reportData []byte, debug bool) (*ReportIdentity, error) {
	if len(signerID) != SignerIDSize {
		return nil, fmt.Errorf("signer id must be %d bytes, got %d", SignerIDSize, len(signerID))
	}
	if len(productID) > ProductIDSize {
		return nil, fmt.Errorf("product id must be at most %d bytes, got %d", ProductIDSize, len(productID))
	}

	identity := &ReportIdentity{
		SecurityVersion: securityVersion,
		ReportData:      append([]byte(nil), reportData...),
		Debug:           debug,
	}
	copy(identity.SignerID[:], signerID)
	copy(identity.ProductID[:], productID)
	return identity, nil
}

// ReportVerifier checks a remote attestation report against the hardware vendor's
// infrastructure and returns the parsed enclave identity.
type ReportVerifier interface {
	// VerifyRemoteReport verifies report. endorsements may be nil, in which case the
	// verifier obtains collateral on its own.
	VerifyRemoteReport(report []byte, endorsements []byte) (*ReportIdentity, error)
}

var errShortBuffer = errors.New("buffer too short")
