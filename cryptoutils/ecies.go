package cryptoutils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Scheme is an asymmetric encryption scheme used to wrap secrets for an enclave's
// ephemeral public key.
type Scheme interface {
	// Name identifies the scheme in configuration.
	Name() string

	// Encrypt encrypts plaintext to pub.
	Encrypt(pub *ecdsa.PublicKey, plaintext []byte) ([]byte, error)

	// Decrypt reverses Encrypt. Used by the relying side and in tests.
	Decrypt(priv *ecdsa.PrivateKey, ciphertext []byte) ([]byte, error)

	// CiphertextSize returns the exact ciphertext size for a plaintext of plaintextLen bytes.
	CiphertextSize(plaintextLen int) int
}

const AESGCMSchemeName = "ecies-aesgcm"

// SchemeByName returns the scheme configured under name.
func SchemeByName(name string) (Scheme, error) {
	switch name {
	case AESGCMSchemeName, "":
		return AESGCMScheme{}, nil
	default:
		return nil, fmt.Errorf("unsupported encryption scheme %q", name)
	}
}

const (
	gcmNonceSize         = 12
	gcmTagSize           = 16
	uncompressedP256Size = 65
)

var aesgcmInfo = []byte("tee-secret-provisioner ecies-aesgcm v1")

// AESGCMScheme implements ECIES with ECDH over P-256, HKDF-SHA256 key derivation and
// AES-256-GCM. A fresh ephemeral key is generated for each encryption.
//
// Format: [ephemeral key length (2 bytes, little-endian)][ephemeral key][iv (12 bytes)][ciphertext || tag]
type AESGCMScheme struct{}

func (AESGCMScheme) Name() string { return AESGCMSchemeName }

func (AESGCMScheme) CiphertextSize(plaintextLen int) int {
	return 2 + uncompressedP256Size + gcmNonceSize + plaintextLen + gcmTagSize
}

func (AESGCMScheme) Encrypt(pub *ecdsa.PublicKey, plaintext []byte) ([]byte, error) {
	recipient, err := pub.ECDH()
	if err != nil {
		return nil, fmt.Errorf("failed to convert public key: %w", err)
	}

	// Generate ephemeral key for ECIES encryption
	ephemeralKey, err := recipient.Curve().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ephemeral key: %w", err)
	}

	sharedSecret, err := ephemeralKey.ECDH(recipient)
	if err != nil {
		return nil, fmt.Errorf("failed to derive shared secret: %w", err)
	}

	ephemeralPublicKeyBytes := ephemeralKey.PublicKey().Bytes()
	aesGCM, err := aesgcmFromSecret(sharedSecret, ephemeralPublicKeyBytes)
	if err != nil {
		return nil, err
	}

	iv := make([]byte, gcmNonceSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, fmt.Errorf("failed to generate IV: %w", err)
	}

	ciphertext := aesGCM.Seal(nil, iv, plaintext, nil)

	result := make([]byte, 0, 2+len(ephemeralPublicKeyBytes)+len(iv)+len(ciphertext))
	result = binary.LittleEndian.AppendUint16(result, uint16(len(ephemeralPublicKeyBytes)))
	result = append(result, ephemeralPublicKeyBytes...)
	result = append(result, iv...)
	result = append(result, ciphertext...)
	return result, nil
}

func (AESGCMScheme) Decrypt(priv *ecdsa.PrivateKey, encryptedData []byte) ([]byte, error) {
	if len(encryptedData) < 2 {
		return nil, errors.New("encrypted data too short")
	}

	ephemeralKeyLen := int(binary.LittleEndian.Uint16(encryptedData[0:2]))
	if len(encryptedData) < 2+ephemeralKeyLen+gcmNonceSize+gcmTagSize {
		return nil, errors.New("encrypted data has invalid format")
	}

	ephemeralKeyBytes := encryptedData[2 : 2+ephemeralKeyLen]
	ivStart := 2 + ephemeralKeyLen
	iv := encryptedData[ivStart : ivStart+gcmNonceSize]
	ciphertext := encryptedData[ivStart+gcmNonceSize:]

	recipient, err := priv.ECDH()
	if err != nil {
		return nil, fmt.Errorf("failed to convert private key: %w", err)
	}

	ephemeralKey, err := recipient.Curve().NewPublicKey(ephemeralKeyBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ephemeral public key: %w", err)
	}

	sharedSecret, err := recipient.ECDH(ephemeralKey)
	if err != nil {
		return nil, fmt.Errorf("failed to derive shared secret: %w", err)
	}

	aesGCM, err := aesgcmFromSecret(sharedSecret, ephemeralKeyBytes)
	if err != nil {
		return nil, err
	}

	plaintext, err := aesGCM.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	return plaintext, nil
}

// aesgcmFromSecret derives the AES-256 key from the ECDH secret, salted with the
// ephemeral public key.
func aesgcmFromSecret(sharedSecret, salt []byte) (cipher.AEAD, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, sharedSecret, salt, aesgcmInfo), key); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}

	aesBlock, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	aesGCM, err := cipher.NewGCM(aesBlock)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return aesGCM, nil
}
