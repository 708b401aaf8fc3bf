package cryptoutils

import (
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"fmt"
	"math/big"

	"github.com/ruteri/tee-secret-provisioner/interfaces"
)

const ks = interfaces.ECP256KeySize

// ParseEnclavePublicKey interprets the message1 public key (little-endian x || y)
// as a P-256 point. Points off the curve and the identity are rejected with
// interfaces.ErrInvalidPublicKey.
func ParseEnclavePublicKey(raw [interfaces.EnclavePublicKeySize]byte) (*ecdsa.PublicKey, error) {
	uncompressed := make([]byte, 1+interfaces.EnclavePublicKeySize)
	uncompressed[0] = 0x04
	x := uncompressed[1 : 1+ks]
	y := uncompressed[1+ks:]
	copy(x, raw[:ks])
	copy(y, raw[ks:])
	ReverseBytes(x)
	ReverseBytes(y)

	// crypto/ecdh validates the encoding and that the point is on the curve.
	if _, err := ecdh.P256().NewPublicKey(uncompressed); err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrInvalidPublicKey, err)
	}

	return &ecdsa.PublicKey{
		Curve: elliptic.P256(),
		X:     new(big.Int).SetBytes(x),
		Y:     new(big.Int).SetBytes(y),
	}, nil
}

// MarshalEnclavePublicKey encodes a P-256 public key in the message1 layout.
func MarshalEnclavePublicKey(pub *ecdsa.PublicKey) ([interfaces.EnclavePublicKeySize]byte, error) {
	var res [interfaces.EnclavePublicKeySize]byte
	if pub == nil || pub.Curve != elliptic.P256() {
		return res, fmt.Errorf("%w: enclave key must be P-256", interfaces.ErrInvalidPublicKey)
	}
	putLittleEndian(res[:ks], pub.X)
	putLittleEndian(res[ks:], pub.Y)
	return res, nil
}
