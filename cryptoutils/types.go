package cryptoutils

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/ruteri/tee-secret-provisioner/interfaces"
)

// SignerPubkey is a trusted enclave signing key (RSA) in PEM format.
type SignerPubkey []byte

// NewSignerPubkey creates a signer key object from PEM-encoded data with validation.
// Both PKIX ("PUBLIC KEY") and PKCS#1 ("RSA PUBLIC KEY") encodings are accepted.
func NewSignerPubkey(data []byte) (SignerPubkey, error) {
	if _, err := SignerPubkey(data).GetRSAPublicKey(); err != nil {
		return SignerPubkey{}, err
	}
	return SignerPubkey(data), nil
}

// Validate checks if the signer key is a well-formed RSA public key.
func (pub SignerPubkey) Validate() error {
	_, err := NewSignerPubkey(pub)
	return err
}

// ProviderPrivkey is the provider's long-term EC private key in PEM format.
type ProviderPrivkey []byte

// NewProviderPrivkey creates a private key object from PEM-encoded data with validation.
func NewProviderPrivkey(data []byte) (ProviderPrivkey, error) {
	if _, err := ProviderPrivkey(data).GetECDSAPrivateKey(); err != nil {
		return ProviderPrivkey{}, err
	}
	return ProviderPrivkey(data), nil
}

// Validate checks if the private key is a well-formed P-256 key.
func (priv ProviderPrivkey) Validate() error {
	_, err := NewProviderPrivkey(priv)
	return err
}

// GetECDSAPrivateKey returns the parsed P-256 private key.
func (priv ProviderPrivkey) GetECDSAPrivateKey() (*ecdsa.PrivateKey, error) {
	// openssl ecparam -genkey writes an EC PARAMETERS block ahead of the key.
	block, rest := pem.Decode(priv)
	for block != nil && block.Type == "EC PARAMETERS" {
		block, rest = pem.Decode(rest)
	}
	if block == nil {
		return nil, fmt.Errorf("%w: not in PEM format", interfaces.ErrKeyParse)
	}
	if block.Type != "PRIVATE KEY" && block.Type != "EC PRIVATE KEY" {
		return nil, fmt.Errorf("%w: unexpected PEM block %q", interfaces.ErrKeyParse, block.Type)
	}

	var key *ecdsa.PrivateKey
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err == nil {
		var ok bool
		if key, ok = parsed.(*ecdsa.PrivateKey); !ok {
			return nil, fmt.Errorf("%w: private key is %T, not EC", interfaces.ErrKeyParse, parsed)
		}
	} else {
		key, err = x509.ParseECPrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", interfaces.ErrKeyParse, err)
		}
	}

	if key.Curve != elliptic.P256() {
		return nil, fmt.Errorf("%w: curve %s is not P-256", interfaces.ErrKeyParse, key.Curve.Params().Name)
	}
	return key, nil
}

// RandomP256Keypair generates a fresh provider identity key pair in PEM format.
func RandomP256Keypair() ([]byte, ProviderPrivkey, error) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, err
	}

	privateKeyBytes, err := x509.MarshalECPrivateKey(privateKey)
	if err != nil {
		return nil, nil, err
	}

	privateKeyPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "EC PRIVATE KEY",
		Bytes: privateKeyBytes,
	})

	pubkeyBytes, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	if err != nil {
		return nil, nil, err
	}

	pubkeyPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: pubkeyBytes,
	})

	return pubkeyPEM, ProviderPrivkey(privateKeyPEM), nil
}

var errEmptyKey = errors.New("empty key material")
