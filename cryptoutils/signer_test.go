package cryptoutils

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"testing"

	"github.com/ruteri/tee-secret-provisioner/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rsaSignerPEM(t *testing.T, key *rsa.PublicKey) (pkix []byte, pkcs1 []byte) {
	t.Helper()
	der, err := x509.MarshalPKIXPublicKey(key)
	require.NoError(t, err)
	pkix = pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
	pkcs1 = pem.EncodeToMemory(&pem.Block{Type: "RSA PUBLIC KEY", Bytes: x509.MarshalPKCS1PublicKey(key)})
	return pkix, pkcs1
}

func TestComputeSignerDigest(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 3072)
	require.NoError(t, err)
	pkixPEM, pkcs1PEM := rsaSignerPEM(t, &key.PublicKey)

	modulusLE := make([]byte, 384)
	key.N.FillBytes(modulusLE)
	ReverseBytes(modulusLE)
	expected := sha256.Sum256(modulusLE)

	digest, err := ComputeSignerDigest(pkixPEM)
	require.NoError(t, err)
	assert.Equal(t, expected, digest)

	digest, err = ComputeSignerDigest(pkcs1PEM)
	require.NoError(t, err)
	assert.Equal(t, expected, digest)

	// The digest is taken over the little-endian modulus, not the DER encoding.
	assert.NotEqual(t, sha256.Sum256(key.N.Bytes()), digest)

	again, err := ComputeSignerDigest(pkixPEM)
	require.NoError(t, err)
	assert.Equal(t, digest, again)
}

func TestComputeSignerDigest_Invalid(t *testing.T) {
	ecKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	ecDER, err := x509.MarshalPKIXPublicKey(&ecKey.PublicKey)
	require.NoError(t, err)

	_, err = ComputeSignerDigest(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: ecDER}))
	assert.ErrorIs(t, err, interfaces.ErrNotRSAKey)
	assert.ErrorIs(t, err, interfaces.ErrKeyParse)

	for name, data := range map[string][]byte{
		"empty":      nil,
		"not pem":    []byte("ssh-rsa AAAA"),
		"wrong type": pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: ecDER}),
		"garbage":    pem.EncodeToMemory(&pem.Block{Type: "RSA PUBLIC KEY", Bytes: []byte{1, 2, 3}}),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ComputeSignerDigest(data)
			assert.ErrorIs(t, err, interfaces.ErrKeyParse)
		})
	}
}

func TestVerifySigner(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	signerPEM, _ := rsaSignerPEM(t, &key.PublicKey)

	digest, err := ComputeSignerDigest(signerPEM)
	require.NoError(t, err)

	check, err := VerifySigner(signerPEM, digest[:])
	require.NoError(t, err)
	assert.True(t, check.Match())
	assert.Empty(t, check.Mismatches())

	flipped := digest
	flipped[5] ^= 0x01
	check, err = VerifySigner(signerPEM, flipped[:])
	require.NoError(t, err)
	assert.False(t, check.Match())
	assert.Equal(t, []ByteMismatch{{Offset: 5, Expected: digest[5], Reported: flipped[5]}}, check.Mismatches())

	_, err = VerifySigner(signerPEM, digest[:31])
	assert.ErrorIs(t, err, interfaces.ErrMalformedMessage)

	_, err = VerifySigner([]byte("garbage"), digest[:])
	assert.ErrorIs(t, err, interfaces.ErrKeyParse)
}

func TestSignerPubkey_Validate(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	signerPEM, _ := rsaSignerPEM(t, &key.PublicKey)

	_, err = NewSignerPubkey(signerPEM)
	assert.NoError(t, err)
	assert.NoError(t, SignerPubkey(signerPEM).Validate())
	assert.ErrorIs(t, SignerPubkey("garbage").Validate(), interfaces.ErrKeyParse)
}
