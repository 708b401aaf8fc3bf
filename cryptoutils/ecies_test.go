package cryptoutils

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"testing"

	"github.com/ruteri/tee-secret-provisioner/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemeByName(t *testing.T) {
	for name, expected := range map[string]string{
		"":               AESGCMSchemeName,
		AESGCMSchemeName: AESGCMSchemeName,
	} {
		scheme, err := SchemeByName(name)
		require.NoError(t, err)
		assert.Equal(t, expected, scheme.Name())
	}

	for _, name := range []string{"rsa-oaep", "ecies-geth"} {
		_, err := SchemeByName(name)
		assert.Error(t, err, name)
	}
}

func TestSchemes(t *testing.T) {
	recipient, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	other, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	secret := []byte("0123456789abcdef")

	for _, tc := range []struct {
		scheme Scheme
		size   int
	}{
		{AESGCMScheme{}, 111},
	} {
		t.Run(tc.scheme.Name(), func(t *testing.T) {
			assert.Equal(t, tc.size, tc.scheme.CiphertextSize(interfaces.SecretKeySize))
			assert.LessOrEqual(t, tc.size, interfaces.CiphertextCapacity)

			ct1, err := tc.scheme.Encrypt(&recipient.PublicKey, secret)
			require.NoError(t, err)
			assert.Len(t, ct1, tc.size)

			ct2, err := tc.scheme.Encrypt(&recipient.PublicKey, secret)
			require.NoError(t, err)
			assert.NotEqual(t, ct1, ct2, "encryption must be randomized")

			pt, err := tc.scheme.Decrypt(recipient, ct1)
			require.NoError(t, err)
			assert.Equal(t, secret, pt)

			_, err = tc.scheme.Decrypt(other, ct1)
			assert.Error(t, err)

			tampered := append([]byte(nil), ct1...)
			tampered[len(tampered)-1] ^= 1
			_, err = tc.scheme.Decrypt(recipient, tampered)
			assert.Error(t, err)

			_, err = tc.scheme.Decrypt(recipient, ct1[:10])
			assert.Error(t, err)
		})
	}
}
