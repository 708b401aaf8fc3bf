package provider

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ruteri/tee-secret-provisioner/attestation"
	"github.com/ruteri/tee-secret-provisioner/cryptoutils"
	"github.com/ruteri/tee-secret-provisioner/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testUserCert = interfaces.UserCert("-----BEGIN CERTIFICATE-----\nMIIBtest\n-----END CERTIFICATE-----\n")

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSecrets() interfaces.ProvisionedSecrets {
	var secrets interfaces.ProvisionedSecrets
	for i := range secrets.SharedKey {
		secrets.SharedKey[i] = byte(i + 1)
		secrets.KeyShare[i] = byte(0xf0 - i)
	}
	return secrets
}

func testIdentity(t *testing.T) *cryptoutils.ProviderIdentity {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return cryptoutils.NewProviderIdentity(key)
}

// newEnclave returns an ephemeral enclave key and a message1 carrying it.
func newEnclave(t *testing.T) (*ecdsa.PrivateKey, *interfaces.Message1) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	pub, err := cryptoutils.MarshalEnclavePublicKey(&key.PublicKey)
	require.NoError(t, err)
	return key, &interfaces.Message1{Report: []byte("remote report"), PublicKey: pub}
}

func newTestProvider(t *testing.T, gate attestation.Gate, scheme cryptoutils.Scheme) *ServiceProvider {
	t.Helper()
	sp, err := New(&Config{
		Identity: testIdentity(t),
		Secrets:  testSecrets(),
		UserCert: testUserCert,
		Gate:     gate,
		Scheme:   scheme,
		Log:      testLogger(),
	})
	require.NoError(t, err)
	return sp
}

// newHardwareGate builds a real hardware gate whose verifier reports identity for
// any report. modify may tamper with the identity before it is returned.
func newHardwareGate(t *testing.T, msg1 *interfaces.Message1, modify func(*interfaces.ReportIdentity)) attestation.Gate {
	t.Helper()
	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&rsaKey.PublicKey)
	require.NoError(t, err)
	signerPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})

	signerID, err := cryptoutils.ComputeSignerDigest(signerPEM)
	require.NoError(t, err)
	binding := sha256.Sum256(msg1.PublicKey[:])
	identity, err := interfaces.NewReportIdentity(signerID[:], []byte{1, 0}, 1, append(binding[:], make([]byte, 32)...), false)
	require.NoError(t, err)
	if modify != nil {
		modify(identity)
	}

	verifier := new(attestation.MockReportVerifier)
	verifier.On("VerifyRemoteReport", msg1.Report, mock.Anything).Return(identity, nil)
	return attestation.NewHardwareGate(verifier, attestation.StaticSignerKey(signerPEM), attestation.DefaultPolicy(), testLogger())
}

func TestProcessMessage1_Simulation(t *testing.T) {
	sp := newTestProvider(t, attestation.NewSimulationGate(testLogger()), nil)
	enclaveKey, msg1 := newEnclave(t)

	msg2, size, err := sp.ProcessMessage1(msg1)
	require.NoError(t, err)
	assert.Equal(t, uint32(interfaces.Message2Size), size)
	assert.Equal(t, 111, msg2.SharedKeyCiphertextLen)
	assert.Equal(t, 111, msg2.KeyShareCiphertextLen)
	assert.Equal(t, testUserCert, msg2.UserCert)

	secrets, err := OpenMessage2(enclaveKey, sp.Scheme(), msg2)
	require.NoError(t, err)
	assert.Equal(t, testSecrets(), secrets)
}

func TestProcessMessage1_Hardware(t *testing.T) {
	enclaveKey, msg1 := newEnclave(t)
	sp := newTestProvider(t, newHardwareGate(t, msg1, nil), nil)
	assert.Equal(t, attestation.ModeHardware, sp.Mode())

	msg2, _, err := sp.ProcessMessage1(msg1)
	require.NoError(t, err)

	secrets, err := OpenMessage2(enclaveKey, sp.Scheme(), msg2)
	require.NoError(t, err)
	assert.Equal(t, testSecrets(), secrets)
}

func TestProcessMessage1_HardwareRejections(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*interfaces.ReportIdentity)
		wantErr error
	}{
		{"foreign signer", func(id *interfaces.ReportIdentity) { id.SignerID[0] ^= 1 }, interfaces.ErrSignerMismatch},
		{"wrong product", func(id *interfaces.ReportIdentity) { id.ProductID[0] = 2 }, interfaces.ErrPolicyViolation},
		{"security version zero", func(id *interfaces.ReportIdentity) { id.SecurityVersion = 0 }, interfaces.ErrPolicyViolation},
		{"debug enclave", func(id *interfaces.ReportIdentity) { id.Debug = true }, interfaces.ErrPolicyViolation},
		{"replayed report", func(id *interfaces.ReportIdentity) { id.ReportData[5] ^= 1 }, interfaces.ErrReportDataMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, msg1 := newEnclave(t)
			sp := newTestProvider(t, newHardwareGate(t, msg1, tt.modify), nil)

			msg2, size, err := sp.ProcessMessage1(msg1)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, interfaces.ErrAttestationFailure)
			assert.Nil(t, msg2)
			assert.Zero(t, size)
		})
	}
}

func TestProcessMessage1_ReportVerificationFailure(t *testing.T) {
	_, msg1 := newEnclave(t)

	verifier := new(attestation.MockReportVerifier)
	verifier.On("VerifyRemoteReport", mock.Anything, mock.Anything).Return(nil, errors.New("bad quote"))
	gate := attestation.NewHardwareGate(verifier, attestation.StaticSignerKey(nil), attestation.DefaultPolicy(), testLogger())
	sp := newTestProvider(t, gate, nil)

	msg2, _, err := sp.ProcessMessage1(msg1)
	assert.ErrorIs(t, err, interfaces.ErrReportVerificationFailed)
	assert.Nil(t, msg2)
}

func TestProcessMessage1_InvalidPublicKey(t *testing.T) {
	for _, mode := range []attestation.Mode{attestation.ModeSimulation, attestation.ModeHardware} {
		t.Run(string(mode), func(t *testing.T) {
			gate := new(attestation.MockGate)
			gate.On("Mode").Return(mode)
			sp := newTestProvider(t, gate, nil)

			msg1 := &interfaces.Message1{Report: []byte("report")}
			msg1.PublicKey[0] = 1

			msg2, _, err := sp.ProcessMessage1(msg1)
			assert.ErrorIs(t, err, interfaces.ErrInvalidPublicKey)
			assert.ErrorIs(t, err, interfaces.ErrMalformedMessage)
			assert.Nil(t, msg2)
			gate.AssertNotCalled(t, "Verify", mock.Anything)
		})
	}
}

func TestProcessMessage1_NilMessage(t *testing.T) {
	sp := newTestProvider(t, attestation.NewSimulationGate(testLogger()), nil)
	_, _, err := sp.ProcessMessage1(nil)
	assert.ErrorIs(t, err, interfaces.ErrMalformedMessage)
}

func TestProcessMessage1_FreshCiphertexts(t *testing.T) {
	sp := newTestProvider(t, attestation.NewSimulationGate(testLogger()), nil)
	_, msg1 := newEnclave(t)

	first, _, err := sp.ProcessMessage1(msg1)
	require.NoError(t, err)
	second, _, err := sp.ProcessMessage1(msg1)
	require.NoError(t, err)

	assert.NotEqual(t, first.SharedKey(), second.SharedKey())
	assert.NotEqual(t, first.KeyShare(), second.KeyShare())
	assert.NotEqual(t, first.SharedKey(), first.KeyShare())
}

func TestProcessMessage1_OverTheWire(t *testing.T) {
	sp := newTestProvider(t, attestation.NewSimulationGate(testLogger()), cryptoutils.AESGCMScheme{})
	enclaveKey, msg1 := newEnclave(t)

	msg2, size, err := sp.ProcessMessage1(msg1)
	require.NoError(t, err)

	data, err := msg2.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, data, int(size))

	decoded, err := interfaces.UnmarshalMessage2(data)
	require.NoError(t, err)
	assert.Equal(t, interfaces.CiphertextCapacity, decoded.SharedKeyCiphertextLen)

	secrets, err := OpenMessage2(enclaveKey, cryptoutils.AESGCMScheme{}, decoded)
	require.NoError(t, err)
	assert.Equal(t, testSecrets(), secrets)
	assert.Equal(t, testUserCert, decoded.UserCert)
}

type brokenScheme struct {
	cryptoutils.AESGCMScheme
	ciphertext []byte
	err        error
}

func (s brokenScheme) Encrypt(*ecdsa.PublicKey, []byte) ([]byte, error) {
	return s.ciphertext, s.err
}

func TestProcessMessage1_EncryptionErrors(t *testing.T) {
	_, msg1 := newEnclave(t)

	// New rejects these schemes, so they are swapped in after construction.
	sp := newTestProvider(t, attestation.NewSimulationGate(testLogger()), nil)
	sp.scheme = brokenScheme{err: errors.New("no entropy")}
	msg2, _, err := sp.ProcessMessage1(msg1)
	assert.ErrorIs(t, err, interfaces.ErrEncryptionFailed)
	assert.Nil(t, msg2)

	sp.scheme = brokenScheme{ciphertext: make([]byte, interfaces.CiphertextCapacity+1)}
	msg2, _, err = sp.ProcessMessage1(msg1)
	assert.ErrorIs(t, err, interfaces.ErrEncryptionBufferTooSmall)
	assert.Nil(t, msg2)
}

func TestProcessMessage1Context_Timeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	gate := new(attestation.MockGate)
	gate.On("Verify", mock.Anything).Run(func(mock.Arguments) { <-release }).Return(nil)
	sp := newTestProvider(t, gate, nil)
	_, msg1 := newEnclave(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	msg2, size, err := sp.ProcessMessage1Context(ctx, msg1)
	assert.ErrorIs(t, err, interfaces.ErrReportVerificationFailed)
	assert.Nil(t, msg2)
	assert.Zero(t, size)
}

func TestProcessMessage1Context_Completes(t *testing.T) {
	sp := newTestProvider(t, attestation.NewSimulationGate(testLogger()), nil)
	enclaveKey, msg1 := newEnclave(t)

	msg2, size, err := sp.ProcessMessage1Context(context.Background(), msg1)
	require.NoError(t, err)
	assert.Equal(t, uint32(interfaces.Message2Size), size)

	_, err = OpenMessage2(enclaveKey, sp.Scheme(), msg2)
	assert.NoError(t, err)
}

func TestProcessMessage1_Concurrent(t *testing.T) {
	sp := newTestProvider(t, attestation.NewSimulationGate(testLogger()), nil)

	const workers = 16
	type enclave struct {
		key  *ecdsa.PrivateKey
		msg1 *interfaces.Message1
	}
	enclaves := make([]enclave, workers)
	for i := range enclaves {
		enclaves[i].key, enclaves[i].msg1 = newEnclave(t)
	}

	results := make([]interfaces.ProvisionedSecrets, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := range enclaves {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			msg2, _, err := sp.ProcessMessage1(enclaves[i].msg1)
			if err != nil {
				errs[i] = err
				return
			}
			results[i], errs[i] = OpenMessage2(enclaves[i].key, sp.Scheme(), msg2)
		}(i)
	}
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, testSecrets(), results[i])
	}
}

func TestNew_Validation(t *testing.T) {
	identity := testIdentity(t)
	gate := attestation.NewSimulationGate(testLogger())

	_, err := New(&Config{Gate: gate, UserCert: testUserCert})
	assert.ErrorIs(t, err, interfaces.ErrConfiguration)

	_, err = New(&Config{Identity: identity, UserCert: testUserCert})
	assert.ErrorIs(t, err, interfaces.ErrConfiguration)

	_, err = New(&Config{Identity: identity, Gate: gate})
	assert.ErrorIs(t, err, interfaces.ErrConfiguration)

	_, err = New(&Config{Identity: identity, Gate: gate, UserCert: interfaces.UserCert("a\x00b")})
	assert.ErrorIs(t, err, interfaces.ErrConfiguration)

	_, err = New(&Config{Identity: identity, Gate: gate, UserCert: testUserCert, Scheme: oversizedScheme{}})
	assert.ErrorIs(t, err, interfaces.ErrConfiguration)

	_, err = New(&Config{Identity: identity, Gate: gate, UserCert: testUserCert, Scheme: brokenScheme{err: errors.New("invalid elliptic curve")}})
	assert.ErrorIs(t, err, interfaces.ErrConfiguration)
	assert.ErrorContains(t, err, "invalid elliptic curve")

	_, err = New(&Config{Identity: identity, Gate: gate, UserCert: testUserCert, Scheme: brokenScheme{ciphertext: make([]byte, 64)}})
	assert.ErrorIs(t, err, interfaces.ErrConfiguration)

	_, err = New(&Config{Identity: identity, Gate: gate, UserCert: testUserCert, Scheme: lossyScheme{}})
	assert.ErrorIs(t, err, interfaces.ErrConfiguration)

	sp, err := New(&Config{Identity: identity, Gate: gate, UserCert: testUserCert})
	require.NoError(t, err)
	assert.Equal(t, cryptoutils.AESGCMSchemeName, sp.Scheme().Name())
	assert.Same(t, identity, sp.Identity())
	assert.Equal(t, attestation.ModeSimulation, sp.Mode())
}

func TestNew_CopiesUserCert(t *testing.T) {
	cert := interfaces.UserCert("certificate")
	sp, err := New(&Config{
		Identity: testIdentity(t),
		Gate:     attestation.NewSimulationGate(testLogger()),
		UserCert: cert,
		Log:      testLogger(),
	})
	require.NoError(t, err)
	cert[0] = 'X'

	_, msg1 := newEnclave(t)
	msg2, _, err := sp.ProcessMessage1(msg1)
	require.NoError(t, err)
	assert.Equal(t, interfaces.UserCert("certificate"), msg2.UserCert)
}

// lossyScheme decrypts to the wrong plaintext.
type lossyScheme struct {
	cryptoutils.AESGCMScheme
}

func (s lossyScheme) Decrypt(priv *ecdsa.PrivateKey, ciphertext []byte) ([]byte, error) {
	pt, err := s.AESGCMScheme.Decrypt(priv, ciphertext)
	if err == nil {
		pt[0] ^= 1
	}
	return pt, err
}

type oversizedScheme struct {
	cryptoutils.AESGCMScheme
}

func (oversizedScheme) CiphertextSize(int) int { return interfaces.CiphertextCapacity + 1 }

func TestOpenMessage2_Malformed(t *testing.T) {
	sp := newTestProvider(t, attestation.NewSimulationGate(testLogger()), nil)
	enclaveKey, msg1 := newEnclave(t)

	msg2, _, err := sp.ProcessMessage1(msg1)
	require.NoError(t, err)

	short := *msg2
	short.KeyShareCiphertextLen = 10
	_, err = OpenMessage2(enclaveKey, sp.Scheme(), &short)
	assert.ErrorIs(t, err, interfaces.ErrMalformedMessage)

	otherKey, _ := newEnclave(t)
	_, err = OpenMessage2(otherKey, sp.Scheme(), msg2)
	assert.Error(t, err)
}
