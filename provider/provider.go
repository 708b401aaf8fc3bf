package provider

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"
	"log/slog"

	"github.com/ruteri/tee-secret-provisioner/attestation"
	"github.com/ruteri/tee-secret-provisioner/cryptoutils"
	"github.com/ruteri/tee-secret-provisioner/interfaces"
)

// Config holds everything a ServiceProvider needs. All of it is loaded once at startup.
type Config struct {
	Identity *cryptoutils.ProviderIdentity
	Secrets  interfaces.ProvisionedSecrets
	UserCert interfaces.UserCert
	Gate     attestation.Gate

	// Scheme defaults to cryptoutils.AESGCMScheme.
	Scheme cryptoutils.Scheme

	Log *slog.Logger
}

// ServiceProvider releases the provisioned secrets to enclaves that pass the attestation
// gate. It is immutable after New and safe for concurrent use.
type ServiceProvider struct {
	identity *cryptoutils.ProviderIdentity
	secrets  interfaces.ProvisionedSecrets
	userCert interfaces.UserCert
	gate     attestation.Gate
	scheme   cryptoutils.Scheme
	log      *slog.Logger
}

// New validates cfg and creates a ServiceProvider.
func New(cfg *Config) (*ServiceProvider, error) {
	if cfg.Identity == nil {
		return nil, fmt.Errorf("%w: provider identity is required", interfaces.ErrConfiguration)
	}
	if cfg.Gate == nil {
		return nil, fmt.Errorf("%w: attestation gate is required", interfaces.ErrConfiguration)
	}
	if err := cfg.UserCert.Validate(); err != nil {
		return nil, err
	}

	scheme := cfg.Scheme
	if scheme == nil {
		scheme = cryptoutils.AESGCMScheme{}
	}
	if size := scheme.CiphertextSize(interfaces.SecretKeySize); size > interfaces.CiphertextCapacity {
		return nil, fmt.Errorf("%w: scheme %s produces %d byte ciphertexts, capacity is %d", interfaces.ErrConfiguration, scheme.Name(), size, interfaces.CiphertextCapacity)
	}
	if err := checkScheme(scheme); err != nil {
		return nil, err
	}

	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	userCert := make(interfaces.UserCert, len(cfg.UserCert))
	copy(userCert, cfg.UserCert)

	return &ServiceProvider{
		identity: cfg.Identity,
		secrets:  cfg.Secrets,
		userCert: userCert,
		gate:     cfg.Gate,
		scheme:   scheme,
		log:      log,
	}, nil
}

// Identity returns the provider's long-term key pair.
func (sp *ServiceProvider) Identity() *cryptoutils.ProviderIdentity {
	return sp.identity
}

// Mode returns the attestation mode of the configured gate.
func (sp *ServiceProvider) Mode() attestation.Mode {
	return sp.gate.Mode()
}

// Scheme returns the encryption scheme used for message2.
func (sp *ServiceProvider) Scheme() cryptoutils.Scheme {
	return sp.scheme
}

// ProcessMessage1 verifies msg1 and, on success, returns message2 with both secrets
// encrypted to the enclave's ephemeral key, together with the serialized message2 size.
// On any failure no message2 is returned.
func (sp *ServiceProvider) ProcessMessage1(msg1 *interfaces.Message1) (*interfaces.Message2, uint32, error) {
	if msg1 == nil {
		return nil, 0, fmt.Errorf("%w: nil message1", interfaces.ErrMalformedMessage)
	}

	enclaveKey, err := cryptoutils.ParseEnclavePublicKey(msg1.PublicKey)
	if err != nil {
		return nil, 0, err
	}

	if err := sp.gate.Verify(msg1); err != nil {
		return nil, 0, err
	}

	msg2 := &interfaces.Message2{}

	msg2.SharedKeyCiphertextLen, err = sp.encryptInto(enclaveKey, sp.secrets.SharedKey[:], msg2.SharedKeyCiphertext[:])
	if err != nil {
		return nil, 0, fmt.Errorf("encrypting shared key: %w", err)
	}

	msg2.KeyShareCiphertextLen, err = sp.encryptInto(enclaveKey, sp.secrets.KeyShare[:], msg2.KeyShareCiphertext[:])
	if err != nil {
		return nil, 0, fmt.Errorf("encrypting key share: %w", err)
	}

	msg2.UserCert = make(interfaces.UserCert, len(sp.userCert))
	copy(msg2.UserCert, sp.userCert)

	return msg2, interfaces.Message2Size, nil
}

// ProcessMessage1Context runs ProcessMessage1 on its own goroutine and stops waiting when
// ctx is done. The gate itself cannot be cancelled; an abandoned run finishes in the
// background and its result is dropped. Expiry is reported as a report verification
// failure, never as success.
func (sp *ServiceProvider) ProcessMessage1Context(ctx context.Context, msg1 *interfaces.Message1) (*interfaces.Message2, uint32, error) {
	type result struct {
		msg2 *interfaces.Message2
		size uint32
		err  error
	}

	done := make(chan result, 1)
	go func() {
		msg2, size, err := sp.ProcessMessage1(msg1)
		done <- result{msg2, size, err}
	}()

	select {
	case r := <-done:
		return r.msg2, r.size, r.err
	case <-ctx.Done():
		sp.log.Warn("Provisioning abandoned before attestation completed", "err", ctx.Err())
		return nil, 0, &attestation.Error{
			Reason: interfaces.ErrReportVerificationFailed,
			Detail: fmt.Sprintf("verification did not complete: %v", ctx.Err()),
		}
	}
}

// checkScheme round-trips a secret-sized value through scheme with a throwaway P-256 key.
func checkScheme(scheme cryptoutils.Scheme) error {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return fmt.Errorf("%w: generating scheme test key: %v", interfaces.ErrConfiguration, err)
	}

	plaintext := make([]byte, interfaces.SecretKeySize)
	if _, err := rand.Read(plaintext); err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrConfiguration, err)
	}

	ciphertext, err := scheme.Encrypt(&key.PublicKey, plaintext)
	if err != nil {
		return fmt.Errorf("%w: scheme %s cannot encrypt to P-256 keys: %v", interfaces.ErrConfiguration, scheme.Name(), err)
	}
	if size := scheme.CiphertextSize(interfaces.SecretKeySize); len(ciphertext) != size {
		return fmt.Errorf("%w: scheme %s produced %d bytes, declares %d", interfaces.ErrConfiguration, scheme.Name(), len(ciphertext), size)
	}

	decrypted, err := scheme.Decrypt(key, ciphertext)
	if err != nil {
		return fmt.Errorf("%w: scheme %s cannot decrypt its own output: %v", interfaces.ErrConfiguration, scheme.Name(), err)
	}
	if !bytes.Equal(decrypted, plaintext) {
		return fmt.Errorf("%w: scheme %s does not round-trip", interfaces.ErrConfiguration, scheme.Name())
	}
	return nil
}

func (sp *ServiceProvider) encryptInto(pub *ecdsa.PublicKey, plaintext []byte, dst []byte) (int, error) {
	ciphertext, err := sp.scheme.Encrypt(pub, plaintext)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", interfaces.ErrEncryptionFailed, err)
	}
	if len(ciphertext) > len(dst) {
		return 0, fmt.Errorf("%w: %d byte ciphertext, capacity %d", interfaces.ErrEncryptionBufferTooSmall, len(ciphertext), len(dst))
	}
	return copy(dst, ciphertext), nil
}

// OpenMessage2 decrypts the secrets in msg2 with the enclave's ephemeral private key.
// It is the relying side of ProcessMessage1, used by clients and tests.
func OpenMessage2(priv *ecdsa.PrivateKey, scheme cryptoutils.Scheme, msg2 *interfaces.Message2) (interfaces.ProvisionedSecrets, error) {
	size := scheme.CiphertextSize(interfaces.SecretKeySize)
	if size > interfaces.CiphertextCapacity || msg2.SharedKeyCiphertextLen < size || msg2.KeyShareCiphertextLen < size {
		return interfaces.ProvisionedSecrets{}, fmt.Errorf("%w: ciphertext shorter than %d bytes", interfaces.ErrMalformedMessage, size)
	}

	var secrets interfaces.ProvisionedSecrets
	for _, f := range []struct {
		name string
		ct   []byte
		dst  *interfaces.SecretKey
	}{
		{"shared key", msg2.SharedKeyCiphertext[:size], &secrets.SharedKey},
		{"key share", msg2.KeyShareCiphertext[:size], &secrets.KeyShare},
	} {
		plaintext, err := scheme.Decrypt(priv, f.ct)
		if err != nil {
			return interfaces.ProvisionedSecrets{}, fmt.Errorf("decrypting %s: %w", f.name, err)
		}
		if len(plaintext) != interfaces.SecretKeySize {
			return interfaces.ProvisionedSecrets{}, fmt.Errorf("%w: %s is %d bytes", interfaces.ErrMalformedMessage, f.name, len(plaintext))
		}
		copy(f.dst[:], plaintext)
	}
	return secrets, nil
}
