package material

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ruteri/tee-secret-provisioner/cryptoutils"
	"github.com/ruteri/tee-secret-provisioner/interfaces"
)

// Fetch reads the material at uri. A value without a scheme is a local file path.
// Several comma-separated URIs are tried in order.
func Fetch(ctx context.Context, factory *Factory, uri string) ([]byte, error) {
	source, err := SourceFor(factory, uri)
	if err != nil {
		return nil, err
	}
	return source.Fetch(ctx)
}

// SourceFor creates a source for a material flag value, see Fetch. Bare paths are
// opened verbatim and never go through URI decoding.
func SourceFor(factory *Factory, uri string) (interfaces.MaterialSource, error) {
	var sources []interfaces.MaterialSource
	for _, part := range strings.Split(uri, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if !strings.Contains(part, "://") {
			sources = append(sources, NewFileSource(part, factory.log))
			continue
		}

		source, err := factory.SourceForString(part)
		if err != nil {
			return nil, err
		}
		sources = append(sources, source)
	}

	switch len(sources) {
	case 0:
		return nil, fmt.Errorf("%w: empty material location", interfaces.ErrInvalidLocationURI)
	case 1:
		return sources[0], nil
	default:
		return NewMultiSource(sources, factory.log), nil
	}
}

// LoadIdentity fetches and parses the provider's PEM-encoded P-256 private key.
func LoadIdentity(ctx context.Context, factory *Factory, uri string) (*cryptoutils.ProviderIdentity, error) {
	data, err := Fetch(ctx, factory, uri)
	if errors.Is(err, interfaces.ErrMaterialNotFound) {
		return nil, fmt.Errorf("%w: %v (generate one with `provisioner genkey` and set $PRIVATE_KEY_PATH)", interfaces.ErrKeyFileNotFound, err)
	}
	if err != nil {
		return nil, err
	}

	identity, err := cryptoutils.ParseProviderIdentity(data)
	if err != nil {
		return nil, fmt.Errorf("%w: unable to read private key from %s: %w", interfaces.ErrConfiguration, uri, err)
	}
	return identity, nil
}

// LoadSecrets fetches the shared key and the key share. Each must hold exactly
// SecretKeySize raw bytes or their hex encoding.
func LoadSecrets(ctx context.Context, factory *Factory, sharedKeyURI, keyShareURI string) (interfaces.ProvisionedSecrets, error) {
	var secrets interfaces.ProvisionedSecrets
	for _, s := range []struct {
		name string
		uri  string
		dst  *interfaces.SecretKey
	}{
		{"shared key", sharedKeyURI, &secrets.SharedKey},
		{"key share", keyShareURI, &secrets.KeyShare},
	} {
		data, err := Fetch(ctx, factory, s.uri)
		if err != nil {
			return interfaces.ProvisionedSecrets{}, fmt.Errorf("loading %s: %w", s.name, err)
		}

		key, err := interfaces.NewSecretKey(data)
		if err != nil {
			return interfaces.ProvisionedSecrets{}, fmt.Errorf("loading %s: %w", s.name, err)
		}
		*s.dst = key
	}
	return secrets, nil
}

// LoadUserCert fetches the credential copied into every message2.
func LoadUserCert(ctx context.Context, factory *Factory, uri string) (interfaces.UserCert, error) {
	data, err := Fetch(ctx, factory, uri)
	if err != nil {
		return nil, fmt.Errorf("loading user certificate: %w", err)
	}
	return interfaces.NewUserCert(data)
}

// SignerKey is an attestation.SignerKeyLoader backed by any material source. The key
// is fetched again on every verification.
type SignerKey struct {
	Source  interfaces.MaterialSource
	Timeout time.Duration
}

func (k *SignerKey) LoadSignerKey() (cryptoutils.SignerPubkey, error) {
	timeout := k.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	data, err := k.Source.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("trusted signer key %s: %w", k.Source.LocationURI(), err)
	}
	return cryptoutils.SignerPubkey(data), nil
}
