package interfaces

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// MaterialLocation is a URI naming one piece of operator material, for example
// file:///etc/provisioner/private_key.pem or vault://vault:8200/secret/provisioner?field=shared_key.
type MaterialLocation string

// NewMaterialLocation validates a location URI.
func NewMaterialLocation(uri string) (MaterialLocation, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidLocationURI, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "file", "vault", "s3", "ipfs":
	case "":
		return "", fmt.Errorf("%w: missing scheme in %q", ErrInvalidLocationURI, uri)
	default:
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidLocationURI, u.Scheme)
	}

	return MaterialLocation(uri), nil
}

// MaterialSource fetches one piece of operator material (a key, a secret or a certificate).
type MaterialSource interface {
	// Fetch returns the material. It returns ErrMaterialNotFound if nothing is stored
	// at the location and ErrBackendUnavailable if the backend cannot be reached.
	Fetch(ctx context.Context) ([]byte, error)

	// LocationURI returns the URI the source was created from, with credentials redacted.
	LocationURI() string
}

// MaterialSourceFactory creates material sources from location URIs.
type MaterialSourceFactory interface {
	SourceFor(location MaterialLocation) (MaterialSource, error)
}
