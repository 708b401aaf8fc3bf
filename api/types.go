package api

import (
	"context"

	"github.com/ruteri/tee-secret-provisioner/interfaces"
)

const (
	// ProvisioningSessionHeader carries the identifier the server assigned to a
	// provisioning exchange. It appears in the server logs for that exchange.
	ProvisioningSessionHeader = "X-Provisioning-Session"

	// AttestationModeHeader reports the attestation mode of the server.
	AttestationModeHeader = "X-Attestation-Mode"

	// BinaryContentType is used for both message1 requests and message2 responses.
	BinaryContentType = "application/octet-stream"
)

// Public key artifact formats served by the provider_pubkey endpoint.
const (
	PubkeyFormatC   = "c"
	PubkeyFormatGo  = "go"
	PubkeyFormatHex = "hex"
)

// ProvisioningProvider defines the interface for requesting secrets from a provisioning server.
type ProvisioningProvider interface {
	// Provision sends message1 and returns the server's message2.
	Provision(ctx context.Context, msg1 *interfaces.Message1) (*interfaces.Message2, error)

	// ProviderPublicKey returns the provider public key artifact in the given format.
	ProviderPublicKey(ctx context.Context, format string) ([]byte, error)
}
