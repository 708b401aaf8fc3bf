package provisioner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"

	"github.com/mdlayher/vsock"
	"github.com/ruteri/tee-secret-provisioner/api"
	"github.com/ruteri/tee-secret-provisioner/interfaces"
	"github.com/stretchr/testify/mock"
)

// ProvisioningClient implements api.ProvisioningProvider against a remote provisioning server.
type ProvisioningClient struct {
	// ServerAddr is the base URL of the provisioning server
	ServerAddr string

	// HTTPClient defaults to http.DefaultClient
	HTTPClient *http.Client
}

var _ api.ProvisioningProvider = (*ProvisioningClient)(nil)

// NewVsockClient returns a client that reaches the server over AF_VSOCK at cid:port.
func NewVsockClient(cid, port uint32) *ProvisioningClient {
	transport := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			return vsock.Dial(cid, port, nil)
		},
	}
	return &ProvisioningClient{
		ServerAddr: fmt.Sprintf("http://vsock-%d", cid),
		HTTPClient: &http.Client{Transport: transport},
	}
}

func (p *ProvisioningClient) httpClient() *http.Client {
	if p.HTTPClient != nil {
		return p.HTTPClient
	}
	return http.DefaultClient
}

// Provision sends message1 and decodes message2. Rejections are mapped back onto the
// interfaces error categories by status code.
func (p *ProvisioningClient) Provision(ctx context.Context, msg1 *interfaces.Message1) (*interfaces.Message2, error) {
	body, err := msg1.MarshalBinary()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.ServerAddr+"/api/attested/provision", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", api.BinaryContentType)

	resp, err := p.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not request provisioning endpoint: %w", err)
	}
	defer resp.Body.Close()

	sessionID := resp.Header.Get(api.ProvisioningSessionHeader)
	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: provisioning endpoint returned %d (session %s): %s", errorForStatus(resp.StatusCode), resp.StatusCode, sessionID, bytes.TrimSpace(bodyBytes))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, interfaces.Message2Size+1))
	if err != nil {
		return nil, fmt.Errorf("could not read message2: %w", err)
	}

	return interfaces.UnmarshalMessage2(data)
}

// ProviderPublicKey fetches the provider public key artifact.
func (p *ProvisioningClient) ProviderPublicKey(ctx context.Context, format string) ([]byte, error) {
	u := p.ServerAddr + "/api/public/provider_pubkey?format=" + url.QueryEscape(format)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not request provider public key: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("could not read provider public key: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provider public key endpoint returned error %d: %s", resp.StatusCode, bytes.TrimSpace(bodyBytes))
	}
	return bodyBytes, nil
}

func errorForStatus(status int) error {
	switch status {
	case http.StatusBadRequest:
		return interfaces.ErrMalformedMessage
	case http.StatusForbidden:
		return interfaces.ErrAttestationFailure
	case http.StatusGatewayTimeout:
		return interfaces.ErrReportVerificationFailed
	default:
		return errServerFailure
	}
}

var errServerFailure = errors.New("provisioning server failure")

// MockProvider implements api.ProvisioningProvider for testing.
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Provision(ctx context.Context, msg1 *interfaces.Message1) (*interfaces.Message2, error) {
	args := m.Called(ctx, msg1)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*interfaces.Message2), args.Error(1)
}

func (m *MockProvider) ProviderPublicKey(ctx context.Context, format string) ([]byte, error) {
	args := m.Called(ctx, format)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}
