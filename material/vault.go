package material

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/vault/api"
	"github.com/ruteri/tee-secret-provisioner/interfaces"
)

// VaultSource reads one field of a secret from a HashiCorp Vault KV v2 engine.
// String values are returned as-is; a "base64:" prefix marks binary values.
type VaultSource struct {
	client      *api.Client
	mountPath   string
	dataPath    string
	field       string
	log         *slog.Logger
	locationURI string
}

// NewVaultSource creates a Vault material source. The client picks up VAULT_TOKEN,
// VAULT_CACERT and related settings from the environment.
func NewVaultSource(address, mountPath, dataPath, field string, log *slog.Logger) (*VaultSource, error) {
	config := api.DefaultConfig()
	if config.Error != nil {
		return nil, fmt.Errorf("%w: vault config: %v", interfaces.ErrConfiguration, config.Error)
	}
	config.Address = address
	if config.HttpClient == nil {
		config.HttpClient = &http.Client{}
	}
	config.HttpClient.Timeout = 30 * time.Second

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Vault client: %v", interfaces.ErrConfiguration, err)
	}

	uri := fmt.Sprintf("vault://%s/%s/%s?field=%s", strings.TrimPrefix(strings.TrimPrefix(address, "https://"), "http://"), mountPath, dataPath, field)
	if strings.HasPrefix(address, "http://") {
		uri += "&tls=false"
	}

	return &VaultSource{
		client:      client,
		mountPath:   mountPath,
		dataPath:    dataPath,
		field:       field,
		log:         log,
		locationURI: uri,
	}, nil
}

func (s *VaultSource) Fetch(ctx context.Context) ([]byte, error) {
	start := time.Now()
	path := fmt.Sprintf("%s/data/%s", s.mountPath, s.dataPath)

	secret, err := s.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		s.log.Error("Failed to read from Vault",
			slog.String("path", path),
			"err", err)
		return nil, fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}

	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrMaterialNotFound, s.locationURI)
	}

	// KV v2 nests the stored key/value pairs under "data".
	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: invalid data format in Vault response for %s", interfaces.ErrConfiguration, path)
	}

	value, ok := data[s.field]
	if !ok {
		return nil, fmt.Errorf("%w: field %q not in %s", interfaces.ErrMaterialNotFound, s.field, path)
	}

	str, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("%w: field %q in %s is not a string", interfaces.ErrConfiguration, s.field, path)
	}

	content, err := decodeVaultValue(str)
	if err != nil {
		return nil, fmt.Errorf("%w: field %q in %s: %v", interfaces.ErrConfiguration, s.field, path, err)
	}

	s.log.Info("Fetched material from Vault",
		slog.String("path", path),
		slog.String("field", s.field),
		slog.Duration("duration", time.Since(start)))

	return content, nil
}

func (s *VaultSource) LocationURI() string {
	return s.locationURI
}

const vaultBase64Prefix = "base64:"

func decodeVaultValue(value string) ([]byte, error) {
	if encoded, ok := strings.CutPrefix(value, vaultBase64Prefix); ok {
		return base64.StdEncoding.DecodeString(encoded)
	}
	return []byte(value), nil
}
