package material

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/ruteri/tee-secret-provisioner/interfaces"
)

// Factory creates material sources from location URIs.
type Factory struct {
	log *slog.Logger
}

var _ interfaces.MaterialSourceFactory = (*Factory)(nil)

func NewFactory(log *slog.Logger) *Factory {
	return &Factory{log: log}
}

// SourceFor creates a material source from a location URI.
// The URI format is [scheme]://[auth@]host[:port][/path][?params]
//
// Supported schemes:
//   - file:// - Local file
//   - vault:// - A field of a HashiCorp Vault KV v2 secret
//   - s3:// - An object in Amazon S3 or compatible object storage
//   - ipfs:// - Content pinned on an IPFS node, for public material only
func (f *Factory) SourceFor(location interfaces.MaterialLocation) (interfaces.MaterialSource, error) {
	u, err := url.Parse(string(location))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrInvalidLocationURI, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "file":
		return f.createFileSource(u)
	case "vault":
		return f.createVaultSource(u)
	case "s3":
		return f.createS3Source(u)
	case "ipfs":
		return f.createIPFSSource(u)
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", interfaces.ErrInvalidLocationURI, u.Scheme)
	}
}

// SourceForString validates uri and creates a source for it.
func (f *Factory) SourceForString(uri string) (interfaces.MaterialSource, error) {
	location, err := interfaces.NewMaterialLocation(uri)
	if err != nil {
		return nil, err
	}
	return f.SourceFor(location)
}

// createFileSource handles file:///absolute/path and file://./relative/path.
func (f *Factory) createFileSource(u *url.URL) (interfaces.MaterialSource, error) {
	path := u.Path
	if u.Host != "" {
		path = u.Host + "/" + strings.TrimPrefix(path, "/")
	}
	if path == "" {
		return nil, fmt.Errorf("%w: empty path in file URI", interfaces.ErrInvalidLocationURI)
	}

	return NewFileSource(path, f.log), nil
}

// createVaultSource handles vault://host:port/mount/path?field=shared_key&tls=false.
// The token is taken from VAULT_TOKEN by the Vault client.
func (f *Factory) createVaultSource(u *url.URL) (interfaces.MaterialSource, error) {
	if u.Host == "" {
		return nil, fmt.Errorf("%w: vault URI has no host", interfaces.ErrInvalidLocationURI)
	}

	mount, path, found := strings.Cut(strings.Trim(u.Path, "/"), "/")
	if !found || mount == "" || path == "" {
		return nil, fmt.Errorf("%w: vault URI must be vault://host/mount/path", interfaces.ErrInvalidLocationURI)
	}

	query := u.Query()
	field := query.Get("field")
	if field == "" {
		field = "value"
	}

	scheme := "https"
	if query.Get("tls") == "false" {
		scheme = "http"
	}

	return NewVaultSource(scheme+"://"+u.Host, mount, path, field, f.log)
}

// createS3Source handles s3://[ACCESS_KEY:SECRET_KEY@]bucket/key?region=us-west-2&endpoint=custom.s3.com.
// Without embedded credentials the SDK default credential chain is used.
func (f *Factory) createS3Source(u *url.URL) (interfaces.MaterialSource, error) {
	bucket := u.Host
	key := strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return nil, fmt.Errorf("%w: s3 URI must be s3://bucket/key", interfaces.ErrInvalidLocationURI)
	}

	query := u.Query()
	region := query.Get("region")
	if region == "" {
		region = "us-east-1"
	}

	var accessKey, secretKey string
	if u.User != nil {
		accessKey = u.User.Username()
		secretKey, _ = u.User.Password()
	}

	return NewS3Source(bucket, key, region, query.Get("endpoint"), accessKey, secretKey, f.log)
}

// createIPFSSource handles ipfs://host:port/<cid>?timeout=30s.
func (f *Factory) createIPFSSource(u *url.URL) (interfaces.MaterialSource, error) {
	cid := strings.Trim(u.Path, "/")
	if u.Hostname() == "" || cid == "" {
		return nil, fmt.Errorf("%w: ipfs URI must be ipfs://host:port/<cid>", interfaces.ErrInvalidLocationURI)
	}

	port := u.Port()
	if port == "" {
		port = "5001"
	}

	timeout := 30 * time.Second
	if t := u.Query().Get("timeout"); t != "" {
		d, err := time.ParseDuration(t)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid ipfs timeout: %v", interfaces.ErrInvalidLocationURI, err)
		}
		timeout = d
	}

	return NewIPFSSource(u.Hostname(), port, cid, timeout, f.log), nil
}
