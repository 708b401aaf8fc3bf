package material

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	shell "github.com/ipfs/go-ipfs-api"
	"github.com/ruteri/tee-secret-provisioner/interfaces"
)

// IPFSSource reads content pinned on an IPFS node. IPFS content is public, so only
// public material (the user certificate, the trusted signer key) should live there.
//
// Shell.IsUp and Shell.Cat take no context, so Fetch issues the same requests through
// the shell's request builder to honor its context.
type IPFSSource struct {
	shell       *shell.Shell
	cid         string
	log         *slog.Logger
	locationURI string
}

func NewIPFSSource(host, port, cid string, timeout time.Duration, log *slog.Logger) *IPFSSource {
	apiURL := fmt.Sprintf("%s:%s", host, port)
	sh := shell.NewShell(apiURL)
	sh.SetTimeout(timeout)

	return &IPFSSource{
		shell:       sh,
		cid:         cid,
		log:         log,
		locationURI: fmt.Sprintf("ipfs://%s/%s", apiURL, cid),
	}
}

func (s *IPFSSource) Fetch(ctx context.Context) ([]byte, error) {
	start := time.Now()

	var version struct{ Version string }
	if err := s.shell.Request("version").Exec(ctx, &version); err != nil {
		s.log.Warn("IPFS node unavailable", slog.String("uri", s.locationURI), "err", err)
		return nil, fmt.Errorf("%w: %s", interfaces.ErrBackendUnavailable, s.locationURI)
	}

	reader, err := s.cat(ctx)
	if err != nil {
		if strings.Contains(err.Error(), "no link named") || strings.Contains(err.Error(), "not found") {
			return nil, fmt.Errorf("%w: %s", interfaces.ErrMaterialNotFound, s.locationURI)
		}
		s.log.Error("Failed to fetch data from IPFS",
			slog.String("cid", s.cid),
			"err", err,
			slog.Duration("duration", time.Since(start)))
		return nil, fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read data from IPFS: %v", interfaces.ErrBackendUnavailable, err)
	}

	s.log.Debug("Fetched material from IPFS",
		slog.String("cid", s.cid),
		slog.Int("size", len(data)),
		slog.Duration("duration", time.Since(start)))

	return data, nil
}

// cat is shell.Cat with the caller's context.
func (s *IPFSSource) cat(ctx context.Context) (io.ReadCloser, error) {
	resp, err := s.shell.Request("cat", "/ipfs/"+s.cid).Send(ctx)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		resp.Close()
		return nil, resp.Error
	}
	return resp.Output, nil
}

func (s *IPFSSource) LocationURI() string {
	return s.locationURI
}
