package material

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ruteri/tee-secret-provisioner/interfaces"
)

// MultiSource fetches from the first of several sources that has the material.
// Operators use it to keep a replica of each piece of material on a second backend.
type MultiSource struct {
	sources []interfaces.MaterialSource
	log     *slog.Logger
}

func NewMultiSource(sources []interfaces.MaterialSource, log *slog.Logger) *MultiSource {
	if log == nil {
		log = slog.Default()
	}
	return &MultiSource{
		sources: sources,
		log:     log,
	}
}

// Fetch tries each source in order. If every source fails, the result is
// ErrMaterialNotFound when all of them reported missing material and
// ErrBackendUnavailable otherwise.
func (m *MultiSource) Fetch(ctx context.Context) ([]byte, error) {
	start := time.Now()
	var errs []error
	allNotFound := true

	for _, source := range m.sources {
		data, err := source.Fetch(ctx)
		if err == nil {
			m.log.Debug("Fetched material",
				slog.String("uri", source.LocationURI()),
				slog.Duration("duration", time.Since(start)))
			return data, nil
		}

		if !errors.Is(err, interfaces.ErrMaterialNotFound) {
			allNotFound = false
		}
		errs = append(errs, fmt.Errorf("%s: %w", source.LocationURI(), err))
		m.log.Debug("Failed to fetch from source",
			slog.String("uri", source.LocationURI()),
			"err", err)
	}

	m.log.Error("All sources failed to fetch material",
		slog.Int("failedSources", len(errs)),
		slog.Duration("duration", time.Since(start)))

	category := interfaces.ErrBackendUnavailable
	if allNotFound {
		category = interfaces.ErrMaterialNotFound
	}
	return nil, fmt.Errorf("%w: all sources failed: %w", category, errors.Join(errs...))
}

func (m *MultiSource) LocationURI() string {
	locations := make([]string, 0, len(m.sources))
	for _, source := range m.sources {
		locations = append(locations, source.LocationURI())
	}
	return "multi:[" + strings.Join(locations, ",") + "]"
}
