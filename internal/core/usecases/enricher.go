package usecases

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/urbanbuzz/explorer/internal/core/domain"
	"github.com/urbanbuzz/explorer/internal/core/ports"
	"github.com/urbanbuzz/explorer/internal/pkg/metrics"
)

// Enricher replaces sampler labels with reverse-geocoded addresses.
type Enricher struct {
	geocoder    ports.Geocoder
	concurrency int
	log         *slog.Logger
}

// NewEnricher creates an Enricher issuing at most concurrency lookups at once.
func NewEnricher(geocoder ports.Geocoder, concurrency int, log *slog.Logger) *Enricher {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Enricher{geocoder: geocoder, concurrency: concurrency, log: log}
}

// Enrich returns a copy of stops with addresses filled in where the lookup
// succeeded. Each stop gets a single attempt; failures keep the existing label.
func (e *Enricher) Enrich(ctx context.Context, stops []domain.PitStop) []domain.PitStop {
	out := slices.Clone(stops)

	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i := range out {
		g.Go(func() error {
			addr, err := e.geocoder.ReverseGeocode(ctx, out[i].Coordinate())
			if err != nil || strings.TrimSpace(addr) == "" {
				metrics.DegradedTotal.WithLabelValues("reverse_geocode").Inc()
				e.log.Debug("reverse geocode fell back",
					"stop", i, "lat", out[i].Lat, "lng", out[i].Lng, "error", err)
				return nil
			}
			out[i].Address = addr
			return nil
		})
	}
	_ = g.Wait()

	return out
}
