package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/urbanbuzz/explorer/internal/core/domain"
	"github.com/urbanbuzz/explorer/internal/core/ports"
	"github.com/urbanbuzz/explorer/internal/pkg/metrics"
)

const (
	geocodeTTL        = 24 * 60 * 60
	reverseGeocodeTTL = 60 * 60
)

// GeocodeService is a read-through cache in front of the geocoding and
// directions collaborators. It satisfies ports.Geocoder and
// ports.DirectionsProvider so the pipeline can use it directly.
type GeocodeService struct {
	geocoder   ports.Geocoder
	directions ports.DirectionsProvider
	cache      ports.CacheService
}

// NewGeocodeService creates a new GeocodeService. cache may be nil.
func NewGeocodeService(geocoder ports.Geocoder, directions ports.DirectionsProvider, cache ports.CacheService) *GeocodeService {
	return &GeocodeService{geocoder: geocoder, directions: directions, cache: cache}
}

// Geocode resolves a free-text address.
func (s *GeocodeService) Geocode(ctx context.Context, address string) (*domain.Place, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, fmt.Errorf("%w: address must not be empty", domain.ErrInvalidInput)
	}

	cacheKey := "geocode:" + strings.ToLower(address)
	var place domain.Place
	if s.cached(ctx, "geocode", cacheKey, &place) {
		return &place, nil
	}

	p, err := s.geocoder.Geocode(ctx, address)
	if err != nil {
		return nil, err
	}

	s.store(ctx, cacheKey, p, geocodeTTL)
	return p, nil
}

// ReverseGeocode returns the top formatted address for a coordinate.
func (s *GeocodeService) ReverseGeocode(ctx context.Context, at domain.Coordinate) (string, error) {
	if err := at.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	cacheKey := fmt.Sprintf("revgeo:%.5f:%.5f", at.Lat, at.Lng)
	var address string
	if s.cached(ctx, "reverse_geocode", cacheKey, &address) {
		return address, nil
	}

	address, err := s.geocoder.ReverseGeocode(ctx, at)
	if err != nil {
		return "", err
	}

	s.store(ctx, cacheKey, address, reverseGeocodeTTL)
	return address, nil
}

// Route returns the first driving route between two coordinates. Routes are not cached.
func (s *GeocodeService) Route(ctx context.Context, origin, destination domain.Coordinate) (*domain.Route, error) {
	if err := origin.Validate(); err != nil {
		return nil, fmt.Errorf("%w: origin: %v", domain.ErrInvalidInput, err)
	}
	if err := destination.Validate(); err != nil {
		return nil, fmt.Errorf("%w: destination: %v", domain.ErrInvalidInput, err)
	}
	return s.directions.Route(ctx, origin, destination)
}

func (s *GeocodeService) cached(ctx context.Context, op, key string, dst any) bool {
	if s.cache == nil {
		return false
	}
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		metrics.CacheMisses.WithLabelValues(op).Inc()
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		metrics.CacheMisses.WithLabelValues(op).Inc()
		return false
	}
	metrics.CacheHits.WithLabelValues(op).Inc()
	return true
}

func (s *GeocodeService) store(ctx context.Context, key string, v any, ttlSeconds int) {
	if s.cache == nil {
		return
	}
	if data, err := json.Marshal(v); err == nil {
		_ = s.cache.Set(ctx, key, data, ttlSeconds)
	}
}
