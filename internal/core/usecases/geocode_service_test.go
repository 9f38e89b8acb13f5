package usecases_test

import (
	"context"
	"errors"
	"testing"

	"github.com/urbanbuzz/explorer/internal/core/domain"
	"github.com/urbanbuzz/explorer/internal/core/usecases"
)

func TestGeocodeService_CachesGeocode(t *testing.T) {
	calls := 0
	geo := &mockGeocoder{geocodeFn: func(ctx context.Context, address string) (*domain.Place, error) {
		calls++
		p := fivePoints
		return &p, nil
	}}
	cache := newMemCache()
	svc := usecases.NewGeocodeService(geo, &mockDirections{}, cache)

	for i := 0; i < 3; i++ {
		p, err := svc.Geocode(context.Background(), "  Five Points ")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.Location != fivePoints.Location {
			t.Errorf("unexpected location %v", p.Location)
		}
	}
	if calls != 1 {
		t.Errorf("expected 1 upstream call, got %d", calls)
	}
	if ttl := cache.ttls["geocode:five points"]; ttl != 86400 {
		t.Errorf("expected 24h TTL, got %d", ttl)
	}
}

func TestGeocodeService_EmptyAddress(t *testing.T) {
	svc := usecases.NewGeocodeService(&mockGeocoder{}, &mockDirections{}, nil)
	_, err := svc.Geocode(context.Background(), "   ")
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected invalid input, got %v", err)
	}
}

func TestGeocodeService_NotFoundIsNotCached(t *testing.T) {
	calls := 0
	geo := &mockGeocoder{geocodeFn: func(ctx context.Context, address string) (*domain.Place, error) {
		calls++
		return nil, domain.ErrLocationNotFound
	}}
	svc := usecases.NewGeocodeService(geo, &mockDirections{}, newMemCache())

	for i := 0; i < 2; i++ {
		if _, err := svc.Geocode(context.Background(), "Atlantis"); !errors.Is(err, domain.ErrLocationNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	}
	if calls != 2 {
		t.Errorf("expected failures to reach upstream every time, got %d calls", calls)
	}
}

func TestGeocodeService_ReverseGeocodeCached(t *testing.T) {
	calls := 0
	geo := &mockGeocoder{reverseFn: func(ctx context.Context, at domain.Coordinate) (string, error) {
		calls++
		return "55 Marietta St NW, Atlanta, GA", nil
	}}
	cache := newMemCache()
	svc := usecases.NewGeocodeService(geo, &mockDirections{}, cache)

	at := domain.Coordinate{Lat: 33.7537, Lng: -84.3915}
	for i := 0; i < 2; i++ {
		addr, err := svc.ReverseGeocode(context.Background(), at)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if addr != "55 Marietta St NW, Atlanta, GA" {
			t.Errorf("unexpected address %q", addr)
		}
	}
	if calls != 1 {
		t.Errorf("expected 1 upstream call, got %d", calls)
	}
	if ttl := cache.ttls["revgeo:33.75370:-84.39150"]; ttl != 3600 {
		t.Errorf("expected 1h TTL, got %d", ttl)
	}
}

func TestGeocodeService_RouteValidatesCoordinates(t *testing.T) {
	svc := usecases.NewGeocodeService(&mockGeocoder{}, routeOf(straightLeg(2)), nil)

	if _, err := svc.Route(context.Background(), domain.Coordinate{Lat: 91}, midtown.Location); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected invalid input, got %v", err)
	}

	r, err := svc.Route(context.Background(), fivePoints.Location, midtown.Location)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(r.Legs) != 1 {
		t.Errorf("expected 1 leg, got %d", len(r.Legs))
	}
}
