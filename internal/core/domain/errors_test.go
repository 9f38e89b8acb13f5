package domain_test

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/urbanbuzz/explorer/internal/core/domain"
)

func TestErrorCode(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{domain.ErrInvalidInput, "bad_request"},
		{fmt.Errorf("geocode: %w", domain.ErrLocationNotFound), "location_not_found"},
		{domain.ErrNoRoute, "no_route"},
		{domain.ErrServiceUnavailable, "service_unavailable"},
		{domain.ErrNotFound, "not_found"},
		{errors.New("boom"), "internal_error"},
	}
	for _, c := range cases {
		if got := domain.ErrorCode(c.err); got != c.want {
			t.Errorf("ErrorCode(%v) = %s, want %s", c.err, got, c.want)
		}
	}
}

func TestExploreError(t *testing.T) {
	cause := errors.New("maps: ZERO_RESULTS")
	err := error(&domain.ExploreError{
		Kind:    domain.ErrNoRoute,
		Message: "No route found between Five Points and Atlantis.",
		Cause:   cause,
	})

	if !errors.Is(err, domain.ErrNoRoute) {
		t.Error("expected the kind to match")
	}
	if !errors.Is(err, cause) {
		t.Error("expected the cause to match")
	}
	if err.Error() != "No route found between Five Points and Atlantis." {
		t.Errorf("unexpected message %q", err.Error())
	}
	if got := domain.ErrorCode(fmt.Errorf("explore: %w", err)); got != "no_route" {
		t.Errorf("expected no_route through wrapping, got %s", got)
	}
}

func TestCoordinateValidate(t *testing.T) {
	if err := (domain.Coordinate{Lat: 33.75, Lng: -84.39}).Validate(); err != nil {
		t.Errorf("unexpected error %v", err)
	}
	for _, c := range []domain.Coordinate{{Lat: 91}, {Lat: -91}, {Lng: 181}, {Lng: -181}, {Lat: math.NaN(), Lng: 2}, {Lat: 1, Lng: math.NaN()}} {
		if err := c.Validate(); err == nil {
			t.Errorf("expected %+v to be rejected", c)
		}
	}
}
