// Package googlemaps adapts the Google Maps web services to the core ports.
package googlemaps

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"googlemaps.github.io/maps"

	"github.com/urbanbuzz/explorer/internal/core/domain"
	"github.com/urbanbuzz/explorer/internal/core/ports"
	"github.com/urbanbuzz/explorer/internal/pkg/config"
)

const addressUnavailable = "Address not available"

// Client implements ports.Geocoder, ports.DirectionsProvider, ports.PlacesFinder,
// ports.TravelEstimator and ports.LocationDescriber.
type Client struct {
	maps *maps.Client
}

// Option tweaks the underlying maps client.
type Option = maps.ClientOption

// WithBaseURL points the client at a different host. Used by tests.
func WithBaseURL(url string) Option { return maps.WithBaseURL(url) }

// New creates a Client. Each request is bounded by timeout.
func New(apiKey string, timeout time.Duration, opts ...Option) (*Client, error) {
	all := append([]maps.ClientOption{
		maps.WithAPIKey(apiKey),
		maps.WithHTTPClient(&http.Client{Timeout: timeout}),
	}, opts...)
	c, err := maps.NewClient(all...)
	if err != nil {
		return nil, fmt.Errorf("maps client: %w", err)
	}
	return &Client{maps: c}, nil
}

// FromConfig creates a Client from the maps section of the service config.
// A non-empty base URL replaces the public endpoint.
func FromConfig(cfg config.MapsConfig) (*Client, error) {
	var opts []Option
	if cfg.BaseURL != "" {
		opts = append(opts, WithBaseURL(cfg.BaseURL))
	}
	return New(cfg.APIKey, cfg.Timeout(), opts...)
}

// Geocode returns the first match for address.
func (c *Client) Geocode(ctx context.Context, address string) (*domain.Place, error) {
	results, err := c.maps.Geocode(ctx, &maps.GeocodingRequest{Address: address})
	if err != nil {
		return nil, classify("geocode", err, domain.ErrLocationNotFound)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("geocode %q: %w", address, domain.ErrLocationNotFound)
	}
	r := results[0]
	return &domain.Place{
		FormattedAddress: r.FormattedAddress,
		Location:         domain.Coordinate{Lat: r.Geometry.Location.Lat, Lng: r.Geometry.Location.Lng},
		PlaceID:          r.PlaceID,
	}, nil
}

// ReverseGeocode returns the top formatted address at a coordinate.
func (c *Client) ReverseGeocode(ctx context.Context, at domain.Coordinate) (string, error) {
	results, err := c.maps.ReverseGeocode(ctx, &maps.GeocodingRequest{
		LatLng: &maps.LatLng{Lat: at.Lat, Lng: at.Lng},
	})
	if err != nil {
		return "", classify("reverse geocode", err, domain.ErrLocationNotFound)
	}
	if len(results) == 0 || results[0].FormattedAddress == "" {
		return "", fmt.Errorf("reverse geocode %s: %w", at, domain.ErrLocationNotFound)
	}
	return results[0].FormattedAddress, nil
}

// Route returns the first driving route between two coordinates.
func (c *Client) Route(ctx context.Context, origin, destination domain.Coordinate) (*domain.Route, error) {
	routes, _, err := c.maps.Directions(ctx, &maps.DirectionsRequest{
		Origin:      origin.String(),
		Destination: destination.String(),
		Mode:        maps.TravelModeDriving,
	})
	if err != nil {
		return nil, classify("directions", err, domain.ErrNoRoute)
	}
	if len(routes) == 0 {
		return nil, fmt.Errorf("directions: %w", domain.ErrNoRoute)
	}

	route := &domain.Route{Legs: make([]domain.RouteLeg, 0, len(routes[0].Legs))}
	for _, l := range routes[0].Legs {
		leg := domain.RouteLeg{
			StartAddress:   l.StartAddress,
			EndAddress:     l.EndAddress,
			StartLocation:  coord(l.StartLocation),
			EndLocation:    coord(l.EndLocation),
			DistanceMeters: l.Distance.Meters,
			Steps:          make([]domain.RouteStep, 0, len(l.Steps)),
		}
		for _, s := range l.Steps {
			leg.Steps = append(leg.Steps, domain.RouteStep{
				StartLocation:   coord(s.StartLocation),
				EndLocation:     coord(s.EndLocation),
				DistanceMeters:  s.Distance.Meters,
				HTMLInstruction: s.HTMLInstructions,
			})
		}
		route.Legs = append(route.Legs, leg)
	}
	return route, nil
}

// NearbySearch lists places around a point. No results is an empty slice.
func (c *Client) NearbySearch(ctx context.Context, q ports.PlacesQuery) ([]domain.Station, error) {
	req := &maps.NearbySearchRequest{
		Location: &maps.LatLng{Lat: q.Location.Lat, Lng: q.Location.Lng},
		Radius:   q.RadiusMeters,
		Keyword:  q.Keyword,
	}
	if q.TransitOnly {
		req.Type = maps.PlaceTypeTransitStation
	}

	resp, err := c.maps.NearbySearch(ctx, req)
	if err != nil {
		if strings.Contains(err.Error(), "ZERO_RESULTS") {
			return []domain.Station{}, nil
		}
		return nil, fmt.Errorf("places nearby search: %w", err)
	}

	out := make([]domain.Station, 0, len(resp.Results))
	for _, r := range resp.Results {
		addr := r.Vicinity
		if addr == "" {
			addr = r.FormattedAddress
		}
		if addr == "" {
			addr = addressUnavailable
		}
		out = append(out, domain.Station{
			Name:             r.Name,
			Address:          addr,
			Location:         coord(r.Geometry.Location),
			PlaceID:          r.PlaceID,
			Rating:           float64(r.Rating),
			UserRatingsTotal: r.UserRatingsTotal,
			Types:            r.Types,
		})
	}
	return out, nil
}

// Estimate returns the driving distance in imperial units and the duration.
func (c *Client) Estimate(ctx context.Context, origin, destination domain.Coordinate) (domain.TravelEstimate, error) {
	resp, err := c.maps.DistanceMatrix(ctx, &maps.DistanceMatrixRequest{
		Origins:      []string{origin.String()},
		Destinations: []string{destination.String()},
		Units:        maps.UnitsImperial,
	})
	if err != nil {
		return domain.TravelEstimate{}, classify("distance matrix", err, domain.ErrNoRoute)
	}
	if len(resp.Rows) == 0 || len(resp.Rows[0].Elements) == 0 {
		return domain.TravelEstimate{}, fmt.Errorf("distance matrix: %w", domain.ErrNoRoute)
	}
	el := resp.Rows[0].Elements[0]
	if el.Status != "OK" {
		return domain.TravelEstimate{}, fmt.Errorf("distance matrix: %s: %w", el.Status, domain.ErrNoRoute)
	}
	return domain.TravelEstimate{
		Distance: el.Distance.HumanReadable,
		Duration: humanDuration(el.Duration),
	}, nil
}

// DescribeLocation reverse geocodes at and picks out the city, state,
// country and neighbourhood of the top result.
func (c *Client) DescribeLocation(ctx context.Context, at domain.Coordinate) (*domain.LocationInfo, error) {
	results, err := c.maps.ReverseGeocode(ctx, &maps.GeocodingRequest{
		LatLng: &maps.LatLng{Lat: at.Lat, Lng: at.Lng},
	})
	if err != nil {
		return nil, classify("reverse geocode", err, domain.ErrLocationNotFound)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("reverse geocode %s: %w", at, domain.ErrLocationNotFound)
	}

	info := &domain.LocationInfo{Address: results[0].FormattedAddress}
	for _, ac := range results[0].AddressComponents {
		for _, t := range ac.Types {
			switch t {
			case "locality":
				info.City = ac.LongName
			case "administrative_area_level_1":
				info.State = shortOrLong(ac)
			case "country":
				info.Country = shortOrLong(ac)
			case "neighborhood", "sublocality", "sublocality_level_1":
				info.Neighborhood = ac.LongName
			}
		}
	}
	return info, nil
}

func shortOrLong(ac maps.AddressComponent) string {
	if ac.ShortName != "" {
		return ac.ShortName
	}
	return ac.LongName
}

// humanDuration renders a duration the way the maps APIs do ("1 hour 5 mins").
func humanDuration(d time.Duration) string {
	mins := int(d.Round(time.Minute) / time.Minute)
	if mins < 1 {
		mins = 1
	}
	h, m := mins/60, mins%60
	switch {
	case h == 0:
		return plural(m, "min")
	case m == 0:
		return plural(h, "hour")
	default:
		return plural(h, "hour") + " " + plural(m, "min")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

func coord(ll maps.LatLng) domain.Coordinate {
	return domain.Coordinate{Lat: ll.Lat, Lng: ll.Lng}
}

// classify maps API status errors onto domain errors. ZERO_RESULTS means
// notFound for the call at hand; transport failures are returned wrapped
// so callers may retry them.
func classify(op string, err error, notFound error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "ZERO_RESULTS"):
		return fmt.Errorf("%s: %w: %v", op, notFound, err)
	case strings.Contains(msg, "NOT_FOUND"):
		return fmt.Errorf("%s: %w: %v", op, domain.ErrLocationNotFound, err)
	case strings.Contains(msg, "INVALID_REQUEST"):
		return fmt.Errorf("%s: %w: %v", op, domain.ErrInvalidInput, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
