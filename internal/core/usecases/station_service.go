package usecases

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/urbanbuzz/explorer/internal/core/domain"
	"github.com/urbanbuzz/explorer/internal/core/ports"
	"github.com/urbanbuzz/explorer/internal/pkg/geospatial"
)

const (
	DefaultStationKeyword = "MARTA"

	stationRadiusMeters      = 5000
	broadStationRadiusMeters = 10000
	maxStationsReturned      = 5
)

// StationQuery locates a point either by coordinates or by address.
type StationQuery struct {
	Location *domain.Coordinate
	Address  string
	Keyword  string
}

// StationResult is the outcome of a nearest-station lookup.
type StationResult struct {
	Found    bool             `json:"found"`
	Station  *domain.Station  `json:"station,omitempty"`
	Stations []domain.Station `json:"stations"`
	Message  string           `json:"message,omitempty"`
}

// StationService finds transit stations near a point.
type StationService struct {
	geocoder ports.Geocoder
	places   ports.PlacesFinder
}

// NewStationService creates a new StationService.
func NewStationService(geocoder ports.Geocoder, places ports.PlacesFinder) *StationService {
	return &StationService{geocoder: geocoder, places: places}
}

// Nearest searches within 5 km for stations matching the keyword. When that
// finds nothing it searches 10 km without the keyword and keeps names that
// mention the keyword or "station".
func (s *StationService) Nearest(ctx context.Context, q StationQuery) (*StationResult, error) {
	origin, err := s.resolve(ctx, q)
	if err != nil {
		return nil, err
	}

	keyword := strings.TrimSpace(q.Keyword)
	if keyword == "" {
		keyword = DefaultStationKeyword
	}

	stations, err := s.places.NearbySearch(ctx, ports.PlacesQuery{
		Location:     origin,
		RadiusMeters: stationRadiusMeters,
		Keyword:      keyword,
		TransitOnly:  true,
	})
	if err != nil {
		return nil, err
	}

	if len(stations) == 0 {
		broad, err := s.places.NearbySearch(ctx, ports.PlacesQuery{
			Location:     origin,
			RadiusMeters: broadStationRadiusMeters,
			TransitOnly:  true,
		})
		if err != nil {
			return nil, err
		}
		stations = filterByName(broad, keyword, "station")
	}

	if len(stations) == 0 {
		return &StationResult{
			Found:    false,
			Stations: []domain.Station{},
			Message: fmt.Sprintf("No %s stations found nearby. You may be too far from a station, "+
				"or there may not be any stations in the area.", keyword),
		}, nil
	}

	rankByDistance(origin, stations)
	if len(stations) > maxStationsReturned {
		stations = stations[:maxStationsReturned]
	}
	closest := stations[0]
	return &StationResult{Found: true, Station: &closest, Stations: stations}, nil
}

func (s *StationService) resolve(ctx context.Context, q StationQuery) (domain.Coordinate, error) {
	if q.Location != nil {
		if err := q.Location.Validate(); err != nil {
			return domain.Coordinate{}, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		}
		return *q.Location, nil
	}
	if strings.TrimSpace(q.Address) == "" {
		return domain.Coordinate{}, fmt.Errorf("%w: provide either location coordinates or an address", domain.ErrInvalidInput)
	}
	place, err := s.geocoder.Geocode(ctx, q.Address)
	if err != nil {
		if errors.Is(err, domain.ErrLocationNotFound) {
			return domain.Coordinate{}, fmt.Errorf("could not find %q: %w", q.Address, err)
		}
		return domain.Coordinate{}, err
	}
	return place.Location, nil
}

// rankByDistance sorts by planar distance and fills in metres for display.
func rankByDistance(origin domain.Coordinate, stations []domain.Station) {
	sort.SliceStable(stations, func(i, j int) bool {
		return geospatial.PlanarDegrees(origin, stations[i].Location) < geospatial.PlanarDegrees(origin, stations[j].Location)
	})
	for i := range stations {
		stations[i].DistanceMeters = geospatial.Distance(origin, stations[i].Location)
	}
}

func filterByName(stations []domain.Station, needles ...string) []domain.Station {
	var out []domain.Station
	for _, st := range stations {
		name := strings.ToLower(st.Name)
		for _, n := range needles {
			if strings.Contains(name, strings.ToLower(n)) {
				out = append(out, st)
				break
			}
		}
	}
	return out
}
