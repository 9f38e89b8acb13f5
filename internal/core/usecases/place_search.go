package usecases

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/urbanbuzz/explorer/internal/core/domain"
	"github.com/urbanbuzz/explorer/internal/core/ports"
	"github.com/urbanbuzz/explorer/internal/pkg/geospatial"
)

const (
	placeSearchRadiusMeters = 5000
	maxPlacesReturned       = 5

	unknownDistance = "Unknown distance"
	unknownDuration = "Unknown time"
)

// NearbyQuery is a keyword search around a point. Type is appended to Query.
type NearbyQuery struct {
	Location domain.Coordinate
	Query    string
	Type     string
}

// NearbyResult lists the best rated places around a point, best first.
type NearbyResult struct {
	Success   bool                 `json:"success"`
	Query     string               `json:"query"`
	Message   string               `json:"message,omitempty"`
	Results   []domain.NearbyPlace `json:"results"`
	BestMatch *domain.NearbyPlace  `json:"best_match,omitempty"`
}

// PlaceSearchService finds rated places near a point.
type PlaceSearchService struct {
	places ports.PlacesFinder
	travel ports.TravelEstimator
}

func NewPlaceSearchService(places ports.PlacesFinder, travel ports.TravelEstimator) *PlaceSearchService {
	return &PlaceSearchService{places: places, travel: travel}
}

// Find searches 5 km around the point, drops unrated places, ranks by rating
// and then by distance, and estimates travel to the top five. A failed
// estimate leaves that place's distance and duration unknown.
func (s *PlaceSearchService) Find(ctx context.Context, q NearbyQuery) (*NearbyResult, error) {
	if err := q.Location.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	label := strings.TrimSpace(q.Query)
	keyword := strings.TrimSpace(label + " " + strings.TrimSpace(q.Type))
	if label == "" {
		label = "places"
	}

	found, err := s.places.NearbySearch(ctx, ports.PlacesQuery{
		Location:     q.Location,
		RadiusMeters: placeSearchRadiusMeters,
		Keyword:      keyword,
	})
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return emptyNearby(label, fmt.Sprintf("No %s found nearby. Try a different search term or location.", label)), nil
	}

	rated := make([]domain.Station, 0, len(found))
	for _, p := range found {
		if p.Rating > 0 {
			rated = append(rated, p)
		}
	}
	if len(rated) == 0 {
		return emptyNearby(label, fmt.Sprintf("No %s with ratings found nearby.", label)), nil
	}

	sort.SliceStable(rated, func(i, j int) bool {
		if rated[i].Rating != rated[j].Rating {
			return rated[i].Rating > rated[j].Rating
		}
		return geospatial.PlanarDegrees(q.Location, rated[i].Location) < geospatial.PlanarDegrees(q.Location, rated[j].Location)
	})
	if len(rated) > maxPlacesReturned {
		rated = rated[:maxPlacesReturned]
	}

	results := make([]domain.NearbyPlace, len(rated))
	var g errgroup.Group
	for i, p := range rated {
		results[i] = nearbyPlace(p)
		g.Go(func() error {
			est, err := s.travel.Estimate(ctx, q.Location, p.Location)
			if err != nil {
				return nil
			}
			if est.Distance != "" {
				results[i].Distance = est.Distance
			}
			if est.Duration != "" {
				results[i].Duration = est.Duration
			}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	best := results[0]
	return &NearbyResult{Success: true, Query: label, Results: results, BestMatch: &best}, nil
}

func emptyNearby(label, msg string) *NearbyResult {
	return &NearbyResult{Query: label, Message: msg, Results: []domain.NearbyPlace{}}
}

func nearbyPlace(p domain.Station) domain.NearbyPlace {
	types := p.Types
	if types == nil {
		types = []string{}
	}
	return domain.NearbyPlace{
		Name:             p.Name,
		Address:          p.Address,
		Rating:           p.Rating,
		UserRatingsTotal: p.UserRatingsTotal,
		Location:         p.Location,
		Distance:         unknownDistance,
		Duration:         unknownDuration,
		PlaceID:          p.PlaceID,
		Types:            types,
	}
}
