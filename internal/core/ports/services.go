package ports

import (
	"context"

	"github.com/urbanbuzz/explorer/internal/core/domain"
)

// Geocoder resolves free-text addresses and coordinates.
type Geocoder interface {
	// Geocode returns the best match for an address or ErrLocationNotFound.
	Geocode(ctx context.Context, address string) (*domain.Place, error)
	// ReverseGeocode returns the top formatted address for a coordinate.
	ReverseGeocode(ctx context.Context, at domain.Coordinate) (string, error)
}

// DirectionsProvider computes driving routes.
type DirectionsProvider interface {
	// Route returns the first route between two coordinates or ErrNoRoute.
	Route(ctx context.Context, origin, destination domain.Coordinate) (*domain.Route, error)
}

// PlacesQuery describes a nearby place search.
type PlacesQuery struct {
	Location     domain.Coordinate
	RadiusMeters uint
	Keyword      string
	TransitOnly  bool
}

// PlacesFinder searches points of interest near a location.
type PlacesFinder interface {
	NearbySearch(ctx context.Context, q PlacesQuery) ([]domain.Station, error)
}

// TravelEstimator measures driving distance and time between two points.
type TravelEstimator interface {
	Estimate(ctx context.Context, origin, destination domain.Coordinate) (domain.TravelEstimate, error)
}

// LocationDescriber reverse geocodes a coordinate into its named parts
// (city, state, country, neighbourhood).
type LocationDescriber interface {
	DescribeLocation(ctx context.Context, at domain.Coordinate) (*domain.LocationInfo, error)
}

// SafetyAnalyzer asks a model for the safety profile of a location.
type SafetyAnalyzer interface {
	AnalyzeSafety(ctx context.Context, loc domain.LocationInfo) (*domain.SafetyReport, error)
}

// ImageryAdvisor is the advisory LLM consulted before fetching a stop's images.
type ImageryAdvisor interface {
	Advise(ctx context.Context, stop domain.PitStop) (domain.ImageryAdvice, error)
}

// VisionRequest carries an image plus the location context shown to the model.
type VisionRequest struct {
	Image       []byte
	ContentType string
	Address     string
	Coordinates domain.Coordinate
	Direction   string
	RouteInfo   domain.RouteInfo
}

// VisionAnalyzer reads a street-level image.
type VisionAnalyzer interface {
	Analyze(ctx context.Context, req VisionRequest) (*domain.ImageAnalysis, error)
}

// ImageURLBuilder turns a stop and heading into a static imagery URL.
type ImageURLBuilder interface {
	StreetViewURL(at domain.Coordinate, heading, pitch, fov int) string
}

// MapURLBuilder renders a static map of a route.
type MapURLBuilder interface {
	RouteMapURL(origin, destination domain.Coordinate, path []domain.Coordinate) string
}

// ImageDownloader fetches raw image bytes.
type ImageDownloader interface {
	Download(ctx context.Context, url string) (body []byte, contentType string, err error)
}

// EventPublisher publishes exploration events to a message broker.
type EventPublisher interface {
	PublishProgress(ctx context.Context, snap *domain.Snapshot) error
	PublishCompleted(ctx context.Context, rec *domain.ExplorationRecord) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// RouteAnalysisRunner starts and polls asynchronous route analyses.
type RouteAnalysisRunner interface {
	Start(ctx context.Context, origin, destination string) (id string, err error)
	// Result returns nil analysis with done=false while the analysis is running.
	Result(ctx context.Context, id string) (analysis *domain.RouteAnalysis, done bool, err error)
}
