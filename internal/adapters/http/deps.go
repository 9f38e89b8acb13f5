package http

import (
	"context"
	"time"

	"github.com/urbanbuzz/explorer/internal/core/ports"
	"github.com/urbanbuzz/explorer/internal/core/usecases"
)

// Pinger is a backing service the readiness probe can reach.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Broker reports message broker connectivity.
type Broker interface {
	Connected() bool
}

// Dependencies holds all services needed by HTTP handlers.
// Backing services are optional and only affect readiness.
type Dependencies struct {
	Explorations   *usecases.ExplorationService
	Geocoding      *usecases.GeocodeService
	Stations       *usecases.StationService
	Places         *usecases.PlaceSearchService
	Safety         *usecases.SafetyService
	Analysis       *usecases.AnalysisService
	RouteAnalyses  *usecases.RouteAnalysisService
	Maps           ports.MapURLBuilder
	ExploreTimeout time.Duration
	Version        string

	DB     Pinger
	Cache  Pinger
	Broker Broker
}
