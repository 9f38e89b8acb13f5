package usecases_test

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/urbanbuzz/explorer/internal/core/domain"
	"github.com/urbanbuzz/explorer/internal/core/ports"
)

// --- Mock Geocoder ---

type mockGeocoder struct {
	geocodeFn func(ctx context.Context, address string) (*domain.Place, error)
	reverseFn func(ctx context.Context, at domain.Coordinate) (string, error)
}

func (m *mockGeocoder) Geocode(ctx context.Context, address string) (*domain.Place, error) {
	if m.geocodeFn != nil {
		return m.geocodeFn(ctx, address)
	}
	return nil, domain.ErrLocationNotFound
}

func (m *mockGeocoder) ReverseGeocode(ctx context.Context, at domain.Coordinate) (string, error) {
	if m.reverseFn != nil {
		return m.reverseFn(ctx, at)
	}
	return "", domain.ErrLocationNotFound
}

// --- Mock DirectionsProvider ---

type mockDirections struct {
	routeFn func(ctx context.Context, origin, destination domain.Coordinate) (*domain.Route, error)
}

func (m *mockDirections) Route(ctx context.Context, origin, destination domain.Coordinate) (*domain.Route, error) {
	if m.routeFn != nil {
		return m.routeFn(ctx, origin, destination)
	}
	return nil, domain.ErrNoRoute
}

// --- Mock ImageryAdvisor ---

type mockAdvisor struct {
	adviseFn func(ctx context.Context, stop domain.PitStop) (domain.ImageryAdvice, error)
}

func (m *mockAdvisor) Advise(ctx context.Context, stop domain.PitStop) (domain.ImageryAdvice, error) {
	return m.adviseFn(ctx, stop)
}

// --- Fake ImageURLBuilder ---

type fakeURLs struct{}

func (fakeURLs) StreetViewURL(at domain.Coordinate, heading, pitch, fov int) string {
	return fmt.Sprintf("https://imagery.test/streetview?location=%s&heading=%d&pitch=%d&fov=%d", at, heading, pitch, fov)
}

// --- Recording EventPublisher ---

type recordingPublisher struct {
	mu        sync.Mutex
	progress  []domain.Snapshot
	completed []domain.ExplorationRecord
	err       error
	// block, when set, stalls every progress publish until it is closed.
	block chan struct{}
}

// waitCompleted waits for n completed events and returns what was published.
// Events are published in the background, so tests must not read the fields directly.
func (p *recordingPublisher) waitCompleted(t *testing.T, n int) ([]domain.Snapshot, []domain.ExplorationRecord) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		p.mu.Lock()
		progress, completed := slices.Clone(p.progress), slices.Clone(p.completed)
		p.mu.Unlock()
		if len(completed) >= n {
			return progress, completed
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d completed events, got %d", n, len(completed))
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func (p *recordingPublisher) PublishProgress(ctx context.Context, snap *domain.Snapshot) error {
	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.progress = append(p.progress, *snap)
	return p.err
}

func (p *recordingPublisher) PublishCompleted(ctx context.Context, rec *domain.ExplorationRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completed = append(p.completed, *rec)
	return p.err
}

// --- In-memory ExplorationRepository ---

type memHistory struct {
	mu      sync.Mutex
	records []domain.ExplorationRecord
	err     error
}

func (h *memHistory) Insert(ctx context.Context, rec *domain.ExplorationRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return h.err
	}
	h.records = append(h.records, *rec)
	return nil
}

func (h *memHistory) Recent(ctx context.Context, limit int) ([]domain.ExplorationRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]domain.ExplorationRecord, 0, limit)
	for i := len(h.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, h.records[i])
	}
	return out, nil
}

// --- In-memory CacheService ---

var errCacheMiss = errors.New("cache miss")

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]int
}

func newMemCache() *memCache {
	return &memCache{data: map[string][]byte{}, ttls: map[string]int{}}
}

func (c *memCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return nil, errCacheMiss
	}
	return v, nil
}

func (c *memCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	c.ttls[key] = ttlSeconds
	return nil
}

func (c *memCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

// --- Mock PlacesFinder ---

type mockPlaces struct {
	searchFn func(ctx context.Context, q ports.PlacesQuery) ([]domain.Station, error)
}

func (m *mockPlaces) NearbySearch(ctx context.Context, q ports.PlacesQuery) ([]domain.Station, error) {
	return m.searchFn(ctx, q)
}

// --- Mock ImageDownloader / VisionAnalyzer ---

type mockDownloader struct {
	downloadFn func(ctx context.Context, url string) ([]byte, string, error)
}

func (m *mockDownloader) Download(ctx context.Context, url string) ([]byte, string, error) {
	if m.downloadFn != nil {
		return m.downloadFn(ctx, url)
	}
	return []byte("jpeg"), "image/jpeg", nil
}

type mockVision struct {
	analyzeFn func(ctx context.Context, req ports.VisionRequest) (*domain.ImageAnalysis, error)
}

func (m *mockVision) Analyze(ctx context.Context, req ports.VisionRequest) (*domain.ImageAnalysis, error) {
	return m.analyzeFn(ctx, req)
}

// --- Mock RouteAnalysisRunner ---

type mockRunner struct {
	startFn  func(ctx context.Context, origin, destination string) (string, error)
	resultFn func(ctx context.Context, id string) (*domain.RouteAnalysis, bool, error)
}

func (m *mockRunner) Start(ctx context.Context, origin, destination string) (string, error) {
	return m.startFn(ctx, origin, destination)
}

func (m *mockRunner) Result(ctx context.Context, id string) (*domain.RouteAnalysis, bool, error) {
	return m.resultFn(ctx, id)
}

// --- Fixtures ---

var (
	fivePoints = domain.Place{FormattedAddress: "Five Points, Atlanta, GA", Location: domain.Coordinate{Lat: 33.7537, Lng: -84.3915}}
	midtown    = domain.Place{FormattedAddress: "Midtown, Atlanta, GA", Location: domain.Coordinate{Lat: 33.7810, Lng: -84.3862}}
)

// placesGeocoder resolves "A" and "B" and reverse geocodes every coordinate.
func placesGeocoder() *mockGeocoder {
	return &mockGeocoder{
		geocodeFn: func(ctx context.Context, address string) (*domain.Place, error) {
			switch address {
			case "A":
				p := fivePoints
				return &p, nil
			case "B":
				p := midtown
				return &p, nil
			}
			return nil, domain.ErrLocationNotFound
		},
		reverseFn: func(ctx context.Context, at domain.Coordinate) (string, error) {
			return fmt.Sprintf("%.3f Peachtree St NE, Atlanta, GA", at.Lat), nil
		},
	}
}

// straightLeg builds a northbound leg of n equal 100 m steps.
func straightLeg(n int) domain.RouteLeg {
	const lat0, lng0, dLat = 33.75, -84.39, 0.001
	leg := domain.RouteLeg{
		StartAddress:   "A",
		EndAddress:     "B",
		StartLocation:  domain.Coordinate{Lat: lat0, Lng: lng0},
		EndLocation:    domain.Coordinate{Lat: lat0 + float64(n)*dLat, Lng: lng0},
		DistanceMeters: n * 100,
	}
	for i := 0; i < n; i++ {
		leg.Steps = append(leg.Steps, domain.RouteStep{
			StartLocation:   domain.Coordinate{Lat: lat0 + float64(i)*dLat, Lng: lng0},
			EndLocation:     domain.Coordinate{Lat: lat0 + float64(i+1)*dLat, Lng: lng0},
			DistanceMeters:  100,
			HTMLInstruction: "Head <b>north</b> on Peachtree St",
		})
	}
	return leg
}

func routeOf(legs ...domain.RouteLeg) *mockDirections {
	return &mockDirections{
		routeFn: func(ctx context.Context, origin, destination domain.Coordinate) (*domain.Route, error) {
			return &domain.Route{Legs: legs}, nil
		},
	}
}

// --- Mock TravelEstimator / LocationDescriber / SafetyAnalyzer ---

type mockTravel struct {
	estimateFn func(ctx context.Context, origin, destination domain.Coordinate) (domain.TravelEstimate, error)
}

func (m *mockTravel) Estimate(ctx context.Context, origin, destination domain.Coordinate) (domain.TravelEstimate, error) {
	return m.estimateFn(ctx, origin, destination)
}

type mockDescriber struct {
	describeFn func(ctx context.Context, at domain.Coordinate) (*domain.LocationInfo, error)
}

func (m *mockDescriber) DescribeLocation(ctx context.Context, at domain.Coordinate) (*domain.LocationInfo, error) {
	return m.describeFn(ctx, at)
}

type mockSafety struct {
	mu   sync.Mutex
	seen []domain.LocationInfo
	err  error
}

func (m *mockSafety) AnalyzeSafety(ctx context.Context, loc domain.LocationInfo) (*domain.SafetyReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen = append(m.seen, loc)
	if m.err != nil {
		return nil, m.err
	}
	return &domain.SafetyReport{OverallScore: 70, Summary: "Busy downtown core.", DataAvailable: true}, nil
}
