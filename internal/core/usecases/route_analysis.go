package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/urbanbuzz/explorer/internal/core/domain"
	"github.com/urbanbuzz/explorer/internal/core/ports"
	"github.com/urbanbuzz/explorer/internal/core/sampler"
	"github.com/urbanbuzz/explorer/internal/pkg/metrics"
	"github.com/urbanbuzz/explorer/internal/pkg/telemetry"
)

// RouteAnalysisService plans and analyses stops for asynchronous route safety
// reports. Orchestration lives in the workflow; this holds the steps.
type RouteAnalysisService struct {
	geocoder   ports.Geocoder
	directions ports.DirectionsProvider
	enricher   *Enricher
	fetcher    *ImageFetcher
	analysis   *AnalysisService
	runner     ports.RouteAnalysisRunner
	policy     sampler.DistancePolicy
}

// NewRouteAnalysisService creates a RouteAnalysisService. runner may be nil in
// the worker process, which only executes steps.
func NewRouteAnalysisService(
	geocoder ports.Geocoder,
	directions ports.DirectionsProvider,
	enricher *Enricher,
	fetcher *ImageFetcher,
	analysis *AnalysisService,
	runner ports.RouteAnalysisRunner,
) *RouteAnalysisService {
	return &RouteAnalysisService{
		geocoder:   geocoder,
		directions: directions,
		enricher:   enricher,
		fetcher:    fetcher,
		analysis:   analysis,
		runner:     runner,
		policy:     sampler.DefaultDistancePolicy,
	}
}

// Start validates the endpoints and starts an analysis.
func (s *RouteAnalysisService) Start(ctx context.Context, origin, destination string) (string, error) {
	origin, destination = strings.TrimSpace(origin), strings.TrimSpace(destination)
	if err := validateEndpoints(origin, destination); err != nil {
		return "", err
	}
	if s.runner == nil || !s.analysis.Enabled() {
		return "", fmt.Errorf("%w: route analysis is not configured", domain.ErrServiceUnavailable)
	}

	ctx, span := otel.Tracer(telemetry.TracerName).Start(ctx, telemetry.SpanRouteAnalysis, trace.WithAttributes(
		attribute.String("route_analysis.origin", origin),
		attribute.String("route_analysis.destination", destination),
	))
	defer span.End()

	id, err := s.runner.Start(ctx, origin, destination)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	span.SetAttributes(attribute.String("route_analysis.id", id))
	metrics.RouteAnalysesStarted.Inc()
	return id, nil
}

// Result returns the finished analysis, or done=false while it runs.
func (s *RouteAnalysisService) Result(ctx context.Context, id string) (*domain.RouteAnalysis, bool, error) {
	if strings.TrimSpace(id) == "" {
		return nil, false, fmt.Errorf("%w: id is required", domain.ErrInvalidInput)
	}
	if s.runner == nil {
		return nil, false, fmt.Errorf("%w: route analysis is not configured", domain.ErrServiceUnavailable)
	}
	return s.runner.Result(ctx, id)
}

// PlanStops geocodes both ends, routes between them and places stops by
// distance fraction along the first leg, each reverse-geocoded.
func (s *RouteAnalysisService) PlanStops(ctx context.Context, origin, destination string) ([]domain.PitStop, error) {
	from, err := s.geocoder.Geocode(ctx, origin)
	if err != nil {
		return nil, fmt.Errorf("geocode origin: %w", err)
	}
	to, err := s.geocoder.Geocode(ctx, destination)
	if err != nil {
		return nil, fmt.Errorf("geocode destination: %w", err)
	}
	route, err := s.directions.Route(ctx, from.Location, to.Location)
	if err != nil {
		return nil, fmt.Errorf("route: %w", err)
	}
	if len(route.Legs) == 0 {
		return nil, domain.ErrNoRoute
	}

	stops := sampler.SampleByDistance(route.Legs[0], s.policy)
	return s.enricher.Enrich(ctx, stops), nil
}

// AnalyzeStop runs the vision model on the north-facing image of a stop.
func (s *RouteAnalysisService) AnalyzeStop(ctx context.Context, index int, stop domain.PitStop, info domain.RouteInfo) (*domain.StopAnalysis, error) {
	images := s.fetcher.Descriptors(index, stop, info, nil)
	if len(images) == 0 {
		return nil, errors.New("no headings configured")
	}
	a, err := s.analysis.AnalyzeImage(ctx, images[0])
	if err != nil {
		return nil, err
	}
	return &domain.StopAnalysis{
		Location:      stop.Address,
		Coordinates:   stop.Coordinate(),
		ImageAnalysis: *a,
	}, nil
}

// SummarizeRoute merges per-stop analyses. Lists are de-duplicated in first-seen
// order; the overall score is good or poor when more than half the stops say
// so, otherwise fair.
func SummarizeRoute(analyses []domain.StopAnalysis) *domain.RouteAnalysis {
	var access, safety, hazards, curves, infra []string
	good, poor := 0, 0
	for _, a := range analyses {
		access = append(access, a.Accessibility...)
		safety = append(safety, a.Safety...)
		hazards = append(hazards, a.Hazards...)
		curves = append(curves, a.Curves...)
		infra = append(infra, a.Infrastructure...)
		switch strings.ToLower(strings.TrimSpace(a.OverallScore)) {
		case "good":
			good++
		case "poor":
			poor++
		}
	}

	overall := "fair"
	half := float64(len(analyses)) / 2
	switch {
	case float64(good) > half:
		overall = "good"
	case float64(poor) > half:
		overall = "poor"
	}

	if analyses == nil {
		analyses = []domain.StopAnalysis{}
	}
	return &domain.RouteAnalysis{
		TotalStopsAnalyzed:    len(analyses),
		AccessibilityOverall:  overall,
		AccessibilityFeatures: uniqueStrings(access),
		SafetyObservations:    uniqueStrings(safety),
		Hazards:               uniqueStrings(hazards),
		Curves:                uniqueStrings(curves),
		Infrastructure:        uniqueStrings(infra),
		DetailedAnalyses:      analyses,
	}
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
