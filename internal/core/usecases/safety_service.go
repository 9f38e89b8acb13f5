package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/urbanbuzz/explorer/internal/core/domain"
	"github.com/urbanbuzz/explorer/internal/core/ports"
	"github.com/urbanbuzz/explorer/internal/pkg/metrics"
)

// SafetyQuery names a location by free text, address or coordinates. At
// least one is required; coordinates are reverse geocoded for detail.
type SafetyQuery struct {
	Location    string
	Address     string
	Coordinates *domain.Coordinate
}

// SafetyService produces model-written safety reports for a location.
type SafetyService struct {
	locator  ports.LocationDescriber
	analyzer ports.SafetyAnalyzer
	log      *slog.Logger
}

// NewSafetyService creates a SafetyService. analyzer may be nil when no model
// is configured.
func NewSafetyService(locator ports.LocationDescriber, analyzer ports.SafetyAnalyzer, log *slog.Logger) *SafetyService {
	return &SafetyService{locator: locator, analyzer: analyzer, log: log}
}

// Enabled reports whether a safety model is configured.
func (s *SafetyService) Enabled() bool {
	return s.analyzer != nil
}

// Analyze builds the location context and asks the model for a report. A
// failed reverse geocode degrades to the caller's own description.
func (s *SafetyService) Analyze(ctx context.Context, q SafetyQuery) (*domain.SafetyReport, error) {
	if s.analyzer == nil {
		return nil, fmt.Errorf("%w: safety analysis is not configured", domain.ErrServiceUnavailable)
	}

	location, address := strings.TrimSpace(q.Location), strings.TrimSpace(q.Address)
	if location == "" && address == "" && q.Coordinates == nil {
		return nil, fmt.Errorf("%w: location, address, or coordinates required", domain.ErrInvalidInput)
	}

	info := domain.LocationInfo{Address: address}
	if q.Coordinates != nil {
		at := *q.Coordinates
		if err := at.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		}
		info.Coordinates = &at

		described, err := s.locator.DescribeLocation(ctx, at)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			metrics.DegradedTotal.WithLabelValues("safety_geocode").Inc()
			s.log.Warn("describe location failed, using caller address", "location", at.String(), "error", err)
		} else {
			if described.Address != "" {
				info.Address = described.Address
			}
			info.City = described.City
			info.State = described.State
			info.Country = described.Country
			info.Neighborhood = described.Neighborhood
		}
	}
	if info.Address == "" {
		info.Address = location
	}
	if info.Address == "" {
		info.Address = info.Coordinates.Label()
	}

	report, err := s.analyzer.AnalyzeSafety(ctx, info)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: safety analysis: %v", domain.ErrServiceUnavailable, err)
	}
	report.LocationInfo = info
	return report, nil
}
