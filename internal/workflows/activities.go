package workflows

import (
	"context"
	"errors"
	"fmt"

	"go.temporal.io/sdk/temporal"

	"github.com/urbanbuzz/explorer/internal/core/domain"
	"github.com/urbanbuzz/explorer/internal/core/usecases"
)

// RouteAnalysisActivities holds the activity implementations for the route analysis workflow.
type RouteAnalysisActivities struct {
	Analyses *usecases.RouteAnalysisService
}

// PlanAnalysisStops returns the reverse-geocoded stops to analyse.
func (a *RouteAnalysisActivities) PlanAnalysisStops(ctx context.Context, origin, destination string) ([]domain.PitStop, error) {
	stops, err := a.Analyses.PlanStops(ctx, origin, destination)
	if err != nil {
		return nil, asApplicationError(err)
	}
	return stops, nil
}

// AnalyzeStop reads the north-facing image at one stop.
func (a *RouteAnalysisActivities) AnalyzeStop(ctx context.Context, index int, stop domain.PitStop, info domain.RouteInfo) (*domain.StopAnalysis, error) {
	analysis, err := a.Analyses.AnalyzeStop(ctx, index, stop, info)
	if err != nil {
		return nil, asApplicationError(err)
	}
	return analysis, nil
}

// asApplicationError tags domain failures with their error code so callers
// can recover the kind. Bad input and unknown places are not retried.
func asApplicationError(err error) error {
	code := domain.ErrorCode(err)
	switch {
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrLocationNotFound),
		errors.Is(err, domain.ErrNoRoute):
		return temporal.NewNonRetryableApplicationError(err.Error(), code, err)
	default:
		return temporal.NewApplicationErrorWithCause(err.Error(), code, err)
	}
}

// kindFromCode maps an application error type back to its domain kind.
func kindFromCode(code string) error {
	switch code {
	case "bad_request":
		return domain.ErrInvalidInput
	case "location_not_found":
		return domain.ErrLocationNotFound
	case "no_route":
		return domain.ErrNoRoute
	case "not_found":
		return domain.ErrNotFound
	default:
		return domain.ErrServiceUnavailable
	}
}

func workflowFailure(err error) error {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		return fmt.Errorf("%w: %s", kindFromCode(appErr.Type()), appErr.Error())
	}
	return fmt.Errorf("%w: route analysis failed: %v", domain.ErrServiceUnavailable, err)
}
