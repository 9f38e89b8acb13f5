package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/urbanbuzz/explorer/internal/core/domain"
	"github.com/urbanbuzz/explorer/internal/core/usecases"
)

const (
	RouteAnalysisWorkflowName = "RouteAnalysisWorkflow"

	activityPlanStops   = "PlanAnalysisStops"
	activityAnalyzeStop = "AnalyzeStop"
)

// RouteAnalysisInput is the input for the route analysis workflow.
type RouteAnalysisInput struct {
	Origin      string
	Destination string
}

// RouteAnalysisWorkflow plans stops along a route, runs the vision model on
// each one and merges the readings. Planning is retried; a stop whose
// analysis fails is left out of the summary.
func RouteAnalysisWorkflow(ctx workflow.Context, input RouteAnalysisInput) (*domain.RouteAnalysis, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting route analysis", "origin", input.Origin, "destination", input.Destination)

	planCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: time.Second,
			MaximumAttempts: 3,
		},
	})

	var stops []domain.PitStop
	if err := workflow.ExecuteActivity(planCtx, activityPlanStops, input.Origin, input.Destination).Get(ctx, &stops); err != nil {
		return nil, err
	}

	analyzeCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 90 * time.Second,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})

	info := domain.RouteInfo{Origin: input.Origin, Destination: input.Destination}
	futures := make([]workflow.Future, len(stops))
	for i, stop := range stops {
		futures[i] = workflow.ExecuteActivity(analyzeCtx, activityAnalyzeStop, i, stop, info)
	}

	analyses := make([]domain.StopAnalysis, 0, len(stops))
	for i, f := range futures {
		var a domain.StopAnalysis
		if err := f.Get(ctx, &a); err != nil {
			logger.Warn("stop analysis failed, skipping", "stop", i, "error", err)
			continue
		}
		analyses = append(analyses, a)
	}

	summary := usecases.SummarizeRoute(analyses)
	logger.Info("Route analysis finished", "stops", len(stops), "analyzed", summary.TotalStopsAnalyzed)
	return summary, nil
}
