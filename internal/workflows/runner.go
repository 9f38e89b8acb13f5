package workflows

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"

	"github.com/urbanbuzz/explorer/internal/core/domain"
)

const workflowIDPrefix = "route-analysis-"

// Runner starts route analysis workflows and reads their results.
// It implements ports.RouteAnalysisRunner.
type Runner struct {
	client    client.Client
	taskQueue string
}

func NewRunner(c client.Client, taskQueue string) *Runner {
	return &Runner{client: c, taskQueue: taskQueue}
}

func (r *Runner) Start(ctx context.Context, origin, destination string) (string, error) {
	run, err := r.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        workflowIDPrefix + uuid.NewString(),
		TaskQueue: r.taskQueue,
	}, RouteAnalysisWorkflowName, RouteAnalysisInput{Origin: origin, Destination: destination})
	if err != nil {
		return "", fmt.Errorf("%w: start route analysis: %v", domain.ErrServiceUnavailable, err)
	}
	return run.GetID(), nil
}

func (r *Runner) Result(ctx context.Context, id string) (*domain.RouteAnalysis, bool, error) {
	desc, err := r.client.DescribeWorkflowExecution(ctx, id, "")
	if err != nil {
		var nf *serviceerror.NotFound
		if errors.As(err, &nf) {
			return nil, false, fmt.Errorf("%w: route analysis %s", domain.ErrNotFound, id)
		}
		return nil, false, fmt.Errorf("%w: describe route analysis: %v", domain.ErrServiceUnavailable, err)
	}

	if desc.GetWorkflowExecutionInfo().GetStatus() == enumspb.WORKFLOW_EXECUTION_STATUS_RUNNING {
		return nil, false, nil
	}

	var out domain.RouteAnalysis
	if err := r.client.GetWorkflow(ctx, id, "").Get(ctx, &out); err != nil {
		return nil, true, workflowFailure(err)
	}
	return &out, true, nil
}
