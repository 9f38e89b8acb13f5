package workflows

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	workflowpb "go.temporal.io/api/workflow/v1"
	"go.temporal.io/api/workflowservice/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/mocks"

	"github.com/urbanbuzz/explorer/internal/core/domain"
)

func TestRunner_Start(t *testing.T) {
	c := &mocks.Client{}
	run := &mocks.WorkflowRun{}
	run.On("GetID").Return("route-analysis-123")
	c.On("ExecuteWorkflow", mock.Anything, mock.MatchedBy(func(o client.StartWorkflowOptions) bool {
		return o.TaskQueue == "route-analysis" && len(o.ID) > len(workflowIDPrefix)
	}), RouteAnalysisWorkflowName, RouteAnalysisInput{Origin: "A", Destination: "B"}).Return(run, nil)

	id, err := NewRunner(c, "route-analysis").Start(context.Background(), "A", "B")
	require.NoError(t, err)
	assert.Equal(t, "route-analysis-123", id)
	c.AssertExpectations(t)
}

func TestRunner_ResultRunning(t *testing.T) {
	c := &mocks.Client{}
	c.On("DescribeWorkflowExecution", mock.Anything, "route-analysis-1", "").Return(
		&workflowservice.DescribeWorkflowExecutionResponse{
			WorkflowExecutionInfo: &workflowpb.WorkflowExecutionInfo{
				Status: enumspb.WORKFLOW_EXECUTION_STATUS_RUNNING,
			},
		}, nil)

	a, done, err := NewRunner(c, "q").Result(context.Background(), "route-analysis-1")
	require.NoError(t, err)
	assert.False(t, done)
	assert.Nil(t, a)
}

func TestRunner_ResultUnknownID(t *testing.T) {
	c := &mocks.Client{}
	c.On("DescribeWorkflowExecution", mock.Anything, "nope", "").Return(
		(*workflowservice.DescribeWorkflowExecutionResponse)(nil), serviceerror.NewNotFound("workflow not found"))

	_, _, err := NewRunner(c, "q").Result(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
