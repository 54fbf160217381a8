package worker

import (
	"context"

	"github.com/stretchr/testify/mock"
	"go.temporal.io/sdk/client"

	"github.com/sells-group/check-cli/internal/pipeline"
)

// --- Runner Mock ---

type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) Run(ctx context.Context, checkID string) (*pipeline.Result, error) {
	args := m.Called(ctx, checkID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pipeline.Result), args.Error(1)
}

// --- Starter Mock ---

type mockStarter struct {
	mock.Mock
}

func (m *mockStarter) ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error) {
	called := m.Called(ctx, options, workflow, args)
	if called.Get(0) == nil {
		return nil, called.Error(1)
	}
	return called.Get(0).(client.WorkflowRun), called.Error(1)
}

// fakeRun answers the ID getters; other WorkflowRun methods are not used.
type fakeRun struct {
	client.WorkflowRun
	id, runID string
}

func (r fakeRun) GetID() string    { return r.id }
func (r fakeRun) GetRunID() string { return r.runID }
