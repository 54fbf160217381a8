package worker

import (
	"context"

	"github.com/rotisserie/eris"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
	"go.uber.org/zap"

	"github.com/sells-group/check-cli/internal/config"
)

// Dial connects to the Temporal frontend with logging routed through zap.
func Dial(cfg config.TemporalConfig) (client.Client, error) {
	c, err := client.Dial(client.Options{
		HostPort:  cfg.HostPort,
		Namespace: cfg.Namespace,
		Logger:    NewLogger(zap.L()),
	})
	if err != nil {
		return nil, eris.Wrapf(err, "worker: dial temporal %s", cfg.HostPort)
	}
	return c, nil
}

// New creates a worker on the task queue with the workflow and activities
// registered. maxConcurrent bounds simultaneous checks; zero keeps the SDK default.
func New(c client.Client, taskQueue string, acts *Activities, maxConcurrent int) worker.Worker {
	w := worker.New(c, taskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize: maxConcurrent,
	})
	w.RegisterWorkflowWithOptions(ProcessCheckWorkflow, workflow.RegisterOptions{Name: WorkflowName})
	w.RegisterActivity(acts)
	return w
}

// Starter is the part of client.Client used to enqueue runs.
type Starter interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error)
}

// Enqueue starts a run for checkID and returns its run ID. Starting a check
// that already has a run in flight attaches to that run.
func Enqueue(ctx context.Context, s Starter, taskQueue, checkID string, maxAttempts int32) (string, error) {
	run, err := s.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        WorkflowID(checkID),
		TaskQueue: taskQueue,
	}, WorkflowName, ProcessCheckInput{CheckID: checkID, MaxAttempts: maxAttempts})
	if err != nil {
		return "", eris.Wrapf(err, "worker: enqueue check %s", checkID)
	}
	zap.L().Info("worker: check enqueued",
		zap.String("check_id", checkID),
		zap.String("workflow_id", run.GetID()),
		zap.String("run_id", run.GetRunID()),
	)
	return run.GetRunID(), nil
}
