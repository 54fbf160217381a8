// Package worker runs checks through the pipeline as Temporal workflows. The
// workflow ID is derived from the check ID so a check has at most one run in
// flight, and Temporal owns retries.
package worker

import (
	"context"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
	"go.uber.org/zap"

	"github.com/sells-group/check-cli/internal/model"
	"github.com/sells-group/check-cli/internal/pipeline"
)

// WorkflowName is the registered name of ProcessCheckWorkflow.
const WorkflowName = "ProcessCheck"

// nonRetryable lists error codes that no retry can fix.
var nonRetryable = []string{
	model.CodeCheckNotFound,
	model.CodeNoSegmentsFound,
	model.CodeUnsupportedFormat,
	model.CodeFileTooLarge,
}

// ProcessCheckInput starts one run.
type ProcessCheckInput struct {
	CheckID     string `json:"check_id"`
	MaxAttempts int32  `json:"max_attempts,omitempty"`
}

// ProcessCheckOutput summarizes a finished run.
type ProcessCheckOutput struct {
	CheckID    string            `json:"check_id"`
	Status     model.CheckStatus `json:"status"`
	Confidence float64           `json:"confidence"`
	AutoExport bool              `json:"auto_export"`
	DurationMs int64             `json:"duration_ms"`
}

// WorkflowID is the ID every run of checkID uses.
func WorkflowID(checkID string) string {
	return "check-" + checkID
}

// ProcessCheckWorkflow executes the ProcessCheck activity under a retry policy.
func ProcessCheckWorkflow(ctx workflow.Context, input ProcessCheckInput) (*ProcessCheckOutput, error) {
	attempts := input.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        5 * time.Second,
			BackoffCoefficient:     2.0,
			MaximumInterval:        time.Minute,
			MaximumAttempts:        attempts,
			NonRetryableErrorTypes: nonRetryable,
		},
	})

	logger := workflow.GetLogger(ctx)
	logger.Info("worker: processing check", "check_id", input.CheckID)

	var acts *Activities
	var out ProcessCheckOutput
	if err := workflow.ExecuteActivity(ctx, acts.ProcessCheck, input).Get(ctx, &out); err != nil {
		logger.Error("worker: check failed", "check_id", input.CheckID, "error", err)
		return nil, err
	}
	return &out, nil
}

// Runner processes one check.
type Runner interface {
	Run(ctx context.Context, checkID string) (*pipeline.Result, error)
}

// Activities holds the activity implementations.
type Activities struct {
	runner Runner
}

// NewActivities creates Activities backed by runner.
func NewActivities(runner Runner) *Activities {
	return &Activities{runner: runner}
}

// ProcessCheck runs the pipeline once. Failures whose code is in the
// non-retryable list are marked so Temporal stops retrying.
func (a *Activities) ProcessCheck(ctx context.Context, input ProcessCheckInput) (*ProcessCheckOutput, error) {
	attempt := int32(1)
	if activity.IsActivity(ctx) {
		attempt = activity.GetInfo(ctx).Attempt
	}
	log := zap.L().With(zap.String("check_id", input.CheckID), zap.Int32("attempt", attempt))
	log.Info("worker: activity started")

	res, err := a.runner.Run(ctx, input.CheckID)
	if err != nil {
		code := model.ErrorCode(err)
		for _, c := range nonRetryable {
			if code == c {
				log.Warn("worker: permanent failure", zap.String("code", code), zap.Error(err))
				return nil, temporal.NewNonRetryableApplicationError(err.Error(), code, err)
			}
		}
		log.Warn("worker: attempt failed", zap.String("code", code), zap.Error(err))
		return nil, temporal.NewApplicationErrorWithCause(err.Error(), code, err)
	}

	return &ProcessCheckOutput{
		CheckID:    res.CheckID,
		Status:     res.Status,
		Confidence: res.Validation.ConfidenceSummary,
		AutoExport: res.Decision.AutoExport,
		DurationMs: res.Duration.Milliseconds(),
	}, nil
}
