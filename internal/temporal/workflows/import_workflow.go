package workflows

import (
	"time"

	sdktemporal "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/smartkubik/import-api/internal/temporal"
	"github.com/smartkubik/import-api/internal/temporal/activities"
)

// ImportExecutionWorkflow runs one queued import job. The activity is attempted once: a job
// that left validated cannot be executed again.
func ImportExecutionWorkflow(ctx workflow.Context, params temporal.ExecutionParams) (*temporal.ExecutionResult, error) {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: temporal.DefaultActivityTimeout,
		HeartbeatTimeout:    time.Minute,
		RetryPolicy:         &sdktemporal.RetryPolicy{MaximumAttempts: 1},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	logger := workflow.GetLogger(ctx)
	logger.Info("Starting import workflow", "JobID", params.JobID, "TenantID", params.TenantID)

	var a *activities.Activities
	var result temporal.ExecutionResult
	if err := workflow.ExecuteActivity(ctx, a.RunImportActivity, params).Get(ctx, &result); err != nil {
		logger.Error("Import workflow failed.", "JobID", params.JobID, "error", err)
		return nil, err
	}

	logger.Info("Import workflow completed.", "JobID", params.JobID, "Created", result.Created, "Failed", result.Failed)
	return &result, nil
}
