package temporal

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"go.temporal.io/sdk/client"

	"github.com/smartkubik/import-api/internal/importer"
)

// ExecWorkflowName is the registered name of the import execution workflow.
const ExecWorkflowName = "ImportExecutionWorkflow"

// Runner starts one workflow per queued import job.
type Runner struct {
	client client.Client
	logger zerolog.Logger
}

func NewRunner(c client.Client, logger zerolog.Logger) *Runner {
	return &Runner{client: c, logger: logger.With().Str("component", "temporal-runner").Logger()}
}

// Enqueue starts the workflow and returns its id as the task id.
func (r *Runner) Enqueue(ctx context.Context, task importer.ExecutionTask) (string, error) {
	opts := client.StartWorkflowOptions{
		ID:        ExecWorkflowIDPrefix + task.JobID,
		TaskQueue: TaskQueueName,
	}
	run, err := r.client.ExecuteWorkflow(ctx, opts, ExecWorkflowName, ExecutionParams{
		JobID:    task.JobID,
		TenantID: task.TenantID,
		UserID:   task.UserID,
	})
	if err != nil {
		return "", errors.Wrapf(err, "start workflow for import job %s", task.JobID)
	}
	r.logger.Info().Str("workflow_id", run.GetID()).Str("run_id", run.GetRunID()).Str("job_id", task.JobID).Msg("Import workflow started")
	return run.GetID(), nil
}
