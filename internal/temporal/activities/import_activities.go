package activities

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.temporal.io/sdk/activity"
	sdktemporal "go.temporal.io/sdk/temporal"

	"github.com/smartkubik/import-api/internal/importer"
	"github.com/smartkubik/import-api/internal/temporal"
)

type Activities struct {
	Executor importer.Executor
}

// RunImportActivity executes the job and heartbeats while it runs. Jobs rejected by the
// orchestrator are reported as non-retryable.
func (a *Activities) RunImportActivity(ctx context.Context, params temporal.ExecutionParams) (*temporal.ExecutionResult, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Running import", "jobID", params.JobID, "tenantID", params.TenantID)

	done := make(chan struct{})
	defer close(done)
	go heartbeat(ctx, params.JobID, done)

	summary, err := a.Executor.RunExecution(ctx, importer.ExecutionTask{
		JobID:    params.JobID,
		TenantID: params.TenantID,
		UserID:   params.UserID,
	})
	if err != nil {
		logger.Error("Import failed", "jobID", params.JobID, "error", err)
		if rejected(err) {
			return nil, sdktemporal.NewNonRetryableApplicationError(err.Error(), "ImportRejected", err)
		}
		return nil, err
	}
	return &temporal.ExecutionResult{
		Created:     summary.Created,
		Updated:     summary.Updated,
		Skipped:     summary.Skipped,
		Failed:      summary.Failed,
		TotalErrors: summary.TotalErrors,
	}, nil
}

func heartbeat(ctx context.Context, jobID string, done <-chan struct{}) {
	ticker := time.NewTicker(temporal.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			activity.RecordHeartbeat(ctx, jobID)
		}
	}
}

func rejected(err error) bool {
	return errors.Is(err, importer.ErrJobNotFound) ||
		errors.Is(err, importer.ErrPreconditionFailed) ||
		errors.Is(err, importer.ErrInvalidTransition) ||
		errors.Is(err, importer.ErrUnsupportedEntityType)
}
