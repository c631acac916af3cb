package orchestrator

import (
	"context"
	"math"
	"strings"

	"github.com/pkg/errors"

	"github.com/smartkubik/import-api/internal/importer"
	"github.com/smartkubik/import-api/internal/models"
)

// ExecuteResult is either a queued task or the outcome of an inline run.
type ExecuteResult struct {
	Queued    bool   `json:"queued"`
	TaskID    string `json:"task_id,omitempty"`
	TotalRows int    `json:"total_rows,omitempty"`
	*importer.ExecutionSummary
}

// ExecuteImport runs a validated job inline, or hands it to the background runner when it has
// more than importer.SyncRowThreshold rows.
func (o *Orchestrator) ExecuteImport(ctx context.Context, tenantID, userID, jobID string) (*ExecuteResult, error) {
	job, err := o.jobs.Get(ctx, tenantID, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != models.ImportStatusValidated {
		return nil, &models.TransitionError{From: job.Status, To: models.ImportStatusProcessing}
	}
	task := importer.ExecutionTask{JobID: job.ID, TenantID: job.TenantID, UserID: userID}
	if task.UserID == "" {
		task.UserID = job.CreatedBy
	}

	if job.TotalRows <= importer.SyncRowThreshold {
		summary, err := o.RunExecution(ctx, task)
		if err != nil {
			return nil, err
		}
		return &ExecuteResult{ExecutionSummary: summary}, nil
	}

	if o.runner == nil {
		return nil, errors.New("no background runner configured for large imports")
	}
	if job.TaskID != "" {
		return nil, importer.Preconditionf("import job %s is already queued as task %s", job.ID, job.TaskID)
	}
	taskID, err := o.runner.Enqueue(ctx, task)
	if err != nil {
		return nil, errors.Wrap(err, "enqueue import execution")
	}
	job.TaskID = taskID
	if err := o.jobs.Transition(ctx, job, models.ImportStatusValidated); err != nil {
		var moved *models.TransitionError
		if !errors.As(err, &moved) || moved.From == models.ImportStatusValidated {
			return nil, err
		}
		// The runner started the job before the task id was stored.
		o.jobLogger(job).Debug().Str("task_id", taskID).Str("status", string(moved.From)).Msg("Queued import already picked up")
	}

	o.jobLogger(job).Info().Str("task_id", taskID).Int("total_rows", job.TotalRows).Msg("Import queued")
	return &ExecuteResult{Queued: true, TaskID: taskID, TotalRows: job.TotalRows}, nil
}

// RunExecution re-validates a validated job and writes its rows batch by batch. Inline
// execution and the background runners share it.
func (o *Orchestrator) RunExecution(ctx context.Context, task importer.ExecutionTask) (summary *importer.ExecutionSummary, err error) {
	job, err := o.jobs.Get(ctx, task.TenantID, task.JobID)
	if err != nil {
		return nil, err
	}
	if job.Status != models.ImportStatusValidated {
		return nil, &models.TransitionError{From: job.Status, To: models.ImportStatusProcessing}
	}
	h, err := o.handlerFor(job)
	if err != nil {
		return nil, err
	}
	ictx := o.importContext(job, task.UserID)
	log := o.jobLogger(job)

	rows, pre, err := o.validateRows(ctx, h, job, ictx)
	if err != nil {
		return nil, err
	}
	if !pre.CanProceed {
		return nil, o.blockExecution(ctx, job, ictx.UserID, pre)
	}

	if err := job.StartProcessing(o.now()); err != nil {
		return nil, err
	}
	if err := o.jobs.Transition(ctx, job, models.ImportStatusValidated); err != nil {
		return nil, err
	}
	log.Info().Int("total_rows", job.TotalRows).Int("batch_size", ictx.Options.BatchSize).Msg("Import execution started")

	defer func() {
		if r := recover(); r != nil {
			summary = nil
			err = o.failJob(ctx, job, ictx.UserID, errors.Errorf("panic: %v", r))
		}
	}()

	var executable []importer.ValidatedRow
	rejected := models.ProgressDelta{}
	totalErrors := 0
	for _, row := range rows {
		switch {
		case row.Executable():
			executable = append(executable, row)
		case row.Status == importer.RowError:
			rejected.Failed++
			for _, issue := range row.Errors {
				if issue.Severity != importer.SeverityError {
					continue
				}
				rejected.Errors = append(rejected.Errors, models.ImportError{
					RowIndex: row.RowIndex,
					Field:    issue.Field,
					Message:  issue.Message,
					RawValue: row.Raw[issue.Field],
				})
			}
		}
		if row.Status == importer.RowWarning {
			job.WarningRows++
		}
	}
	totalErrors += len(rejected.Errors)
	job.ApplyBatch(rejected, o.now())

	size := ictx.Options.BatchSize
	totalBatches := int(math.Ceil(float64(len(executable)) / float64(size)))
	for b := 0; b < totalBatches; b++ {
		if err := ctx.Err(); err != nil {
			return nil, o.failJob(ctx, job, ictx.UserID, errors.Wrap(err, "execution interrupted"))
		}
		start := b * size
		end := start + size
		if end > len(executable) {
			end = len(executable)
		}
		batch := executable[start:end]

		res, err := h.ExecuteBatch(ctx, batch, ictx)
		if err != nil {
			return nil, o.failJob(ctx, job, ictx.UserID, errors.Wrapf(err, "batch %d of %d", b+1, totalBatches))
		}
		totalErrors += len(res.Errors)
		job.ApplyBatch(res.Delta(len(batch)), o.now())
		if err := o.jobs.SaveProgress(ctx, job); err != nil {
			return nil, o.failJob(ctx, job, ictx.UserID, errors.Wrap(err, "save progress"))
		}

		o.notifier.EmitProgress(ctx, ictx.UserID, importer.ProgressEvent{
			ImportJobID:     job.ID,
			TenantID:        job.TenantID,
			EntityType:      job.EntityType,
			ProcessedRows:   job.ProcessedRows,
			TotalRows:       len(executable),
			SuccessfulRows:  job.SuccessfulRows,
			FailedRows:      job.FailedRows,
			SkippedRows:     job.SkippedRows,
			PercentComplete: percent(job.ProcessedRows, len(executable)),
			CurrentBatch:    b + 1,
			TotalBatches:    totalBatches,
		})
		log.Debug().Int("batch", b+1).Int("total_batches", totalBatches).Int("processed_rows", job.ProcessedRows).Msg("Import batch done")
	}

	if err := job.Complete(o.now()); err != nil {
		return nil, err
	}
	if err := o.jobs.Transition(ctx, job, models.ImportStatusProcessing); err != nil {
		return nil, errors.Wrap(err, "complete import job")
	}

	summary = &importer.ExecutionSummary{
		Created:     job.SuccessfulRows - job.UpdatedRows,
		Updated:     job.UpdatedRows,
		Skipped:     job.SkippedRows,
		Failed:      job.FailedRows,
		TotalErrors: totalErrors,
	}
	o.notifier.EmitComplete(ctx, ictx.UserID, importer.CompletionEvent{
		ImportJobID:    job.ID,
		TenantID:       job.TenantID,
		EntityType:     job.EntityType,
		FileName:       job.OriginalFileName,
		ProcessedRows:  job.ProcessedRows,
		SuccessfulRows: job.SuccessfulRows,
		UpdatedRows:    job.UpdatedRows,
		FailedRows:     job.FailedRows,
		SkippedRows:    job.SkippedRows,
		TotalErrors:    totalErrors,
	})
	log.Info().
		Int("created", summary.Created).
		Int("updated", summary.Updated).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Msg("Import execution completed")
	return summary, nil
}

// blockExecution records why a job could not start. The job stays validated so it can be
// re-validated once the blocking condition is fixed.
func (o *Orchestrator) blockExecution(ctx context.Context, job *models.ImportJob, userID string, pre importer.PreValidation) error {
	reason := strings.Join(pre.Errors, "; ")
	job.PreValidation = pre.Result()
	job.FailureReason = reason
	job.TaskID = ""
	if err := o.jobs.Transition(ctx, job, models.ImportStatusValidated); err != nil {
		o.jobLogger(job).Error().Err(err).Msg("Failed to record blocked import")
	}
	o.notifier.EmitFailed(ctx, userID, importer.FailureEvent{
		ImportJobID: job.ID,
		TenantID:    job.TenantID,
		EntityType:  job.EntityType,
		FileName:    job.OriginalFileName,
		Error:       reason,
	})
	return importer.Preconditionf("import cannot proceed: %s", reason)
}

// failJob marks a processing job failed. Batches already written stay written.
func (o *Orchestrator) failJob(ctx context.Context, job *models.ImportJob, userID string, cause error) error {
	ctx = context.WithoutCancel(ctx)
	log := o.jobLogger(job)
	log.Error().Err(cause).Int("processed_rows", job.ProcessedRows).Msg("Import execution failed")

	if err := job.Fail(o.now(), cause.Error()); err != nil {
		log.Error().Err(err).Msg("Import job cannot be marked failed")
		return cause
	}
	if err := o.jobs.Transition(ctx, job, models.ImportStatusProcessing); err != nil {
		log.Error().Err(err).Msg("Failed to persist failed import job")
	}
	o.notifier.EmitFailed(ctx, userID, importer.FailureEvent{
		ImportJobID:   job.ID,
		TenantID:      job.TenantID,
		EntityType:    job.EntityType,
		FileName:      job.OriginalFileName,
		Error:         cause.Error(),
		ProcessedRows: job.ProcessedRows,
		FailedRows:    job.FailedRows,
	})
	return cause
}

func percent(done, total int) float64 {
	if total == 0 {
		return 100
	}
	return math.Round(float64(done)/float64(total)*10000) / 100
}

// RollbackJob undoes a completed job: records it created are deleted and the values it
// overwrote are restored, newest first.
func (o *Orchestrator) RollbackJob(ctx context.Context, tenantID, userID, jobID string) (*importer.RollbackResult, error) {
	job, err := o.jobs.Get(ctx, tenantID, jobID)
	if err != nil {
		return nil, err
	}
	if job.IsRolledBack || job.Status == models.ImportStatusRolledBack {
		return nil, importer.Forbiddenf("import job %s was already rolled back", job.ID)
	}
	if job.Status != models.ImportStatusCompleted {
		return nil, &models.TransitionError{From: job.Status, To: models.ImportStatusRolledBack}
	}
	now := o.now()
	if !job.RollbackWindowOpen(now) {
		return nil, importer.Forbiddenf("import job %s completed more than %s ago", job.ID, models.RollbackWindow)
	}
	h, err := o.handlerFor(job)
	if err != nil {
		return nil, err
	}
	log := o.jobLogger(job)

	res, err := h.Rollback(ctx, job.ID, job.TenantID)
	if err != nil {
		return nil, errors.Wrap(err, "roll back created records")
	}
	for i := len(job.UpdateSnapshots) - 1; i >= 0; i-- {
		snap := job.UpdateSnapshots[i]
		if err := h.RestoreSnapshot(ctx, job.TenantID, snap); err != nil {
			log.Warn().Err(err).Str("record_id", snap.RecordID).Msg("Failed to restore updated record")
			continue
		}
		res.Restored++
	}

	if err := job.MarkRolledBack(o.now(), userID, res.Deleted, res.Restored); err != nil {
		return nil, err
	}
	if err := o.jobs.Transition(ctx, job, models.ImportStatusCompleted); err != nil {
		return nil, err
	}
	log.Info().Int("deleted", res.Deleted).Int("restored", res.Restored).Str("rolled_back_by", userID).Msg("Import rolled back")
	return &res, nil
}

// DeleteJob removes a job that never started executing.
func (o *Orchestrator) DeleteJob(ctx context.Context, tenantID, jobID string) error {
	job, err := o.jobs.Get(ctx, tenantID, jobID)
	if err != nil {
		return err
	}
	if !job.Deletable() {
		return importer.Preconditionf("import job %s is %s and can no longer be deleted", job.ID, job.Status)
	}
	if err := o.jobs.Delete(ctx, tenantID, jobID); err != nil {
		return err
	}
	o.jobLogger(job).Info().Msg("Import job deleted")
	return nil
}
