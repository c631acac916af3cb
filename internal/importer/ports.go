package importer

import "context"

// SyncRowThreshold is the largest job executed inside the triggering request.
const SyncRowThreshold = 1000

// ExecutionTask is the message handed to a background runner.
type ExecutionTask struct {
	JobID    string `json:"job_id"`
	TenantID string `json:"tenant_id"`
	UserID   string `json:"user_id"`
}

// TaskRunner queues a job for background execution and returns the task identifier.
type TaskRunner interface {
	Enqueue(ctx context.Context, task ExecutionTask) (string, error)
}

// Executor runs a validated job end to end. Runners call it from their workers.
type Executor interface {
	RunExecution(ctx context.Context, task ExecutionTask) (*ExecutionSummary, error)
}

type ExecutionSummary struct {
	Created     int `json:"created"`
	Updated     int `json:"updated"`
	Skipped     int `json:"skipped"`
	Failed      int `json:"failed"`
	TotalErrors int `json:"total_errors"`
}

type ProgressEvent struct {
	ImportJobID     string  `json:"import_job_id"`
	TenantID        string  `json:"tenant_id"`
	EntityType      string  `json:"entity_type"`
	ProcessedRows   int     `json:"processed_rows"`
	TotalRows       int     `json:"total_rows"`
	SuccessfulRows  int     `json:"successful_rows"`
	FailedRows      int     `json:"failed_rows"`
	SkippedRows     int     `json:"skipped_rows"`
	PercentComplete float64 `json:"percent_complete"`
	CurrentBatch    int     `json:"current_batch"`
	TotalBatches    int     `json:"total_batches"`
}

type CompletionEvent struct {
	ImportJobID    string `json:"import_job_id"`
	TenantID       string `json:"tenant_id"`
	EntityType     string `json:"entity_type"`
	FileName       string `json:"file_name"`
	ProcessedRows  int    `json:"processed_rows"`
	SuccessfulRows int    `json:"successful_rows"`
	UpdatedRows    int    `json:"updated_rows"`
	FailedRows     int    `json:"failed_rows"`
	SkippedRows    int    `json:"skipped_rows"`
	TotalErrors    int    `json:"total_errors"`
}

type FailureEvent struct {
	ImportJobID   string `json:"import_job_id"`
	TenantID      string `json:"tenant_id"`
	EntityType    string `json:"entity_type"`
	FileName      string `json:"file_name"`
	Error         string `json:"error"`
	ProcessedRows int    `json:"processed_rows"`
	FailedRows    int    `json:"failed_rows"`
}

// ProgressNotifier pushes job events to the initiating user. Delivery is best effort.
type ProgressNotifier interface {
	EmitProgress(ctx context.Context, userID string, evt ProgressEvent)
	EmitComplete(ctx context.Context, userID string, evt CompletionEvent)
	EmitFailed(ctx context.Context, userID string, evt FailureEvent)
}
