package temporal

import "time"

// TaskQueueName is the Temporal task queue import executions run on.
const TaskQueueName = "SMARTKUBIK_IMPORTS"

// ExecWorkflowIDPrefix prefixes the workflow id, which ends with the import job id.
const ExecWorkflowIDPrefix = "import-execution-"

// DefaultActivityTimeout bounds one whole import execution.
const DefaultActivityTimeout = 2 * time.Hour

// HeartbeatInterval is how often a running import activity heartbeats.
const HeartbeatInterval = 10 * time.Second

// ExecutionParams is the workflow input.
type ExecutionParams struct {
	JobID    string
	TenantID string
	UserID   string
}

// ExecutionResult is what the workflow returns once the job finished.
type ExecutionResult struct {
	Created     int
	Updated     int
	Skipped     int
	Failed      int
	TotalErrors int
}
