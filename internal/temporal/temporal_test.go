package temporal

import (
	"bytes"
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/mocks"

	"github.com/smartkubik/import-api/internal/importer"
)

func TestRunnerStartsOneWorkflowPerJob(t *testing.T) {
	c := &mocks.Client{}
	run := &mocks.WorkflowRun{}
	run.On("GetID").Return("import-execution-job-1")
	run.On("GetRunID").Return("run-1")
	c.On("ExecuteWorkflow", mock.Anything,
		client.StartWorkflowOptions{ID: "import-execution-job-1", TaskQueue: TaskQueueName},
		ExecWorkflowName,
		ExecutionParams{JobID: "job-1", TenantID: "tenant-1", UserID: "user-1"},
	).Return(run, nil)

	r := NewRunner(c, zerolog.Nop())
	id, err := r.Enqueue(context.Background(), importer.ExecutionTask{JobID: "job-1", TenantID: "tenant-1", UserID: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, "import-execution-job-1", id)
	c.AssertExpectations(t)
}

func TestRunnerWrapsStartFailure(t *testing.T) {
	c := &mocks.Client{}
	c.On("ExecuteWorkflow", mock.Anything, mock.Anything, ExecWorkflowName, mock.Anything).
		Return(nil, errors.New("frontend unavailable"))

	_, err := NewRunner(c, zerolog.Nop()).Enqueue(context.Background(), importer.ExecutionTask{JobID: "job-2"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "job-2")
	assert.Contains(t, err.Error(), "frontend unavailable")
}

func TestTemporalAdapterFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewTemporalAdapter(zerolog.New(&buf))

	l.Warn("activity failed", "JobID", "job-1", "error", errors.New("boom"), 7, "x", "dangling")
	out := buf.String()
	assert.Contains(t, out, `"component":"temporal-sdk"`)
	assert.Contains(t, out, `"job_id":"job-1"`)
	assert.Contains(t, out, `"error":"boom"`)
	assert.Contains(t, out, `"INVALID_KEY":"x"`)
	assert.Contains(t, out, `"dangling":"MISSING_VALUE"`)

	buf.Reset()
	l.(*TemporalAdapter).With("WorkflowID", "wf-1").Info("started", "ActivityType", "RunImportActivity")
	assert.Contains(t, buf.String(), `"workflow_id":"wf-1"`)
	assert.Contains(t, buf.String(), `"activity_type":"RunImportActivity"`)
}

func TestFieldName(t *testing.T) {
	for in, want := range map[string]string{
		"WorkflowID":   "workflow_id",
		"RunID":        "run_id",
		"HTTPStatus":   "http_status",
		"Attempt":      "attempt",
		"error":        "error",
		"task_queue":   "task_queue",
		"Namespace2ID": "namespace2_id",
	} {
		assert.Equal(t, want, fieldName(in), in)
	}
}
