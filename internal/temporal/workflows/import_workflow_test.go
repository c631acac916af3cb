package workflows

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"

	"github.com/smartkubik/import-api/internal/importer"
	"github.com/smartkubik/import-api/internal/temporal"
	"github.com/smartkubik/import-api/internal/temporal/activities"
)

type stubExecutor struct {
	got importer.ExecutionTask
	err error
}

func (s *stubExecutor) RunExecution(_ context.Context, task importer.ExecutionTask) (*importer.ExecutionSummary, error) {
	s.got = task
	if s.err != nil {
		return nil, s.err
	}
	return &importer.ExecutionSummary{Created: 1200, Failed: 3, TotalErrors: 3}, nil
}

func TestImportExecutionWorkflow(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()

	exec := &stubExecutor{}
	env.RegisterActivity(&activities.Activities{Executor: exec})

	params := temporal.ExecutionParams{JobID: "job-1", TenantID: "tenant-1", UserID: "user-1"}
	env.ExecuteWorkflow(ImportExecutionWorkflow, params)

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result temporal.ExecutionResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, 1200, result.Created)
	assert.Equal(t, 3, result.Failed)
	assert.Equal(t, importer.ExecutionTask{JobID: "job-1", TenantID: "tenant-1", UserID: "user-1"}, exec.got)
}

func TestImportExecutionWorkflowRejectedJob(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()

	env.RegisterActivity(&activities.Activities{Executor: &stubExecutor{err: importer.Preconditionf("import cannot proceed")}})
	env.ExecuteWorkflow(ImportExecutionWorkflow, temporal.ExecutionParams{JobID: "job-2", TenantID: "tenant-1"})

	require.True(t, env.IsWorkflowCompleted())
	err := env.GetWorkflowError()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "import cannot proceed")
}
