package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartkubik/import-api/internal/importer"
	"github.com/smartkubik/import-api/internal/importer/importertest"
	"github.com/smartkubik/import-api/internal/models"
)

type recordingExecutor struct {
	mu    sync.Mutex
	tasks []importer.ExecutionTask
	done  chan struct{}
}

func (e *recordingExecutor) RunExecution(_ context.Context, task importer.ExecutionTask) (*importer.ExecutionSummary, error) {
	e.mu.Lock()
	e.tasks = append(e.tasks, task)
	e.mu.Unlock()
	e.done <- struct{}{}
	return &importer.ExecutionSummary{Created: 1}, nil
}

func TestRunnerExecutesQueuedTasks(t *testing.T) {
	exec := &recordingExecutor{done: make(chan struct{}, 4)}
	r := NewRunner(exec, RunnerConfig{Workers: 2, QueueSize: 4}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan error, 1)
	go func() { stopped <- r.Start(ctx) }()

	for _, id := range []string{"job-1", "job-2"} {
		taskID, err := r.Enqueue(ctx, importer.ExecutionTask{JobID: id, TenantID: "tenant-1", UserID: "user-1"})
		require.NoError(t, err)
		assert.Contains(t, taskID, "local-")
	}

	for i := 0; i < 2; i++ {
		select {
		case <-exec.done:
		case <-time.After(2 * time.Second):
			t.Fatal("task was not executed")
		}
	}

	cancel()
	assert.ErrorIs(t, <-stopped, context.Canceled)

	exec.mu.Lock()
	defer exec.mu.Unlock()
	assert.ElementsMatch(t, []string{"job-1", "job-2"}, []string{exec.tasks[0].JobID, exec.tasks[1].JobID})
}

func TestRunnerRejectsWhenFull(t *testing.T) {
	r := NewRunner(&recordingExecutor{done: make(chan struct{}, 1)}, RunnerConfig{Workers: 1, QueueSize: 1}, zerolog.Nop())

	_, err := r.Enqueue(context.Background(), importer.ExecutionTask{JobID: "job-1"})
	require.NoError(t, err)
	_, err = r.Enqueue(context.Background(), importer.ExecutionTask{JobID: "job-2"})
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestReaperFailsStaleJobs(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	stale := now.Add(-20 * time.Minute)
	fresh := now.Add(-time.Minute)

	jobs := importertest.NewJobs()
	jobs.Put(&models.ImportJob{ID: "stale", TenantID: "tenant-1", CreatedBy: "user-1", EntityType: "products",
		Status: models.ImportStatusProcessing, HeartbeatAt: &stale, ParsedData: []map[string]string{{"sku": "A"}}})
	jobs.Put(&models.ImportJob{ID: "fresh", TenantID: "tenant-1", CreatedBy: "user-1", EntityType: "products",
		Status: models.ImportStatusProcessing, HeartbeatAt: &fresh})
	jobs.Put(&models.ImportJob{ID: "done", TenantID: "tenant-1", Status: models.ImportStatusCompleted, HeartbeatAt: &stale})

	notifier := &importertest.Notifier{}
	reaper := NewReaper(ReaperConfig{StaleAfter: 15 * time.Minute}, jobs, notifier, zerolog.Nop())
	reaper.now = func() time.Time { return now }

	n, err := reaper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	job, err := jobs.Get(context.Background(), "tenant-1", "stale")
	require.NoError(t, err)
	assert.Equal(t, models.ImportStatusFailed, job.Status)
	assert.Equal(t, HeartbeatLost, job.FailureReason)
	assert.Nil(t, job.ParsedData)

	job, err = jobs.Get(context.Background(), "tenant-1", "fresh")
	require.NoError(t, err)
	assert.Equal(t, models.ImportStatusProcessing, job.Status)

	require.Len(t, notifier.Failed, 1)
	assert.Equal(t, "stale", notifier.Failed[0].ImportJobID)
	assert.Equal(t, []string{"user-1"}, notifier.Users)

	n, err = reaper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}
