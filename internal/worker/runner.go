package worker

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/smartkubik/import-api/internal/importer"
)

// ErrQueueFull is returned by Enqueue when every queue slot is taken.
var ErrQueueFull = errors.New("import queue is full")

type RunnerConfig struct {
	Workers   int
	QueueSize int
}

type queuedTask struct {
	id   string
	task importer.ExecutionTask
}

// Runner executes queued imports on a fixed pool of goroutines inside this process.
// Queued tasks do not survive a restart.
type Runner struct {
	exec    importer.Executor
	queue   chan queuedTask
	workers int
	logger  zerolog.Logger
}

func NewRunner(exec importer.Executor, cfg RunnerConfig, logger zerolog.Logger) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	return &Runner{
		exec:    exec,
		queue:   make(chan queuedTask, cfg.QueueSize),
		workers: cfg.Workers,
		logger:  logger.With().Str("component", "import-runner").Logger(),
	}
}

func (r *Runner) Enqueue(_ context.Context, task importer.ExecutionTask) (string, error) {
	qt := queuedTask{id: "local-" + uuid.NewString(), task: task}
	select {
	case r.queue <- qt:
		r.logger.Debug().Str("task_id", qt.id).Str("job_id", task.JobID).Msg("Import task queued")
		return qt.id, nil
	default:
		return "", ErrQueueFull
	}
}

// Start runs the workers until ctx is cancelled and waits for them to return.
func (r *Runner) Start(ctx context.Context) error {
	r.logger.Info().Int("workers", r.workers).Msg("Import runner started")
	var wg sync.WaitGroup
	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			r.work(ctx, n)
		}(i)
	}
	wg.Wait()

	if dropped := len(r.queue); dropped > 0 {
		r.logger.Warn().Int("dropped", dropped).Msg("Import runner stopped with queued tasks")
	}
	r.logger.Info().Msg("Import runner stopped")
	return ctx.Err()
}

func (r *Runner) work(ctx context.Context, n int) {
	for {
		select {
		case <-ctx.Done():
			return
		case qt := <-r.queue:
			log := r.logger.With().Int("worker", n).Str("task_id", qt.id).Str("job_id", qt.task.JobID).Logger()
			summary, err := r.exec.RunExecution(ctx, qt.task)
			if err != nil {
				log.Error().Err(err).Msg("Import task failed")
				continue
			}
			log.Info().
				Int("created", summary.Created).
				Int("updated", summary.Updated).
				Int("failed", summary.Failed).
				Msg("Import task done")
		}
	}
}
