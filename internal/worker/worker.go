package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/smartkubik/import-api/internal/importer"
	"github.com/smartkubik/import-api/internal/models"
)

// HeartbeatLost is the failure reason recorded on reaped jobs.
const HeartbeatLost = "worker heartbeat lost"

// StaleJobStore lists processing jobs whose heartbeat stopped and saves them guarded by status.
type StaleJobStore interface {
	ListStale(ctx context.Context, before time.Time) ([]*models.ImportJob, error)
	Transition(ctx context.Context, job *models.ImportJob, from models.ImportStatus) error
}

type ReaperConfig struct {
	Interval   time.Duration
	StaleAfter time.Duration
}

// Reaper fails jobs left in processing by a worker that stopped heartbeating.
type Reaper struct {
	cfg      ReaperConfig
	jobs     StaleJobStore
	notifier importer.ProgressNotifier
	logger   zerolog.Logger
	now      func() time.Time
}

func NewReaper(cfg ReaperConfig, jobs StaleJobStore, notifier importer.ProgressNotifier, logger zerolog.Logger) *Reaper {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 15 * time.Minute
	}
	return &Reaper{
		cfg:      cfg,
		jobs:     jobs,
		notifier: notifier,
		logger:   logger.With().Str("component", "import-reaper").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Start sweeps every Interval until ctx is cancelled.
func (r *Reaper) Start(ctx context.Context) error {
	r.logger.Info().Dur("stale_after", r.cfg.StaleAfter).Msg("Reaper started")
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("Reaper stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.Sweep(ctx); err != nil {
				r.logger.Error().Err(err).Msg("Stale import sweep failed")
			}
		}
	}
}

// Sweep fails every stale job once and returns how many it failed.
func (r *Reaper) Sweep(ctx context.Context) (int, error) {
	now := r.now()
	stale, err := r.jobs.ListStale(ctx, now.Add(-r.cfg.StaleAfter))
	if err != nil {
		return 0, err
	}

	reaped := 0
	for _, job := range stale {
		log := r.logger.With().Str("job_id", job.ID).Str("tenant_id", job.TenantID).Logger()
		if err := job.Fail(now, HeartbeatLost); err != nil {
			log.Warn().Err(err).Msg("Stale job cannot be failed")
			continue
		}
		if err := r.jobs.Transition(ctx, job, models.ImportStatusProcessing); err != nil {
			// The worker finished or another instance reaped it first.
			log.Debug().Err(err).Msg("Stale job changed before it was reaped")
			continue
		}
		reaped++
		log.Warn().Int("processed_rows", job.ProcessedRows).Msg("Import job reaped after losing its heartbeat")
		r.notifier.EmitFailed(ctx, job.CreatedBy, importer.FailureEvent{
			ImportJobID:   job.ID,
			TenantID:      job.TenantID,
			EntityType:    job.EntityType,
			FileName:      job.OriginalFileName,
			Error:         HeartbeatLost,
			ProcessedRows: job.ProcessedRows,
			FailedRows:    job.FailedRows,
		})
	}
	return reaped, nil
}
