package importertest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/smartkubik/import-api/internal/importer"
	"github.com/smartkubik/import-api/internal/models"
)

// Jobs is an in-memory import job repository.
type Jobs struct {
	mu   sync.Mutex
	jobs map[string]*models.ImportJob
}

func NewJobs() *Jobs {
	return &Jobs{jobs: make(map[string]*models.ImportJob)}
}

func clone(j *models.ImportJob) *models.ImportJob {
	cp := *j
	cp.ParsedData = append([]map[string]string(nil), j.ParsedData...)
	cp.ParsedHeaders = append([]string(nil), j.ParsedHeaders...)
	cp.Errors = append([]models.ImportError(nil), j.Errors...)
	cp.UpdateSnapshots = append([]models.UpdateSnapshot(nil), j.UpdateSnapshots...)
	if j.ColumnMapping != nil {
		cp.ColumnMapping = make(map[string]string, len(j.ColumnMapping))
		for k, v := range j.ColumnMapping {
			cp.ColumnMapping[k] = v
		}
	}
	return &cp
}

func (s *Jobs) Create(_ context.Context, job *models.ImportJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return errors.Errorf("import job %s already exists", job.ID)
	}
	s.jobs[job.ID] = clone(job)
	return nil
}

func (s *Jobs) Get(_ context.Context, tenantID, id string) (*models.ImportJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok || j.TenantID != tenantID {
		return nil, errors.Wrapf(importer.ErrJobNotFound, "id=%s", id)
	}
	return clone(j), nil
}

func (s *Jobs) List(_ context.Context, tenantID string, f models.ImportJobFilter) ([]*models.ImportJob, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.ImportJob
	for _, j := range s.jobs {
		if j.TenantID != tenantID {
			continue
		}
		if (f.EntityType != "" && j.EntityType != f.EntityType) ||
			(f.Status != "" && j.Status != f.Status) ||
			(f.CreatedBy != "" && j.CreatedBy != f.CreatedBy) {
			continue
		}
		out = append(out, clone(j))
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.After(out[k].CreatedAt) })
	total := len(out)
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, total, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, total, nil
}

func (s *Jobs) Save(_ context.Context, job *models.ImportJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; !ok {
		return errors.Wrapf(importer.ErrJobNotFound, "id=%s", job.ID)
	}
	s.jobs[job.ID] = clone(job)
	return nil
}

func (s *Jobs) Transition(_ context.Context, job *models.ImportJob, from models.ImportStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.jobs[job.ID]
	if !ok {
		return errors.Wrapf(importer.ErrJobNotFound, "id=%s", job.ID)
	}
	if cur.Status != from {
		return &models.TransitionError{From: cur.Status, To: job.Status}
	}
	s.jobs[job.ID] = clone(job)
	return nil
}

func (s *Jobs) SaveProgress(_ context.Context, job *models.ImportJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.jobs[job.ID]
	if !ok {
		return errors.Wrapf(importer.ErrJobNotFound, "id=%s", job.ID)
	}
	cur.ImportProgress = job.ImportProgress
	cur.Errors = append([]models.ImportError(nil), job.Errors...)
	cur.UpdateSnapshots = append([]models.UpdateSnapshot(nil), job.UpdateSnapshots...)
	cur.HeartbeatAt = job.HeartbeatAt
	return nil
}

func (s *Jobs) Delete(_ context.Context, tenantID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok || j.TenantID != tenantID {
		return errors.Wrapf(importer.ErrJobNotFound, "id=%s", id)
	}
	delete(s.jobs, id)
	return nil
}

func (s *Jobs) ListStale(_ context.Context, before time.Time) ([]*models.ImportJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.ImportJob
	for _, j := range s.jobs {
		if j.Status == models.ImportStatusProcessing && j.HeartbeatAt != nil && j.HeartbeatAt.Before(before) {
			out = append(out, clone(j))
		}
	}
	return out, nil
}

// Put stores a job as is, bypassing every check.
func (s *Jobs) Put(job *models.ImportJob) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = clone(job)
}

// Notifier records emitted events.
type Notifier struct {
	mu        sync.Mutex
	Progress  []importer.ProgressEvent
	Completed []importer.CompletionEvent
	Failed    []importer.FailureEvent
	Users     []string
}

func (n *Notifier) EmitProgress(_ context.Context, userID string, evt importer.ProgressEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Progress = append(n.Progress, evt)
	n.Users = append(n.Users, userID)
}

func (n *Notifier) EmitComplete(_ context.Context, userID string, evt importer.CompletionEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Completed = append(n.Completed, evt)
	n.Users = append(n.Users, userID)
}

func (n *Notifier) EmitFailed(_ context.Context, userID string, evt importer.FailureEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Failed = append(n.Failed, evt)
	n.Users = append(n.Users, userID)
}

// Runner records enqueued tasks without running them.
type Runner struct {
	mu    sync.Mutex
	Tasks []importer.ExecutionTask
	Err   error
	// OnEnqueue, when set, runs before Enqueue returns, like a worker that picks the task up
	// immediately.
	OnEnqueue func(ctx context.Context, task importer.ExecutionTask)
}

func (r *Runner) Enqueue(ctx context.Context, task importer.ExecutionTask) (string, error) {
	r.mu.Lock()
	if r.Err != nil {
		r.mu.Unlock()
		return "", r.Err
	}
	r.Tasks = append(r.Tasks, task)
	id := fmt.Sprintf("task-%d", len(r.Tasks))
	hook := r.OnEnqueue
	r.mu.Unlock()

	if hook != nil {
		hook(ctx, task)
	}
	return id, nil
}
