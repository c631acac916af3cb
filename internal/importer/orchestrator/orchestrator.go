// Package orchestrator drives an import job through upload, mapping, validation, execution
// and rollback.
package orchestrator

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/smartkubik/import-api/internal/importer"
	"github.com/smartkubik/import-api/internal/importer/parser"
	"github.com/smartkubik/import-api/internal/importer/preset"
	"github.com/smartkubik/import-api/internal/models"
)

// PreviewRows is how many validated rows a validation stores and returns.
const PreviewRows = 100

// JobStore persists import jobs. Transition saves only while the stored status equals from.
type JobStore interface {
	Create(ctx context.Context, job *models.ImportJob) error
	Get(ctx context.Context, tenantID, id string) (*models.ImportJob, error)
	List(ctx context.Context, tenantID string, f models.ImportJobFilter) ([]*models.ImportJob, int, error)
	Save(ctx context.Context, job *models.ImportJob) error
	Transition(ctx context.Context, job *models.ImportJob, from models.ImportStatus) error
	SaveProgress(ctx context.Context, job *models.ImportJob) error
	Delete(ctx context.Context, tenantID, id string) error
}

type Config struct {
	MaxFileSize int64
	SampleRows  int
}

func (c Config) withDefaults() Config {
	if c.SampleRows <= 0 {
		c.SampleRows = 5
	}
	return c
}

type Orchestrator struct {
	jobs     JobStore
	registry *importer.Registry
	runner   importer.TaskRunner
	notifier importer.ProgressNotifier
	cfg      Config
	logger   zerolog.Logger

	now   func() time.Time
	newID func() string
}

func New(jobs JobStore, registry *importer.Registry, notifier importer.ProgressNotifier, cfg Config, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		jobs:     jobs,
		registry: registry,
		notifier: notifier,
		cfg:      cfg.withDefaults(),
		logger:   logger.With().Str("component", "import-orchestrator").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    func() string { return uuid.New().String() },
	}
}

// SetRunner installs the background runner used for jobs above importer.SyncRowThreshold.
// Runners take the orchestrator as their executor, so this is set after construction.
func (o *Orchestrator) SetRunner(r importer.TaskRunner) {
	o.runner = r
}

type UploadRequest struct {
	TenantID      string
	UserID        string
	EntityType    string
	FileName      string
	MimeType      string
	Data          []byte
	MappingPreset string
	Options       models.ImportOptions
}

type UploadResult struct {
	ImportJobID   string              `json:"import_job_id"`
	EntityType    string              `json:"entity_type"`
	ParsedHeaders []string            `json:"parsed_headers"`
	TotalRows     int                 `json:"total_rows"`
	AutoMapping   map[string]string   `json:"auto_mapping"`
	SampleRows    []map[string]string `json:"sample_rows"`
}

// HandleUpload parses the file, proposes a column mapping and stores a new job in parsed.
func (o *Orchestrator) HandleUpload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	entity, err := importer.ParseEntityType(req.EntityType)
	if err != nil {
		return nil, err
	}
	h, err := o.registry.Get(entity)
	if err != nil {
		return nil, err
	}
	if len(req.Data) == 0 {
		return nil, importer.Preconditionf("uploaded file is empty")
	}
	if o.cfg.MaxFileSize > 0 && int64(len(req.Data)) > o.cfg.MaxFileSize {
		return nil, importer.Preconditionf("file is %d bytes, the limit is %d", len(req.Data), o.cfg.MaxFileSize)
	}

	parsed, err := parser.Parse(req.Data, req.FileName, req.MimeType)
	if err != nil {
		return nil, err
	}
	if parsed.TotalRows == 0 {
		return nil, importer.Preconditionf("file %q has no data rows", req.FileName)
	}

	mapping := h.AutoMapColumns(parsed.Headers)
	if req.MappingPreset != "" {
		p, ok := preset.Get(entity, req.MappingPreset)
		if !ok {
			return nil, importer.Preconditionf("unknown mapping preset %q for %s", req.MappingPreset, entity)
		}
		mapping = preset.Merge(mapping, p.Apply(parsed.Headers))
	}

	job := &models.ImportJob{
		ID:               o.newID(),
		TenantID:         req.TenantID,
		CreatedBy:        req.UserID,
		EntityType:       string(entity),
		Status:           models.ImportStatusUploaded,
		OriginalFileName: req.FileName,
		MimeType:         req.MimeType,
		FileSize:         int64(len(req.Data)),
		ParsedHeaders:    parsed.Headers,
		TotalRows:        parsed.TotalRows,
		ParsedData:       parsed.Rows,
		ColumnMapping:    mapping,
		MappingPreset:    req.MappingPreset,
		Options:          req.Options.Normalize(),
	}
	if err := job.TransitionTo(models.ImportStatusParsed); err != nil {
		return nil, err
	}
	if err := o.jobs.Create(ctx, job); err != nil {
		return nil, errors.Wrap(err, "create import job")
	}

	o.jobLogger(job).Info().
		Int("total_rows", job.TotalRows).
		Int("mapped_columns", len(mapping)).
		Msg("Import file uploaded")

	sample := parsed.Rows
	if len(sample) > o.cfg.SampleRows {
		sample = sample[:o.cfg.SampleRows]
	}
	return &UploadResult{
		ImportJobID:   job.ID,
		EntityType:    job.EntityType,
		ParsedHeaders: job.ParsedHeaders,
		TotalRows:     job.TotalRows,
		AutoMapping:   mapping,
		SampleRows:    sample,
	}, nil
}

// MappingUpdate replaces the column mapping. Nil options keep their current value.
type MappingUpdate struct {
	ColumnMapping  map[string]string `json:"column_mapping"`
	UpdateExisting *bool             `json:"update_existing,omitempty"`
	SkipErrors     *bool             `json:"skip_errors,omitempty"`
	BatchSize      *int              `json:"batch_size,omitempty"`
}

// UpdateMapping stores a new mapping and moves the job to mapping, discarding any earlier
// validation.
func (o *Orchestrator) UpdateMapping(ctx context.Context, tenantID, jobID string, upd MappingUpdate) (*models.ImportJob, error) {
	job, err := o.jobs.Get(ctx, tenantID, jobID)
	if err != nil {
		return nil, err
	}
	if !remappable(job.Status) {
		return nil, &models.TransitionError{From: job.Status, To: models.ImportStatusMapping}
	}
	h, err := o.handlerFor(job)
	if err != nil {
		return nil, err
	}

	mapping := make(map[string]string, len(upd.ColumnMapping))
	for src, field := range upd.ColumnMapping {
		if field = strings.TrimSpace(field); field != "" {
			mapping[src] = field
		}
	}
	if err := importer.CheckMapping(h.FieldDefinitions(), mapping); err != nil {
		return nil, err
	}

	from := job.Status
	if err := job.TransitionTo(models.ImportStatusMapping); err != nil {
		return nil, err
	}
	job.ColumnMapping = mapping
	if upd.UpdateExisting != nil {
		job.Options.UpdateExisting = *upd.UpdateExisting
	}
	if upd.SkipErrors != nil {
		job.Options.SkipErrors = *upd.SkipErrors
	}
	if upd.BatchSize != nil {
		job.Options.BatchSize = *upd.BatchSize
	}
	job.Options = job.Options.Normalize()
	resetValidation(job)

	if err := o.jobs.Transition(ctx, job, from); err != nil {
		return nil, err
	}
	return job, nil
}

type ValidationReport struct {
	PreValidation *models.PreValidationResult `json:"pre_validation"`
	Summary       models.ValidationSummary    `json:"summary"`
	Preview       []importer.ValidatedRow     `json:"preview"`
}

// ValidateJob runs the batch checks once and every row check, then stores the summary and a
// preview of the first PreviewRows rows.
func (o *Orchestrator) ValidateJob(ctx context.Context, tenantID, userID, jobID string) (*ValidationReport, error) {
	job, err := o.jobs.Get(ctx, tenantID, jobID)
	if err != nil {
		return nil, err
	}
	if !remappable(job.Status) {
		return nil, &models.TransitionError{From: job.Status, To: models.ImportStatusValidating}
	}
	if len(job.ColumnMapping) == 0 {
		return nil, importer.Preconditionf("column mapping is empty")
	}
	if len(job.ParsedData) == 0 {
		return nil, importer.Preconditionf("import job has no parsed data")
	}
	h, err := o.handlerFor(job)
	if err != nil {
		return nil, err
	}

	from := job.Status
	if err := job.TransitionTo(models.ImportStatusValidating); err != nil {
		return nil, err
	}
	if err := o.jobs.Transition(ctx, job, from); err != nil {
		return nil, err
	}

	rows, pre, err := o.validateRows(ctx, h, job, o.importContext(job, userID))
	if err != nil {
		o.revertToMapping(ctx, job)
		return nil, err
	}

	summary := summarize(rows)
	preview := rows
	if len(preview) > PreviewRows {
		preview = preview[:PreviewRows]
	}
	raw, err := json.Marshal(preview)
	if err != nil {
		o.revertToMapping(ctx, job)
		return nil, errors.Wrap(err, "encode validation preview")
	}

	job.ValidationSummary = &summary
	job.PreValidation = pre.Result()
	job.ValidationPreview = raw
	job.WarningRows = summary.Warnings
	job.TaskID = ""
	job.FailureReason = ""
	if err := job.TransitionTo(models.ImportStatusValidated); err != nil {
		return nil, err
	}
	if err := o.jobs.Transition(ctx, job, models.ImportStatusValidating); err != nil {
		return nil, err
	}

	o.jobLogger(job).Info().
		Int("valid", summary.Valid).
		Int("warnings", summary.Warnings).
		Int("errors", summary.Errors).
		Int("skipped", summary.Skipped).
		Bool("can_proceed", pre.CanProceed).
		Msg("Import validated")

	return &ValidationReport{
		PreValidation: job.PreValidation,
		Summary:       summary,
		Preview:       preview,
	}, nil
}

// validateRows maps every parsed row, runs the batch checks once and then each row check.
func (o *Orchestrator) validateRows(ctx context.Context, h importer.Handler, job *models.ImportJob, ictx importer.Context) ([]importer.ValidatedRow, importer.PreValidation, error) {
	defs := h.FieldDefinitions()
	mapped := make([]importer.MappedRow, len(job.ParsedData))
	for i, raw := range job.ParsedData {
		mapped[i] = importer.ApplyMapping(job.ColumnMapping, job.ParsedHeaders, raw, i+1)
	}

	pre, err := h.PreValidateBatch(ctx, mapped, ictx)
	if err != nil {
		return nil, pre, errors.Wrap(err, "pre-validate batch")
	}
	for _, missing := range importer.MissingRequired(defs, job.ColumnMapping) {
		pre.AddError("required field " + missing.Label + " is not mapped to any column")
	}

	rows := make([]importer.ValidatedRow, len(mapped))
	for i, m := range mapped {
		if err := ctx.Err(); err != nil {
			return nil, pre, err
		}
		vr, err := h.ValidateRow(ctx, m, ictx)
		if err != nil {
			return nil, pre, errors.Wrapf(err, "validate row %d", m.RowIndex)
		}
		rows[i] = vr
	}
	importer.MergeRowIssues(rows, pre.RowIssues)
	return rows, pre, nil
}

func summarize(rows []importer.ValidatedRow) models.ValidationSummary {
	s := models.ValidationSummary{Total: len(rows)}
	for _, r := range rows {
		switch r.Status {
		case importer.RowValid:
			s.Valid++
		case importer.RowWarning:
			s.Warnings++
		case importer.RowError:
			s.Errors++
		case importer.RowSkipped:
			s.Skipped++
		}
	}
	return s
}

func (o *Orchestrator) revertToMapping(ctx context.Context, job *models.ImportJob) {
	if err := job.TransitionTo(models.ImportStatusMapping); err != nil {
		return
	}
	if err := o.jobs.Transition(context.WithoutCancel(ctx), job, models.ImportStatusValidating); err != nil {
		o.jobLogger(job).Error().Err(err).Msg("Failed to revert import job after validation error")
	}
}

func (o *Orchestrator) handlerFor(job *models.ImportJob) (importer.Handler, error) {
	return o.registry.Get(importer.EntityType(job.EntityType))
}

func (o *Orchestrator) importContext(job *models.ImportJob, userID string) importer.Context {
	if userID == "" {
		userID = job.CreatedBy
	}
	return importer.Context{
		TenantID:    job.TenantID,
		UserID:      userID,
		ImportJobID: job.ID,
		Options:     job.Options.Normalize(),
	}
}

func (o *Orchestrator) jobLogger(job *models.ImportJob) *zerolog.Logger {
	l := o.logger.With().
		Str("job_id", job.ID).
		Str("tenant_id", job.TenantID).
		Str("entity_type", job.EntityType).
		Logger()
	return &l
}

func remappable(s models.ImportStatus) bool {
	switch s {
	case models.ImportStatusParsed, models.ImportStatusMapping, models.ImportStatusValidated:
		return true
	}
	return false
}

func resetValidation(job *models.ImportJob) {
	job.ValidationSummary = nil
	job.PreValidation = nil
	job.ValidationPreview = nil
	job.WarningRows = 0
	job.TaskID = ""
	job.FailureReason = ""
}
