package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
)

type ImportStatus string

const (
	ImportStatusUploaded   ImportStatus = "uploaded"
	ImportStatusParsed     ImportStatus = "parsed"
	ImportStatusMapping    ImportStatus = "mapping"
	ImportStatusValidating ImportStatus = "validating"
	ImportStatusValidated  ImportStatus = "validated"
	ImportStatusProcessing ImportStatus = "processing"
	ImportStatusCompleted  ImportStatus = "completed"
	ImportStatusFailed     ImportStatus = "failed"
	ImportStatusCancelled  ImportStatus = "cancelled"
	ImportStatusRolledBack ImportStatus = "rolled_back"
)

const (
	MinBatchSize     = 10
	MaxBatchSize     = 500
	DefaultBatchSize = 100

	// MaxStoredErrors caps ImportJob.Errors.
	MaxStoredErrors = 1000

	// RollbackWindow is how long after completion a job may be undone.
	RollbackWindow = 72 * time.Hour
)

// ErrInvalidTransition is wrapped by every TransitionError.
var ErrInvalidTransition = errors.New("invalid import status transition")

// TransitionError reports a status change the state machine does not allow.
type TransitionError struct {
	From ImportStatus
	To   ImportStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%v: %s -> %s", ErrInvalidTransition, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

var importTransitions = map[ImportStatus][]ImportStatus{
	ImportStatusUploaded:   {ImportStatusParsed, ImportStatusCancelled},
	ImportStatusParsed:     {ImportStatusMapping, ImportStatusValidating, ImportStatusCancelled},
	ImportStatusMapping:    {ImportStatusMapping, ImportStatusValidating, ImportStatusCancelled},
	ImportStatusValidating: {ImportStatusValidated, ImportStatusMapping},
	ImportStatusValidated:  {ImportStatusMapping, ImportStatusValidating, ImportStatusProcessing, ImportStatusCancelled},
	ImportStatusProcessing: {ImportStatusCompleted, ImportStatusFailed},
	ImportStatusCompleted:  {ImportStatusRolledBack},
}

type ImportOptions struct {
	UpdateExisting bool `json:"update_existing"`
	SkipErrors     bool `json:"skip_errors"`
	BatchSize      int  `json:"batch_size"`
}

// Normalize clamps BatchSize into [MinBatchSize, MaxBatchSize]; zero means the default.
func (o ImportOptions) Normalize() ImportOptions {
	switch {
	case o.BatchSize == 0:
		o.BatchSize = DefaultBatchSize
	case o.BatchSize < MinBatchSize:
		o.BatchSize = MinBatchSize
	case o.BatchSize > MaxBatchSize:
		o.BatchSize = MaxBatchSize
	}
	return o
}

// DefaultImportOptions skips failing rows and never touches existing records.
func DefaultImportOptions() ImportOptions {
	return ImportOptions{SkipErrors: true, BatchSize: DefaultBatchSize}
}

type ImportError struct {
	RowIndex int    `json:"row_index"`
	Field    string `json:"field,omitempty"`
	Message  string `json:"message"`
	RawValue string `json:"raw_value,omitempty"`
}

// UpdateSnapshot holds the values a row overwrote. Kind is empty for plain field updates.
type UpdateSnapshot struct {
	RecordID       string                 `json:"record_id"`
	Kind           string                 `json:"kind,omitempty"`
	PreviousValues map[string]interface{} `json:"previous_values"`
}

type ValidationSummary struct {
	Total    int `json:"total"`
	Valid    int `json:"valid"`
	Warnings int `json:"warnings"`
	Errors   int `json:"errors"`
	Skipped  int `json:"skipped"`
}

type PreValidationResult struct {
	CanProceed bool     `json:"can_proceed"`
	Errors     []string `json:"errors"`
	Warnings   []string `json:"warnings"`
}

type ImportProgress struct {
	ProcessedRows  int `json:"processed_rows" db:"processed_rows"`
	SuccessfulRows int `json:"successful_rows" db:"successful_rows"`
	UpdatedRows    int `json:"updated_rows" db:"updated_rows"`
	FailedRows     int `json:"failed_rows" db:"failed_rows"`
	SkippedRows    int `json:"skipped_rows" db:"skipped_rows"`
	WarningRows    int `json:"warning_rows" db:"warning_rows"`
}

// ProgressDelta is one batch worth of outcomes.
type ProgressDelta struct {
	Processed int
	Created   int
	Updated   int
	Skipped   int
	Failed    int
	Errors    []ImportError
	Snapshots []UpdateSnapshot
}

type ImportJob struct {
	ID               string       `json:"id" db:"id"`
	TenantID         string       `json:"tenant_id" db:"tenant_id"`
	CreatedBy        string       `json:"created_by" db:"created_by"`
	EntityType       string       `json:"entity_type" db:"entity_type"`
	Status           ImportStatus `json:"status" db:"status"`
	OriginalFileName string       `json:"original_file_name" db:"original_file_name"`
	MimeType         string       `json:"mime_type" db:"mime_type"`
	FileSize         int64        `json:"file_size" db:"file_size"`

	ParsedHeaders []string            `json:"parsed_headers" db:"parsed_headers"`
	TotalRows     int                 `json:"total_rows" db:"total_rows"`
	ParsedData    []map[string]string `json:"-" db:"parsed_data"`
	ColumnMapping map[string]string   `json:"column_mapping" db:"column_mapping"`
	MappingPreset string              `json:"mapping_preset,omitempty" db:"mapping_preset"`
	Options       ImportOptions       `json:"options" db:"options"`

	ImportProgress

	Errors            []ImportError        `json:"errors,omitempty" db:"errors"`
	UpdateSnapshots   []UpdateSnapshot     `json:"-" db:"update_snapshots"`
	ValidationSummary *ValidationSummary   `json:"validation_summary,omitempty" db:"validation_summary"`
	PreValidation     *PreValidationResult `json:"pre_validation,omitempty" db:"pre_validation"`
	ValidationPreview json.RawMessage      `json:"-" db:"validation_preview"`

	TaskID        string     `json:"task_id,omitempty" db:"task_id"`
	FailureReason string     `json:"failure_reason,omitempty" db:"failure_reason"`
	StartedAt     *time.Time `json:"started_at,omitempty" db:"started_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	HeartbeatAt   *time.Time `json:"heartbeat_at,omitempty" db:"heartbeat_at"`

	IsRolledBack  bool       `json:"is_rolled_back" db:"is_rolled_back"`
	RolledBackAt  *time.Time `json:"rolled_back_at,omitempty" db:"rolled_back_at"`
	RolledBackBy  string     `json:"rolled_back_by,omitempty" db:"rolled_back_by"`
	DeletedCount  int        `json:"deleted_count" db:"deleted_count"`
	RestoredCount int        `json:"restored_count" db:"restored_count"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

func (j *ImportJob) CanTransition(to ImportStatus) bool {
	for _, allowed := range importTransitions[j.Status] {
		if allowed == to {
			return true
		}
	}
	return false
}

// TransitionTo moves the job to the given status or returns a *TransitionError.
func (j *ImportJob) TransitionTo(to ImportStatus) error {
	if !j.CanTransition(to) {
		return &TransitionError{From: j.Status, To: to}
	}
	j.Status = to
	return nil
}

// StartProcessing resets counters and records the start time and first heartbeat.
func (j *ImportJob) StartProcessing(now time.Time) error {
	if err := j.TransitionTo(ImportStatusProcessing); err != nil {
		return err
	}
	j.ImportProgress = ImportProgress{}
	j.Errors = nil
	j.UpdateSnapshots = nil
	j.FailureReason = ""
	j.StartedAt = &now
	j.HeartbeatAt = &now
	return nil
}

// ApplyBatch is the only path that moves progress counters. Negative deltas are ignored so
// counters never decrease.
func (j *ImportJob) ApplyBatch(d ProgressDelta, now time.Time) {
	j.ProcessedRows += nonNegative(d.Processed)
	j.SuccessfulRows += nonNegative(d.Created) + nonNegative(d.Updated)
	j.UpdatedRows += nonNegative(d.Updated)
	j.SkippedRows += nonNegative(d.Skipped)
	j.FailedRows += nonNegative(d.Failed)
	j.AppendErrors(d.Errors...)
	j.UpdateSnapshots = append(j.UpdateSnapshots, d.Snapshots...)
	j.HeartbeatAt = &now
}

// AppendErrors keeps at most MaxStoredErrors entries.
func (j *ImportJob) AppendErrors(errs ...ImportError) {
	room := MaxStoredErrors - len(j.Errors)
	if room <= 0 {
		return
	}
	if len(errs) > room {
		errs = errs[:room]
	}
	j.Errors = append(j.Errors, errs...)
}

func (j *ImportJob) Complete(now time.Time) error {
	if err := j.TransitionTo(ImportStatusCompleted); err != nil {
		return err
	}
	j.CompletedAt = &now
	j.ClearParsedData()
	return nil
}

func (j *ImportJob) Fail(now time.Time, reason string) error {
	if err := j.TransitionTo(ImportStatusFailed); err != nil {
		return err
	}
	j.FailureReason = reason
	j.CompletedAt = &now
	j.ClearParsedData()
	return nil
}

func (j *ImportJob) ClearParsedData() {
	j.ParsedData = nil
}

// RollbackWindowOpen reports whether now is within RollbackWindow of completion.
func (j *ImportJob) RollbackWindowOpen(now time.Time) bool {
	if j.CompletedAt == nil {
		return false
	}
	return now.Sub(*j.CompletedAt) <= RollbackWindow
}

func (j *ImportJob) MarkRolledBack(now time.Time, by string, deleted, restored int) error {
	if err := j.TransitionTo(ImportStatusRolledBack); err != nil {
		return err
	}
	j.IsRolledBack = true
	j.RolledBackAt = &now
	j.RolledBackBy = by
	j.DeletedCount = deleted
	j.RestoredCount = restored
	return nil
}

// Deletable reports whether the job has not reached execution.
func (j *ImportJob) Deletable() bool {
	switch j.Status {
	case ImportStatusUploaded, ImportStatusParsed, ImportStatusMapping,
		ImportStatusValidating, ImportStatusValidated, ImportStatusCancelled:
		return true
	}
	return false
}

func nonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

// ImportJobFilter narrows job listings. Zero values match everything.
type ImportJobFilter struct {
	EntityType string
	Status     ImportStatus
	CreatedBy  string
	Limit      int
	Offset     int
}
