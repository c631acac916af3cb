package models

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImportJobTransitions(t *testing.T) {
	cases := []struct {
		from ImportStatus
		to   ImportStatus
		ok   bool
	}{
		{ImportStatusUploaded, ImportStatusParsed, true},
		{ImportStatusParsed, ImportStatusValidating, true},
		{ImportStatusMapping, ImportStatusMapping, true},
		{ImportStatusValidating, ImportStatusMapping, true},
		{ImportStatusValidated, ImportStatusProcessing, true},
		{ImportStatusProcessing, ImportStatusFailed, true},
		{ImportStatusCompleted, ImportStatusRolledBack, true},
		{ImportStatusUploaded, ImportStatusProcessing, false},
		{ImportStatusProcessing, ImportStatusCancelled, false},
		{ImportStatusCompleted, ImportStatusProcessing, false},
		{ImportStatusRolledBack, ImportStatusCompleted, false},
		{ImportStatusFailed, ImportStatusProcessing, false},
	}
	for _, tc := range cases {
		job := &ImportJob{Status: tc.from}
		err := job.TransitionTo(tc.to)
		if tc.ok {
			assert.NoError(t, err, "%s -> %s", tc.from, tc.to)
			assert.Equal(t, tc.to, job.Status)
			continue
		}
		assert.True(t, errors.Is(err, ErrInvalidTransition), "%s -> %s", tc.from, tc.to)
		assert.Equal(t, tc.from, job.Status)
	}
}

func TestImportJobLifecycle(t *testing.T) {
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	job := &ImportJob{
		Status:         ImportStatusValidated,
		ParsedData:     []map[string]string{{"sku": "A"}},
		ImportProgress: ImportProgress{ProcessedRows: 7},
		FailureReason:  "previous attempt",
	}

	require.NoError(t, job.StartProcessing(start))
	assert.Zero(t, job.ProcessedRows)
	assert.Empty(t, job.FailureReason)
	assert.Equal(t, start, *job.HeartbeatAt)

	later := start.Add(time.Minute)
	job.ApplyBatch(ProgressDelta{Processed: 3, Created: 1, Updated: 1, Skipped: 1, Failed: -4,
		Errors: []ImportError{{RowIndex: 3, Message: "already exists"}}}, later)
	assert.Equal(t, ImportProgress{ProcessedRows: 3, SuccessfulRows: 2, UpdatedRows: 1, SkippedRows: 1}, job.ImportProgress)
	assert.Len(t, job.Errors, 1)
	assert.Equal(t, later, *job.HeartbeatAt)

	require.NoError(t, job.Complete(later))
	assert.Nil(t, job.ParsedData)
	assert.True(t, job.RollbackWindowOpen(later.Add(RollbackWindow)))
	assert.False(t, job.RollbackWindowOpen(later.Add(RollbackWindow+time.Second)))

	require.NoError(t, job.MarkRolledBack(later.Add(time.Hour), "user-1", 1, 1))
	assert.True(t, job.IsRolledBack)
	assert.Equal(t, "user-1", job.RolledBackBy)
	assert.Error(t, job.MarkRolledBack(later.Add(2*time.Hour), "user-1", 0, 0))
}

func TestAppendErrorsIsCapped(t *testing.T) {
	job := &ImportJob{}
	errs := make([]ImportError, MaxStoredErrors-1)
	job.AppendErrors(errs...)
	job.AppendErrors(ImportError{RowIndex: 1}, ImportError{RowIndex: 2})
	assert.Len(t, job.Errors, MaxStoredErrors)
	assert.Equal(t, 1, job.Errors[MaxStoredErrors-1].RowIndex)

	job.AppendErrors(ImportError{RowIndex: 3})
	assert.Len(t, job.Errors, MaxStoredErrors)
}

func TestImportOptionsNormalize(t *testing.T) {
	assert.Equal(t, DefaultBatchSize, ImportOptions{}.Normalize().BatchSize)
	assert.Equal(t, MinBatchSize, ImportOptions{BatchSize: 3}.Normalize().BatchSize)
	assert.Equal(t, MaxBatchSize, ImportOptions{BatchSize: 5000}.Normalize().BatchSize)
	assert.Equal(t, 250, ImportOptions{BatchSize: 250}.Normalize().BatchSize)
}

func TestDeletable(t *testing.T) {
	assert.True(t, (&ImportJob{Status: ImportStatusValidated}).Deletable())
	assert.True(t, (&ImportJob{Status: ImportStatusCancelled}).Deletable())
	assert.False(t, (&ImportJob{Status: ImportStatusProcessing}).Deletable())
	assert.False(t, (&ImportJob{Status: ImportStatusCompleted}).Deletable())
}
