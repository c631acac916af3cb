package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/smartkubik/import-api/internal/importer"
	"github.com/smartkubik/import-api/internal/models"
)

type ImportJobRepository interface {
	Create(ctx context.Context, job *models.ImportJob) error
	Get(ctx context.Context, tenantID, id string) (*models.ImportJob, error)
	List(ctx context.Context, tenantID string, f models.ImportJobFilter) ([]*models.ImportJob, int, error)
	Save(ctx context.Context, job *models.ImportJob) error
	Transition(ctx context.Context, job *models.ImportJob, from models.ImportStatus) error
	SaveProgress(ctx context.Context, job *models.ImportJob) error
	Delete(ctx context.Context, tenantID, id string) error
	ListStale(ctx context.Context, before time.Time) ([]*models.ImportJob, error)
}

type importJobRepository struct {
	db *sql.DB
}

func NewImportJobRepository(db *sql.DB) ImportJobRepository {
	return &importJobRepository{db: db}
}

// Listings leave out the parsed rows, snapshots and preview.
const importJobSummaryColumns = `id, tenant_id, created_by, entity_type, status, original_file_name, mime_type, file_size,
		parsed_headers, total_rows, column_mapping, mapping_preset, options,
		processed_rows, successful_rows, updated_rows, failed_rows, skipped_rows, warning_rows,
		errors, validation_summary, pre_validation, task_id, failure_reason,
		started_at, completed_at, heartbeat_at,
		is_rolled_back, rolled_back_at, rolled_back_by, deleted_count, restored_count,
		created_at, updated_at`

const importJobColumns = importJobSummaryColumns + `, parsed_data, update_snapshots, validation_preview`

func (r *importJobRepository) Create(ctx context.Context, job *models.ImportJob) error {
	args, err := importJobArgs(job)
	if err != nil {
		return err
	}
	const query = `
		INSERT INTO tenant.import_jobs (
			id, tenant_id, created_by, entity_type, status, original_file_name, mime_type, file_size,
			parsed_headers, total_rows, column_mapping, mapping_preset, options,
			processed_rows, successful_rows, updated_rows, failed_rows, skipped_rows, warning_rows,
			errors, validation_summary, pre_validation, task_id, failure_reason,
			started_at, completed_at, heartbeat_at,
			is_rolled_back, rolled_back_at, rolled_back_by, deleted_count, restored_count,
			parsed_data, update_snapshots, validation_preview)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19,
			$20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31, $32, $33, $34, $35)
		RETURNING created_at, updated_at`
	row := r.db.QueryRowContext(ctx, query, append([]interface{}{job.ID, job.TenantID, job.CreatedBy, job.EntityType}, args...)...)
	if err := row.Scan(&job.CreatedAt, &job.UpdatedAt); err != nil {
		return errors.Wrap(err, "insert import job")
	}
	return nil
}

// importJobArgs returns the mutable columns in insert order, from status to validation_preview.
func importJobArgs(job *models.ImportJob) ([]interface{}, error) {
	headers, err := jsonArg(job.ParsedHeaders)
	if err != nil {
		return nil, errors.Wrap(err, "encode parsed headers")
	}
	mapping, err := jsonArg(job.ColumnMapping)
	if err != nil {
		return nil, errors.Wrap(err, "encode column mapping")
	}
	options, err := jsonArg(job.Options)
	if err != nil {
		return nil, errors.Wrap(err, "encode options")
	}
	errs, err := jsonArg(job.Errors)
	if err != nil {
		return nil, errors.Wrap(err, "encode errors")
	}
	summary, err := jsonArg(job.ValidationSummary)
	if err != nil {
		return nil, errors.Wrap(err, "encode validation summary")
	}
	pre, err := jsonArg(job.PreValidation)
	if err != nil {
		return nil, errors.Wrap(err, "encode pre-validation")
	}
	data, err := jsonArg(job.ParsedData)
	if err != nil {
		return nil, errors.Wrap(err, "encode parsed data")
	}
	snapshots, err := jsonArg(job.UpdateSnapshots)
	if err != nil {
		return nil, errors.Wrap(err, "encode update snapshots")
	}
	var preview interface{}
	if len(job.ValidationPreview) > 0 {
		preview = string(job.ValidationPreview)
	}
	return []interface{}{
		job.Status, job.OriginalFileName, job.MimeType, job.FileSize,
		headers, job.TotalRows, mapping, job.MappingPreset, options,
		job.ProcessedRows, job.SuccessfulRows, job.UpdatedRows, job.FailedRows, job.SkippedRows, job.WarningRows,
		errs, summary, pre, job.TaskID, job.FailureReason,
		timeArg(job.StartedAt), timeArg(job.CompletedAt), timeArg(job.HeartbeatAt),
		job.IsRolledBack, timeArg(job.RolledBackAt), job.RolledBackBy, job.DeletedCount, job.RestoredCount,
		data, snapshots, preview,
	}, nil
}

func (r *importJobRepository) Get(ctx context.Context, tenantID, id string) (*models.ImportJob, error) {
	query := `SELECT ` + importJobColumns + ` FROM tenant.import_jobs WHERE id = $1 AND tenant_id = $2`
	job, err := scanImportJob(r.db.QueryRowContext(ctx, query, id, tenantID), true)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(importer.ErrJobNotFound, "id=%s", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "select import job")
	}
	return job, nil
}

func (r *importJobRepository) List(ctx context.Context, tenantID string, f models.ImportJobFilter) ([]*models.ImportJob, int, error) {
	where := []string{"tenant_id = $1"}
	args := []interface{}{tenantID}
	if f.EntityType != "" {
		args = append(args, f.EntityType)
		where = append(where, fmt.Sprintf("entity_type = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.CreatedBy != "" {
		args = append(args, f.CreatedBy)
		where = append(where, fmt.Sprintf("created_by = $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tenant.import_jobs WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "count import jobs")
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT %s FROM tenant.import_jobs WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		importJobSummaryColumns, cond, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "list import jobs")
	}
	defer rows.Close()

	var jobs []*models.ImportJob
	for rows.Next() {
		job, err := scanImportJob(rows, false)
		if err != nil {
			return nil, 0, errors.Wrap(err, "scan import job")
		}
		jobs = append(jobs, job)
	}
	return jobs, total, rows.Err()
}

const importJobUpdate = `
		UPDATE tenant.import_jobs SET
			status = $3, original_file_name = $4, mime_type = $5, file_size = $6,
			parsed_headers = $7, total_rows = $8, column_mapping = $9, mapping_preset = $10, options = $11,
			processed_rows = $12, successful_rows = $13, updated_rows = $14, failed_rows = $15, skipped_rows = $16, warning_rows = $17,
			errors = $18, validation_summary = $19, pre_validation = $20, task_id = $21, failure_reason = $22,
			started_at = $23, completed_at = $24, heartbeat_at = $25,
			is_rolled_back = $26, rolled_back_at = $27, rolled_back_by = $28, deleted_count = $29, restored_count = $30,
			parsed_data = $31, update_snapshots = $32, validation_preview = $33,
			updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2`

func (r *importJobRepository) Save(ctx context.Context, job *models.ImportJob) error {
	n, err := r.update(ctx, job, importJobUpdate, nil)
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.Wrapf(importer.ErrJobNotFound, "id=%s", job.ID)
	}
	return nil
}

// Transition saves the job only if its stored status is still from, so two callers racing on
// the same job cannot both move it.
func (r *importJobRepository) Transition(ctx context.Context, job *models.ImportJob, from models.ImportStatus) error {
	n, err := r.update(ctx, job, importJobUpdate+` AND status = $34`, []interface{}{from})
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var current models.ImportStatus
	err = r.db.QueryRowContext(ctx, `SELECT status FROM tenant.import_jobs WHERE id = $1 AND tenant_id = $2`, job.ID, job.TenantID).Scan(&current)
	if err == sql.ErrNoRows {
		return errors.Wrapf(importer.ErrJobNotFound, "id=%s", job.ID)
	}
	if err != nil {
		return errors.Wrap(err, "reload import job status")
	}
	return &models.TransitionError{From: current, To: job.Status}
}

func (r *importJobRepository) update(ctx context.Context, job *models.ImportJob, query string, extra []interface{}) (int64, error) {
	args, err := importJobArgs(job)
	if err != nil {
		return 0, err
	}
	all := append([]interface{}{job.ID, job.TenantID}, args...)
	all = append(all, extra...)
	res, err := r.db.ExecContext(ctx, query, all...)
	if err != nil {
		return 0, errors.Wrap(err, "update import job")
	}
	return res.RowsAffected()
}

// SaveProgress writes counters, errors, snapshots and the heartbeat of a processing job.
func (r *importJobRepository) SaveProgress(ctx context.Context, job *models.ImportJob) error {
	errs, err := jsonArg(job.Errors)
	if err != nil {
		return errors.Wrap(err, "encode errors")
	}
	snapshots, err := jsonArg(job.UpdateSnapshots)
	if err != nil {
		return errors.Wrap(err, "encode update snapshots")
	}
	const query = `
		UPDATE tenant.import_jobs SET
			processed_rows = $3, successful_rows = $4, updated_rows = $5, failed_rows = $6, skipped_rows = $7,
			errors = $8, update_snapshots = $9, heartbeat_at = $10, updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2 AND status = 'processing'`
	res, err := r.db.ExecContext(ctx, query, job.ID, job.TenantID,
		job.ProcessedRows, job.SuccessfulRows, job.UpdatedRows, job.FailedRows, job.SkippedRows,
		errs, snapshots, timeArg(job.HeartbeatAt))
	if err != nil {
		return errors.Wrap(err, "save import progress")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Wrapf(importer.ErrJobNotFound, "processing job id=%s", job.ID)
	}
	return nil
}

func (r *importJobRepository) Delete(ctx context.Context, tenantID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tenant.import_jobs WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return errors.Wrap(err, "delete import job")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Wrapf(importer.ErrJobNotFound, "id=%s", id)
	}
	return nil
}

// ListStale returns processing jobs of every tenant whose heartbeat is older than before.
func (r *importJobRepository) ListStale(ctx context.Context, before time.Time) ([]*models.ImportJob, error) {
	query := `SELECT ` + importJobSummaryColumns + `
		FROM tenant.import_jobs
		WHERE status = 'processing' AND heartbeat_at < $1
		ORDER BY heartbeat_at
		LIMIT 100`
	rows, err := r.db.QueryContext(ctx, query, before)
	if err != nil {
		return nil, errors.Wrap(err, "list stale import jobs")
	}
	defer rows.Close()

	var jobs []*models.ImportJob
	for rows.Next() {
		job, err := scanImportJob(rows, false)
		if err != nil {
			return nil, errors.Wrap(err, "scan import job")
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func scanImportJob(scanner rowScanner, full bool) (*models.ImportJob, error) {
	var (
		job                                            models.ImportJob
		headers, mapping, options, errs, summary, pre  []byte
		data, snapshots, preview                       []byte
		startedAt, completedAt, heartbeatAt, rolledAt  sql.NullTime
	)
	dest := []interface{}{
		&job.ID, &job.TenantID, &job.CreatedBy, &job.EntityType, &job.Status, &job.OriginalFileName, &job.MimeType, &job.FileSize,
		&headers, &job.TotalRows, &mapping, &job.MappingPreset, &options,
		&job.ProcessedRows, &job.SuccessfulRows, &job.UpdatedRows, &job.FailedRows, &job.SkippedRows, &job.WarningRows,
		&errs, &summary, &pre, &job.TaskID, &job.FailureReason,
		&startedAt, &completedAt, &heartbeatAt,
		&job.IsRolledBack, &rolledAt, &job.RolledBackBy, &job.DeletedCount, &job.RestoredCount,
		&job.CreatedAt, &job.UpdatedAt,
	}
	if full {
		dest = append(dest, &data, &snapshots, &preview)
	}
	if err := scanner.Scan(dest...); err != nil {
		return nil, err
	}

	for _, d := range []struct {
		raw []byte
		dst interface{}
	}{
		{headers, &job.ParsedHeaders},
		{mapping, &job.ColumnMapping},
		{options, &job.Options},
		{errs, &job.Errors},
		{summary, &job.ValidationSummary},
		{pre, &job.PreValidation},
		{data, &job.ParsedData},
		{snapshots, &job.UpdateSnapshots},
	} {
		if err := decodeJSON(d.raw, d.dst); err != nil {
			return nil, errors.Wrapf(err, "decode import job %s", job.ID)
		}
	}
	if len(preview) > 0 {
		job.ValidationPreview = append([]byte(nil), preview...)
	}
	job.StartedAt = nullTime(startedAt)
	job.CompletedAt = nullTime(completedAt)
	job.HeartbeatAt = nullTime(heartbeatAt)
	job.RolledBackAt = nullTime(rolledAt)
	return &job, nil
}
