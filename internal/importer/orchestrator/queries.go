package orchestrator

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/smartkubik/import-api/internal/importer"
	"github.com/smartkubik/import-api/internal/importer/preset"
	"github.com/smartkubik/import-api/internal/models"
)

func (o *Orchestrator) GetJob(ctx context.Context, tenantID, jobID string) (*models.ImportJob, error) {
	return o.jobs.Get(ctx, tenantID, jobID)
}

type JobPage struct {
	Jobs   []*models.ImportJob `json:"jobs"`
	Total  int                 `json:"total"`
	Limit  int                 `json:"limit"`
	Offset int                 `json:"offset"`
}

func (o *Orchestrator) ListJobs(ctx context.Context, tenantID string, f models.ImportJobFilter) (*JobPage, error) {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	jobs, total, err := o.jobs.List(ctx, tenantID, f)
	if err != nil {
		return nil, err
	}
	if jobs == nil {
		jobs = []*models.ImportJob{}
	}
	return &JobPage{Jobs: jobs, Total: total, Limit: f.Limit, Offset: f.Offset}, nil
}

type ErrorPage struct {
	Errors []models.ImportError `json:"errors"`
	Total  int                  `json:"total"`
	Limit  int                  `json:"limit"`
	Offset int                  `json:"offset"`
}

// JobErrors pages through the stored row errors of a job.
func (o *Orchestrator) JobErrors(ctx context.Context, tenantID, jobID string, offset, limit int) (*ErrorPage, error) {
	job, err := o.jobs.Get(ctx, tenantID, jobID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	page := &ErrorPage{Errors: []models.ImportError{}, Total: len(job.Errors), Limit: limit, Offset: offset}
	if offset < len(job.Errors) {
		end := offset + limit
		if end > len(job.Errors) {
			end = len(job.Errors)
		}
		page.Errors = job.Errors[offset:end]
	}
	return page, nil
}

// ExportErrors renders the job's row errors and totals as a workbook with an Errors sheet and
// a Summary sheet. It returns the workbook and a download file name.
func (o *Orchestrator) ExportErrors(ctx context.Context, tenantID, jobID string) ([]byte, string, error) {
	job, err := o.jobs.Get(ctx, tenantID, jobID)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	const errorsSheet, summarySheet = "Errors", "Summary"
	if err := f.SetSheetName("Sheet1", errorsSheet); err != nil {
		return nil, "", errors.Wrap(err, "rename errors sheet")
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, "", errors.Wrap(err, "header style")
	}

	for c, title := range []string{"Row", "Field", "Message", "Value"} {
		cell, _ := excelize.CoordinatesToCellName(c+1, 1)
		_ = f.SetCellValue(errorsSheet, cell, title)
		_ = f.SetCellStyle(errorsSheet, cell, cell, bold)
	}
	for i, e := range job.Errors {
		row := []interface{}{e.RowIndex, e.Field, e.Message, e.RawValue}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(errorsSheet, cell, &row); err != nil {
			return nil, "", errors.Wrap(err, "write error row")
		}
	}
	_ = f.SetColWidth(errorsSheet, "A", "A", 8)
	_ = f.SetColWidth(errorsSheet, "B", "B", 18)
	_ = f.SetColWidth(errorsSheet, "C", "C", 60)
	_ = f.SetColWidth(errorsSheet, "D", "D", 24)

	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, "", errors.Wrap(err, "summary sheet")
	}
	summary := [][]interface{}{
		{"Import job", job.ID},
		{"File", job.OriginalFileName},
		{"Entity", job.EntityType},
		{"Status", string(job.Status)},
		{"Total rows", job.TotalRows},
		{"Processed rows", job.ProcessedRows},
		{"Successful rows", job.SuccessfulRows},
		{"Updated rows", job.UpdatedRows},
		{"Skipped rows", job.SkippedRows},
		{"Failed rows", job.FailedRows},
		{"Stored errors", len(job.Errors)},
	}
	if job.FailureReason != "" {
		summary = append(summary, []interface{}{"Failure reason", job.FailureReason})
	}
	for i, line := range summary {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summarySheet, cell, &line); err != nil {
			return nil, "", errors.Wrap(err, "write summary row")
		}
		_ = f.SetCellStyle(summarySheet, cell, cell, bold)
	}
	_ = f.SetColWidth(summarySheet, "A", "A", 20)
	_ = f.SetColWidth(summarySheet, "B", "B", 48)

	f.SetActiveSheet(0)
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", errors.Wrap(err, "write error export")
	}
	return buf.Bytes(), fmt.Sprintf("import-%s-errors.xlsx", job.ID), nil
}

func (o *Orchestrator) handlerForType(entityType string) (importer.Handler, error) {
	entity, err := importer.ParseEntityType(entityType)
	if err != nil {
		return nil, err
	}
	return o.registry.Get(entity)
}

func (o *Orchestrator) FieldDefinitions(entityType string) ([]importer.FieldDefinition, error) {
	h, err := o.handlerForType(entityType)
	if err != nil {
		return nil, err
	}
	return h.FieldDefinitions(), nil
}

// Template returns the entity's blank import workbook and its download file name.
func (o *Orchestrator) Template(entityType string) ([]byte, string, error) {
	h, err := o.handlerForType(entityType)
	if err != nil {
		return nil, "", err
	}
	data, err := h.GenerateTemplate()
	if err != nil {
		return nil, "", errors.Wrapf(err, "generate %s template", entityType)
	}
	return data, fmt.Sprintf("%s-import-template.xlsx", h.EntityType()), nil
}

func (o *Orchestrator) Presets(entityType string) ([]preset.Preset, error) {
	h, err := o.handlerForType(entityType)
	if err != nil {
		return nil, err
	}
	return preset.List(h.EntityType()), nil
}
