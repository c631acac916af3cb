// Package importer holds the contract shared by the entity handlers, the orchestrator and the
// background runners of the spreadsheet import pipeline.
package importer

import (
	"github.com/pkg/errors"
	"github.com/smartkubik/import-api/internal/models"
)

type EntityType string

const (
	EntityProducts   EntityType = "products"
	EntityCustomers  EntityType = "customers"
	EntitySuppliers  EntityType = "suppliers"
	EntityInventory  EntityType = "inventory"
	EntityCategories EntityType = "categories"
)

// EntityTypes lists every importable entity in display order.
var EntityTypes = []EntityType{EntityProducts, EntityCustomers, EntitySuppliers, EntityInventory, EntityCategories}

// ParseEntityType validates a client-supplied entity identifier.
func ParseEntityType(raw string) (EntityType, error) {
	for _, t := range EntityTypes {
		if string(t) == raw {
			return t, nil
		}
	}
	return "", errors.Wrapf(ErrUnsupportedEntityType, "%q", raw)
}

type FieldType string

const (
	FieldString  FieldType = "string"
	FieldNumber  FieldType = "number"
	FieldBoolean FieldType = "boolean"
	FieldDate    FieldType = "date"
	FieldArray   FieldType = "array"
	FieldEnum    FieldType = "enum"
)

// FieldDefinition drives template generation, auto-mapping and typing of a canonical field.
type FieldDefinition struct {
	Key            string      `json:"key"`
	Label          string      `json:"label"`
	Required       bool        `json:"required"`
	Type           FieldType   `json:"type"`
	Money          bool        `json:"money,omitempty"`
	EnumValues     []string    `json:"enum_values,omitempty"`
	ArraySeparator string      `json:"array_separator,omitempty"`
	Aliases        []string    `json:"aliases"`
	DefaultValue   interface{} `json:"default_value,omitempty"`
	Description    string      `json:"description,omitempty"`
	Example        string      `json:"example,omitempty"`
}

// Context identifies the caller and job a handler call runs for.
type Context struct {
	TenantID    string
	UserID      string
	ImportJobID string
	Options     models.ImportOptions
}

// MappedRow is one source row with canonical field keys and raw cell text.
type MappedRow struct {
	RowIndex int
	Values   map[string]string
}

// PreValidation is the outcome of the batch-level checks. RowIssues are merged into the
// matching validated rows.
type PreValidation struct {
	CanProceed bool         `json:"can_proceed"`
	Errors     []string     `json:"errors"`
	Warnings   []string     `json:"warnings"`
	RowIssues  []RowIssueAt `json:"-"`
}

type RowIssueAt struct {
	RowIndex int
	RowIssue
}

func (p *PreValidation) AddError(msg string) {
	p.Errors = append(p.Errors, msg)
	p.CanProceed = false
}

func (p *PreValidation) AddWarning(msg string) {
	p.Warnings = append(p.Warnings, msg)
}

func (p PreValidation) Result() *models.PreValidationResult {
	return &models.PreValidationResult{
		CanProceed: p.CanProceed,
		Errors:     append([]string{}, p.Errors...),
		Warnings:   append([]string{}, p.Warnings...),
	}
}

// BatchResult aggregates one ExecuteBatch call.
type BatchResult struct {
	Created         int                     `json:"created"`
	Updated         int                     `json:"updated"`
	Skipped         int                     `json:"skipped"`
	Failed          int                     `json:"failed"`
	Errors          []models.ImportError    `json:"errors"`
	UpdateSnapshots []models.UpdateSnapshot `json:"-"`
}

// Fail records a row that could not be written.
func (r *BatchResult) Fail(row ValidatedRow, field, msg string) {
	r.Failed++
	r.Errors = append(r.Errors, models.ImportError{
		RowIndex: row.RowIndex,
		Field:    field,
		Message:  msg,
		RawValue: row.Raw[field],
	})
}

// Skip records a row left untouched on purpose, with the reason.
func (r *BatchResult) Skip(row ValidatedRow, field, msg string) {
	r.Skipped++
	r.Errors = append(r.Errors, models.ImportError{
		RowIndex: row.RowIndex,
		Field:    field,
		Message:  msg,
		RawValue: row.Raw[field],
	})
}

func (r *BatchResult) Snapshot(s models.UpdateSnapshot) {
	r.UpdateSnapshots = append(r.UpdateSnapshots, s)
}

func (r *BatchResult) Delta(processed int) models.ProgressDelta {
	return models.ProgressDelta{
		Processed: processed,
		Created:   r.Created,
		Updated:   r.Updated,
		Skipped:   r.Skipped,
		Failed:    r.Failed,
		Errors:    r.Errors,
		Snapshots: r.UpdateSnapshots,
	}
}

type RollbackResult struct {
	Deleted  int `json:"deleted"`
	Restored int `json:"restored"`
}
