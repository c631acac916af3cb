package entities

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/smartkubik/import-api/internal/importer"
)

// base carries the metadata every handler exposes unchanged.
type base struct {
	entity   importer.EntityType
	defs     []importer.FieldDefinition
	examples [][]string
	logger   zerolog.Logger
}

func newBase(entity importer.EntityType, defs []importer.FieldDefinition, examples [][]string, logger zerolog.Logger) base {
	return base{
		entity:   entity,
		defs:     defs,
		examples: examples,
		logger:   logger.With().Str("component", "import-handler").Str("entity", string(entity)).Logger(),
	}
}

func (b base) EntityType() importer.EntityType { return b.entity }

func (b base) FieldDefinitions() []importer.FieldDefinition {
	out := make([]importer.FieldDefinition, len(b.defs))
	copy(out, b.defs)
	return out
}

func (b base) AutoMapColumns(headers []string) map[string]string {
	return importer.AutoMap(b.defs, headers)
}

func (b base) GenerateTemplate() ([]byte, error) {
	return importer.BuildTemplate(b.entity, b.defs, b.examples)
}

// derive sets field from a value read off another column, as if the file carried it, so that
// creates and updates both pick it up. A value the file gives for field itself wins and a
// disagreement is reported as a warning.
func derive(vr *importer.ValidatedRow, field string, value interface{}, source string) {
	if strings.TrimSpace(vr.Raw[field]) != "" {
		if vr.Data[field] != value {
			vr.AddWarning(field, fmt.Sprintf("%s contradicts %s, keeping %s", source, field, field))
		}
		return
	}
	raw := make(map[string]string, len(vr.Raw)+1)
	for k, v := range vr.Raw {
		raw[k] = v
	}
	raw[field] = vr.Raw[source]
	vr.Raw = raw
	vr.Data[field] = value
}

// requireTenant adds a batch error when the tenant does not exist or is disabled.
func requireTenant(ctx context.Context, tenants TenantStore, tenantID string, pv *importer.PreValidation) error {
	tenant, err := tenants.Get(ctx, tenantID)
	if err != nil {
		return errors.Wrap(err, "load tenant")
	}
	switch {
	case tenant == nil:
		pv.AddError(fmt.Sprintf("tenant %s not found", tenantID))
	case !tenant.IsActive:
		pv.AddError(fmt.Sprintf("tenant %s is inactive", tenantID))
	}
	return nil
}

func addDuplicates(pv *importer.PreValidation, rows []importer.MappedRow, field, label string) {
	warnings, issues := importer.DuplicateKeys(rows, field, label, nil)
	for _, w := range warnings {
		pv.AddWarning(w)
	}
	pv.RowIssues = append(pv.RowIssues, issues...)
}

func checkEmail(vr *importer.ValidatedRow, field string) {
	email := vr.String(field)
	if email == "" {
		return
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
		vr.AddWarning(field, fmt.Sprintf("email %q does not look valid", email))
	}
}

func nonNegative(vr *importer.ValidatedRow, field, label string) {
	if v, ok := vr.Float(field); ok && v < 0 {
		vr.AddError(field, fmt.Sprintf("%s cannot be negative", label))
	}
}

// storeFailure records a failed store call against the row.
func (b base) storeFailure(res *importer.BatchResult, row importer.ValidatedRow, field, action string, err error) {
	b.logger.Warn().Err(err).Int("row", row.RowIndex).Msgf("failed to %s", action)
	res.Fail(row, field, fmt.Sprintf("failed to %s: %v", action, err))
}
