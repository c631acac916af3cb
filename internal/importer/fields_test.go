package importer

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartkubik/import-api/internal/models"
)

func TestAutoMapPrefersExactMatches(t *testing.T) {
	defs := []FieldDefinition{
		{Key: "sku", Label: "SKU", Aliases: []string{"codigo"}},
		{Key: "name", Label: "Name", Aliases: []string{"nombre"}},
		{Key: "price", Label: "Price", Aliases: []string{"precio"}},
		{Key: "cost", Label: "Cost", Aliases: []string{"precio costo"}},
	}
	headers := []string{"Código", "Nombre del Producto", "Precio Costo", "Precio", "Notas"}

	assert.Equal(t, map[string]string{
		"Código":              "sku",
		"Nombre del Producto": "name",
		"Precio Costo":        "cost",
		"Precio":              "price",
	}, AutoMap(defs, headers))
}

func TestAutoMapIgnoresShortSubstrings(t *testing.T) {
	defs := []FieldDefinition{{Key: "id", Label: "ID"}}
	assert.Empty(t, AutoMap(defs, []string{"Provider"}))
}

func TestCheckMappingAndMissingRequired(t *testing.T) {
	defs := []FieldDefinition{
		{Key: "sku", Label: "SKU", Required: true},
		{Key: "name", Label: "Name", Required: true},
		{Key: "unit", Label: "Unit", Required: true, DefaultValue: "unidad"},
	}

	err := CheckMapping(defs, map[string]string{"Code": "sku", "Weight": "weight"})
	assert.True(t, errors.Is(err, ErrPreconditionFailed))
	assert.NoError(t, CheckMapping(defs, map[string]string{"Code": "sku", "Ignored": ""}))

	missing := MissingRequired(defs, map[string]string{"Code": "sku"})
	require.Len(t, missing, 1)
	assert.Equal(t, "name", missing[0].Key)
}

func TestApplyMappingFirstNonEmptyColumnWins(t *testing.T) {
	mapping := map[string]string{"Phone": "phone", "Mobile": "phone", "Name": "name"}
	headers := []string{"Name", "Phone", "Mobile"}

	row := ApplyMapping(mapping, headers, map[string]string{"Name": " Ana ", "Phone": "", "Mobile": "0414"}, 3)
	assert.Equal(t, 3, row.RowIndex)
	assert.Equal(t, map[string]string{"name": "Ana", "phone": "0414"}, row.Values)
}

func TestValidateFieldsTypesValues(t *testing.T) {
	defs := []FieldDefinition{
		{Key: "sku", Label: "SKU", Required: true, Type: FieldString},
		{Key: "price", Label: "Price", Type: FieldNumber, Money: true},
		{Key: "weight", Label: "Weight", Type: FieldNumber},
		{Key: "taxable", Label: "Taxable", Type: FieldBoolean, DefaultValue: true},
		{Key: "tags", Label: "Tags", Type: FieldArray, ArraySeparator: ";"},
		{Key: "unit", Label: "Unit", Type: FieldEnum, EnumValues: []string{"unidad", "kg"}},
	}

	vr := ValidateFields(defs, MappedRow{RowIndex: 1, Values: map[string]string{
		"sku": " =ABC-1 ", "price": "1.234,50", "weight": "2.5", "taxable": "quizas", "tags": "a; ;b", "unit": "KG",
	}})
	vr.Finalize()

	assert.Equal(t, RowWarning, vr.Status)
	assert.Equal(t, "ABC-1", vr.String("sku"))
	price, _ := vr.Float("price")
	assert.InDelta(t, 1234.50, price, 0.001)
	weight, _ := vr.Float("weight")
	assert.InDelta(t, 2.5, weight, 0.001)
	taxable, ok := vr.Bool("taxable")
	assert.True(t, ok)
	assert.True(t, taxable)
	assert.Equal(t, []string{"a", "b"}, vr.Strings("tags"))
	assert.Equal(t, "kg", vr.String("unit"))
	require.Len(t, vr.Errors, 1)
	assert.Equal(t, "taxable", vr.Errors[0].Field)
}

func TestValidateFieldsErrors(t *testing.T) {
	defs := []FieldDefinition{
		{Key: "sku", Label: "SKU", Required: true, Type: FieldString},
		{Key: "price", Label: "Price", Type: FieldNumber, Money: true},
		{Key: "expires", Label: "Expires", Type: FieldDate},
		{Key: "unit", Label: "Unit", Type: FieldEnum, EnumValues: []string{"unidad", "kg"}},
	}

	vr := ValidateFields(defs, MappedRow{RowIndex: 2, Values: map[string]string{
		"sku": "", "price": "free", "expires": "soon", "unit": "box",
	}})
	vr.Finalize()

	assert.Equal(t, RowError, vr.Status)
	fields := make([]string, 0, len(vr.Errors))
	for _, e := range vr.Errors {
		fields = append(fields, e.Field)
	}
	assert.ElementsMatch(t, []string{"sku", "price", "expires", "unit"}, fields)
}

func TestValidateFieldsSkipsEmptyRows(t *testing.T) {
	defs := []FieldDefinition{{Key: "sku", Label: "SKU", Required: true, Type: FieldString}}
	vr := ValidateFields(defs, MappedRow{RowIndex: 4, Values: map[string]string{"sku": "  "}})
	vr.Finalize()
	assert.Equal(t, RowSkipped, vr.Status)
	assert.Empty(t, vr.Errors)
	assert.False(t, vr.Executable())
}

func TestDuplicateKeysAndMerge(t *testing.T) {
	rows := []MappedRow{
		{RowIndex: 1, Values: map[string]string{"sku": "a-1"}},
		{RowIndex: 2, Values: map[string]string{"sku": "B-2"}},
		{RowIndex: 3, Values: map[string]string{"sku": " A-1"}},
	}
	warnings, issues := DuplicateKeys(rows, "sku", "SKU", nil)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "row 3")
	assert.Contains(t, warnings[0], "first seen in row 1")

	validated := []ValidatedRow{NewValidatedRow(1, nil), NewValidatedRow(2, nil), NewValidatedRow(3, nil)}
	for i := range validated {
		validated[i].Finalize()
	}
	validated[1].Status = RowSkipped
	issues = append(issues, RowIssueAt{RowIndex: 2, RowIssue: RowIssue{Message: "ignored", Severity: SeverityError}})

	MergeRowIssues(validated, issues)
	assert.Equal(t, RowValid, validated[0].Status)
	assert.Equal(t, RowSkipped, validated[1].Status)
	assert.Empty(t, validated[1].Errors)
	assert.Equal(t, RowWarning, validated[2].Status)
}

func TestExecuteRowsStopsAfterFailure(t *testing.T) {
	rows := []ValidatedRow{NewValidatedRow(1, nil), NewValidatedRow(2, nil), NewValidatedRow(3, nil)}
	run := func(opts models.ImportOptions) BatchResult {
		var res BatchResult
		err := ExecuteRows(context.Background(), rows, Context{Options: opts}, &res, func(row ValidatedRow) {
			if row.RowIndex == 1 {
				res.Fail(row, "sku", "boom")
				return
			}
			res.Created++
		})
		require.NoError(t, err)
		return res
	}

	res := run(models.ImportOptions{SkipErrors: false})
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 2, res.Skipped)
	assert.Zero(t, res.Created)
	require.Len(t, res.Errors, 3)
	assert.Contains(t, res.Errors[1].Message, "batch stopped after row 1")

	res = run(models.ImportOptions{SkipErrors: true})
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 2, res.Created)
	assert.Zero(t, res.Skipped)
}

func TestExecuteRowsHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var res BatchResult
	err := ExecuteRows(ctx, []ValidatedRow{NewValidatedRow(1, nil)}, Context{}, &res, func(ValidatedRow) { res.Created++ })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, res.Created)
}

func TestChangesOnlyTouchesCarriedFields(t *testing.T) {
	row := NewValidatedRow(1, map[string]string{"price": "12,50", "taxable": "", "name": "Café"})
	row.Data["price"] = 12.5
	row.Data["taxable"] = true
	row.Data["name"] = "Café"

	next, previous := Changes(row, map[string]interface{}{"price": 10.0, "taxable": false, "name": "Café", "cost": 4.0})
	assert.Equal(t, map[string]interface{}{"price": 12.5}, next)
	assert.Equal(t, map[string]interface{}{"price": 10.0}, previous)
}

type namedHandler struct {
	Handler
	entity EntityType
}

func (h namedHandler) EntityType() EntityType { return h.entity }

func TestRegistry(t *testing.T) {
	reg, err := NewRegistry(namedHandler{entity: EntityProducts}, namedHandler{entity: EntityCustomers})
	require.NoError(t, err)
	assert.Equal(t, []EntityType{EntityCustomers, EntityProducts}, reg.Types())

	h, err := reg.Get(EntityProducts)
	require.NoError(t, err)
	assert.Equal(t, EntityProducts, h.EntityType())

	_, err = reg.Get(EntityInventory)
	assert.True(t, errors.Is(err, ErrUnsupportedEntityType))

	type stackTracer interface{ StackTrace() errors.StackTrace }
	for _, h := range []Handler{namedHandler{entity: EntityProducts}, nil, namedHandler{}} {
		err := reg.Register(h)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "register import handler")
		_, traced := err.(stackTracer)
		assert.True(t, traced, err.Error())
	}
	assert.EqualError(t, reg.Register(namedHandler{entity: EntityProducts}), "register import handler: products is already registered")
	assert.Len(t, reg.Types(), 2)
}

func TestParseEntityType(t *testing.T) {
	entity, err := ParseEntityType("suppliers")
	require.NoError(t, err)
	assert.Equal(t, EntitySuppliers, entity)

	_, err = ParseEntityType("orders")
	assert.True(t, errors.Is(err, ErrUnsupportedEntityType))
}
