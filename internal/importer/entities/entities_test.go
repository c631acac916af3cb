package entities_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/smartkubik/import-api/internal/importer"
	"github.com/smartkubik/import-api/internal/importer/entities"
	"github.com/smartkubik/import-api/internal/importer/importertest"
	"github.com/smartkubik/import-api/internal/importer/normalize"
	"github.com/smartkubik/import-api/internal/importer/preset"
	"github.com/smartkubik/import-api/internal/models"
)

const tenantID = "tenant-1"

func setup(t *testing.T) (*importertest.Catalog, *importer.Registry) {
	t.Helper()
	cat := importertest.NewCatalog()
	cat.AddTenant(models.Tenant{ID: tenantID, Name: "Acme", IsActive: true})
	reg, err := entities.NewRegistry(cat.Stores(), zerolog.Nop())
	require.NoError(t, err)
	return cat, reg
}

func handler(t *testing.T, reg *importer.Registry, et importer.EntityType) importer.Handler {
	t.Helper()
	h, err := reg.Get(et)
	require.NoError(t, err)
	return h
}

func ictx(update, skip bool) importer.Context {
	return importer.Context{
		TenantID:    tenantID,
		UserID:      "user-1",
		ImportJobID: "job-1",
		Options:     models.ImportOptions{UpdateExisting: update, SkipErrors: skip, BatchSize: models.DefaultBatchSize},
	}
}

func mapped(rows ...map[string]string) []importer.MappedRow {
	out := make([]importer.MappedRow, len(rows))
	for i, r := range rows {
		out[i] = importer.MappedRow{RowIndex: i + 1, Values: r}
	}
	return out
}

// validate runs row and batch validation the way the orchestrator does.
func validate(t *testing.T, h importer.Handler, rows []importer.MappedRow, ic importer.Context) ([]importer.ValidatedRow, importer.PreValidation) {
	t.Helper()
	ctx := context.Background()
	out := make([]importer.ValidatedRow, 0, len(rows))
	for _, r := range rows {
		vr, err := h.ValidateRow(ctx, r, ic)
		require.NoError(t, err)
		out = append(out, vr)
	}
	pv, err := h.PreValidateBatch(ctx, rows, ic)
	require.NoError(t, err)
	importer.MergeRowIssues(out, pv.RowIssues)
	return out, pv
}

func executable(rows []importer.ValidatedRow) []importer.ValidatedRow {
	var out []importer.ValidatedRow
	for _, r := range rows {
		if r.Executable() {
			out = append(out, r)
		}
	}
	return out
}

func TestAutoMapRoundTrip(t *testing.T) {
	_, reg := setup(t)
	for _, et := range importer.EntityTypes {
		h := handler(t, reg, et)
		defs := h.FieldDefinitions()

		t.Run(string(et)+"/labels", func(t *testing.T) {
			headers := make([]string, len(defs))
			want := make(map[string]string, len(defs))
			for i, d := range defs {
				headers[i] = d.Label
				want[d.Label] = d.Key
			}
			assert.Equal(t, want, h.AutoMapColumns(headers))
		})

		t.Run(string(et)+"/first-alias", func(t *testing.T) {
			var headers []string
			want := make(map[string]string)
			for _, d := range defs {
				if len(d.Aliases) == 0 {
					continue
				}
				headers = append(headers, d.Aliases[0])
				want[d.Aliases[0]] = d.Key
			}
			assert.Equal(t, want, h.AutoMapColumns(headers))
		})

		t.Run(string(et)+"/disjoint", func(t *testing.T) {
			owner := make(map[string]string)
			for _, d := range defs {
				for _, name := range append([]string{d.Key, d.Label}, d.Aliases...) {
					c := normalize.Compact(name)
					if prev, ok := owner[c]; ok && prev != d.Key {
						t.Errorf("%q is claimed by both %s and %s", name, prev, d.Key)
					}
					owner[c] = d.Key
				}
			}
		})
	}
}

func TestProductImportExample(t *testing.T) {
	cat, reg := setup(t)
	h := handler(t, reg, importer.EntityProducts)
	ic := ictx(false, true)

	rows, pv := validate(t, h, mapped(
		map[string]string{"sku": "A", "name": "Widget", "price": "10,50"},
		map[string]string{"sku": "A", "name": "Widget dup", "price": "5"},
		map[string]string{"sku": "B", "name": "Gadget", "price": "-1"},
	), ic)

	require.True(t, pv.CanProceed)
	assert.Len(t, pv.Warnings, 1)

	assert.Equal(t, importer.RowValid, rows[0].Status)
	price, _ := rows[0].Float("price")
	assert.Equal(t, 10.5, price)

	assert.Equal(t, importer.RowWarning, rows[1].Status)
	require.Len(t, rows[1].Errors, 1)
	assert.Contains(t, rows[1].Errors[0].Message, "duplicate SKU")

	assert.Equal(t, importer.RowError, rows[2].Status)
	require.Len(t, rows[2].Errors, 1)
	assert.Equal(t, "price must be positive", rows[2].Errors[0].Message)

	res, err := h.ExecuteBatch(context.Background(), executable(rows), ic)
	require.NoError(t, err)
	failed := res.Failed + (len(rows) - len(executable(rows)))
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 0, res.Updated)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 1, failed)

	p := cat.Product(tenantID, "A")
	require.NotNil(t, p)
	assert.Equal(t, "Widget", p.Name)
	assert.Equal(t, "job-1", p.ImportJobID)
	assert.Nil(t, cat.Product(tenantID, "B"))
	assert.NotNil(t, cat.InventoryFor(tenantID, p.ID))
	assert.Equal(t, 1, cat.Tenant(tenantID).ProductCount)
}

// presetRows maps a vendor export through a preset the way an upload with mapping_preset does.
func presetRows(t *testing.T, name string, headers []string, records ...[]string) []importer.MappedRow {
	t.Helper()
	p, ok := preset.Get(importer.EntityProducts, name)
	require.True(t, ok)
	mapping := p.Apply(headers)
	out := make([]importer.MappedRow, len(records))
	for i, rec := range records {
		row := make(map[string]string, len(headers))
		for j, h := range headers {
			row[h] = rec[j]
		}
		out[i] = importer.ApplyMapping(mapping, headers, row, i+1)
	}
	return out
}

func TestPresetExemptionAndStatusKeepTheirMeaning(t *testing.T) {
	cat, reg := setup(t)
	h := handler(t, reg, importer.EntityProducts)
	ic := ictx(false, true)

	valery := presetRows(t, "valery", []string{"Código", "Descripción", "Precio 1", "Exento"},
		[]string{"V-1", "Harina", "2,10", "Si"},
		[]string{"V-2", "Refresco", "1,50", "No"},
	)
	saint := presetRows(t, "saint", []string{"CodProd", "Descrip", "Precio1", "EsExento"},
		[]string{"S-1", "Arroz", "1,80", "1"},
	)
	shopify := presetRows(t, "shopify", []string{"Variant SKU", "Title", "Variant Price", "Status"},
		[]string{"SH-1", "Mug", "9.99", "active"},
		[]string{"SH-2", "Poster", "4.50", "draft"},
		[]string{"SH-3", "Sticker", "1.00", "archived"},
	)
	var all []importer.MappedRow
	for _, group := range [][]importer.MappedRow{valery, saint, shopify} {
		all = append(all, group...)
	}
	for i := range all {
		all[i].RowIndex = i + 1
	}

	rows, pv := validate(t, h, all, ic)
	require.True(t, pv.CanProceed)
	for _, r := range rows {
		assert.Equal(t, importer.RowValid, r.Status, "row %d: %v", r.RowIndex, r.Errors)
	}
	res, err := h.ExecuteBatch(context.Background(), executable(rows), ic)
	require.NoError(t, err)
	require.Equal(t, 6, res.Created)

	taxable := map[string]bool{"V-1": false, "V-2": true, "S-1": false, "SH-1": true}
	for sku, want := range taxable {
		p := cat.Product(tenantID, sku)
		require.NotNil(t, p, sku)
		assert.Equal(t, want, p.Taxable, sku)
	}
	active := map[string]bool{"SH-1": true, "SH-2": false, "SH-3": false}
	for sku, want := range active {
		assert.Equal(t, want, cat.Product(tenantID, sku).IsActive, sku)
	}
}

func TestDerivedFieldsUpdateAndYieldToExplicitColumns(t *testing.T) {
	cat, reg := setup(t)
	cat.AddProduct(models.Product{TenantID: tenantID, SKU: "A", Name: "Widget", Price: 5, Taxable: true, IsActive: true})
	h := handler(t, reg, importer.EntityProducts)
	ic := ictx(true, true)

	rows, _ := validate(t, h, mapped(
		map[string]string{"sku": "A", "name": "Widget", "price": "5", "taxExempt": "si", "listingStatus": "Draft"},
	), ic)
	require.Equal(t, importer.RowValid, rows[0].Status)
	res, err := h.ExecuteBatch(context.Background(), executable(rows), ic)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)
	p := cat.Product(tenantID, "A")
	assert.False(t, p.Taxable)
	assert.False(t, p.IsActive)
	require.Len(t, res.UpdateSnapshots, 1)
	assert.Equal(t, true, res.UpdateSnapshots[0].PreviousValues["taxable"])

	rows, _ = validate(t, h, mapped(
		map[string]string{"sku": "B", "name": "Gadget", "price": "5", "taxable": "si", "taxExempt": "si"},
	), ictx(false, true))
	assert.Equal(t, importer.RowWarning, rows[0].Status)
	taxable, _ := rows[0].Bool("taxable")
	assert.True(t, taxable)
	require.Len(t, rows[0].Errors, 1)
	assert.Equal(t, "taxExempt contradicts taxable, keeping taxable", rows[0].Errors[0].Message)

	rows, _ = validate(t, h, mapped(
		map[string]string{"sku": "C", "name": "Thing", "price": "5", "listingStatus": "unlisted"},
	), ictx(false, true))
	assert.Equal(t, importer.RowError, rows[0].Status)
}

func TestProductLimitBlocksBatch(t *testing.T) {
	cat, reg := setup(t)
	cat.AddTenant(models.Tenant{ID: tenantID, IsActive: true, ProductCount: 4, MaxProducts: 5})
	cat.AddProduct(models.Product{TenantID: tenantID, SKU: "OLD", Name: "Old", Price: 1})
	h := handler(t, reg, importer.EntityProducts)

	_, pv := validate(t, h, mapped(
		map[string]string{"sku": "OLD", "name": "Old", "price": "1"},
		map[string]string{"sku": "N1", "name": "New 1", "price": "1"},
	), ictx(true, true))
	assert.True(t, pv.CanProceed, "one new product fits")

	_, pv = validate(t, h, mapped(
		map[string]string{"sku": "N1", "name": "New 1", "price": "1"},
		map[string]string{"sku": "N2", "name": "New 2", "price": "1"},
	), ictx(false, true))
	assert.False(t, pv.CanProceed)
	require.Len(t, pv.Errors, 1)
	assert.Contains(t, pv.Errors[0], "product limit exceeded")
}

func TestUnknownTenantBlocksBatch(t *testing.T) {
	_, reg := setup(t)
	h := handler(t, reg, importer.EntityCustomers)
	ic := ictx(false, true)
	ic.TenantID = "missing"

	pv, err := h.PreValidateBatch(context.Background(), mapped(map[string]string{"name": "X"}), ic)
	require.NoError(t, err)
	assert.False(t, pv.CanProceed)
}

func TestProductUpdateSnapshotAndRestore(t *testing.T) {
	cat, reg := setup(t)
	id := cat.AddProduct(models.Product{TenantID: tenantID, SKU: "A", Name: "Widget", Price: 5, MinimumStock: 3, IsActive: true, Taxable: true})
	h := handler(t, reg, importer.EntityProducts)
	ic := ictx(true, true)

	rows, _ := validate(t, h, mapped(map[string]string{"sku": "a", "name": "Widget", "price": "7"}), ic)
	require.Equal(t, id, rows[0].ExistingRecordID)

	res, err := h.ExecuteBatch(context.Background(), rows, ic)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)
	require.Len(t, res.UpdateSnapshots, 1)
	assert.Equal(t, map[string]interface{}{"price": 5.0}, res.UpdateSnapshots[0].PreviousValues)

	p := cat.Product(tenantID, "A")
	assert.Equal(t, 7.0, p.Price)
	assert.Equal(t, 3.0, p.MinimumStock, "columns absent from the file keep their value")

	require.NoError(t, h.RestoreSnapshot(context.Background(), tenantID, res.UpdateSnapshots[0]))
	assert.Equal(t, 5.0, cat.Product(tenantID, "A").Price)
}

func TestProductRollbackOnlyTouchesJob(t *testing.T) {
	cat, reg := setup(t)
	cat.AddTenant(models.Tenant{ID: "tenant-2", IsActive: true})
	cat.AddProduct(models.Product{TenantID: "tenant-2", SKU: "X", ImportJobID: "job-1"})
	cat.AddProduct(models.Product{TenantID: tenantID, SKU: "KEEP", ImportJobID: "job-0"})
	h := handler(t, reg, importer.EntityProducts)
	ic := ictx(false, true)

	rows, _ := validate(t, h, mapped(
		map[string]string{"sku": "A", "name": "A", "price": "1"},
		map[string]string{"sku": "B", "name": "B", "price": "2"},
	), ic)
	_, err := h.ExecuteBatch(context.Background(), rows, ic)
	require.NoError(t, err)
	assert.Equal(t, 2, cat.Tenant(tenantID).ProductCount)

	rb, err := h.Rollback(context.Background(), "job-1", tenantID)
	require.NoError(t, err)
	assert.Equal(t, 2, rb.Deleted)
	assert.Equal(t, 1, rb.Restored)
	assert.Equal(t, 0, cat.Tenant(tenantID).ProductCount)

	products := cat.Products(tenantID)
	require.Len(t, products, 1)
	assert.Equal(t, "KEEP", products[0].SKU)
	assert.Len(t, cat.Products("tenant-2"), 1)
}

func TestStopOnFirstFailureWithoutSkipErrors(t *testing.T) {
	cat, reg := setup(t)
	cat.FailOn["products.create"] = errors.New("connection reset")
	h := handler(t, reg, importer.EntityProducts)
	ic := ictx(false, false)

	rows, _ := validate(t, h, mapped(
		map[string]string{"sku": "A", "name": "A", "price": "1"},
		map[string]string{"sku": "B", "name": "B", "price": "2"},
		map[string]string{"sku": "C", "name": "C", "price": "3"},
	), ic)
	res, err := h.ExecuteBatch(context.Background(), rows, ic)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 2, res.Skipped)
	require.Len(t, res.Errors, 3)
	assert.Contains(t, res.Errors[1].Message, "not processed")
}

func TestExecuteStopsOnCancelledContext(t *testing.T) {
	_, reg := setup(t)
	h := handler(t, reg, importer.EntityProducts)
	ic := ictx(false, true)
	rows, _ := validate(t, h, mapped(map[string]string{"sku": "A", "name": "A", "price": "1"}), ic)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.ExecuteBatch(ctx, rows, ic)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInventoryAdjustments(t *testing.T) {
	cat, reg := setup(t)
	pid := cat.AddProduct(models.Product{TenantID: tenantID, SKU: "A", Name: "A", Price: 1})
	cat.AddInventory(models.InventoryRecord{TenantID: tenantID, ProductID: pid, ProductSKU: "A", Quantity: 10})
	cat.AddProduct(models.Product{TenantID: tenantID, SKU: "B", Name: "B", Price: 1})
	h := handler(t, reg, importer.EntityInventory)
	ic := ictx(true, true)

	rows, _ := validate(t, h, mapped(
		map[string]string{"sku": "A", "quantity": "5", "adjustmentType": "add"},
		map[string]string{"sku": "MISSING", "quantity": "1"},
		map[string]string{"sku": "B", "quantity": "3", "adjustmentType": "subtract"},
	), ic)
	assert.Equal(t, importer.RowValid, rows[0].Status)
	assert.Equal(t, importer.RowError, rows[1].Status)
	assert.Equal(t, `product with SKU "MISSING" not found`, rows[1].Errors[0].Message)

	res, err := h.ExecuteBatch(context.Background(), executable(rows), ic)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 1, res.Failed, "subtracting from empty stock")
	assert.Equal(t, 15.0, cat.InventoryFor(tenantID, pid).Quantity)

	require.Len(t, res.UpdateSnapshots, 1)
	require.NoError(t, h.RestoreSnapshot(context.Background(), tenantID, res.UpdateSnapshots[0]))
	assert.Equal(t, 10.0, cat.InventoryFor(tenantID, pid).Quantity)
}

func TestCustomerMatchingAndWarnings(t *testing.T) {
	cat, reg := setup(t)
	cat.AddCustomer(models.Customer{TenantID: tenantID, Name: "Existing", Email: "old@acme.com"})
	h := handler(t, reg, importer.EntityCustomers)
	ic := ictx(false, true)

	rows, _ := validate(t, h, mapped(
		map[string]string{"name": "Existing Co", "email": "OLD@acme.com"},
		map[string]string{"name": "Fresh", "email": "not-an-email", "taxId": "V-1"},
		map[string]string{"name": "Bad limit", "creditLimit": "-10"},
	), ic)
	assert.Equal(t, importer.RowValid, rows[0].Status)
	assert.Equal(t, importer.RowWarning, rows[1].Status)
	assert.Equal(t, importer.RowError, rows[2].Status)

	res, err := h.ExecuteBatch(context.Background(), executable(rows), ic)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, res.Skipped)
	assert.Len(t, cat.Customers(tenantID), 2)
}

func TestSupplierCreatesCustomerCounterpart(t *testing.T) {
	cat, reg := setup(t)
	linked := cat.AddCustomer(models.Customer{TenantID: tenantID, Name: "Known", TaxID: "J-2"})
	h := handler(t, reg, importer.EntitySuppliers)
	ic := ictx(false, true)

	rows, _ := validate(t, h, mapped(
		map[string]string{"name": "Sol", "taxId": "J-1", "paymentTermsDays": "30"},
		map[string]string{"name": "Known", "taxId": "J-2", "paymentTermsDays": "15,5"},
	), ic)
	assert.Equal(t, importer.RowValid, rows[0].Status)
	assert.Equal(t, importer.RowWarning, rows[1].Status)

	res, err := h.ExecuteBatch(context.Background(), rows, ic)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)

	suppliers := cat.Suppliers(tenantID)
	require.Len(t, suppliers, 2)
	assert.Equal(t, linked, suppliers[0].CustomerID)
	assert.Equal(t, 16, suppliers[0].PaymentTermsDays)
	assert.NotEmpty(t, suppliers[1].CustomerID)
	assert.Len(t, cat.Customers(tenantID), 2)

	rb, err := h.Rollback(context.Background(), "job-1", tenantID)
	require.NoError(t, err)
	assert.Equal(t, 2, rb.Deleted)
	assert.Empty(t, cat.Suppliers(tenantID))
	assert.Len(t, cat.Customers(tenantID), 1, "pre-existing customer survives")
}

func TestCategoryRenameAndRestore(t *testing.T) {
	cat, reg := setup(t)
	cat.AddCategory(models.Category{TenantID: tenantID, Name: "Drinks", IsActive: true})
	cat.AddCategory(models.Category{TenantID: tenantID, Name: "Soda", ParentName: "Drinks", IsActive: true})
	cat.AddProduct(models.Product{TenantID: tenantID, SKU: "A", Category: "Drinks"})
	h := handler(t, reg, importer.EntityCategories)
	ic := ictx(false, true)

	rows, _ := validate(t, h, mapped(
		map[string]string{"name": "Drinks", "newName": "Beverages"},
		map[string]string{"name": "Ghost", "newName": "Spirit"},
		map[string]string{"name": "Snacks"},
	), ic)
	assert.Equal(t, importer.RowValid, rows[0].Status)
	assert.Equal(t, importer.RowError, rows[1].Status)

	res, err := h.ExecuteBatch(context.Background(), executable(rows), ic)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, "Beverages", cat.Product(tenantID, "A").Category)

	require.Len(t, res.UpdateSnapshots, 1)
	snap := res.UpdateSnapshots[0]
	assert.Equal(t, entities.SnapshotRename, snap.Kind)

	require.NoError(t, h.RestoreSnapshot(context.Background(), tenantID, snap))
	assert.Equal(t, "Drinks", cat.Product(tenantID, "A").Category)
	names := []string{}
	for _, c := range cat.Categories(tenantID) {
		names = append(names, c.Name+"/"+c.ParentName)
	}
	assert.ElementsMatch(t, []string{"Drinks/", "Snacks/", "Soda/Drinks"}, names)
}

func TestEmptyRowIsSkipped(t *testing.T) {
	_, reg := setup(t)
	h := handler(t, reg, importer.EntityProducts)
	vr, err := h.ValidateRow(context.Background(), importer.MappedRow{RowIndex: 4, Values: map[string]string{"sku": " ", "name": ""}}, ictx(false, true))
	require.NoError(t, err)
	assert.Equal(t, importer.RowSkipped, vr.Status)
	assert.False(t, vr.Executable())
}

func TestInventoryExpiredLotWarns(t *testing.T) {
	cat, reg := setup(t)
	cat.AddProduct(models.Product{TenantID: tenantID, SKU: "A", Name: "A", Price: 1})
	h := handler(t, reg, importer.EntityInventory)

	vr, err := h.ValidateRow(context.Background(), importer.MappedRow{RowIndex: 1, Values: map[string]string{
		"sku": "A", "quantity": "1", "expirationDate": time.Now().AddDate(0, 0, -2).Format("2006-01-02"),
	}}, ictx(false, true))
	require.NoError(t, err)
	assert.Equal(t, importer.RowWarning, vr.Status)
}

func TestGenerateTemplate(t *testing.T) {
	_, reg := setup(t)
	for _, et := range importer.EntityTypes {
		h := handler(t, reg, et)
		data, err := h.GenerateTemplate()
		require.NoError(t, err, et)

		f, err := excelize.OpenReader(bytes.NewReader(data))
		require.NoError(t, err)
		sheets := f.GetSheetList()
		require.Len(t, sheets, 2)
		rows, err := f.GetRows(sheets[0])
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(rows), 3, "header, description and at least one example")

		defs := h.FieldDefinitions()
		require.Len(t, rows[0], len(defs))
		for i, d := range defs {
			assert.Equal(t, d.Label, rows[0][i])
		}
		assert.Equal(t, importer.DescribeField(defs[0]), rows[1][0])
		_ = f.Close()
	}
}
