package entities

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/smartkubik/import-api/internal/importer"
	"github.com/smartkubik/import-api/internal/models"
)

var productFields = []importer.FieldDefinition{
	{Key: "sku", Label: "SKU", Required: true, Type: importer.FieldString,
		Aliases:     []string{"codigo", "cod", "referencia", "ref", "item code", "product code", "codigo producto"},
		Description: "Unique product code. Existing products are matched on it.", Example: "CAF-001"},
	{Key: "name", Label: "Name", Required: true, Type: importer.FieldString,
		Aliases: []string{"nombre", "producto", "product name", "nombre producto", "articulo", "title"},
		Example: "Café molido 500g"},
	{Key: "description", Label: "Description", Type: importer.FieldString,
		Aliases: []string{"descripcion", "detalle", "details"}},
	{Key: "category", Label: "Category", Type: importer.FieldString,
		Aliases: []string{"categoria", "departamento", "rubro"}, Example: "Bebidas"},
	{Key: "subcategory", Label: "Subcategory", Type: importer.FieldString,
		Aliases: []string{"subcategoria", "sub category", "grupo", "linea"}},
	{Key: "brand", Label: "Brand", Type: importer.FieldString,
		Aliases: []string{"marca", "fabricante", "manufacturer"}},
	{Key: "unitOfMeasure", Label: "Unit of measure", Type: importer.FieldEnum,
		EnumValues:   []string{"unidad", "kg", "g", "l", "ml", "caja", "paquete", "docena"},
		DefaultValue: "unidad",
		Aliases:      []string{"unidad", "unidad de medida", "uom", "unit", "medida"}},
	{Key: "price", Label: "Price", Required: true, Type: importer.FieldNumber, Money: true,
		Aliases:     []string{"precio", "precio venta", "precio de venta", "pvp", "sale price"},
		Description: "Sale price. Accepts 1.234,50 and 1,234.50.", Example: "12,50"},
	{Key: "cost", Label: "Cost", Type: importer.FieldNumber, Money: true,
		Aliases: []string{"costo", "cost price", "precio costo", "costo unitario"}},
	{Key: "taxable", Label: "Taxable", Type: importer.FieldBoolean, DefaultValue: true,
		Aliases: []string{"gravable", "iva", "aplica iva", "taxed", "impuesto"}},
	{Key: "barcode", Label: "Barcode", Type: importer.FieldString,
		Aliases: []string{"codigo de barras", "cod barras", "ean", "upc", "gtin"}},
	{Key: "initialStock", Label: "Initial stock", Type: importer.FieldNumber, DefaultValue: 0.0,
		Aliases:     []string{"stock inicial", "stock", "existencia", "cantidad", "inventario", "qty", "quantity"},
		Description: "Only used when the product is created."},
	{Key: "minimumStock", Label: "Minimum stock", Type: importer.FieldNumber, DefaultValue: 0.0,
		Aliases: []string{"stock minimo", "minimo", "min stock", "reorder point", "punto de reorden"}},
	{Key: "isActive", Label: "Active", Type: importer.FieldBoolean, DefaultValue: true,
		Aliases: []string{"activo", "enabled", "estado", "status", "habilitado"}},
	{Key: "tags", Label: "Tags", Type: importer.FieldArray, ArraySeparator: ",",
		Aliases: []string{"etiquetas", "labels", "keywords"}},
	{Key: "taxExempt", Label: "Tax exempt", Type: importer.FieldBoolean,
		Aliases:     []string{"exento", "exempt", "es exento", "exento iva"},
		Description: "Inverse of Taxable for exports that flag exemptions. Taxable wins when both are given."},
	{Key: "listingStatus", Label: "Listing status", Type: importer.FieldEnum,
		EnumValues:  []string{"active", "draft", "archived"},
		Aliases:     []string{"publication status", "estado publicacion", "product status"},
		Description: "Only active products are imported as active. Active wins when both are given."},
}

var productExamples = [][]string{
	{"CAF-001", "Café molido 500g", "Café tostado y molido", "Bebidas", "Café", "Montaña", "unidad", "12,50", "8,10", "si", "7591234500011", "40", "5", "si", "cafe,desayuno"},
	{"AZU-002", "Azúcar refinada 1kg", "", "Víveres", "", "Montalbán", "kg", "3,20", "2,40", "no", "", "120", "20", "si", ""},
}

// ProductHandler imports catalog products. Creating a product also opens its inventory
// record and counts it against the tenant plan.
type ProductHandler struct {
	base
	tenants   TenantStore
	products  ProductStore
	inventory InventoryStore
}

func NewProductHandler(stores Stores, logger zerolog.Logger) *ProductHandler {
	return &ProductHandler{
		base:      newBase(importer.EntityProducts, productFields, productExamples, logger),
		tenants:   stores.Tenants,
		products:  stores.Products,
		inventory: stores.Inventory,
	}
}

func (h *ProductHandler) ValidateRow(ctx context.Context, row importer.MappedRow, ictx importer.Context) (importer.ValidatedRow, error) {
	vr := importer.ValidateFields(h.defs, row)
	if vr.Status == importer.RowSkipped {
		return vr, nil
	}

	if exempt, ok := vr.Bool("taxExempt"); ok {
		derive(&vr, "taxable", !exempt, "taxExempt")
	}
	if status := vr.String("listingStatus"); status != "" {
		derive(&vr, "isActive", status == "active", "listingStatus")
	}

	if price, ok := vr.Float("price"); ok && price <= 0 {
		vr.AddError("price", "price must be positive")
	}
	nonNegative(&vr, "cost", "cost")
	nonNegative(&vr, "initialStock", "initial stock")
	nonNegative(&vr, "minimumStock", "minimum stock")
	price, _ := vr.Float("price")
	if cost, ok := vr.Float("cost"); ok && price > 0 && cost > price {
		vr.AddWarning("cost", "cost is higher than price")
	}

	if sku := vr.String("sku"); sku != "" && ictx.Options.UpdateExisting {
		existing, err := h.products.FindBySKU(ctx, ictx.TenantID, sku)
		if err != nil {
			return vr, errors.Wrap(err, "find product by sku")
		}
		if existing != nil {
			vr.ExistingRecordID = existing.ID
		}
	}
	vr.Finalize()
	return vr, nil
}

func (h *ProductHandler) PreValidateBatch(ctx context.Context, rows []importer.MappedRow, ictx importer.Context) (importer.PreValidation, error) {
	pv := importer.PreValidation{CanProceed: true}
	if err := requireTenant(ctx, h.tenants, ictx.TenantID, &pv); err != nil {
		return pv, err
	}
	addDuplicates(&pv, rows, "sku", "SKU")
	if !pv.CanProceed {
		return pv, nil
	}

	tenant, err := h.tenants.Get(ctx, ictx.TenantID)
	if err != nil {
		return pv, errors.Wrap(err, "load tenant")
	}
	headroom := tenant.ProductHeadroom()
	if headroom < 0 {
		return pv, nil
	}

	seen := make(map[string]bool)
	var skus []string
	for _, r := range rows {
		if k := importer.KeyOf(r.Values["sku"]); k != "" && !seen[k] {
			seen[k] = true
			skus = append(skus, r.Values["sku"])
		}
	}
	existing, err := h.products.CountExistingSKUs(ctx, ictx.TenantID, skus)
	if err != nil {
		return pv, errors.Wrap(err, "count existing skus")
	}
	if created := len(skus) - existing; created > headroom {
		pv.AddError(fmt.Sprintf("product limit exceeded: the file adds %d new products but the plan allows %d more (%d of %d used)",
			created, headroom, tenant.ProductCount, tenant.MaxProducts))
	}
	return pv, nil
}

func (h *ProductHandler) ExecuteBatch(ctx context.Context, rows []importer.ValidatedRow, ictx importer.Context) (importer.BatchResult, error) {
	var res importer.BatchResult
	err := importer.ExecuteRows(ctx, rows, ictx, &res, func(row importer.ValidatedRow) {
		sku := row.String("sku")
		existing, err := h.products.FindBySKU(ctx, ictx.TenantID, sku)
		if err != nil {
			h.storeFailure(&res, row, "sku", "look up product", err)
			return
		}

		if existing != nil {
			if !ictx.Options.UpdateExisting {
				res.Skip(row, "sku", fmt.Sprintf("product with SKU %q already exists", sku))
				return
			}
			next, previous := importer.Changes(row, existing.Values())
			if len(next) == 0 {
				res.Skipped++
				return
			}
			if err := h.products.Update(ctx, ictx.TenantID, existing.ID, next); err != nil {
				h.storeFailure(&res, row, "", "update product", err)
				return
			}
			res.Snapshot(models.UpdateSnapshot{RecordID: existing.ID, PreviousValues: previous})
			res.Updated++
			return
		}

		p := productFromRow(row, ictx)
		if err := h.products.Create(ctx, p); err != nil {
			h.storeFailure(&res, row, "sku", "create product", err)
			return
		}
		res.Created++

		stock, _ := row.Float("initialStock")
		cost, _ := row.Float("cost")
		inv := &models.InventoryRecord{
			TenantID:    ictx.TenantID,
			ProductID:   p.ID,
			ProductSKU:  p.SKU,
			Quantity:    stock,
			UnitCost:    cost,
			ImportJobID: ictx.ImportJobID,
		}
		if err := h.inventory.Create(ctx, inv); err != nil {
			h.logger.Warn().Err(err).Str("sku", sku).Msg("product created without inventory record")
			res.Note(row, "initialStock", fmt.Sprintf("product created but inventory record failed: %v", err))
		}
		if err := h.tenants.IncrementProductCount(ctx, ictx.TenantID, 1); err != nil {
			h.logger.Warn().Err(err).Str("tenant_id", ictx.TenantID).Msg("failed to increment product count")
		}
	})
	return res, err
}

func productFromRow(row importer.ValidatedRow, ictx importer.Context) *models.Product {
	price, _ := row.Float("price")
	cost, _ := row.Float("cost")
	minimum, _ := row.Float("minimumStock")
	taxable, ok := row.Bool("taxable")
	if !ok {
		taxable = true
	}
	active, ok := row.Bool("isActive")
	if !ok {
		active = true
	}
	return &models.Product{
		TenantID:      ictx.TenantID,
		SKU:           row.String("sku"),
		Name:          row.String("name"),
		Description:   row.String("description"),
		Category:      row.String("category"),
		Subcategory:   row.String("subcategory"),
		Brand:         row.String("brand"),
		UnitOfMeasure: row.String("unitOfMeasure"),
		Price:         price,
		Cost:          cost,
		Taxable:       taxable,
		Barcode:       row.String("barcode"),
		MinimumStock:  minimum,
		IsActive:      active,
		Tags:          row.Strings("tags"),
		ImportJobID:   ictx.ImportJobID,
	}
}

// Rollback removes the job's products and their inventory records, then gives the plan
// headroom back.
func (h *ProductHandler) Rollback(ctx context.Context, importJobID, tenantID string) (importer.RollbackResult, error) {
	var res importer.RollbackResult
	if _, err := h.inventory.DeleteByImportJob(ctx, tenantID, importJobID); err != nil {
		return res, errors.Wrap(err, "delete imported inventory")
	}
	n, err := h.products.DeleteByImportJob(ctx, tenantID, importJobID)
	if err != nil {
		return res, errors.Wrap(err, "delete imported products")
	}
	res.Deleted = n
	if n > 0 {
		if err := h.tenants.IncrementProductCount(ctx, tenantID, -n); err != nil {
			return res, errors.Wrap(err, "decrement product count")
		}
		res.Restored++
	}
	return res, nil
}

func (h *ProductHandler) RestoreSnapshot(ctx context.Context, tenantID string, s models.UpdateSnapshot) error {
	return errors.Wrapf(h.products.Update(ctx, tenantID, s.RecordID, s.PreviousValues), "restore product %s", s.RecordID)
}
