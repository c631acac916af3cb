package entities

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/smartkubik/import-api/internal/importer"
	"github.com/smartkubik/import-api/internal/models"
)

const (
	adjustSet      = "set"
	adjustAdd      = "add"
	adjustSubtract = "subtract"
)

var inventoryFields = []importer.FieldDefinition{
	{Key: "sku", Label: "SKU", Required: true, Type: importer.FieldString,
		Aliases:     []string{"codigo", "cod", "referencia", "ref", "codigo producto", "product code"},
		Description: "SKU of an existing product.", Example: "CAF-001"},
	{Key: "quantity", Label: "Quantity", Required: true, Type: importer.FieldNumber,
		Aliases: []string{"cantidad", "qty", "conteo", "existencia", "stock", "count"}, Example: "36"},
	{Key: "adjustmentType", Label: "Adjustment type", Type: importer.FieldEnum,
		EnumValues:   []string{adjustSet, adjustAdd, adjustSubtract},
		DefaultValue: adjustSet,
		Aliases:      []string{"tipo ajuste", "tipo de ajuste", "tipo", "operacion", "adjustment"},
		Description:  "set replaces the stock, add and subtract adjust it."},
	{Key: "location", Label: "Location", Type: importer.FieldString,
		Aliases: []string{"ubicacion", "almacen", "deposito", "bodega", "warehouse"}},
	{Key: "lotNumber", Label: "Lot number", Type: importer.FieldString,
		Aliases: []string{"lote", "lot", "batch", "numero de lote"}},
	{Key: "expirationDate", Label: "Expiration date", Type: importer.FieldDate,
		Aliases: []string{"vencimiento", "fecha vencimiento", "fecha de vencimiento", "expiry", "expires"}},
	{Key: "unitCost", Label: "Unit cost", Type: importer.FieldNumber, Money: true,
		Aliases: []string{"costo", "costo unitario", "cost"}},
	{Key: "reason", Label: "Reason", Type: importer.FieldString,
		Aliases: []string{"motivo", "razon", "nota", "observacion"}},
}

var inventoryExamples = [][]string{
	{"CAF-001", "36", "set", "Depósito principal", "L-2024-11", "30/06/2025", "8,10", "Conteo físico"},
	{"AZU-002", "10", "add", "", "", "", "", "Compra"},
}

// InventoryHandler adjusts stock of existing products. It never creates products.
type InventoryHandler struct {
	base
	tenants   TenantStore
	products  ProductStore
	inventory InventoryStore
	now       func() time.Time
}

func NewInventoryHandler(stores Stores, logger zerolog.Logger) *InventoryHandler {
	return &InventoryHandler{
		base:      newBase(importer.EntityInventory, inventoryFields, inventoryExamples, logger),
		tenants:   stores.Tenants,
		products:  stores.Products,
		inventory: stores.Inventory,
		now:       time.Now,
	}
}

func (h *InventoryHandler) ValidateRow(ctx context.Context, row importer.MappedRow, ictx importer.Context) (importer.ValidatedRow, error) {
	vr := importer.ValidateFields(h.defs, row)
	if vr.Status == importer.RowSkipped {
		return vr, nil
	}
	nonNegative(&vr, "quantity", "quantity")
	nonNegative(&vr, "unitCost", "unit cost")
	if exp, ok := vr.Data["expirationDate"].(time.Time); ok && exp.Before(h.now()) {
		vr.AddWarning("expirationDate", "lot is already expired")
	}

	if sku := vr.String("sku"); sku != "" {
		p, err := h.products.FindBySKU(ctx, ictx.TenantID, sku)
		if err != nil {
			return vr, errors.Wrap(err, "find product by sku")
		}
		if p == nil {
			vr.AddError("sku", fmt.Sprintf("product with SKU %q not found", sku))
		} else if ictx.Options.UpdateExisting {
			rec, err := h.inventory.FindByProduct(ctx, ictx.TenantID, p.ID)
			if err != nil {
				return vr, errors.Wrap(err, "find inventory record")
			}
			if rec != nil {
				vr.ExistingRecordID = rec.ID
			}
		}
	}
	vr.Finalize()
	return vr, nil
}

func (h *InventoryHandler) PreValidateBatch(ctx context.Context, rows []importer.MappedRow, ictx importer.Context) (importer.PreValidation, error) {
	pv := importer.PreValidation{CanProceed: true}
	if err := requireTenant(ctx, h.tenants, ictx.TenantID, &pv); err != nil {
		return pv, err
	}
	addDuplicates(&pv, rows, "sku", "SKU")
	return pv, nil
}

func (h *InventoryHandler) ExecuteBatch(ctx context.Context, rows []importer.ValidatedRow, ictx importer.Context) (importer.BatchResult, error) {
	var res importer.BatchResult
	err := importer.ExecuteRows(ctx, rows, ictx, &res, func(row importer.ValidatedRow) {
		sku := row.String("sku")
		p, err := h.products.FindBySKU(ctx, ictx.TenantID, sku)
		if err != nil {
			h.storeFailure(&res, row, "sku", "look up product", err)
			return
		}
		if p == nil {
			res.Fail(row, "sku", fmt.Sprintf("product with SKU %q not found", sku))
			return
		}
		rec, err := h.inventory.FindByProduct(ctx, ictx.TenantID, p.ID)
		if err != nil {
			h.storeFailure(&res, row, "sku", "look up inventory", err)
			return
		}

		qty, _ := row.Float("quantity")
		mode := row.String("adjustmentType")
		current := 0.0
		if rec != nil {
			current = rec.Quantity
		}
		target := qty
		switch mode {
		case adjustAdd:
			target = current + qty
		case adjustSubtract:
			target = current - qty
		}
		if target < 0 {
			res.Fail(row, "quantity", fmt.Sprintf("subtracting %g from %g would leave negative stock", qty, current))
			return
		}

		if rec == nil {
			cost, _ := row.Float("unitCost")
			rec = &models.InventoryRecord{
				TenantID:    ictx.TenantID,
				ProductID:   p.ID,
				ProductSKU:  p.SKU,
				Quantity:    target,
				Location:    row.String("location"),
				LotNumber:   row.String("lotNumber"),
				UnitCost:    cost,
				ImportJobID: ictx.ImportJobID,
			}
			if exp, ok := row.Data["expirationDate"].(time.Time); ok {
				rec.ExpirationDate = &exp
			}
			if err := h.inventory.Create(ctx, rec); err != nil {
				h.storeFailure(&res, row, "sku", "create inventory record", err)
				return
			}
			res.Created++
			return
		}

		next, previous := importer.Changes(row, rec.Values())
		delete(next, "quantity")
		delete(previous, "quantity")
		if target != current {
			next["quantity"] = target
			previous["quantity"] = current
		}
		if len(next) == 0 {
			res.Skipped++
			return
		}
		if err := h.inventory.Update(ctx, ictx.TenantID, rec.ID, next); err != nil {
			h.storeFailure(&res, row, "quantity", "update inventory", err)
			return
		}
		res.Snapshot(models.UpdateSnapshot{RecordID: rec.ID, PreviousValues: previous})
		res.Updated++
	})
	return res, err
}

// Rollback deletes inventory records the job created. Adjustments to existing records are
// undone through their snapshots.
func (h *InventoryHandler) Rollback(ctx context.Context, importJobID, tenantID string) (importer.RollbackResult, error) {
	n, err := h.inventory.DeleteByImportJob(ctx, tenantID, importJobID)
	if err != nil {
		return importer.RollbackResult{}, errors.Wrap(err, "delete imported inventory")
	}
	return importer.RollbackResult{Deleted: n}, nil
}

func (h *InventoryHandler) RestoreSnapshot(ctx context.Context, tenantID string, s models.UpdateSnapshot) error {
	return errors.Wrapf(h.inventory.Update(ctx, tenantID, s.RecordID, s.PreviousValues), "restore inventory %s", s.RecordID)
}
