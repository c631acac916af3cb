package entities

import (
	"context"
	"fmt"
	"math"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/smartkubik/import-api/internal/importer"
	"github.com/smartkubik/import-api/internal/models"
)

var supplierFields = []importer.FieldDefinition{
	{Key: "name", Label: "Name", Required: true, Type: importer.FieldString,
		Aliases: []string{"nombre", "razon social", "proveedor", "supplier", "vendor", "empresa"},
		Example: "Distribuidora El Sol C.A."},
	{Key: "taxId", Label: "Tax ID", Required: true, Type: importer.FieldString,
		Aliases:     []string{"rif", "nit", "ruc", "cuit", "rfc", "documento", "identificacion"},
		Description: "Existing suppliers are matched on it.", Example: "J-29876543-1"},
	{Key: "contactName", Label: "Contact name", Type: importer.FieldString,
		Aliases: []string{"contacto", "persona de contacto", "representante", "contact"}},
	{Key: "email", Label: "Email", Type: importer.FieldString,
		Aliases: []string{"correo", "correo electronico", "e-mail", "mail"}},
	{Key: "phone", Label: "Phone", Type: importer.FieldString,
		Aliases: []string{"telefono", "telefonos", "tel", "celular"}},
	{Key: "address", Label: "Address", Type: importer.FieldString,
		Aliases: []string{"direccion", "domicilio"}},
	{Key: "paymentTermsDays", Label: "Payment terms (days)", Type: importer.FieldNumber, DefaultValue: 0.0,
		Aliases: []string{"dias de credito", "dias credito", "plazo", "condiciones de pago", "payment terms", "credit days"}},
	{Key: "notes", Label: "Notes", Type: importer.FieldString,
		Aliases: []string{"notas", "observaciones"}},
}

var supplierExamples = [][]string{
	{"Distribuidora El Sol C.A.", "J-29876543-1", "Pedro Gómez", "ventas@elsol.com", "0241-5559876", "Zona Industrial Norte", "30", ""},
}

// SupplierHandler imports suppliers. Every new supplier is linked to a customer record with
// the same tax ID, created on the fly when none exists.
type SupplierHandler struct {
	base
	tenants   TenantStore
	suppliers SupplierStore
	customers CustomerStore
}

func NewSupplierHandler(stores Stores, logger zerolog.Logger) *SupplierHandler {
	return &SupplierHandler{
		base:      newBase(importer.EntitySuppliers, supplierFields, supplierExamples, logger),
		tenants:   stores.Tenants,
		suppliers: stores.Suppliers,
		customers: stores.Customers,
	}
}

func (h *SupplierHandler) ValidateRow(ctx context.Context, row importer.MappedRow, ictx importer.Context) (importer.ValidatedRow, error) {
	vr := importer.ValidateFields(h.defs, row)
	if vr.Status == importer.RowSkipped {
		return vr, nil
	}
	checkEmail(&vr, "email")
	if days, ok := vr.Float("paymentTermsDays"); ok {
		switch {
		case days < 0:
			vr.AddError("paymentTermsDays", "payment terms cannot be negative")
		case days != math.Trunc(days):
			vr.AddWarning("paymentTermsDays", fmt.Sprintf("payment terms %g rounded to %d days", days, int(math.Round(days))))
		}
		vr.Data["paymentTermsDays"] = int(math.Round(days))
	}

	if taxID := vr.String("taxId"); taxID != "" && ictx.Options.UpdateExisting {
		existing, err := h.suppliers.FindByTaxID(ctx, ictx.TenantID, taxID)
		if err != nil {
			return vr, errors.Wrap(err, "find supplier by tax id")
		}
		if existing != nil {
			vr.ExistingRecordID = existing.ID
		}
	}
	vr.Finalize()
	return vr, nil
}

func (h *SupplierHandler) PreValidateBatch(ctx context.Context, rows []importer.MappedRow, ictx importer.Context) (importer.PreValidation, error) {
	pv := importer.PreValidation{CanProceed: true}
	if err := requireTenant(ctx, h.tenants, ictx.TenantID, &pv); err != nil {
		return pv, err
	}
	addDuplicates(&pv, rows, "taxId", "tax ID")
	return pv, nil
}

func (h *SupplierHandler) ExecuteBatch(ctx context.Context, rows []importer.ValidatedRow, ictx importer.Context) (importer.BatchResult, error) {
	var res importer.BatchResult
	err := importer.ExecuteRows(ctx, rows, ictx, &res, func(row importer.ValidatedRow) {
		taxID := row.String("taxId")
		existing, err := h.suppliers.FindByTaxID(ctx, ictx.TenantID, taxID)
		if err != nil {
			h.storeFailure(&res, row, "taxId", "look up supplier", err)
			return
		}

		if existing != nil {
			if !ictx.Options.UpdateExisting {
				res.Skip(row, "taxId", fmt.Sprintf("supplier with tax ID %q already exists", taxID))
				return
			}
			next, previous := importer.Changes(row, existing.Values())
			if len(next) == 0 {
				res.Skipped++
				return
			}
			if err := h.suppliers.Update(ctx, ictx.TenantID, existing.ID, next); err != nil {
				h.storeFailure(&res, row, "", "update supplier", err)
				return
			}
			res.Snapshot(models.UpdateSnapshot{RecordID: existing.ID, PreviousValues: previous})
			res.Updated++
			return
		}

		customerID, err := h.counterpart(ctx, row, ictx)
		if err != nil {
			h.storeFailure(&res, row, "taxId", "link customer record", err)
			return
		}
		days, _ := row.Data["paymentTermsDays"].(int)
		s := &models.Supplier{
			TenantID:         ictx.TenantID,
			Name:             row.String("name"),
			TaxID:            taxID,
			ContactName:      row.String("contactName"),
			Email:            row.String("email"),
			Phone:            row.String("phone"),
			Address:          row.String("address"),
			PaymentTermsDays: days,
			Notes:            row.String("notes"),
			CustomerID:       customerID,
			ImportJobID:      ictx.ImportJobID,
		}
		if err := h.suppliers.Create(ctx, s); err != nil {
			h.storeFailure(&res, row, "taxId", "create supplier", err)
			return
		}
		res.Created++
	})
	return res, err
}

// counterpart returns the customer record sharing the supplier's tax ID, creating it when
// missing. Created customers carry the import job so rollback removes them too.
func (h *SupplierHandler) counterpart(ctx context.Context, row importer.ValidatedRow, ictx importer.Context) (string, error) {
	c, err := h.customers.FindByTaxID(ctx, ictx.TenantID, row.String("taxId"))
	if err != nil {
		return "", err
	}
	if c != nil {
		return c.ID, nil
	}
	c = &models.Customer{
		TenantID:     ictx.TenantID,
		Name:         row.String("name"),
		CustomerType: "business",
		TaxID:        row.String("taxId"),
		Email:        row.String("email"),
		Phone:        row.String("phone"),
		Address:      row.String("address"),
		Notes:        "Created from supplier import",
		ImportJobID:  ictx.ImportJobID,
	}
	if err := h.customers.Create(ctx, c); err != nil {
		return "", err
	}
	return c.ID, nil
}

// Rollback deletes the job's suppliers and the customer records created alongside them.
// Only suppliers are counted as deleted.
func (h *SupplierHandler) Rollback(ctx context.Context, importJobID, tenantID string) (importer.RollbackResult, error) {
	n, err := h.suppliers.DeleteByImportJob(ctx, tenantID, importJobID)
	if err != nil {
		return importer.RollbackResult{}, errors.Wrap(err, "delete imported suppliers")
	}
	if _, err := h.customers.DeleteByImportJob(ctx, tenantID, importJobID); err != nil {
		return importer.RollbackResult{Deleted: n}, errors.Wrap(err, "delete supplier customer records")
	}
	return importer.RollbackResult{Deleted: n}, nil
}

func (h *SupplierHandler) RestoreSnapshot(ctx context.Context, tenantID string, s models.UpdateSnapshot) error {
	return errors.Wrapf(h.suppliers.Update(ctx, tenantID, s.RecordID, s.PreviousValues), "restore supplier %s", s.RecordID)
}
