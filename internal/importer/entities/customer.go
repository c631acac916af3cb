package entities

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/smartkubik/import-api/internal/importer"
	"github.com/smartkubik/import-api/internal/models"
)

var customerFields = []importer.FieldDefinition{
	{Key: "name", Label: "Name", Required: true, Type: importer.FieldString,
		Aliases: []string{"nombre", "razon social", "cliente", "customer", "full name", "nombre completo"},
		Example: "Inversiones La Ceiba C.A."},
	{Key: "customerType", Label: "Customer type", Type: importer.FieldEnum,
		EnumValues:   []string{"individual", "business"},
		DefaultValue: "individual",
		Aliases:      []string{"tipo cliente", "tipo de cliente", "tipo", "type"}},
	{Key: "taxId", Label: "Tax ID", Type: importer.FieldString,
		Aliases:     []string{"rif", "cedula", "ci", "nit", "ruc", "cuit", "rfc", "documento", "identificacion"},
		Description: "Existing customers are matched on it, then on email.", Example: "J-40123456-7"},
	{Key: "email", Label: "Email", Type: importer.FieldString,
		Aliases: []string{"correo", "correo electronico", "e-mail", "mail"}},
	{Key: "phone", Label: "Phone", Type: importer.FieldString,
		Aliases: []string{"telefono", "telefonos", "tel", "celular", "movil", "phone number", "whatsapp"}},
	{Key: "address", Label: "Address", Type: importer.FieldString,
		Aliases: []string{"direccion", "domicilio"}},
	{Key: "city", Label: "City", Type: importer.FieldString,
		Aliases: []string{"ciudad", "municipio"}},
	{Key: "state", Label: "State", Type: importer.FieldString,
		Aliases: []string{"estado", "provincia", "region"}},
	{Key: "creditLimit", Label: "Credit limit", Type: importer.FieldNumber, Money: true,
		Aliases: []string{"limite de credito", "limite credito", "credito"}},
	{Key: "notes", Label: "Notes", Type: importer.FieldString,
		Aliases: []string{"notas", "observaciones", "comentarios"}},
	{Key: "tags", Label: "Tags", Type: importer.FieldArray, ArraySeparator: ",",
		Aliases: []string{"etiquetas", "segmento"}},
}

var customerExamples = [][]string{
	{"Inversiones La Ceiba C.A.", "business", "J-40123456-7", "compras@laceiba.com", "0212-5551234", "Av. Principal, Local 3", "Caracas", "Distrito Capital", "1.500,00", "", "mayorista"},
	{"María Pérez", "individual", "V-12345678", "maria.perez@mail.com", "0414-5550000", "", "Valencia", "Carabobo", "", "Paga de contado", ""},
}

// CustomerHandler imports customers, matched on tax ID and then on email.
type CustomerHandler struct {
	base
	tenants   TenantStore
	customers CustomerStore
}

func NewCustomerHandler(stores Stores, logger zerolog.Logger) *CustomerHandler {
	return &CustomerHandler{
		base:      newBase(importer.EntityCustomers, customerFields, customerExamples, logger),
		tenants:   stores.Tenants,
		customers: stores.Customers,
	}
}

func (h *CustomerHandler) ValidateRow(ctx context.Context, row importer.MappedRow, ictx importer.Context) (importer.ValidatedRow, error) {
	vr := importer.ValidateFields(h.defs, row)
	if vr.Status == importer.RowSkipped {
		return vr, nil
	}
	checkEmail(&vr, "email")
	nonNegative(&vr, "creditLimit", "credit limit")
	if vr.String("taxId") == "" && vr.String("email") == "" {
		vr.AddWarning("taxId", "no tax ID or email, the customer cannot be matched on later imports")
	}

	if ictx.Options.UpdateExisting {
		existing, err := h.find(ctx, ictx.TenantID, vr)
		if err != nil {
			return vr, err
		}
		if existing != nil {
			vr.ExistingRecordID = existing.ID
		}
	}
	vr.Finalize()
	return vr, nil
}

func (h *CustomerHandler) find(ctx context.Context, tenantID string, row importer.ValidatedRow) (*models.Customer, error) {
	if taxID := row.String("taxId"); taxID != "" {
		c, err := h.customers.FindByTaxID(ctx, tenantID, taxID)
		if err != nil || c != nil {
			return c, errors.Wrap(err, "find customer by tax id")
		}
	}
	if email := row.String("email"); email != "" {
		c, err := h.customers.FindByEmail(ctx, tenantID, email)
		return c, errors.Wrap(err, "find customer by email")
	}
	return nil, nil
}

func (h *CustomerHandler) PreValidateBatch(ctx context.Context, rows []importer.MappedRow, ictx importer.Context) (importer.PreValidation, error) {
	pv := importer.PreValidation{CanProceed: true}
	if err := requireTenant(ctx, h.tenants, ictx.TenantID, &pv); err != nil {
		return pv, err
	}
	addDuplicates(&pv, rows, "taxId", "tax ID")
	addDuplicates(&pv, rows, "email", "email")
	return pv, nil
}

func (h *CustomerHandler) ExecuteBatch(ctx context.Context, rows []importer.ValidatedRow, ictx importer.Context) (importer.BatchResult, error) {
	var res importer.BatchResult
	err := importer.ExecuteRows(ctx, rows, ictx, &res, func(row importer.ValidatedRow) {
		existing, err := h.find(ctx, ictx.TenantID, row)
		if err != nil {
			h.storeFailure(&res, row, "taxId", "look up customer", err)
			return
		}

		if existing != nil {
			if !ictx.Options.UpdateExisting {
				res.Skip(row, "taxId", fmt.Sprintf("customer %q already exists", existing.Name))
				return
			}
			next, previous := importer.Changes(row, existing.Values())
			if len(next) == 0 {
				res.Skipped++
				return
			}
			if err := h.customers.Update(ctx, ictx.TenantID, existing.ID, next); err != nil {
				h.storeFailure(&res, row, "", "update customer", err)
				return
			}
			res.Snapshot(models.UpdateSnapshot{RecordID: existing.ID, PreviousValues: previous})
			res.Updated++
			return
		}

		limit, _ := row.Float("creditLimit")
		c := &models.Customer{
			TenantID:     ictx.TenantID,
			Name:         row.String("name"),
			CustomerType: row.String("customerType"),
			TaxID:        row.String("taxId"),
			Email:        row.String("email"),
			Phone:        row.String("phone"),
			Address:      row.String("address"),
			City:         row.String("city"),
			State:        row.String("state"),
			CreditLimit:  limit,
			Notes:        row.String("notes"),
			Tags:         row.Strings("tags"),
			ImportJobID:  ictx.ImportJobID,
		}
		if err := h.customers.Create(ctx, c); err != nil {
			h.storeFailure(&res, row, "name", "create customer", err)
			return
		}
		res.Created++
	})
	return res, err
}

func (h *CustomerHandler) Rollback(ctx context.Context, importJobID, tenantID string) (importer.RollbackResult, error) {
	n, err := h.customers.DeleteByImportJob(ctx, tenantID, importJobID)
	if err != nil {
		return importer.RollbackResult{}, errors.Wrap(err, "delete imported customers")
	}
	return importer.RollbackResult{Deleted: n}, nil
}

func (h *CustomerHandler) RestoreSnapshot(ctx context.Context, tenantID string, s models.UpdateSnapshot) error {
	return errors.Wrapf(h.customers.Update(ctx, tenantID, s.RecordID, s.PreviousValues), "restore customer %s", s.RecordID)
}
