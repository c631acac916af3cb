package repository

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/smartkubik/import-api/internal/models"
)

type SupplierRepository interface {
	FindByTaxID(ctx context.Context, tenantID, taxID string) (*models.Supplier, error)
	Create(ctx context.Context, s *models.Supplier) error
	Update(ctx context.Context, tenantID, id string, fields map[string]interface{}) error
	DeleteByImportJob(ctx context.Context, tenantID, importJobID string) (int, error)
}

type supplierRepository struct {
	db *sql.DB
}

func NewSupplierRepository(db *sql.DB) SupplierRepository {
	return &supplierRepository{db: db}
}

var supplierColumns = updatable{
	"name":             {"name", kindText},
	"contactName":      {"contact_name", kindText},
	"email":            {"email", kindText},
	"phone":            {"phone", kindText},
	"address":          {"address", kindText},
	"paymentTermsDays": {"payment_terms_days", kindInt},
	"notes":            {"notes", kindText},
}

func (r *supplierRepository) FindByTaxID(ctx context.Context, tenantID, taxID string) (*models.Supplier, error) {
	const query = `
		SELECT id, tenant_id, name, tax_id, contact_name, email, phone, address, payment_terms_days, notes,
			COALESCE(customer_id::text, ''), COALESCE(import_job_id, ''), created_at, updated_at
		FROM tenant.suppliers
		WHERE tenant_id = $1 AND upper(tax_id) = upper($2)
		LIMIT 1`
	var s models.Supplier
	err := r.db.QueryRowContext(ctx, query, tenantID, taxID).Scan(
		&s.ID, &s.TenantID, &s.Name, &s.TaxID, &s.ContactName, &s.Email, &s.Phone, &s.Address, &s.PaymentTermsDays, &s.Notes,
		&s.CustomerID, &s.ImportJobID, &s.CreatedAt, &s.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select supplier")
	}
	return &s, nil
}

func (r *supplierRepository) Create(ctx context.Context, s *models.Supplier) error {
	const query = `
		INSERT INTO tenant.suppliers (tenant_id, name, tax_id, contact_name, email, phone, address,
			payment_terms_days, notes, customer_id, import_job_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, '')::uuid, NULLIF($11, ''))
		RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		s.TenantID, s.Name, s.TaxID, s.ContactName, s.Email, s.Phone, s.Address,
		s.PaymentTermsDays, s.Notes, s.CustomerID, s.ImportJobID,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	return errors.Wrap(err, "insert supplier")
}

func (r *supplierRepository) Update(ctx context.Context, tenantID, id string, fields map[string]interface{}) error {
	query, args, err := supplierColumns.buildUpdate("tenant.suppliers", tenantID, id, fields)
	if err != nil {
		return err
	}
	return updateRecord(ctx, r.db, "supplier", id, query, args)
}

func (r *supplierRepository) DeleteByImportJob(ctx context.Context, tenantID, importJobID string) (int, error) {
	return deleteByImportJob(ctx, r.db, "tenant.suppliers", tenantID, importJobID)
}
