package repository

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/smartkubik/import-api/internal/models"
)

type CustomerRepository interface {
	FindByTaxID(ctx context.Context, tenantID, taxID string) (*models.Customer, error)
	FindByEmail(ctx context.Context, tenantID, email string) (*models.Customer, error)
	Create(ctx context.Context, c *models.Customer) error
	Update(ctx context.Context, tenantID, id string, fields map[string]interface{}) error
	DeleteByImportJob(ctx context.Context, tenantID, importJobID string) (int, error)
}

type customerRepository struct {
	db *sql.DB
}

func NewCustomerRepository(db *sql.DB) CustomerRepository {
	return &customerRepository{db: db}
}

var customerColumns = updatable{
	"name":         {"name", kindText},
	"customerType": {"customer_type", kindText},
	"email":        {"email", kindText},
	"phone":        {"phone", kindText},
	"address":      {"address", kindText},
	"city":         {"city", kindText},
	"state":        {"state", kindText},
	"creditLimit":  {"credit_limit", kindFloat},
	"notes":        {"notes", kindText},
	"tags":         {"tags", kindTextArray},
}

const customerSelect = `
		SELECT id, tenant_id, name, customer_type, tax_id, email, phone, address, city, state,
			credit_limit, notes, tags, COALESCE(import_job_id, ''), created_at, updated_at
		FROM tenant.customers`

func (r *customerRepository) FindByTaxID(ctx context.Context, tenantID, taxID string) (*models.Customer, error) {
	return r.findOne(ctx, customerSelect+` WHERE tenant_id = $1 AND upper(tax_id) = upper($2) LIMIT 1`, tenantID, taxID)
}

func (r *customerRepository) FindByEmail(ctx context.Context, tenantID, email string) (*models.Customer, error) {
	return r.findOne(ctx, customerSelect+` WHERE tenant_id = $1 AND lower(email) = lower($2) LIMIT 1`, tenantID, email)
}

func (r *customerRepository) findOne(ctx context.Context, query string, args ...interface{}) (*models.Customer, error) {
	var (
		c    models.Customer
		tags pq.StringArray
	)
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&c.ID, &c.TenantID, &c.Name, &c.CustomerType, &c.TaxID, &c.Email, &c.Phone, &c.Address, &c.City, &c.State,
		&c.CreditLimit, &c.Notes, &tags, &c.ImportJobID, &c.CreatedAt, &c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select customer")
	}
	c.Tags = []string(tags)
	return &c, nil
}

func (r *customerRepository) Create(ctx context.Context, c *models.Customer) error {
	const query = `
		INSERT INTO tenant.customers (tenant_id, name, customer_type, tax_id, email, phone, address, city, state,
			credit_limit, notes, tags, import_job_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NULLIF($13, ''))
		RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		c.TenantID, c.Name, c.CustomerType, c.TaxID, c.Email, c.Phone, c.Address, c.City, c.State,
		c.CreditLimit, c.Notes, pq.Array(c.Tags), c.ImportJobID,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	return errors.Wrap(err, "insert customer")
}

func (r *customerRepository) Update(ctx context.Context, tenantID, id string, fields map[string]interface{}) error {
	query, args, err := customerColumns.buildUpdate("tenant.customers", tenantID, id, fields)
	if err != nil {
		return err
	}
	return updateRecord(ctx, r.db, "customer", id, query, args)
}

func (r *customerRepository) DeleteByImportJob(ctx context.Context, tenantID, importJobID string) (int, error) {
	return deleteByImportJob(ctx, r.db, "tenant.customers", tenantID, importJobID)
}
