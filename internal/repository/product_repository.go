package repository

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/smartkubik/import-api/internal/importer"
	"github.com/smartkubik/import-api/internal/models"
)

type ProductRepository interface {
	FindBySKU(ctx context.Context, tenantID, sku string) (*models.Product, error)
	CountExistingSKUs(ctx context.Context, tenantID string, skus []string) (int, error)
	Create(ctx context.Context, p *models.Product) error
	Update(ctx context.Context, tenantID, id string, fields map[string]interface{}) error
	DeleteByImportJob(ctx context.Context, tenantID, importJobID string) (int, error)
	RenameCategory(ctx context.Context, tenantID, from, to string) (int, error)
}

type productRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) ProductRepository {
	return &productRepository{db: db}
}

var productColumns = updatable{
	"name":          {"name", kindText},
	"description":   {"description", kindText},
	"category":      {"category", kindText},
	"subcategory":   {"subcategory", kindText},
	"brand":         {"brand", kindText},
	"unitOfMeasure": {"unit_of_measure", kindText},
	"price":         {"price", kindFloat},
	"cost":          {"cost", kindFloat},
	"taxable":       {"taxable", kindBool},
	"barcode":       {"barcode", kindText},
	"minimumStock":  {"minimum_stock", kindFloat},
	"isActive":      {"is_active", kindBool},
	"tags":          {"tags", kindTextArray},
}

// FindBySKU matches case-insensitively and returns nil when no product has the SKU.
func (r *productRepository) FindBySKU(ctx context.Context, tenantID, sku string) (*models.Product, error) {
	const query = `
		SELECT id, tenant_id, sku, name, description, category, subcategory, brand, unit_of_measure,
			price, cost, taxable, barcode, minimum_stock, is_active, tags, COALESCE(import_job_id, ''),
			created_at, updated_at
		FROM tenant.products
		WHERE tenant_id = $1 AND upper(sku) = upper($2)
		LIMIT 1`
	var (
		p    models.Product
		tags pq.StringArray
	)
	err := r.db.QueryRowContext(ctx, query, tenantID, sku).Scan(
		&p.ID, &p.TenantID, &p.SKU, &p.Name, &p.Description, &p.Category, &p.Subcategory, &p.Brand, &p.UnitOfMeasure,
		&p.Price, &p.Cost, &p.Taxable, &p.Barcode, &p.MinimumStock, &p.IsActive, &tags, &p.ImportJobID,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select product")
	}
	p.Tags = []string(tags)
	return &p, nil
}

func (r *productRepository) CountExistingSKUs(ctx context.Context, tenantID string, skus []string) (int, error) {
	if len(skus) == 0 {
		return 0, nil
	}
	const query = `
		SELECT COUNT(DISTINCT upper(sku))
		FROM tenant.products
		WHERE tenant_id = $1 AND upper(sku) = ANY(SELECT upper(s) FROM unnest($2::text[]) AS s)`
	var n int
	if err := r.db.QueryRowContext(ctx, query, tenantID, pq.Array(skus)).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "count existing skus")
	}
	return n, nil
}

func (r *productRepository) Create(ctx context.Context, p *models.Product) error {
	const query = `
		INSERT INTO tenant.products (tenant_id, sku, name, description, category, subcategory, brand, unit_of_measure,
			price, cost, taxable, barcode, minimum_stock, is_active, tags, import_job_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NULLIF($16, ''))
		RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		p.TenantID, p.SKU, p.Name, p.Description, p.Category, p.Subcategory, p.Brand, p.UnitOfMeasure,
		p.Price, p.Cost, p.Taxable, p.Barcode, p.MinimumStock, p.IsActive, pq.Array(p.Tags), p.ImportJobID,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	return errors.Wrap(err, "insert product")
}

func (r *productRepository) Update(ctx context.Context, tenantID, id string, fields map[string]interface{}) error {
	query, args, err := productColumns.buildUpdate("tenant.products", tenantID, id, fields)
	if err != nil {
		return err
	}
	return updateRecord(ctx, r.db, "product", id, query, args)
}

func (r *productRepository) DeleteByImportJob(ctx context.Context, tenantID, importJobID string) (int, error) {
	return deleteByImportJob(ctx, r.db, "tenant.products", tenantID, importJobID)
}

func (r *productRepository) RenameCategory(ctx context.Context, tenantID, from, to string) (int, error) {
	const query = `
		UPDATE tenant.products
		SET category = $3, updated_at = NOW()
		WHERE tenant_id = $1 AND lower(category) = lower($2)`
	res, err := r.db.ExecContext(ctx, query, tenantID, from, to)
	if err != nil {
		return 0, errors.Wrap(err, "rename product category")
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// updateRecord runs a built update and reports importer.ErrRecordNotFound when no row matched.
func updateRecord(ctx context.Context, db *sql.DB, entity, id, query string, args []interface{}) error {
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.Wrapf(err, "update %s", entity)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrapf(err, "update %s", entity)
	}
	if n == 0 {
		return errors.Wrapf(importer.ErrRecordNotFound, "%s %s", entity, id)
	}
	return nil
}

func deleteByImportJob(ctx context.Context, db *sql.DB, table, tenantID, importJobID string) (int, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM `+table+` WHERE tenant_id = $1 AND import_job_id = $2`, tenantID, importJobID)
	if err != nil {
		return 0, errors.Wrapf(err, "delete from %s", table)
	}
	n, err := res.RowsAffected()
	return int(n), err
}
