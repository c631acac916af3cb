package repository

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/smartkubik/import-api/internal/models"
)

type InventoryRepository interface {
	FindByProduct(ctx context.Context, tenantID, productID string) (*models.InventoryRecord, error)
	Create(ctx context.Context, rec *models.InventoryRecord) error
	Update(ctx context.Context, tenantID, id string, fields map[string]interface{}) error
	DeleteByImportJob(ctx context.Context, tenantID, importJobID string) (int, error)
}

type inventoryRepository struct {
	db *sql.DB
}

func NewInventoryRepository(db *sql.DB) InventoryRepository {
	return &inventoryRepository{db: db}
}

var inventoryColumns = updatable{
	"quantity":       {"quantity", kindFloat},
	"location":       {"location", kindText},
	"lotNumber":      {"lot_number", kindText},
	"expirationDate": {"expiration_date", kindTimestamp},
	"unitCost":       {"unit_cost", kindFloat},
}

func (r *inventoryRepository) FindByProduct(ctx context.Context, tenantID, productID string) (*models.InventoryRecord, error) {
	const query = `
		SELECT id, tenant_id, product_id, product_sku, quantity, location, lot_number, expiration_date,
			unit_cost, COALESCE(import_job_id, ''), created_at, updated_at
		FROM tenant.inventory
		WHERE tenant_id = $1 AND product_id = $2
		ORDER BY created_at
		LIMIT 1`
	var (
		rec models.InventoryRecord
		exp sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, tenantID, productID).Scan(
		&rec.ID, &rec.TenantID, &rec.ProductID, &rec.ProductSKU, &rec.Quantity, &rec.Location, &rec.LotNumber, &exp,
		&rec.UnitCost, &rec.ImportJobID, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select inventory")
	}
	rec.ExpirationDate = nullTime(exp)
	return &rec, nil
}

func (r *inventoryRepository) Create(ctx context.Context, rec *models.InventoryRecord) error {
	const query = `
		INSERT INTO tenant.inventory (tenant_id, product_id, product_sku, quantity, location, lot_number,
			expiration_date, unit_cost, import_job_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''))
		RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		rec.TenantID, rec.ProductID, rec.ProductSKU, rec.Quantity, rec.Location, rec.LotNumber,
		timeArg(rec.ExpirationDate), rec.UnitCost, rec.ImportJobID,
	).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
	return errors.Wrap(err, "insert inventory")
}

func (r *inventoryRepository) Update(ctx context.Context, tenantID, id string, fields map[string]interface{}) error {
	query, args, err := inventoryColumns.buildUpdate("tenant.inventory", tenantID, id, fields)
	if err != nil {
		return err
	}
	return updateRecord(ctx, r.db, "inventory", id, query, args)
}

func (r *inventoryRepository) DeleteByImportJob(ctx context.Context, tenantID, importJobID string) (int, error) {
	return deleteByImportJob(ctx, r.db, "tenant.inventory", tenantID, importJobID)
}
