package repository

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/smartkubik/import-api/internal/models"
)

type TenantRepository interface {
	Get(ctx context.Context, tenantID string) (*models.Tenant, error)
	IncrementProductCount(ctx context.Context, tenantID string, delta int) error
}

type tenantRepository struct {
	db *sql.DB
}

func NewTenantRepository(db *sql.DB) TenantRepository {
	return &tenantRepository{db: db}
}

// Get returns nil when the tenant does not exist.
func (r *tenantRepository) Get(ctx context.Context, tenantID string) (*models.Tenant, error) {
	const query = `
		SELECT id, name, is_active, product_count, max_products, created_at, updated_at
		FROM tenant.tenants
		WHERE id = $1`
	var t models.Tenant
	err := r.db.QueryRowContext(ctx, query, tenantID).Scan(
		&t.ID, &t.Name, &t.IsActive, &t.ProductCount, &t.MaxProducts, &t.CreatedAt, &t.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select tenant")
	}
	return &t, nil
}

// IncrementProductCount adds delta to the tenant's product counter, never going below zero.
func (r *tenantRepository) IncrementProductCount(ctx context.Context, tenantID string, delta int) error {
	const query = `
		UPDATE tenant.tenants
		SET product_count = GREATEST(product_count + $2, 0), updated_at = NOW()
		WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, tenantID, delta)
	return errors.Wrap(err, "update product count")
}
