package repository

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/smartkubik/import-api/internal/models"
)

type CategoryRepository interface {
	FindByName(ctx context.Context, tenantID, name string) (*models.Category, error)
	Get(ctx context.Context, tenantID, id string) (*models.Category, error)
	Create(ctx context.Context, c *models.Category) error
	Update(ctx context.Context, tenantID, id string, fields map[string]interface{}) error
	RenameParent(ctx context.Context, tenantID, from, to string) (int, error)
	DeleteByImportJob(ctx context.Context, tenantID, importJobID string) (int, error)
}

type categoryRepository struct {
	db *sql.DB
}

func NewCategoryRepository(db *sql.DB) CategoryRepository {
	return &categoryRepository{db: db}
}

var categoryColumns = updatable{
	"name":        {"name", kindText},
	"description": {"description", kindText},
	"parentName":  {"parent_name", kindText},
	"isActive":    {"is_active", kindBool},
}

const categorySelect = `
		SELECT id, tenant_id, name, description, parent_name, is_active, COALESCE(import_job_id, ''), created_at, updated_at
		FROM tenant.categories`

func (r *categoryRepository) FindByName(ctx context.Context, tenantID, name string) (*models.Category, error) {
	return r.findOne(ctx, categorySelect+` WHERE tenant_id = $1 AND lower(name) = lower($2) LIMIT 1`, tenantID, name)
}

func (r *categoryRepository) Get(ctx context.Context, tenantID, id string) (*models.Category, error) {
	return r.findOne(ctx, categorySelect+` WHERE tenant_id = $1 AND id = $2`, tenantID, id)
}

func (r *categoryRepository) findOne(ctx context.Context, query string, args ...interface{}) (*models.Category, error) {
	var c models.Category
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&c.ID, &c.TenantID, &c.Name, &c.Description, &c.ParentName, &c.IsActive, &c.ImportJobID, &c.CreatedAt, &c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select category")
	}
	return &c, nil
}

func (r *categoryRepository) Create(ctx context.Context, c *models.Category) error {
	const query = `
		INSERT INTO tenant.categories (tenant_id, name, description, parent_name, is_active, import_job_id)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))
		RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		c.TenantID, c.Name, c.Description, c.ParentName, c.IsActive, c.ImportJobID,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	return errors.Wrap(err, "insert category")
}

func (r *categoryRepository) Update(ctx context.Context, tenantID, id string, fields map[string]interface{}) error {
	query, args, err := categoryColumns.buildUpdate("tenant.categories", tenantID, id, fields)
	if err != nil {
		return err
	}
	return updateRecord(ctx, r.db, "category", id, query, args)
}

func (r *categoryRepository) RenameParent(ctx context.Context, tenantID, from, to string) (int, error) {
	const query = `
		UPDATE tenant.categories
		SET parent_name = $3, updated_at = NOW()
		WHERE tenant_id = $1 AND lower(parent_name) = lower($2)`
	res, err := r.db.ExecContext(ctx, query, tenantID, from, to)
	if err != nil {
		return 0, errors.Wrap(err, "rename parent category")
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (r *categoryRepository) DeleteByImportJob(ctx context.Context, tenantID, importJobID string) (int, error) {
	return deleteByImportJob(ctx, r.db, "tenant.categories", tenantID, importJobID)
}
