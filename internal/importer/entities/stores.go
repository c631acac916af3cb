// Package entities implements the import handlers for each supported record kind.
package entities

import (
	"context"

	"github.com/smartkubik/import-api/internal/models"
)

// Lookups return (nil, nil) when nothing matches. Update receives field keys as produced by
// the record's Values method. DeleteByImportJob only touches rows of the given tenant.

type TenantStore interface {
	Get(ctx context.Context, tenantID string) (*models.Tenant, error)
	IncrementProductCount(ctx context.Context, tenantID string, delta int) error
}

type ProductStore interface {
	FindBySKU(ctx context.Context, tenantID, sku string) (*models.Product, error)
	CountExistingSKUs(ctx context.Context, tenantID string, skus []string) (int, error)
	Create(ctx context.Context, p *models.Product) error
	Update(ctx context.Context, tenantID, id string, fields map[string]interface{}) error
	DeleteByImportJob(ctx context.Context, tenantID, importJobID string) (int, error)
	RenameCategory(ctx context.Context, tenantID, from, to string) (int, error)
}

type InventoryStore interface {
	FindByProduct(ctx context.Context, tenantID, productID string) (*models.InventoryRecord, error)
	Create(ctx context.Context, r *models.InventoryRecord) error
	Update(ctx context.Context, tenantID, id string, fields map[string]interface{}) error
	DeleteByImportJob(ctx context.Context, tenantID, importJobID string) (int, error)
}

type CustomerStore interface {
	FindByTaxID(ctx context.Context, tenantID, taxID string) (*models.Customer, error)
	FindByEmail(ctx context.Context, tenantID, email string) (*models.Customer, error)
	Create(ctx context.Context, c *models.Customer) error
	Update(ctx context.Context, tenantID, id string, fields map[string]interface{}) error
	DeleteByImportJob(ctx context.Context, tenantID, importJobID string) (int, error)
}

type SupplierStore interface {
	FindByTaxID(ctx context.Context, tenantID, taxID string) (*models.Supplier, error)
	Create(ctx context.Context, s *models.Supplier) error
	Update(ctx context.Context, tenantID, id string, fields map[string]interface{}) error
	DeleteByImportJob(ctx context.Context, tenantID, importJobID string) (int, error)
}

type CategoryStore interface {
	FindByName(ctx context.Context, tenantID, name string) (*models.Category, error)
	Get(ctx context.Context, tenantID, id string) (*models.Category, error)
	Create(ctx context.Context, c *models.Category) error
	Update(ctx context.Context, tenantID, id string, fields map[string]interface{}) error
	RenameParent(ctx context.Context, tenantID, from, to string) (int, error)
	DeleteByImportJob(ctx context.Context, tenantID, importJobID string) (int, error)
}

// Stores bundles every persistence dependency of the handlers.
type Stores struct {
	Tenants    TenantStore
	Products   ProductStore
	Inventory  InventoryStore
	Customers  CustomerStore
	Suppliers  SupplierStore
	Categories CategoryStore
}
