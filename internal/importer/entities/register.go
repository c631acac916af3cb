package entities

import (
	"github.com/rs/zerolog"

	"github.com/smartkubik/import-api/internal/importer"
)

// NewRegistry builds a registry with every entity handler wired to the given stores.
func NewRegistry(stores Stores, logger zerolog.Logger) (*importer.Registry, error) {
	return importer.NewRegistry(
		NewProductHandler(stores, logger),
		NewCustomerHandler(stores, logger),
		NewSupplierHandler(stores, logger),
		NewInventoryHandler(stores, logger),
		NewCategoryHandler(stores, logger),
	)
}
