// Package repositories defines interfaces for data access layers.
package repositories

import (
	"context"

	"github.com/ochairo/pybuild/internal/domain/entities"
)

// CatalogRepository provides the default product descriptors
type CatalogRepository interface {
	// GetProduct retrieves the catalog entry for a product name
	GetProduct(ctx context.Context, name string) (*entities.Product, error)

	// ListProducts returns all catalog entries sorted by name
	ListProducts(ctx context.Context) ([]*entities.Product, error)
}
