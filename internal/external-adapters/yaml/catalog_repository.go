package yaml

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ochairo/pybuild/internal/domain/entities"
	"github.com/ochairo/pybuild/internal/domain/interfaces/repositories"
)

//go:embed catalog.yml
var defaultCatalog []byte

// CatalogRepository implements repositories.CatalogRepository from the
// embedded catalog plus an optional directory of <name>.yml overrides
type CatalogRepository struct {
	catalogDir string
	parser     *CatalogParser
	defaults   map[string]*entities.Product
}

var _ repositories.CatalogRepository = (*CatalogRepository)(nil)

// NewCatalogRepository creates a catalog repository. An empty catalogDir
// serves the embedded catalog only.
func NewCatalogRepository(catalogDir string) (*CatalogRepository, error) {
	parser := NewCatalogParser()
	products, err := parser.ParseCatalog(defaultCatalog)
	if err != nil {
		return nil, fmt.Errorf("failed to parse embedded catalog: %w", err)
	}

	defaults := make(map[string]*entities.Product, len(products))
	for _, p := range products {
		defaults[productKey(p.Name)] = p
	}
	return &CatalogRepository{
		catalogDir: catalogDir,
		parser:     parser,
		defaults:   defaults,
	}, nil
}

// GetProduct retrieves the catalog entry for a product name
func (r *CatalogRepository) GetProduct(_ context.Context, name string) (*entities.Product, error) {
	key := productKey(name)
	base, ok := r.defaults[key]

	override, err := r.readOverride(key)
	if err != nil {
		return nil, err
	}
	switch {
	case override != nil && ok:
		return mergeProduct(base, override), nil
	case override != nil:
		return override, nil
	case ok:
		cp := *base
		return &cp, nil
	}
	return nil, fmt.Errorf("product not found: %s", name)
}

// ListProducts returns all catalog entries sorted by name
func (r *CatalogRepository) ListProducts(ctx context.Context) ([]*entities.Product, error) {
	keys := make(map[string]bool, len(r.defaults))
	for key := range r.defaults {
		keys[key] = true
	}

	if r.catalogDir != "" {
		entries, err := os.ReadDir(r.catalogDir)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read catalog directory: %w", err)
		}
		for _, entry := range entries {
			// Skip non-YAML files
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yml") {
				continue
			}
			keys[productKey(strings.TrimSuffix(entry.Name(), ".yml"))] = true
		}
	}

	products := make([]*entities.Product, 0, len(keys))
	for key := range keys {
		p, err := r.GetProduct(ctx, key)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool {
		return productKey(products[i].Name) < productKey(products[j].Name)
	})
	return products, nil
}

// readOverride parses <catalogDir>/<key>.yml; a missing file yields nil
func (r *CatalogRepository) readOverride(key string) (*entities.Product, error) {
	if r.catalogDir == "" {
		return nil, nil
	}
	filePath := filepath.Join(r.catalogDir, key+".yml")
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil, nil
	}
	p, err := r.parser.ParseFile(filePath)
	if err != nil {
		return nil, err
	}
	if productKey(p.Name) != key {
		return nil, fmt.Errorf("%s describes product %q", filePath, p.Name)
	}
	return p, nil
}

// mergeProduct returns base with every field set in override replaced
func mergeProduct(base, override *entities.Product) *entities.Product {
	out := *base
	out.Name = override.Name
	if override.Version != "" {
		out.Version = override.Version
	}
	if override.BuildDir != "" {
		out.BuildDir = override.BuildDir
	}
	if override.URLTemplate != "" {
		out.URLTemplate = override.URLTemplate
	}
	if override.StaticLibs != nil {
		out.StaticLibs = override.StaticLibs
	}
	if override.BuildSteps != nil {
		out.BuildSteps = override.BuildSteps
	}
	if override.SHA256 != "" {
		out.SHA256 = override.SHA256
	}
	if override.SignatureURLTemplate != "" {
		out.SignatureURLTemplate = override.SignatureURLTemplate
	}
	return &out
}

func productKey(name string) string {
	return strings.ToLower(name)
}
