// Package yaml provides the YAML-based product catalog parser and repository.
package yaml

import (
	"fmt"
	"os"

	"github.com/ochairo/pybuild/internal/domain/entities"
	"gopkg.in/yaml.v3"
)

// yamlProduct represents the raw YAML structure of one catalog entry
type yamlProduct struct {
	Name                 string   `yaml:"name"`
	Version              string   `yaml:"version"`
	BuildDir             string   `yaml:"build_dir"`
	URLTemplate          string   `yaml:"url_template"`
	StaticLibs           []string `yaml:"static_libs"`
	BuildSteps           []string `yaml:"build_steps"`
	SHA256               string   `yaml:"sha256"`
	SignatureURLTemplate string   `yaml:"signature_url_template"`
}

// yamlCatalog is a document listing several products
type yamlCatalog struct {
	Products []yamlProduct `yaml:"products"`
}

// CatalogParser parses YAML product descriptors
type CatalogParser struct{}

// NewCatalogParser creates a new YAML parser
func NewCatalogParser() *CatalogParser {
	return &CatalogParser{}
}

// ParseFile parses a YAML file holding a single product
func (p *CatalogParser) ParseFile(filePath string) (*entities.Product, error) {
	//nolint:gosec // G304: filePath is a product definition from the catalog directory
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filePath, err)
	}

	return p.Parse(data)
}

// Parse parses YAML bytes holding a single product
func (p *CatalogParser) Parse(data []byte) (*entities.Product, error) {
	var yp yamlProduct
	if err := yaml.Unmarshal(data, &yp); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return convertProduct(yp)
}

// ParseCatalog parses a document with a top-level products list.
// Duplicate names are rejected.
func (p *CatalogParser) ParseCatalog(data []byte) ([]*entities.Product, error) {
	var yc yamlCatalog
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	seen := make(map[string]bool, len(yc.Products))
	products := make([]*entities.Product, 0, len(yc.Products))
	for i, yp := range yc.Products {
		product, err := convertProduct(yp)
		if err != nil {
			return nil, fmt.Errorf("product %d: %w", i, err)
		}
		key := productKey(product.Name)
		if seen[key] {
			return nil, fmt.Errorf("duplicate product %q", product.Name)
		}
		seen[key] = true
		products = append(products, product)
	}
	return products, nil
}

func convertProduct(yp yamlProduct) (*entities.Product, error) {
	// Validate required fields
	if yp.Name == "" {
		return nil, fmt.Errorf("product must have a name")
	}

	return &entities.Product{
		Name:                 yp.Name,
		Version:              yp.Version,
		BuildDir:             yp.BuildDir,
		URLTemplate:          yp.URLTemplate,
		StaticLibs:           yp.StaticLibs,
		BuildSteps:           yp.BuildSteps,
		SHA256:               yp.SHA256,
		SignatureURLTemplate: yp.SignatureURLTemplate,
	}, nil
}
