// Package services contains pure domain logic: catalog resolution, build
// profiles and rewrite rules.
package services

import (
	"regexp"
	"sort"
	"strings"

	"github.com/ochairo/pybuild/internal/domain/entities"
	domainerrors "github.com/ochairo/pybuild/internal/domain/errors"
)

// Override keys accepted by Resolve
const (
	OverrideVersion      = "version"
	OverrideBuildDir     = "build_dir"
	OverrideURLTemplate  = "url_template"
	OverrideStaticLibs   = "static_libs" // comma separated
	OverrideSHA256       = "sha256"
	OverrideSignatureURL = "signature_url_template"
)

var placeholderPattern = regexp.MustCompile(`\{([^{}]*)\}`)

// Catalog resolves product descriptors from catalog defaults.
// Resolution never touches disk.
type Catalog struct {
	products map[string]entities.Product
}

// NewCatalog creates a catalog from default product entries
func NewCatalog(products []*entities.Product) *Catalog {
	c := &Catalog{products: make(map[string]entities.Product, len(products))}
	for _, p := range products {
		if p == nil {
			continue
		}
		cp := *p
		cp.StaticLibs = append([]string(nil), p.StaticLibs...)
		cp.BuildSteps = append([]string(nil), p.BuildSteps...)
		c.products[strings.ToLower(p.Name)] = cp
	}
	return c
}

// Resolve returns the product name at version with overrides applied.
// Precedence, lowest first: catalog default, version argument, overrides.
func (c *Catalog) Resolve(name, version string, overrides map[string]string) (entities.Product, error) {
	base, ok := c.products[strings.ToLower(name)]
	if !ok {
		return entities.Product{}, domainerrors.Configurationf("unknown product %q", name)
	}

	p := base
	p.StaticLibs = append([]string(nil), base.StaticLibs...)
	p.BuildSteps = append([]string(nil), base.BuildSteps...)
	if version != "" {
		p.Version = version
	}

	for key, value := range overrides {
		switch key {
		case OverrideVersion:
			if value != "" {
				p.Version = value
			}
		case OverrideBuildDir:
			p.BuildDir = value
		case OverrideURLTemplate:
			p.URLTemplate = value
		case OverrideStaticLibs:
			p.StaticLibs = splitList(value)
		case OverrideSHA256:
			p.SHA256 = strings.ToLower(strings.TrimSpace(value))
		case OverrideSignatureURL:
			p.SignatureURLTemplate = value
		default:
			return entities.Product{}, domainerrors.Configurationf("unknown override %q for product %s", key, p.Name)
		}
	}

	if err := validateTemplate(p, p.URLTemplate); err != nil {
		return entities.Product{}, err
	}
	if err := validateTemplate(p, p.SignatureURLTemplate); err != nil {
		return entities.Product{}, err
	}
	return p, nil
}

// List returns all known products sorted by name
func (c *Catalog) List() []entities.Product {
	out := make([]entities.Product, 0, len(c.products))
	for _, p := range c.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}

func validateTemplate(p entities.Product, template string) error {
	if template == "" {
		return nil
	}
	if p.Version == "" {
		return domainerrors.Configurationf("product %s has a URL template but no version", p.Name)
	}
	for _, m := range placeholderPattern.FindAllStringSubmatch(template, -1) {
		switch m[1] {
		case "name", "version":
		default:
			return domainerrors.Configurationf("unknown template variable {%s} in %q", m[1], template)
		}
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
