package orchestrators

import (
	"sort"
	"strings"

	"github.com/ochairo/pybuild/internal/domain/entities"
	domainerrors "github.com/ochairo/pybuild/internal/domain/errors"
	"github.com/ochairo/pybuild/internal/domain/services"
)

const pythonRecipePrefix = "python-"

// dependencyProducts are the native libraries linked into the interpreter, in build order
var dependencyProducts = []string{"bzip2", "openssl", "xz"}

// RecipeFactory assembles recipes from the catalog and the profile table
type RecipeFactory struct {
	catalog   *services.Catalog
	settings  entities.Settings
	layout    entities.Layout
	tools     *Tools
	overrides map[string]map[string]string
}

// NewRecipeFactory creates a recipe factory. overrides are keyed by
// lower-case product name and passed to Catalog.Resolve.
func NewRecipeFactory(catalog *services.Catalog, settings entities.Settings, layout entities.Layout, tools *Tools, overrides map[string]map[string]string) *RecipeFactory {
	return &RecipeFactory{
		catalog:   catalog,
		settings:  settings,
		layout:    layout,
		tools:     tools,
		overrides: overrides,
	}
}

// RecipeNames returns every recipe name: one per profile, then the dependency recipes
func RecipeNames() []string {
	var names []string
	for _, profile := range services.ProfileNames() {
		names = append(names, pythonRecipePrefix+profile)
	}
	deps := append([]string(nil), dependencyProducts...)
	sort.Strings(deps)
	return append(names, deps...)
}

// NewRecipe builds the builder graph of the named recipe.
// Dependency builders are shared by every root of the recipe.
func (f *RecipeFactory) NewRecipe(name string) (*Recipe, error) {
	for _, dep := range dependencyProducts {
		if name == dep {
			b, err := f.dependency(dep)
			if err != nil {
				return nil, err
			}
			return &Recipe{Name: name, Builders: []*Builder{b}}, nil
		}
	}

	profileName, ok := strings.CutPrefix(name, pythonRecipePrefix)
	if !ok {
		return nil, domainerrors.Configurationf("unknown recipe %q", name)
	}
	profile, err := services.LookupProfile(profileName)
	if err != nil {
		return nil, domainerrors.Configurationf("unknown recipe %q", name)
	}

	var deps []*Builder
	if profile.Variant != entities.VariantVanilla {
		for _, dep := range dependencyProducts {
			b, err := f.dependency(dep)
			if err != nil {
				return nil, err
			}
			deps = append(deps, b)
		}
	}

	product, err := f.resolve("python")
	if err != nil {
		return nil, err
	}
	python := NewBuilder(product, profile, f.settings, f.layout, f.tools, deps...)
	return &Recipe{Name: name, Builders: []*Builder{python}}, nil
}

func (f *RecipeFactory) dependency(name string) (*Builder, error) {
	product, err := f.resolve(name)
	if err != nil {
		return nil, err
	}
	return NewBuilder(product, services.DependencyProfile(), f.settings, f.layout, f.tools), nil
}

func (f *RecipeFactory) resolve(name string) (entities.Product, error) {
	return f.catalog.Resolve(name, f.settings.VersionFor(name), f.overrides[name])
}
