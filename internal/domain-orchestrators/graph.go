package orchestrators

import (
	domainerrors "github.com/ochairo/pybuild/internal/domain/errors"
)

// CheckCycles walks the dependency graph below roots depth first and
// reports the first builder reached again while still being visited.
func CheckCycles(roots []*Builder) error {
	permanent := make(map[*Builder]bool)
	temporary := make(map[*Builder]bool)

	var visit func(b *Builder) error
	visit = func(b *Builder) error {
		if permanent[b] {
			return nil
		}
		if temporary[b] {
			return domainerrors.Configurationf("cycle detected involving builder '%s'", b)
		}
		temporary[b] = true
		for _, dep := range b.DependsOn {
			if err := visit(dep); err != nil {
				return err
			}
		}
		delete(temporary, b)
		permanent[b] = true
		return nil
	}

	for _, root := range roots {
		if err := visit(root); err != nil {
			return err
		}
	}
	return nil
}

// TopologicalOrder returns every builder below roots with dependencies first
func TopologicalOrder(roots []*Builder) ([]*Builder, error) {
	if err := CheckCycles(roots); err != nil {
		return nil, err
	}
	seen := make(map[*Builder]bool)
	var order []*Builder
	var visit func(b *Builder)
	visit = func(b *Builder) {
		if seen[b] {
			return
		}
		seen[b] = true
		for _, dep := range b.DependsOn {
			visit(dep)
		}
		order = append(order, b)
	}
	for _, root := range roots {
		visit(root)
	}
	return order, nil
}
