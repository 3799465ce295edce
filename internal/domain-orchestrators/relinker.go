package orchestrators

import (
	"context"
	"os"

	"github.com/ochairo/pybuild/internal/domain/entities"
	domainerrors "github.com/ochairo/pybuild/internal/domain/errors"
	"github.com/ochairo/pybuild/internal/domain/interfaces"
	"github.com/ochairo/pybuild/internal/domain/interfaces/gateways"
	"github.com/ochairo/pybuild/internal/domain/services"
)

// RelinkOptions selects how matched references of one binary are rewritten
type RelinkOptions struct {
	Profile entities.RewriteProfile
	Vars    services.RewriteVars

	// DependentOverride replaces the dependent template when set
	DependentOverride string
}

// Relinker analyzes binaries and redirects toolchain references to
// relocatable paths
type Relinker struct {
	inspector  gateways.BinaryInspector
	patcher    gateways.BinaryPatcher
	classifier *services.Classifier
	logger     interfaces.Logger
}

// NewRelinker creates a relinker
func NewRelinker(inspector gateways.BinaryInspector, patcher gateways.BinaryPatcher, classifier *services.Classifier, logger interfaces.Logger) *Relinker {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &Relinker{
		inspector:  inspector,
		patcher:    patcher,
		classifier: classifier,
		logger:     logger,
	}
}

// Analyze lists the references of path and classifies them.
// A missing or unreadable binary is a DEPENDENCY_NOT_FOUND error.
func (r *Relinker) Analyze(ctx context.Context, path string) (entities.BinaryDependencyRecord, error) {
	if _, err := os.Stat(path); err != nil {
		return entities.BinaryDependencyRecord{}, domainerrors.DependencyNotFound(path, err)
	}
	linkage, err := r.inspector.Inspect(ctx, path)
	if err != nil {
		return entities.BinaryDependencyRecord{}, domainerrors.DependencyNotFound(path, err)
	}
	return r.classifier.Classify(path, linkage.SelfID, linkage.References), nil
}

// Rewrite patches every matched entry of rec and returns how many were changed.
// A record without matches is logged as a warning and yields zero.
func (r *Relinker) Rewrite(ctx context.Context, rec entities.BinaryDependencyRecord, opts RelinkOptions) (int, error) {
	if rec.MatchedCount() == 0 {
		warning := domainerrors.NoReferencesMatched(rec.BinaryPath)
		r.logger.Warn("Nothing to relink",
			interfaces.F("binary", rec.BinaryPath),
			interfaces.F("code", string(warning.Code)),
			interfaces.F("prefixes", r.classifier.Prefixes()))
		return 0, nil
	}

	if err := ensureWritable(rec.BinaryPath); err != nil {
		return 0, err
	}

	count := 0
	if rec.SelfIDMatched {
		newID, err := services.RewriteTarget(opts.Profile, services.RoleSelf, rec.SelfID, opts.Vars)
		if err != nil {
			return count, err
		}
		if err := r.patcher.SetID(ctx, rec.BinaryPath, newID); err != nil {
			return count, err
		}
		r.logger.Debug("Rewrote install name",
			interfaces.F("binary", rec.BinaryPath), interfaces.F("from", rec.SelfID), interfaces.F("to", newID))
		count++
	}

	for _, ref := range rec.MatchedReferences() {
		newRef := opts.DependentOverride
		if newRef == "" {
			var err error
			newRef, err = services.RewriteTarget(opts.Profile, services.RoleDependent, ref, opts.Vars)
			if err != nil {
				return count, err
			}
		}
		if err := r.patcher.Change(ctx, rec.BinaryPath, ref, newRef); err != nil {
			return count, err
		}
		r.logger.Debug("Rewrote reference",
			interfaces.F("binary", rec.BinaryPath), interfaces.F("from", ref), interfaces.F("to", newRef))
		count++
	}
	return count, nil
}

// Relink analyzes path and rewrites its matched references
func (r *Relinker) Relink(ctx context.Context, path string, opts RelinkOptions) (int, error) {
	rec, err := r.Analyze(ctx, path)
	if err != nil {
		return 0, err
	}
	return r.Rewrite(ctx, rec, opts)
}

// ensureWritable adds owner write permission; make installs dylibs read-only
func ensureWritable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return domainerrors.DependencyNotFound(path, err)
	}
	if info.Mode().Perm()&0o200 != 0 {
		return nil
	}
	return os.Chmod(path, info.Mode().Perm()|0o200)
}
