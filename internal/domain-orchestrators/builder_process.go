package orchestrators

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio"

	"github.com/ochairo/pybuild/internal/domain/entities"
	"github.com/ochairo/pybuild/internal/domain/interfaces"
	"github.com/ochairo/pybuild/internal/domain/services"
)

// run carries per-node memoization for one recipe execution
type run struct {
	built      map[*Builder]bool
	downloaded map[*Builder]bool
}

func newRun() *run {
	return &run{
		built:      map[*Builder]bool{},
		downloaded: map[*Builder]bool{},
	}
}

// Postprocess strips the install tree, compacts the standard library,
// applies the rewrite steps and copies the result into support/
func (b *Builder) Postprocess(ctx context.Context) error {
	if err := b.Clean(ctx); err != nil {
		return err
	}
	if b.Profile.ZipLib {
		if err := b.ZipLib(ctx); err != nil {
			return err
		}
	}
	if err := b.Relink(ctx); err != nil {
		return err
	}
	return b.CopySupport(ctx)
}

// Clean runs the strip pass. Missing paths are skipped; a failed removal is
// logged and the pass continues.
func (b *Builder) Clean(ctx context.Context) error {
	if b.Profile.Clean == entities.CleanNone {
		return nil
	}
	logger := b.log("clean")
	var targets []string

	// bytecode and test suites
	targets = append(targets, collect(b.Prefix(), func(d fs.DirEntry) bool {
		name := d.Name()
		if d.IsDir() {
			return name == "__pycache__"
		}
		return strings.HasSuffix(name, ".pyc") || strings.HasSuffix(name, ".pyo")
	})...)
	targets = append(targets, collect(b.PythonLib(), func(d fs.DirEntry) bool {
		return d.IsDir() && (d.Name() == "test" || d.Name() == "tests")
	})...)

	if b.Profile.Clean == entities.CleanFull {
		targets = append(targets,
			filepath.Join(b.PythonLib(), "site-packages"),
			filepath.Join(b.PrefixLib(), "pkgconfig"),
			filepath.Join(b.Prefix(), "share"),
		)
		exes, _ := filepath.Glob(filepath.Join(b.PythonLib(), "distutils", "command", "*.exe"))
		targets = append(targets, exes...)

		for _, name := range b.Profile.StripPackages {
			targets = append(targets, filepath.Join(b.PythonLib(), b.Product.Expand(name)))
		}
		for _, name := range b.Profile.StripExtensions {
			ext := fmt.Sprintf("%s.cpython-%s-darwin.so", name, b.Product.VerNoDot())
			targets = append(targets, filepath.Join(b.PythonLib(), "lib-dynload", ext))
		}
		for _, name := range b.Profile.StripBinaries {
			targets = append(targets, filepath.Join(b.PrefixBin(), b.Product.Expand(name)))
		}
	}
	for _, pattern := range b.Profile.StripGlobs {
		matches, err := filepath.Glob(filepath.Join(b.PrefixLib(), pattern))
		if err != nil {
			logger.Warn("Invalid strip pattern", interfaces.F("pattern", pattern), interfaces.F("error", err))
			continue
		}
		targets = append(targets, matches...)
	}

	removed := 0
	for _, target := range targets {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := os.Lstat(target); err != nil {
			continue
		}
		if err := b.tools.Shell.Remove(target); err != nil {
			logger.Warn("Failed to strip", interfaces.F("path", target), interfaces.F("error", err))
			continue
		}
		removed++
	}
	logger.Info("Strip complete", interfaces.F("removed", removed))
	return nil
}

// collect walks root and returns the paths accepted by match.
// Matched directories are not descended into.
func collect(root string, match func(d fs.DirEntry) bool) []string {
	var out []string
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if path == root {
			return nil
		}
		if match(d) {
			out = append(out, path)
			if d.IsDir() {
				return filepath.SkipDir
			}
		}
		return nil
	})
	return out
}

// ZipLib compacts lib/pythonX.Y into lib/pythonXY.zip and checks the result.
// An existing archive is never rebuilt; only the loose layout is checked.
func (b *Builder) ZipLib(ctx context.Context) error {
	packager := b.tools.Packager
	if exists(b.ZipLibPath()) {
		// a later strip pass removes the empty site-packages
		if err := os.MkdirAll(filepath.Join(b.PythonLib(), "site-packages"), 0o755); err != nil {
			return fmt.Errorf("failed to recreate site-packages: %w", err)
		}
		b.log("ziplib").Info("Standard library already compacted", interfaces.F("archive", b.ZipLibPath()))
		return packager.CheckZipLib(b.PythonLib(), b.ZipLibPath())
	}
	if _, err := packager.CompactStdlib(ctx, b.PythonLib(), b.ZipLibPath()); err != nil {
		return err
	}
	return packager.CheckZipLib(b.PythonLib(), b.ZipLibPath())
}

// Relink applies the profile's rewrite steps
func (b *Builder) Relink(ctx context.Context) error {
	if len(b.Profile.Rewrites) == 0 {
		return nil
	}
	if b.tools.Relinker == nil {
		return fmt.Errorf("profile %s needs a relinker", b.Profile.Name)
	}
	logger := b.log("relink")
	for _, step := range b.Profile.Rewrites {
		target := filepath.Join(b.Prefix(), b.Product.Expand(step.Target))
		name := b.Product.NameVer()
		if step.Name != "" {
			name = b.Product.Expand(step.Name)
		}
		count, err := b.tools.Relinker.Relink(ctx, target, RelinkOptions{
			Profile:           step.Rule,
			Vars:              services.RewriteVars{Name: name, Framework: services.FrameworkPath(b.Product)},
			DependentOverride: step.DependentOverride,
		})
		if err != nil {
			return err
		}
		logger.Info("Relinked", interfaces.F("binary", target), interfaces.F("rule", step.Rule), interfaces.F("rewritten", count))
	}
	return nil
}

// CopySupport copies the install tree into support/ for package deployments
func (b *Builder) CopySupport(_ context.Context) error {
	if b.Profile.SupportTarget == "" {
		return nil
	}
	src := b.Prefix()
	if b.Profile.Framework {
		src = b.frameworkRoot()
	}
	dst := filepath.Join(b.Layout.Support, b.Product.Expand(b.Profile.SupportTarget))
	if err := b.tools.Shell.Remove(dst); err != nil {
		return err
	}
	if err := b.tools.Shell.Copy(src, dst); err != nil {
		return err
	}
	b.log("support").Info("Copied to support", interfaces.F("from", src), interfaces.F("to", dst))
	return nil
}

func writeFileAtomic(src, dst string) error {
	//nolint:gosec // G304: src is a file under the patch directory
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", src, err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := renameio.WriteFile(dst, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", dst, err)
	}
	return nil
}
