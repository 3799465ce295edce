package gateways

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/renameio"
	"github.com/klauspost/compress/zip"

	"github.com/ochairo/pybuild/internal/domain/entities"
	domainerrors "github.com/ochairo/pybuild/internal/domain/errors"
	"github.com/ochairo/pybuild/internal/domain/interfaces"
)

// Entries of lib/pythonX.Y that stay loose after compaction
const (
	libDynload   = "lib-dynload"
	osModule     = "os.py"
	sitePackages = "site-packages"
)

// Packager compacts an installed standard library into a zip archive
type Packager struct {
	logger interfaces.Logger
}

// NewPackager creates a new packager
func NewPackager(logger interfaces.Logger) *Packager {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &Packager{logger: logger}
}

// CompactStdlib zips pythonLib into zipPath. Afterwards pythonLib holds only
// lib-dynload, os.py and an empty site-packages.
func (p *Packager) CompactStdlib(ctx context.Context, pythonLib, zipPath string) (*entities.Artifact, error) {
	if _, err := os.Stat(filepath.Join(pythonLib, osModule)); err != nil {
		return nil, fmt.Errorf("no standard library to compact in %s: %w", pythonLib, err)
	}
	if err := os.RemoveAll(filepath.Join(pythonLib, sitePackages)); err != nil {
		return nil, fmt.Errorf("failed to remove site-packages: %w", err)
	}

	count, err := p.writeZip(ctx, pythonLib, zipPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", filepath.Base(zipPath), err)
	}

	entries, err := os.ReadDir(pythonLib)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", pythonLib, err)
	}
	for _, entry := range entries {
		if entry.Name() == libDynload || entry.Name() == osModule {
			continue
		}
		if err := os.RemoveAll(filepath.Join(pythonLib, entry.Name())); err != nil {
			return nil, fmt.Errorf("failed to remove %s: %w", entry.Name(), err)
		}
	}
	if err := os.MkdirAll(filepath.Join(pythonLib, sitePackages), 0o755); err != nil {
		return nil, fmt.Errorf("failed to recreate site-packages: %w", err)
	}

	p.logger.Info("Compacted standard library",
		interfaces.F("archive", zipPath), interfaces.F("files", count))
	return &entities.Artifact{
		Name: filepath.Base(zipPath),
		Path: zipPath,
		Type: "stdlib-zip",
	}, nil
}

// writeZip archives everything under root except lib-dynload
func (p *Packager) writeZip(ctx context.Context, root, zipPath string) (int, error) {
	out, err := renameio.TempFile("", zipPath)
	if err != nil {
		return 0, err
	}
	//nolint:errcheck // Cleanup is a no-op after a successful replace
	defer out.Cleanup()

	zw := zip.NewWriter(out)
	count := 0
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if rel == libDynload && d.IsDir() {
			return filepath.SkipDir
		}
		if !d.IsDir() && !d.Type().IsRegular() {
			p.logger.Debug("Skipping non-regular file", interfaces.F("path", rel))
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		header, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(rel)
		if d.IsDir() {
			header.Name += "/"
			_, err = zw.CreateHeader(header)
			return err
		}
		header.Method = zip.Deflate

		w, err := zw.CreateHeader(header)
		if err != nil {
			return err
		}
		//nolint:gosec // G304: path comes from walking the install prefix
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		//nolint:errcheck // Defer close on read-only file
		defer f.Close()
		if _, err := io.Copy(w, f); err != nil {
			return err
		}
		count++
		return nil
	})
	if err != nil {
		_ = zw.Close()
		return 0, err
	}
	if err := zw.Close(); err != nil {
		return 0, err
	}
	return count, out.CloseAtomicallyReplace()
}

// CheckZipLib verifies the layout left by CompactStdlib
func (p *Packager) CheckZipLib(pythonLib, zipPath string) error {
	if _, err := os.Stat(zipPath); err != nil {
		return domainerrors.Invariantf("stdlib archive %s is missing", zipPath)
	}

	entries, err := os.ReadDir(pythonLib)
	if err != nil {
		return domainerrors.Invariantf("standard library directory %s is unreadable: %v", pythonLib, err)
	}
	var unexpected []string
	hasSitePackages, hasOS := false, false
	for _, entry := range entries {
		switch entry.Name() {
		case libDynload:
		case osModule:
			hasOS = true
		case sitePackages:
			hasSitePackages = true
		default:
			unexpected = append(unexpected, entry.Name())
		}
	}
	if len(unexpected) > 0 {
		sort.Strings(unexpected)
		return domainerrors.Invariantf("unexpected entries left in %s: %v", pythonLib, unexpected)
	}
	if !hasOS {
		return domainerrors.Invariantf("%s must remain loose in %s", osModule, pythonLib)
	}
	if !hasSitePackages {
		return domainerrors.Invariantf("%s is missing from %s", sitePackages, pythonLib)
	}
	site, err := os.ReadDir(filepath.Join(pythonLib, sitePackages))
	if err != nil || len(site) > 0 {
		return domainerrors.Invariantf("%s must be an empty directory", sitePackages)
	}
	return nil
}
