// Package orchestrators coordinates complex workflows across multiple domain services.
package orchestrators

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/ochairo/pybuild/internal/domain/entities"
	domainerrors "github.com/ochairo/pybuild/internal/domain/errors"
	"github.com/ochairo/pybuild/internal/domain/interfaces"
	"github.com/ochairo/pybuild/internal/domain/interfaces/gateways"
	"github.com/ochairo/pybuild/internal/domain/services"
)

// Packager compacts the installed standard library
type Packager interface {
	CompactStdlib(ctx context.Context, pythonLib, zipPath string) (*entities.Artifact, error)
	CheckZipLib(pythonLib, zipPath string) error
}

// Tools are the collaborators shared by every builder of a run
type Tools struct {
	Shell    gateways.ShellExecutor
	Fetcher  gateways.ArchiveFetcher
	Packager Packager
	Relinker *Relinker
	Logger   interfaces.Logger

	// Verify enables digest and signature checks of fresh downloads
	Verify bool
}

// Builder knows how to produce one product for one profile.
// A recipe run assumes exclusive ownership of the build prefix; builders are
// not safe for concurrent use.
type Builder struct {
	Product   entities.Product
	Profile   entities.Profile
	Settings  entities.Settings
	Layout    entities.Layout
	DependsOn []*Builder

	tools *Tools
}

// NewBuilder creates a builder node
func NewBuilder(product entities.Product, profile entities.Profile, settings entities.Settings, layout entities.Layout, tools *Tools, deps ...*Builder) *Builder {
	if tools.Logger == nil {
		tools.Logger = &interfaces.NoOpLogger{}
	}
	return &Builder{
		Product:   product,
		Profile:   profile,
		Settings:  settings,
		Layout:    layout,
		DependsOn: deps,
		tools:     tools,
	}
}

func (b *Builder) String() string {
	if b.isDependency() {
		return b.Product.NameVersion()
	}
	return b.Product.NameVersion() + " (" + b.Profile.Name + ")"
}

func (b *Builder) isDependency() bool {
	return b.Profile.Name == services.DependencyProfileName
}

func (b *Builder) log(phase string) interfaces.Logger {
	return &fieldLogger{
		base:   b.tools.Logger,
		fields: []interfaces.Field{interfaces.F("builder", b.String()), interfaces.F("phase", phase)},
	}
}

// Prefix is the install destination of the product
func (b *Builder) Prefix() string {
	if b.Profile.Framework {
		return filepath.Join(b.frameworkRoot(), "Versions", b.Product.Ver())
	}
	dir := b.Product.BuildDir
	if dir == "" {
		dir = b.Profile.BuildDir
	}
	if dir == "" {
		dir = strings.ToLower(b.Product.Name)
	}
	return filepath.Join(b.Layout.Lib(), dir)
}

func (b *Builder) frameworkRoot() string {
	return filepath.Join(b.Layout.Lib(), "Python.framework")
}

// PrefixLib returns <prefix>/lib
func (b *Builder) PrefixLib() string {
	return filepath.Join(b.Prefix(), "lib")
}

// PrefixBin returns <prefix>/bin
func (b *Builder) PrefixBin() string {
	return filepath.Join(b.Prefix(), "bin")
}

// PythonLib returns <prefix>/lib/python3.9
func (b *Builder) PythonLib() string {
	return filepath.Join(b.PrefixLib(), b.Product.NameVer())
}

// ZipLibPath returns <prefix>/lib/python39.zip
func (b *Builder) ZipLibPath() string {
	return filepath.Join(b.PrefixLib(), "python"+b.Product.VerNoDot()+".zip")
}

// SrcPath returns build/src/<Name>-<version>
func (b *Builder) SrcPath() string {
	return filepath.Join(b.Layout.Src(), b.Product.NameVersion())
}

// DownloadPath returns the archive location, or "" when the product has no URL
func (b *Builder) DownloadPath() string {
	if b.Product.URL() == "" {
		return ""
	}
	return filepath.Join(b.Layout.Downloads(), b.Product.ArchiveName())
}

// ProductExists reports whether the product is already built.
// The profile marker wins over static libraries. A product with neither
// never counts as built, so a partial prefix is always rebuilt.
func (b *Builder) ProductExists() bool {
	if b.Profile.Marker != "" {
		return exists(filepath.Join(b.Prefix(), b.Product.Expand(b.Profile.Marker)))
	}
	if len(b.Product.StaticLibs) == 0 {
		return false
	}
	for _, lib := range b.Product.StaticLibs {
		if !exists(filepath.Join(b.PrefixLib(), b.Product.Expand(lib))) {
			return false
		}
	}
	return true
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Reset removes the source checkout and the install prefix
func (b *Builder) Reset(_ context.Context) error {
	shell := b.tools.Shell
	targets := []string{b.SrcPath(), b.Prefix()}
	if b.Profile.Framework {
		targets = append(targets, b.frameworkRoot())
	}
	for _, target := range targets {
		if err := shell.Remove(target); err != nil {
			return err
		}
	}
	if exists(b.SrcPath()) || exists(b.Prefix()) {
		return domainerrors.Invariantf("reset of %s not completed", b)
	}
	b.log("reset").Info("Reset complete", interfaces.F("prefix", b.Prefix()))
	return nil
}

// Download fetches and unpacks the source archive, dependencies first
func (b *Builder) Download(ctx context.Context) error {
	return b.download(ctx, !b.Profile.SkipDependencyDownload, newRun())
}

func (b *Builder) download(ctx context.Context, recurse bool, r *run) error {
	if r.downloaded[b] {
		return nil
	}
	if recurse {
		for _, dep := range b.DependsOn {
			if err := dep.download(ctx, true, r); err != nil {
				return err
			}
		}
	}

	logger := b.log("download")
	archive := b.DownloadPath()
	if archive == "" {
		if !exists(b.SrcPath()) {
			return domainerrors.Configurationf("product %s has no URL and no source at %s", b.Product.Name, b.SrcPath())
		}
		r.downloaded[b] = true
		return nil
	}

	if !exists(archive) {
		logger.Info("Downloading", interfaces.F("url", b.Product.URL()), interfaces.F("dest", archive))
		if err := b.tools.Fetcher.Fetch(ctx, b.Product.URL(), archive); err != nil {
			return fmt.Errorf("failed to download %s: %w", b.Product.NameVersion(), err)
		}
		if !exists(archive) {
			return domainerrors.Invariantf("could not download %s", archive)
		}
		if b.tools.Verify {
			if err := b.verify(ctx, archive); err != nil {
				_ = b.tools.Shell.Remove(archive)
				return err
			}
		}
	}

	if !exists(b.SrcPath()) {
		logger.Info("Unpacking", interfaces.F("archive", archive), interfaces.F("dest", b.SrcPath()))
		if err := b.tools.Fetcher.Unpack(ctx, archive, b.Layout.Src()); err != nil {
			// a partial tree would pass the existence check on the next run
			if rmErr := b.tools.Shell.Remove(b.SrcPath()); rmErr != nil {
				logger.Error("Failed to remove partial source tree", interfaces.F("path", b.SrcPath()), interfaces.F("error", rmErr))
			}
			return fmt.Errorf("failed to unpack %s: %w", filepath.Base(archive), err)
		}
		if !exists(b.SrcPath()) {
			return domainerrors.Invariantf("%s not created by unpacking %s", b.SrcPath(), filepath.Base(archive))
		}
	}
	r.downloaded[b] = true
	return nil
}

func (b *Builder) verify(ctx context.Context, archive string) error {
	if err := b.tools.Fetcher.Verify(ctx, archive, b.Product.SHA256); err != nil {
		return domainerrors.Wrap(err, domainerrors.ErrConfiguration, "archive verification failed")
	}
	if err := b.tools.Fetcher.VerifySignature(ctx, archive, b.Product.SignatureURL()); err != nil {
		return domainerrors.Wrap(err, domainerrors.ErrConfiguration, "signature verification failed")
	}
	return nil
}

// Build compiles the product after its dependencies
func (b *Builder) Build(ctx context.Context) error {
	return b.build(ctx, newRun())
}

func (b *Builder) build(ctx context.Context, r *run) error {
	if r.built[b] {
		return nil
	}
	logger := b.log("build")
	if b.ProductExists() {
		logger.Info("Product built already")
		r.built[b] = true
		return nil
	}
	for _, dep := range b.DependsOn {
		if err := dep.build(ctx, r); err != nil {
			return err
		}
	}

	if err := b.download(ctx, false, r); err != nil {
		return err
	}

	commands, err := b.compileCommands()
	if err != nil {
		return err
	}
	err = b.tools.Shell.InDir(b.SrcPath(), func() error {
		for _, command := range commands {
			if err := b.tools.Shell.Run(ctx, command); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	logger.Info("Build complete", interfaces.F("prefix", b.Prefix()))
	r.built[b] = true
	return nil
}

// compileCommands renders the shell commands that build the product
func (b *Builder) compileCommands() ([]string, error) {
	if b.isDependency() {
		if len(b.Product.BuildSteps) == 0 {
			return nil, domainerrors.Configurationf("product %s has no build steps", b.Product.Name)
		}
		r := strings.NewReplacer(
			"{prefix}", shellquote.Join(b.Prefix()),
			"{make}", b.makeCommand(),
		)
		commands := make([]string, 0, len(b.Product.BuildSteps))
		for _, step := range b.Product.BuildSteps {
			commands = append(commands, r.Replace(step))
		}
		return commands, nil
	}

	return []string{b.configureCommand(), b.makeCommand() + " altinstall"}, nil
}

// configureCommand renders ./configure with the profile flags as --flag or --key=value
func (b *Builder) configureCommand() string {
	r := strings.NewReplacer(
		"{prefix}", b.Prefix(),
		"{build_lib}", b.Layout.Lib(),
	)
	args := []string{"./configure"}
	for _, flag := range b.Profile.ConfigureFlags {
		args = append(args, "--"+r.Replace(flag))
	}
	return shellquote.Join(args...)
}

func (b *Builder) makeCommand() string {
	if b.Settings.Jobs > 0 {
		return "make -j" + strconv.Itoa(b.Settings.Jobs)
	}
	return "make"
}

// Preprocess installs Setup.local and patches configure
func (b *Builder) Preprocess(ctx context.Context) error {
	logger := b.log("preprocess")
	patchDir := filepath.Join(b.Layout.Patch, b.Product.Ver())

	if b.Profile.SetupLocal != "" {
		src := filepath.Join(patchDir, b.Profile.SetupLocal)
		dst := filepath.Join(b.SrcPath(), "Modules", "Setup.local")
		if err := writeFileAtomic(src, dst); err != nil {
			return err
		}
		logger.Info("Wrote Setup.local", interfaces.F("from", src))
	}

	if b.Profile.Patch != "" {
		patch := filepath.Join(patchDir, b.Profile.Patch)
		command := "patch configure < " + shellquote.Join(patch)
		err := b.tools.Shell.InDir(b.SrcPath(), func() error {
			return b.tools.Shell.Run(ctx, command)
		})
		if err != nil {
			return err
		}
		logger.Info("Applied patch", interfaces.F("patch", patch))
	}
	return nil
}
