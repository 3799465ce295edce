package main

import (
	"context"
	"fmt"
	"runtime"

	"github.com/ochairo/pybuild/internal/domain-adapters/gateways"
	orchestrators "github.com/ochairo/pybuild/internal/domain-orchestrators"
	"github.com/ochairo/pybuild/internal/domain/entities"
	ports "github.com/ochairo/pybuild/internal/domain/interfaces/gateways"
	"github.com/ochairo/pybuild/internal/domain/services"
	"github.com/ochairo/pybuild/internal/external-adapters/yaml"
)

// catalog loads the embedded product catalog merged with the configured overrides directory
func (a *app) catalog(ctx context.Context) (*services.Catalog, error) {
	repo, err := yaml.NewCatalogRepository(a.cfg.Paths.Catalog)
	if err != nil {
		return nil, err
	}
	products, err := repo.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	return services.NewCatalog(products), nil
}

func (a *app) shell(settings entities.Settings) *gateways.ShellExecutor {
	return gateways.NewShellExecutor(a.cfg.Root, settings.Env(), a.logger).WithTimeout(a.cfg.Build.ToolTimeout)
}

// fetcher wires checksum and, when a keyring is configured, signature checks
func (a *app) fetcher(ctx context.Context) (*gateways.ArchiveFetcher, error) {
	var signatures ports.SignatureVerifier
	if a.cfg.Build.Keyring != "" || a.cfg.Build.KeysURL != "" {
		gpg, err := gateways.NewGPGVerifier(ctx, a.cfg.Build.Keyring, a.cfg.Build.KeysURL)
		if err != nil {
			return nil, err
		}
		signatures = gpg
	}
	return gateways.NewArchiveFetcher(gateways.NewChecksumVerifier(), signatures, a.logger), nil
}

// relinker picks otool and install_name_tool on macOS, the pure-Go Mach-O
// reader and patcher elsewhere, unless relink.tool pins one of them
func (a *app) relinker(shell ports.ShellExecutor) *orchestrators.Relinker {
	var (
		inspector ports.BinaryInspector
		patcher   ports.BinaryPatcher
	)
	switch a.cfg.Relink.Tool {
	case "otool":
		inspector, patcher = gateways.NewOtoolInspector(shell), gateways.NewInstallNameTool(shell)
	case "macho":
		inspector, patcher = gateways.NewMachOInspector(), gateways.NewMachOPatcher()
	default:
		if runtime.GOOS == "darwin" {
			inspector, patcher = gateways.NewOtoolInspector(shell), gateways.NewInstallNameTool(shell)
		} else {
			inspector, patcher = gateways.NewMachOInspector(), gateways.NewMachOPatcher()
		}
	}
	classifier := services.NewClassifier(a.cfg.ToolchainPrefixes()...)
	return orchestrators.NewRelinker(inspector, patcher, classifier, a.logger)
}

func (a *app) tools(ctx context.Context, settings entities.Settings) (*orchestrators.Tools, error) {
	fetcher, err := a.fetcher(ctx)
	if err != nil {
		return nil, err
	}
	shell := a.shell(settings)
	return &orchestrators.Tools{
		Shell:    shell,
		Fetcher:  fetcher,
		Packager: gateways.NewPackager(a.logger),
		Relinker: a.relinker(shell),
		Logger:   a.logger,
		Verify:   a.cfg.Build.Verify,
	}, nil
}
