package gateways

import (
	"context"

	"github.com/ochairo/pybuild/internal/domain/interfaces/gateways"
)

// InstallNameTool patches binaries by running install_name_tool
type InstallNameTool struct {
	shell gateways.ShellExecutor
}

// NewInstallNameTool creates a patcher that shells out to install_name_tool
func NewInstallNameTool(shell gateways.ShellExecutor) *InstallNameTool {
	return &InstallNameTool{shell: shell}
}

var _ gateways.BinaryPatcher = (*InstallNameTool)(nil)

// SetID runs install_name_tool -id
func (t *InstallNameTool) SetID(ctx context.Context, path, newID string) error {
	return t.shell.Run(ctx, RenderCommand("install_name_tool", "-id", newID, path))
}

// Change runs install_name_tool -change
func (t *InstallNameTool) Change(ctx context.Context, path, oldRef, newRef string) error {
	return t.shell.Run(ctx, RenderCommand("install_name_tool", "-change", oldRef, newRef, path))
}
