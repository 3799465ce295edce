// Package gateways provides adapter implementations for external services and tools.
package gateways

import (
	"bytes"
	"context"
	"debug/macho"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ochairo/pybuild/internal/domain/interfaces/gateways"
)

// Mach-O load commands that carry a dylib_command payload
const (
	lcLoadDylib       uint32 = 0xc
	lcIDDylib         uint32 = 0xd
	lcLoadWeakDylib   uint32 = 0x18 | 0x80000000
	lcReexportDylib   uint32 = 0x1f | 0x80000000
	lcLazyLoadDylib   uint32 = 0x20
	lcLoadUpwardDylib uint32 = 0x23 | 0x80000000
)

// dylibNameOffset is the position of the name offset field in a dylib_command
const dylibNameOffset = 8

// machOInspector reads linkage with debug/macho, no external tools required
type machOInspector struct{}

// NewMachOInspector creates a pure Go binary inspector
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewMachOInspector() *machOInspector {
	return &machOInspector{}
}

var _ gateways.BinaryInspector = (*machOInspector)(nil)

// Inspect returns the install name and the referenced libraries of a Mach-O file.
// For universal binaries the first architecture is reported.
func (i *machOInspector) Inspect(_ context.Context, path string) (*gateways.BinaryLinkage, error) {
	f, closer, err := openMachO(path)
	if err != nil {
		return nil, err
	}
	//nolint:errcheck // Defer close on read-only file
	defer closer()

	linkage := &gateways.BinaryLinkage{}
	for _, load := range f.Loads {
		raw := load.Raw()
		if len(raw) < 12 {
			continue
		}
		cmd := f.ByteOrder.Uint32(raw[0:4])
		if !isDylibCommand(cmd) {
			continue
		}
		name, err := dylibName(raw, f.ByteOrder)
		if err != nil {
			return nil, fmt.Errorf("failed to read load command of %s: %w", path, err)
		}
		if cmd == lcIDDylib {
			linkage.SelfID = name
			continue
		}
		linkage.References = append(linkage.References, name)
	}
	return linkage, nil
}

func openMachO(path string) (*macho.File, func() error, error) {
	f, err := macho.Open(path)
	if err == nil {
		return f, f.Close, nil
	}
	fat, fatErr := macho.OpenFat(path)
	if fatErr != nil {
		if errors.Is(fatErr, macho.ErrNotFat) {
			return nil, nil, fmt.Errorf("failed to open Mach-O file: %w", err)
		}
		return nil, nil, fmt.Errorf("failed to open universal Mach-O file: %w", fatErr)
	}
	if len(fat.Arches) == 0 {
		_ = fat.Close()
		return nil, nil, fmt.Errorf("universal Mach-O file %s has no architectures", path)
	}
	return fat.Arches[0].File, fat.Close, nil
}

func isDylibCommand(cmd uint32) bool {
	switch cmd {
	case lcLoadDylib, lcIDDylib, lcLoadWeakDylib, lcReexportDylib, lcLazyLoadDylib, lcLoadUpwardDylib:
		return true
	}
	return false
}

// dylibName extracts the NUL-terminated library path of a dylib_command
func dylibName(raw []byte, order binary.ByteOrder) (string, error) {
	offset := order.Uint32(raw[dylibNameOffset : dylibNameOffset+4])
	if offset < 24 || int(offset) >= len(raw) {
		return "", fmt.Errorf("invalid dylib name offset %d", offset)
	}
	name := raw[offset:]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	return string(name), nil
}
