package gateways

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/google/renameio"

	"github.com/ochairo/pybuild/internal/domain/interfaces/gateways"
)

const (
	magic32  uint32 = 0xfeedface
	magic64  uint32 = 0xfeedfacf
	magicFat uint32 = 0xcafebabe

	fatArchSize = 20
)

// machOPatcher rewrites dylib_command names in place without external tools.
// The new name must fit in the padding of the existing load command.
type machOPatcher struct{}

// NewMachOPatcher creates a pure Go binary patcher
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewMachOPatcher() *machOPatcher {
	return &machOPatcher{}
}

var _ gateways.BinaryPatcher = (*machOPatcher)(nil)

// SetID replaces the LC_ID_DYLIB name of a dynamic library
func (p *machOPatcher) SetID(_ context.Context, path, newID string) error {
	return p.patch(path, func(cmd uint32, name string) (string, bool) {
		return newID, cmd == lcIDDylib
	}, true)
}

// Change replaces every load command referencing oldRef.
// A binary that does not reference oldRef is left untouched.
func (p *machOPatcher) Change(_ context.Context, path, oldRef, newRef string) error {
	return p.patch(path, func(cmd uint32, name string) (string, bool) {
		return newRef, cmd != lcIDDylib && name == oldRef
	}, false)
}

type renameFunc func(cmd uint32, name string) (string, bool)

func (p *machOPatcher) patch(path string, rename renameFunc, requireMatch bool) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	//nolint:gosec // G304: path is a binary under the build prefix
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	changed, err := patchImage(data, rename)
	if err != nil {
		return fmt.Errorf("failed to patch %s: %w", path, err)
	}
	if changed == 0 {
		if requireMatch {
			return fmt.Errorf("%s is not a dynamic library", path)
		}
		return nil
	}

	out, err := renameio.TempFile("", path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	//nolint:errcheck // Cleanup is a no-op after a successful replace
	defer out.Cleanup()
	if _, err := out.Write(data); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := out.Chmod(info.Mode().Perm()); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", path, err)
	}
	return out.CloseAtomicallyReplace()
}

// patchImage applies rename to a thin or universal image and returns the
// number of rewritten load commands
func patchImage(data []byte, rename renameFunc) (int, error) {
	if len(data) < 8 {
		return 0, fmt.Errorf("file too small for a Mach-O header")
	}
	if binary.BigEndian.Uint32(data[0:4]) != magicFat {
		return patchSlice(data, rename)
	}

	n := int(binary.BigEndian.Uint32(data[4:8]))
	total := 0
	for i := 0; i < n; i++ {
		entry := 8 + i*fatArchSize
		if entry+fatArchSize > len(data) {
			return 0, fmt.Errorf("truncated universal header")
		}
		offset := binary.BigEndian.Uint32(data[entry+8 : entry+12])
		size := binary.BigEndian.Uint32(data[entry+12 : entry+16])
		end := uint64(offset) + uint64(size)
		if end > uint64(len(data)) {
			return 0, fmt.Errorf("architecture %d extends past end of file", i)
		}
		count, err := patchSlice(data[offset:end], rename)
		if err != nil {
			return 0, fmt.Errorf("architecture %d: %w", i, err)
		}
		total += count
	}
	return total, nil
}

func patchSlice(data []byte, rename renameFunc) (int, error) {
	if len(data) < 28 {
		return 0, fmt.Errorf("file too small for a Mach-O header")
	}

	var order binary.ByteOrder
	headerSize := 0
	switch {
	case binary.LittleEndian.Uint32(data) == magic64:
		order, headerSize = binary.LittleEndian, 32
	case binary.BigEndian.Uint32(data) == magic64:
		order, headerSize = binary.BigEndian, 32
	case binary.LittleEndian.Uint32(data) == magic32:
		order, headerSize = binary.LittleEndian, 28
	case binary.BigEndian.Uint32(data) == magic32:
		order, headerSize = binary.BigEndian, 28
	default:
		return 0, fmt.Errorf("not a Mach-O file")
	}

	ncmds := int(order.Uint32(data[16:20]))
	offset := headerSize
	changed := 0
	for i := 0; i < ncmds; i++ {
		if offset+8 > len(data) {
			return 0, fmt.Errorf("load command %d past end of file", i)
		}
		cmd := order.Uint32(data[offset : offset+4])
		size := int(order.Uint32(data[offset+4 : offset+8]))
		if size < 8 || offset+size > len(data) {
			return 0, fmt.Errorf("invalid size %d for load command %d", size, i)
		}
		raw := data[offset : offset+size]
		offset += size

		if !isDylibCommand(cmd) || size < 24 {
			continue
		}
		name, err := dylibName(raw, order)
		if err != nil {
			return 0, err
		}
		newName, ok := rename(cmd, name)
		if !ok {
			continue
		}
		if err := writeDylibName(raw, order, newName); err != nil {
			return 0, err
		}
		changed++
	}
	return changed, nil
}

// writeDylibName stores name NUL-padded within the existing command size
func writeDylibName(raw []byte, order binary.ByteOrder, name string) error {
	start := int(order.Uint32(raw[dylibNameOffset : dylibNameOffset+4]))
	room := len(raw) - start
	if len(name)+1 > room {
		return fmt.Errorf("name %q needs %d bytes but the load command has room for %d", name, len(name)+1, room)
	}
	copy(raw[start:], name)
	for i := start + len(name); i < len(raw); i++ {
		raw[i] = 0
	}
	return nil
}
