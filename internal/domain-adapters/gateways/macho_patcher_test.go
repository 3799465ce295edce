package gateways

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMachOPatcher_SetIDAndChange(t *testing.T) {
	ctx := context.Background()
	path := writeFixture(t, "libpython3.9.dylib", buildMachO(
		"/usr/local/Cellar/python@3.9/lib/libpython3.9.dylib",
		"/usr/local/opt/openssl/lib/libssl.1.1.dylib",
		"/usr/lib/libSystem.B.dylib",
	))
	patcher := NewMachOPatcher()

	require.NoError(t, patcher.SetID(ctx, path, "@loader_path/libpython3.9.dylib"))
	require.NoError(t, patcher.Change(ctx, path,
		"/usr/local/opt/openssl/lib/libssl.1.1.dylib", "@executable_path/../libssl.1.1.dylib"))

	linkage, err := NewMachOInspector().Inspect(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "@loader_path/libpython3.9.dylib", linkage.SelfID)
	assert.Equal(t, []string{
		"@executable_path/../libssl.1.1.dylib",
		"/usr/lib/libSystem.B.dylib",
	}, linkage.References)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
}

func TestMachOPatcher_ChangeWithoutReferenceIsNoop(t *testing.T) {
	path := writeFixture(t, "python3.9", buildMachO("", "/usr/lib/libSystem.B.dylib"))
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	require.NoError(t, NewMachOPatcher().Change(context.Background(), path, "/opt/homebrew/lib/libz.dylib", "@rpath/libz.dylib"))

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestMachOPatcher_SetIDOnExecutable(t *testing.T) {
	path := writeFixture(t, "python3.9", buildMachO("", "/usr/lib/libSystem.B.dylib"))
	err := NewMachOPatcher().SetID(context.Background(), path, "@loader_path/python3.9")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a dynamic library")
}

func TestMachOPatcher_NameTooLong(t *testing.T) {
	path := writeFixture(t, "libx.dylib", buildMachO("/opt/homebrew/lib/libx.dylib"))
	long := "@loader_path/" + strings.Repeat("a", 200) + ".dylib"

	err := NewMachOPatcher().SetID(context.Background(), path, long)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "room for")
}

func TestMachOPatcher_Universal(t *testing.T) {
	ctx := context.Background()
	path := writeFixture(t, "Python", buildFat(buildMachO(
		"/Library/Frameworks/Python.framework/Versions/3.9/Python",
	)))

	require.NoError(t, NewMachOPatcher().SetID(ctx, path, "@executable_path/../Python"))

	linkage, err := NewMachOInspector().Inspect(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "@executable_path/../Python", linkage.SelfID)
}

func TestMachOPatcher_NotMachO(t *testing.T) {
	path := writeFixture(t, "test.txt", []byte("definitely not a mach-o image"))
	assert.Error(t, NewMachOPatcher().Change(context.Background(), path, "a", "b"))
}
