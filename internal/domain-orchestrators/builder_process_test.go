package orchestrators

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ochairo/pybuild/internal/domain/interfaces/gateways"
	"github.com/ochairo/pybuild/internal/domain/services"
)

// installTree lays out a minimal installed interpreter under b's prefix
func installTree(t *testing.T, b *Builder) {
	t.Helper()
	lib := b.PythonLib()
	for _, p := range []string{
		"os.py",
		"json/__init__.py",
		"json/__pycache__/__init__.cpython-39.pyc",
		"stray.pyc",
		"test/test_os.py",
		"unittest/test/test_case.py",
		"unittest/case.py",
		"site-packages/README.txt",
		"distutils/command/wininst-9.0.exe",
		"distutils/command/build.py",
		"idlelib/idle.py",
		"config-3.9-darwin/Makefile",
		"turtle.py",
		"lib-dynload/_tkinter.cpython-39-darwin.so",
		"lib-dynload/_json.cpython-39-darwin.so",
	} {
		writeFile(t, filepath.Join(lib, p))
	}
	writeFile(t, filepath.Join(b.PrefixLib(), "pkgconfig", "python3.pc"))
	writeFile(t, filepath.Join(b.PrefixLib(), "libtcl8.6.dylib"))
	writeFile(t, filepath.Join(b.Prefix(), "share", "man", "python3.9.1"))
	writeFile(t, filepath.Join(b.PrefixBin(), "python3.9"))
	writeFile(t, filepath.Join(b.PrefixBin(), "idle3.9"))
	writeFile(t, filepath.Join(b.PrefixBin(), "pydoc3.9"))
}

func TestBuilder_CleanFull(t *testing.T) {
	f := newFixture(t)
	b := f.python(t, "static")
	installTree(t, b)

	require.NoError(t, b.Clean(context.Background()))

	lib := b.PythonLib()
	for _, gone := range []string{
		"json/__pycache__",
		"stray.pyc",
		"test",
		"unittest/test",
		"site-packages",
		"distutils/command/wininst-9.0.exe",
		"idlelib",
		"config-3.9-darwin",
		"turtle.py",
		"lib-dynload/_tkinter.cpython-39-darwin.so",
	} {
		assert.NoFileExists(t, filepath.Join(lib, gone), gone)
		assert.NoDirExists(t, filepath.Join(lib, gone), gone)
	}
	for _, kept := range []string{
		"os.py",
		"json/__init__.py",
		"unittest/case.py",
		"distutils/command/build.py",
		"lib-dynload/_json.cpython-39-darwin.so",
	} {
		assert.FileExists(t, filepath.Join(lib, kept), kept)
	}
	assert.NoDirExists(t, filepath.Join(b.PrefixLib(), "pkgconfig"))
	assert.NoDirExists(t, filepath.Join(b.Prefix(), "share"))
	assert.NoFileExists(t, filepath.Join(b.PrefixBin(), "idle3.9"))
	assert.NoFileExists(t, filepath.Join(b.PrefixBin(), "pydoc3.9"))
	assert.FileExists(t, filepath.Join(b.PrefixBin(), "python3.9"))

	// globs only apply to profiles that list them
	assert.FileExists(t, filepath.Join(b.PrefixLib(), "libtcl8.6.dylib"))
}

func TestBuilder_CleanMinimal(t *testing.T) {
	f := newFixture(t)
	b := f.python(t, "vanilla")
	installTree(t, b)

	require.NoError(t, b.Clean(context.Background()))

	assert.NoDirExists(t, filepath.Join(b.PythonLib(), "json", "__pycache__"))
	assert.NoDirExists(t, filepath.Join(b.PythonLib(), "test"))
	assert.DirExists(t, filepath.Join(b.PythonLib(), "site-packages"))
	assert.DirExists(t, filepath.Join(b.PythonLib(), "idlelib"))
	assert.FileExists(t, filepath.Join(b.PrefixBin(), "idle3.9"))
}

func TestBuilder_CleanGlobs(t *testing.T) {
	f := newFixture(t)
	b := f.python(t, "framework-pkg")
	installTree(t, b)

	require.NoError(t, b.Clean(context.Background()))
	assert.NoFileExists(t, filepath.Join(b.PrefixLib(), "libtcl8.6.dylib"))
}

func TestBuilder_CleanIsBestEffort(t *testing.T) {
	f := newFixture(t)
	b := f.python(t, "static")
	installTree(t, b)
	f.shell.failRemove = filepath.Join(b.Prefix(), "share")

	require.NoError(t, b.Clean(context.Background()))

	entry := f.logger.find("warn", "Failed to strip")
	require.NotNil(t, entry)
	assert.Equal(t, f.shell.failRemove, entry.fields["path"])
	assert.Equal(t, "clean", entry.fields["phase"])
	assert.NoDirExists(t, filepath.Join(b.PythonLib(), "idlelib"))
}

func TestBuilder_CleanMissingTree(t *testing.T) {
	f := newFixture(t)
	b := f.python(t, "static")

	require.NoError(t, b.Clean(context.Background()))
	assert.Empty(t, f.shell.removed)
}

func TestBuilder_ZipLib(t *testing.T) {
	f := newFixture(t)
	b := f.python(t, "static")
	mkdir(t, b.PythonLib())

	require.NoError(t, b.ZipLib(context.Background()))
	assert.Equal(t, 1, f.packager.compacted)
	assert.Equal(t, 1, f.packager.checked)
	assert.FileExists(t, b.ZipLibPath())

	// an existing archive is checked, never rebuilt
	require.NoError(t, b.ZipLib(context.Background()))
	assert.Equal(t, 1, f.packager.compacted)
	assert.Equal(t, 2, f.packager.checked)
	assert.DirExists(t, filepath.Join(b.PythonLib(), "site-packages"))
}

func newRelinkFixture(t *testing.T, linkage map[string]*gateways.BinaryLinkage) (*fixture, *mockPatcher) {
	t.Helper()
	f := newFixture(t)
	patcher := &mockPatcher{}
	prefixes := append(append([]string(nil), services.DefaultToolchainPrefixes...), f.layout.Lib())
	f.tools.Relinker = NewRelinker(&mockInspector{linkage: linkage}, patcher, services.NewClassifier(prefixes...), f.logger)
	return f, patcher
}

func TestBuilder_RelinkBundle(t *testing.T) {
	linkage := map[string]*gateways.BinaryLinkage{}
	f, patcher := newRelinkFixture(t, linkage)
	b := f.python(t, "shared-ext")
	dylib := filepath.Join(b.PrefixLib(), "libpython3.9.dylib")
	writeFile(t, dylib)
	linkage[dylib] = &gateways.BinaryLinkage{
		SelfID: dylib,
		References: []string{
			"/usr/local/opt/gettext/lib/libintl.8.dylib",
			"/usr/lib/libSystem.B.dylib",
		},
	}

	require.NoError(t, b.Relink(context.Background()))
	assert.Equal(t, "@loader_path/libpython3.9.dylib", patcher.ids[dylib])
	assert.Equal(t, []string{
		"libpython3.9.dylib: /usr/local/opt/gettext/lib/libintl.8.dylib -> @executable_path/../libintl.8.dylib",
	}, patcher.changes)
}

func TestBuilder_RelinkFrameworkPackage(t *testing.T) {
	linkage := map[string]*gateways.BinaryLinkage{}
	f, patcher := newRelinkFixture(t, linkage)
	b := f.python(t, "framework-pkg")

	framework := filepath.Join(f.layout.Lib(), "Python.framework", "Versions", "3.9", "Python")
	interpreter := filepath.Join(b.PrefixBin(), "python3.9")
	app := filepath.Join(b.Prefix(), "Resources", "Python.app", "Contents", "MacOS", "Python")
	for _, p := range []string{framework, interpreter, app} {
		writeFile(t, p)
	}
	linkage[framework] = &gateways.BinaryLinkage{SelfID: framework}
	linkage[interpreter] = &gateways.BinaryLinkage{References: []string{framework}}
	linkage[app] = &gateways.BinaryLinkage{References: []string{framework, "/usr/lib/libSystem.B.dylib"}}

	require.NoError(t, b.Relink(context.Background()))
	assert.Equal(t, "@loader_path/../../../../support/Python.framework/Versions/3.9/Python", patcher.ids[framework])
	assert.Equal(t, []string{
		"python3.9: " + framework + " -> @executable_path/../Python",
		"Python: " + framework + " -> @executable_path/../../../../Python",
	}, patcher.changes)
}

func TestBuilder_RelinkMissingBinary(t *testing.T) {
	f, _ := newRelinkFixture(t, nil)
	b := f.python(t, "shared-ext")

	err := b.Relink(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DEPENDENCY_NOT_FOUND")
}

func TestBuilder_RelinkWithoutRelinker(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.python(t, "static").Relink(context.Background()))
	require.Error(t, f.python(t, "shared-ext").Relink(context.Background()))
}

func TestBuilder_CopySupport(t *testing.T) {
	f := newFixture(t)

	shared := f.python(t, "shared-pkg")
	require.NoError(t, shared.CopySupport(context.Background()))

	framework := f.python(t, "framework-pkg")
	require.NoError(t, framework.CopySupport(context.Background()))

	assert.Equal(t, [][2]string{
		{shared.Prefix(), filepath.Join(f.layout.Support, "python3.9")},
		{filepath.Join(f.layout.Lib(), "Python.framework"), filepath.Join(f.layout.Support, "Python.framework")},
	}, f.shell.copied)

	require.NoError(t, f.python(t, "shared").CopySupport(context.Background()))
	assert.Len(t, f.shell.copied, 2)
}

func TestBuilder_Postprocess(t *testing.T) {
	linkage := map[string]*gateways.BinaryLinkage{}
	f, patcher := newRelinkFixture(t, linkage)
	b := f.python(t, "shared-pkg")
	installTree(t, b)
	dylib := filepath.Join(b.PrefixLib(), "libpython3.9.dylib")
	interpreter := filepath.Join(b.PrefixBin(), "python3.9")
	writeFile(t, dylib)
	linkage[dylib] = &gateways.BinaryLinkage{SelfID: dylib}
	linkage[interpreter] = &gateways.BinaryLinkage{References: []string{dylib}}

	require.NoError(t, b.Postprocess(context.Background()))

	assert.NoDirExists(t, filepath.Join(b.PythonLib(), "idlelib"))
	assert.Equal(t, 1, f.packager.compacted)
	assert.Equal(t, "@loader_path/../../../../support/python3.9/lib/libpython3.9.dylib", patcher.ids[dylib])
	assert.Equal(t, []string{"python3.9: " + dylib + " -> @executable_path/../lib/libpython3.9.dylib"}, patcher.changes)
	assert.Len(t, f.shell.copied, 1)
}
