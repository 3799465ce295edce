package orchestrators

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ochairo/pybuild/internal/domain/entities"
	domainerrors "github.com/ochairo/pybuild/internal/domain/errors"
	"github.com/ochairo/pybuild/internal/domain/interfaces"
	"github.com/ochairo/pybuild/internal/domain/interfaces/gateways"
	"github.com/ochairo/pybuild/internal/domain/services"
)

// Mock implementations for testing
type mockShell struct {
	commands []string
	dirs     []string
	removed  []string
	copied   [][2]string

	failOn     string // Run fails for commands containing this text
	onRun      func(dir, command string)
	keepFiles  bool   // Remove succeeds without deleting anything
	failRemove string // Remove fails for this path

	dir string
}

func (m *mockShell) Run(_ context.Context, command string) error {
	m.commands = append(m.commands, command)
	if m.failOn != "" && strings.Contains(command, m.failOn) {
		return &domainerrors.ToolInvocationError{Command: command, ExitCode: 2, Stderr: "make: *** [all] Error 2"}
	}
	if m.onRun != nil {
		m.onRun(m.dir, command)
	}
	return nil
}

func (m *mockShell) Output(_ context.Context, name string, args ...string) (string, error) {
	return "", fmt.Errorf("unexpected call to %s %v", name, args)
}

func (m *mockShell) Dir() string { return m.dir }

func (m *mockShell) Chdir(dir string) error {
	m.dirs = append(m.dirs, dir)
	m.dir = dir
	return nil
}

func (m *mockShell) Restore() error {
	m.dir = ""
	return nil
}

func (m *mockShell) InDir(dir string, fn func() error) error {
	if err := m.Chdir(dir); err != nil {
		return err
	}
	defer func() { _ = m.Restore() }()
	return fn()
}

func (m *mockShell) Chmod(path string, mode os.FileMode) error { return os.Chmod(path, mode) }

func (m *mockShell) Copy(src, dst string) error {
	m.copied = append(m.copied, [2]string{src, dst})
	return os.MkdirAll(dst, 0o755)
}

func (m *mockShell) Move(src, dst string) error { return os.Rename(src, dst) }

func (m *mockShell) Remove(path string) error {
	if m.failRemove != "" && path == m.failRemove {
		return fmt.Errorf("permission denied: %s", path)
	}
	m.removed = append(m.removed, path)
	if m.keepFiles {
		return nil
	}
	return os.RemoveAll(path)
}

func (m *mockShell) ran(substr string) int {
	n := 0
	for _, c := range m.commands {
		if strings.Contains(c, substr) {
			n++
		}
	}
	return n
}

var _ gateways.ShellExecutor = (*mockShell)(nil)

type mockFetcher struct {
	fetched   []string
	unpacked  []string
	verifyErr error
	fetchErr  error
	unpackErr error // returned after the source directory was created
}

func (m *mockFetcher) Fetch(_ context.Context, url, dest string) error {
	if m.fetchErr != nil {
		return m.fetchErr
	}
	m.fetched = append(m.fetched, url)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dest, []byte("archive"), 0o600)
}

// Unpack creates destDir/<archive name without extension>
func (m *mockFetcher) Unpack(_ context.Context, archive, destDir string) error {
	m.unpacked = append(m.unpacked, archive)
	name := filepath.Base(archive)
	for _, ext := range []string{".tar.gz", ".tar.xz", ".tar.bz2", ".tgz", ".zip"} {
		name = strings.TrimSuffix(name, ext)
	}
	if err := os.MkdirAll(filepath.Join(destDir, name), 0o755); err != nil {
		return err
	}
	return m.unpackErr
}

func (m *mockFetcher) Verify(_ context.Context, _, _ string) error { return m.verifyErr }

func (m *mockFetcher) VerifySignature(_ context.Context, _, _ string) error { return nil }

type mockPackager struct {
	compacted int
	checked   int
	err       error
}

func (m *mockPackager) CompactStdlib(_ context.Context, pythonLib, zipPath string) (*entities.Artifact, error) {
	m.compacted++
	if m.err != nil {
		return nil, m.err
	}
	if err := os.WriteFile(zipPath, []byte("PK"), 0o600); err != nil {
		return nil, err
	}
	return &entities.Artifact{Path: zipPath, Type: "stdlib-zip", Name: filepath.Base(pythonLib)}, nil
}

func (m *mockPackager) CheckZipLib(_, _ string) error {
	m.checked++
	return nil
}

type mockInspector struct {
	linkage map[string]*gateways.BinaryLinkage
}

func (m *mockInspector) Inspect(_ context.Context, path string) (*gateways.BinaryLinkage, error) {
	l, ok := m.linkage[path]
	if !ok {
		return nil, fmt.Errorf("%s: not a Mach-O file", path)
	}
	return l, nil
}

type mockPatcher struct {
	ids     map[string]string
	changes []string
}

func (m *mockPatcher) SetID(_ context.Context, path, newID string) error {
	if m.ids == nil {
		m.ids = map[string]string{}
	}
	m.ids[path] = newID
	return nil
}

func (m *mockPatcher) Change(_ context.Context, path, oldRef, newRef string) error {
	m.changes = append(m.changes, filepath.Base(path)+": "+oldRef+" -> "+newRef)
	return nil
}

type logEntry struct {
	level  string
	msg    string
	fields map[string]interface{}
}

type recordingLogger struct {
	entries []logEntry
}

func (l *recordingLogger) add(level, msg string, fields []interfaces.Field) {
	e := logEntry{level: level, msg: msg, fields: map[string]interface{}{}}
	for _, f := range fields {
		e.fields[f.Key] = f.Value
	}
	l.entries = append(l.entries, e)
}

func (l *recordingLogger) Debug(msg string, fields ...interfaces.Field) { l.add("debug", msg, fields) }
func (l *recordingLogger) Info(msg string, fields ...interfaces.Field) { l.add("info", msg, fields) }
func (l *recordingLogger) Warn(msg string, fields ...interfaces.Field) { l.add("warn", msg, fields) }
func (l *recordingLogger) Error(msg string, fields ...interfaces.Field) { l.add("error", msg, fields) }

func (l *recordingLogger) find(level, msg string) *logEntry {
	for i := range l.entries {
		if l.entries[i].level == level && l.entries[i].msg == msg {
			return &l.entries[i]
		}
	}
	return nil
}

// fixture is a project checkout in a temporary directory with mock tools
type fixture struct {
	layout   entities.Layout
	shell    *mockShell
	fetcher  *mockFetcher
	packager *mockPackager
	logger   *recordingLogger
	tools    *Tools
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		layout:   entities.NewLayout(t.TempDir()),
		shell:    &mockShell{},
		fetcher:  &mockFetcher{},
		packager: &mockPackager{},
		logger:   &recordingLogger{},
	}
	f.tools = &Tools{
		Shell:    f.shell,
		Fetcher:  f.fetcher,
		Packager: f.packager,
		Logger:   f.logger,
	}
	return f
}

func testCatalog() *services.Catalog {
	return services.NewCatalog([]*entities.Product{
		{
			Name:        "Python",
			URLTemplate: "https://www.python.org/ftp/python/{version}/{name}-{version}.tgz",
			StaticLibs:  []string{"libpython{ver}.a"},
		},
		{
			Name:        "bzip2",
			URLTemplate: "https://sourceware.org/pub/bzip2/{name}-{version}.tar.gz",
			StaticLibs:  []string{"libbz2.a"},
			BuildSteps:  []string{"{make} install PREFIX={prefix}"},
		},
		{
			Name:        "openssl",
			URLTemplate: "https://www.openssl.org/source/{name}-{version}.tar.gz",
			StaticLibs:  []string{"libssl.a", "libcrypto.a"},
			BuildSteps:  []string{"./config no-shared --prefix={prefix}", "{make} install_sw"},
		},
		{
			Name:        "xz",
			URLTemplate: "https://tukaani.org/xz/{name}-{version}.tar.gz",
			StaticLibs:  []string{"liblzma.a"},
			BuildSteps:  []string{"./configure --disable-shared --prefix={prefix}", "{make} install"},
		},
	})
}

func (f *fixture) factory() *RecipeFactory {
	return NewRecipeFactory(testCatalog(), entities.DefaultSettings(), f.layout, f.tools, nil)
}

// dependency returns a dependency builder for a bare library
func (f *fixture) dependency(t *testing.T, name string, deps ...*Builder) *Builder {
	t.Helper()
	product := entities.Product{
		Name:        name,
		Version:     "1.0",
		URLTemplate: "https://example.com/{name}-{version}.tar.gz",
		StaticLibs:  []string{"lib" + name + ".a"},
		BuildSteps:  []string{"{make} install PREFIX={prefix}"},
	}
	return NewBuilder(product, services.DependencyProfile(), entities.DefaultSettings(), f.layout, f.tools, deps...)
}

func (f *fixture) python(t *testing.T, profileName string, deps ...*Builder) *Builder {
	t.Helper()
	product, err := testCatalog().Resolve("python", entities.DefaultPyVersion, nil)
	require.NoError(t, err)
	profile, err := services.LookupProfile(profileName)
	require.NoError(t, err)
	return NewBuilder(product, profile, entities.DefaultSettings(), f.layout, f.tools, deps...)
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func mkdir(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(path, 0o755))
}
