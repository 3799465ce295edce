package gateways

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/kballard/go-shellquote"
	"github.com/magefile/mage/sh"

	domainerrors "github.com/ochairo/pybuild/internal/domain/errors"
	"github.com/ochairo/pybuild/internal/domain/interfaces"
)

// maxStderr bounds the stderr tail kept on a failed command
const maxStderr = 8 * 1024

// ShellExecutor runs build commands relative to a stack of working directories.
// The process-wide working directory is never changed.
type ShellExecutor struct {
	root           string
	stack          []string
	env            map[string]string
	defaultTimeout time.Duration
	logger         interfaces.Logger
}

// NewShellExecutor creates an executor rooted at root.
// env is added to the inherited environment of every command.
func NewShellExecutor(root string, env map[string]string, logger interfaces.Logger) *ShellExecutor {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	if root == "" {
		if wd, err := os.Getwd(); err == nil {
			root = wd
		}
	}
	return &ShellExecutor{
		root:           root,
		env:            env,
		defaultTimeout: 2 * time.Hour,
		logger:         logger,
	}
}

// WithTimeout sets the per-command timeout
func (se *ShellExecutor) WithTimeout(d time.Duration) *ShellExecutor {
	if d > 0 {
		se.defaultTimeout = d
	}
	return se
}

// Dir returns the current working directory
func (se *ShellExecutor) Dir() string {
	if n := len(se.stack); n > 0 {
		return se.stack[n-1]
	}
	return se.root
}

// Chdir pushes dir onto the directory stack
func (se *ShellExecutor) Chdir(dir string) error {
	dir = se.abs(dir)
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("failed to change directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("failed to change directory: %s is not a directory", dir)
	}
	se.stack = append(se.stack, dir)
	return nil
}

// Restore pops the last Chdir
func (se *ShellExecutor) Restore() error {
	if len(se.stack) == 0 {
		return errors.New("restore without matching chdir")
	}
	se.stack = se.stack[:len(se.stack)-1]
	return nil
}

// InDir runs fn inside dir. The previous directory is restored on every path.
func (se *ShellExecutor) InDir(dir string, fn func() error) (err error) {
	if err := se.Chdir(dir); err != nil {
		return err
	}
	depth := len(se.stack)
	defer func() {
		// drop anything fn pushed without restoring, then our own entry
		se.stack = se.stack[:depth-1]
	}()
	return fn()
}

// Run executes a shell command line in the current directory
func (se *ShellExecutor) Run(ctx context.Context, command string) error {
	execCtx, cancel := context.WithTimeout(ctx, se.defaultTimeout)
	defer cancel()

	// Use /bin/sh so catalog build steps can chain commands
	//nolint:gosec // G204: Command lines come from the product catalog and build profiles
	cmd := exec.CommandContext(execCtx, "/bin/sh", "-c", command)
	cmd.Dir = se.Dir()
	cmd.Env = se.environ()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	se.logger.Info("Executing", interfaces.F("command", command), interfaces.F("dir", cmd.Dir))
	start := time.Now()
	err := cmd.Run()
	se.logger.Debug("Command finished",
		interfaces.F("command", command),
		interfaces.F("duration", time.Since(start).Round(time.Millisecond)),
		interfaces.F("stdout_bytes", stdout.Len()))

	if err != nil {
		return se.toolError(execCtx, command, err, stderr.String())
	}
	return nil
}

// Output executes name with args and returns its stdout
func (se *ShellExecutor) Output(ctx context.Context, name string, args ...string) (string, error) {
	execCtx, cancel := context.WithTimeout(ctx, se.defaultTimeout)
	defer cancel()

	//nolint:gosec // G204: Inspection tools are fixed by the caller
	cmd := exec.CommandContext(execCtx, name, args...)
	cmd.Dir = se.Dir()
	cmd.Env = se.environ()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	command := shellquote.Join(append([]string{name}, args...)...)
	se.logger.Debug("Executing", interfaces.F("command", command), interfaces.F("dir", cmd.Dir))
	if err := cmd.Run(); err != nil {
		return "", se.toolError(execCtx, command, err, stderr.String())
	}
	return stdout.String(), nil
}

func (se *ShellExecutor) toolError(ctx context.Context, command string, err error, stderr string) error {
	if len(stderr) > maxStderr {
		stderr = stderr[len(stderr)-maxStderr:]
	}
	exitCode := sh.ExitStatus(err)
	if ctx.Err() == context.DeadlineExceeded {
		err = fmt.Errorf("command timeout after %v: %w", se.defaultTimeout, err)
		exitCode = -1
	}
	var execErr *exec.Error
	if errors.As(err, &execErr) {
		exitCode = 127
	}
	return &domainerrors.ToolInvocationError{
		Command:  command,
		ExitCode: exitCode,
		Stderr:   stderr,
		Err:      err,
	}
}

func (se *ShellExecutor) environ() []string {
	env := os.Environ()
	for key, value := range se.env {
		env = append(env, fmt.Sprintf("%s=%s", key, value))
	}
	return env
}

// Chmod changes the mode of path
func (se *ShellExecutor) Chmod(path string, mode os.FileMode) error {
	if err := os.Chmod(se.abs(path), mode); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", path, err)
	}
	return nil
}

// Copy copies a file or a directory tree. Symlinks are recreated, not followed.
func (se *ShellExecutor) Copy(src, dst string) error {
	src, dst = se.abs(src), se.abs(dst)
	info, err := os.Lstat(src)
	if err != nil {
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	if !info.IsDir() {
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		return copyEntry(src, dst, info)
	}

	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		info, err := d.Info()
		if err != nil {
			return err
		}
		if d.IsDir() {
			return os.MkdirAll(target, info.Mode().Perm()|0o700)
		}
		return copyEntry(path, target, info)
	})
}

func copyEntry(src, dst string, info os.FileInfo) error {
	if info.Mode()&os.ModeSymlink != 0 {
		link, err := os.Readlink(src)
		if err != nil {
			return fmt.Errorf("failed to read symlink: %w", err)
		}
		_ = os.Remove(dst)
		if err := os.Symlink(link, dst); err != nil {
			return fmt.Errorf("failed to create symlink: %w", err)
		}
		return nil
	}
	if err := sh.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	// keep executables executable
	if err := os.Chmod(dst, info.Mode().Perm()); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", dst, err)
	}
	return nil
}

// Move renames src to dst, copying across filesystems when needed
func (se *ShellExecutor) Move(src, dst string) error {
	src, dst = se.abs(src), se.abs(dst)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return fmt.Errorf("failed to move %s: %w", src, err)
	}
	if err := se.Copy(src, dst); err != nil {
		return err
	}
	return se.Remove(src)
}

// Remove deletes path recursively; a missing path is not an error
func (se *ShellExecutor) Remove(path string) error {
	if err := sh.Rm(se.abs(path)); err != nil {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return nil
}

func (se *ShellExecutor) abs(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(se.Dir(), path)
}

// RenderCommand joins a program and its arguments into a quoted shell command line
func RenderCommand(name string, args ...string) string {
	return shellquote.Join(append([]string{name}, args...)...)
}

