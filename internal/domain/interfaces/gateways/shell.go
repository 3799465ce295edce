// Package gateways defines interfaces for external tool adapters.
package gateways

import (
	"context"
	"os"
)

// ShellExecutor runs external commands and performs filesystem primitives
// relative to a scoped working directory.
type ShellExecutor interface {
	// Run executes a shell command line in the current directory.
	// A non-zero exit returns a *errors.ToolInvocationError.
	Run(ctx context.Context, command string) error

	// Output executes a program directly and returns its stdout
	Output(ctx context.Context, name string, args ...string) (string, error)

	// Dir returns the current working directory of the executor
	Dir() string

	// Chdir pushes dir as the working directory
	Chdir(dir string) error

	// Restore pops the last Chdir
	Restore() error

	// InDir runs fn with dir as working directory and always restores afterwards
	InDir(dir string, fn func() error) error

	Chmod(path string, mode os.FileMode) error
	Copy(src, dst string) error
	Move(src, dst string) error

	// Remove deletes a file or directory tree; a missing path is not an error
	Remove(path string) error
}
