// Package errors defines the coded error taxonomy shared by the build pipeline.
package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Code classifies a failure for reporting and for errors.Is matching.
type Code string

const (
	// ErrConfiguration covers bad or missing catalog data and cyclic dependencies.
	ErrConfiguration Code = "CONFIGURATION"
	// ErrToolInvocation is an external command that exited non-zero.
	ErrToolInvocation Code = "TOOL_INVOCATION"
	// ErrInvariantViolation signals a broken postcondition (bug or external interference).
	ErrInvariantViolation Code = "INVARIANT_VIOLATION"
	// ErrDependencyNotFound is a missing or unrecognized binary handed to the rewriter.
	ErrDependencyNotFound Code = "DEPENDENCY_NOT_FOUND"
	// ErrNoReferencesMatched is reported (as a warning) when nothing needed rewriting.
	ErrNoReferencesMatched Code = "NO_REFERENCES_MATCHED"
)

// BuildError is a structured error with a code and optional details
type BuildError struct {
	Code    Code
	Message string
	Details map[string]interface{}
	Wrapped error
}

// Error implements the error interface
func (e *BuildError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Code, e.Message)
	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, e.Details[k])
		}
	}
	if e.Wrapped != nil {
		fmt.Fprintf(&b, ": %v", e.Wrapped)
	}
	return b.String()
}

// Unwrap implements the errors.Unwrap interface
func (e *BuildError) Unwrap() error {
	return e.Wrapped
}

// Is matches any *BuildError carrying the same code
func (e *BuildError) Is(target error) bool {
	var t *BuildError
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a detail to the error
func (e *BuildError) WithDetail(key string, value interface{}) *BuildError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a BuildError with the given code and message
func New(code Code, message string) *BuildError {
	return &BuildError{Code: code, Message: message}
}

// Newf creates a BuildError with a formatted message
func Newf(code Code, format string, args ...interface{}) *BuildError {
	return &BuildError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps err with a code and message. Returns nil if err is nil.
func Wrap(err error, code Code, message string) *BuildError {
	if err == nil {
		return nil
	}
	return &BuildError{Code: code, Message: message, Wrapped: err}
}

// Configurationf builds a CONFIGURATION error
func Configurationf(format string, args ...interface{}) *BuildError {
	return Newf(ErrConfiguration, format, args...)
}

// Invariantf builds an INVARIANT_VIOLATION error
func Invariantf(format string, args ...interface{}) *BuildError {
	return Newf(ErrInvariantViolation, format, args...)
}

// DependencyNotFound builds a DEPENDENCY_NOT_FOUND error for a binary path
func DependencyNotFound(binaryPath string, cause error) *BuildError {
	e := &BuildError{
		Code:    ErrDependencyNotFound,
		Message: "binary not found or not a recognized format",
		Wrapped: cause,
	}
	return e.WithDetail("binary", binaryPath)
}

// NoReferencesMatched builds a NO_REFERENCES_MATCHED error for a binary path
func NoReferencesMatched(binaryPath string) *BuildError {
	return New(ErrNoReferencesMatched, "no toolchain references to rewrite").WithDetail("binary", binaryPath)
}

// ToolInvocationError is an external command that exited with a non-zero status.
type ToolInvocationError struct {
	Command  string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ToolInvocationError) Error() string {
	msg := fmt.Sprintf("[%s] command failed (exit %d): %s", ErrToolInvocation, e.ExitCode, e.Command)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += "\nStderr: " + s
	}
	return msg
}

func (e *ToolInvocationError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, New(ErrToolInvocation, "")) match tool failures
func (e *ToolInvocationError) Is(target error) bool {
	var t *BuildError
	if errors.As(target, &t) {
		return t.Code == ErrToolInvocation
	}
	return false
}

// CodeOf returns the code of the first coded error in err's chain, or "".
func CodeOf(err error) Code {
	for err != nil {
		switch e := err.(type) {
		case *BuildError:
			return e.Code
		case *ToolInvocationError:
			return ErrToolInvocation
		}
		err = errors.Unwrap(err)
	}
	return ""
}

// IsCode reports whether any error in err's chain carries code.
func IsCode(err error, code Code) bool {
	return errors.Is(err, &BuildError{Code: code})
}
