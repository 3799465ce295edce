package gateways

import (
	"bufio"
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/ochairo/pybuild/internal/domain/interfaces/gateways"
)

// otoolLine matches "<path> (compatibility version ..., current version ...)"
var otoolLine = regexp.MustCompile(`^\s*(\S+)\s*\(compatibility version .+\)$`)

// OtoolInspector reads linkage by running otool
type OtoolInspector struct {
	shell gateways.ShellExecutor
}

// NewOtoolInspector creates an inspector that shells out to otool
func NewOtoolInspector(shell gateways.ShellExecutor) *OtoolInspector {
	return &OtoolInspector{shell: shell}
}

var _ gateways.BinaryInspector = (*OtoolInspector)(nil)

// Inspect runs otool -D and otool -L on path
func (o *OtoolInspector) Inspect(ctx context.Context, path string) (*gateways.BinaryLinkage, error) {
	idOut, err := o.shell.Output(ctx, "otool", "-D", path)
	if err != nil {
		return nil, fmt.Errorf("failed to read install name: %w", err)
	}
	refOut, err := o.shell.Output(ctx, "otool", "-L", path)
	if err != nil {
		return nil, fmt.Errorf("failed to read library references: %w", err)
	}

	selfID := ParseOtoolID(idOut)
	var refs []string
	for _, ref := range ParseOtoolReferences(refOut) {
		if ref == selfID {
			continue
		}
		refs = append(refs, ref)
	}
	return &gateways.BinaryLinkage{SelfID: selfID, References: refs}, nil
}

// ParseOtoolReferences returns the library paths listed by otool -L in order.
// Header lines are skipped and architectures repeated in universal binaries
// are reported once.
func ParseOtoolReferences(output string) []string {
	var refs []string
	seen := map[string]bool{}
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		m := otoolLine.FindStringSubmatch(scanner.Text())
		if m == nil || seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		refs = append(refs, m[1])
	}
	return refs
}

// ParseOtoolID returns the install name printed by otool -D, or "" for executables
func ParseOtoolID(output string) string {
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasSuffix(line, ":") {
			continue
		}
		return line
	}
	return ""
}
