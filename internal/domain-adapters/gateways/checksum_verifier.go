package gateways

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
)

// checksumVerifier checks source archive digests published in the catalog
type checksumVerifier struct{}

// NewChecksumVerifier creates a new checksum verifier
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewChecksumVerifier() *checksumVerifier {
	return &checksumVerifier{}
}

// VerifyChecksum compares a file's SHA-256 with expectedSum.
// The digest may carry a "sha256:" prefix and is compared case-insensitively.
func (v *checksumVerifier) VerifyChecksum(_ context.Context, filePath, expectedSum string) error {
	expected := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(expectedSum, "sha256:")))
	if len(expected) != sha256.Size*2 {
		return fmt.Errorf("malformed sha256 digest %q", expectedSum)
	}

	actualSum, err := v.CalculateChecksum(filePath)
	if err != nil {
		return err
	}
	if actualSum != expected {
		return fmt.Errorf("checksum mismatch: expected %s, got %s", expected, actualSum)
	}
	return nil
}

// CalculateChecksum returns the hex SHA-256 of a file
func (v *checksumVerifier) CalculateChecksum(filePath string) (string, error) {
	//nolint:gosec // G304: File path is an archive under the downloads directory
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
