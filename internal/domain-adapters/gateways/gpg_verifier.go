package gateways

import (
	"context"
	"fmt"

	"github.com/ochairo/pybuild/internal/external-adapters/gpg"
)

// gpgVerifier adapts the external GPG verifier to the SignatureVerifier gateway
type gpgVerifier struct {
	verifier *gpg.Verifier
}

// NewGPGVerifier creates a signature verifier loaded from a local keyring file
// and/or a published KEYS URL. At least one source must yield keys.
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewGPGVerifier(ctx context.Context, keyringFile, keysURL string) (*gpgVerifier, error) {
	v := gpg.NewVerifier()
	if keyringFile != "" {
		if err := v.ImportKeyFromFile(keyringFile); err != nil {
			return nil, fmt.Errorf("failed to import GPG key from file: %w", err)
		}
	}
	if keysURL != "" {
		if err := v.ImportKeysFromURL(ctx, keysURL); err != nil {
			return nil, fmt.Errorf("failed to import GPG keys from URL: %w", err)
		}
	}
	if v.KeyringSize() == 0 {
		return nil, fmt.Errorf("no GPG keys configured")
	}
	return &gpgVerifier{verifier: v}, nil
}

// VerifyGPGSignature verifies a detached GPG signature downloaded from a URL
func (g *gpgVerifier) VerifyGPGSignature(ctx context.Context, filePath, sigURL string) error {
	if err := g.verifier.VerifySignature(ctx, filePath, sigURL); err != nil {
		return fmt.Errorf("GPG signature verification failed: %w", err)
	}
	return nil
}
