package gateways

import "context"

// BinaryLinkage is the raw load-time linkage of a binary as reported by an inspector
type BinaryLinkage struct {
	SelfID     string   // install name, empty for executables
	References []string // referenced libraries in load order, self-id excluded
}

// BinaryInspector reads the dynamic-library references of a binary
type BinaryInspector interface {
	Inspect(ctx context.Context, path string) (*BinaryLinkage, error)
}

// BinaryPatcher rewrites dynamic-library references of a binary in place
type BinaryPatcher interface {
	// SetID replaces the install name of a dynamic library
	SetID(ctx context.Context, path, newID string) error

	// Change replaces one referenced library path
	Change(ctx context.Context, path, oldRef, newRef string) error
}

// SignatureVerifier checks detached GPG signatures
type SignatureVerifier interface {
	VerifyGPGSignature(ctx context.Context, filePath, sigURL string) error
}

// ChecksumVerifier checks SHA-256 digests of files
type ChecksumVerifier interface {
	VerifyChecksum(ctx context.Context, filePath, expectedSum string) error
}
