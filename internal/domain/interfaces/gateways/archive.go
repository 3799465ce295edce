package gateways

import "context"

// ArchiveFetcher downloads and unpacks source archives
type ArchiveFetcher interface {
	// Fetch downloads url to dest; dest must exist afterwards
	Fetch(ctx context.Context, url, dest string) error

	// Unpack extracts archive into destDir
	Unpack(ctx context.Context, archive, destDir string) error

	// Verify checks the archive's SHA-256 digest
	Verify(ctx context.Context, archive, sha256 string) error

	// VerifySignature checks a detached GPG signature downloaded from sigURL
	VerifySignature(ctx context.Context, archive, sigURL string) error
}
