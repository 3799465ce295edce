package gateways

import (
	"archive/tar"
	"compress/bzip2"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/renameio"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/ulikunitz/xz"

	"github.com/ochairo/pybuild/internal/domain/interfaces"
	"github.com/ochairo/pybuild/internal/domain/interfaces/gateways"
)

// maxEntrySize caps a single extracted file to guard against decompression bombs
var maxEntrySize int64 = 1 << 30

// ArchiveFetcher downloads source archives and unpacks them into source trees
type ArchiveFetcher struct {
	httpClient *http.Client
	checksums  gateways.ChecksumVerifier
	signatures gateways.SignatureVerifier
	logger     interfaces.Logger
}

// NewArchiveFetcher creates a new archive fetcher.
// signatures may be nil when no keyring is configured.
func NewArchiveFetcher(checksums gateways.ChecksumVerifier, signatures gateways.SignatureVerifier, logger interfaces.Logger) *ArchiveFetcher {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &ArchiveFetcher{
		httpClient: &http.Client{
			Timeout: 30 * time.Minute, // Long timeout for large source archives
		},
		checksums:  checksums,
		signatures: signatures,
		logger:     logger,
	}
}

// Fetch downloads url to dest. The file appears atomically, so an interrupted
// download never leaves a partial archive behind.
func (f *ArchiveFetcher) Fetch(ctx context.Context, url, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return fmt.Errorf("failed to create download directory: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "pybuild/1.0")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	//nolint:errcheck // Defer close on HTTP response body
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, url)
	}

	out, err := renameio.TempFile("", dest)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	//nolint:errcheck // Cleanup is a no-op after a successful replace
	defer out.Cleanup()

	written, err := io.Copy(out, resp.Body)
	if err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := out.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("failed to finalize download: %w", err)
	}

	if _, err := os.Stat(dest); err != nil {
		return fmt.Errorf("download did not produce %s: %w", dest, err)
	}

	f.logger.Info("Downloaded", interfaces.F("file", filepath.Base(dest)), interfaces.F("bytes", written))
	return nil
}

// Verify checks the SHA-256 digest of archive. An empty digest is not checked.
func (f *ArchiveFetcher) Verify(ctx context.Context, archive, sha256 string) error {
	if sha256 == "" {
		return nil
	}
	if f.checksums == nil {
		return errors.New("no checksum verifier configured")
	}
	if err := f.checksums.VerifyChecksum(ctx, archive, sha256); err != nil {
		return fmt.Errorf("failed to verify %s: %w", filepath.Base(archive), err)
	}
	return nil
}

// VerifySignature checks a detached signature. An empty URL is not checked.
func (f *ArchiveFetcher) VerifySignature(ctx context.Context, archive, sigURL string) error {
	if sigURL == "" {
		return nil
	}
	if f.signatures == nil {
		return errors.New("signature URL given but no keyring configured")
	}
	return f.signatures.VerifyGPGSignature(ctx, archive, sigURL)
}

// Unpack extracts archive into destDir based on its file extension
func (f *ArchiveFetcher) Unpack(_ context.Context, archive, destDir string) error {
	name := strings.ToLower(filepath.Base(archive))
	var err error
	switch {
	case strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".tgz"):
		err = f.extractTar(archive, destDir, func(r io.Reader) (io.Reader, error) {
			return gzip.NewReader(r)
		})
	case strings.HasSuffix(name, ".tar.xz"), strings.HasSuffix(name, ".txz"):
		err = f.extractTar(archive, destDir, func(r io.Reader) (io.Reader, error) {
			return xz.NewReader(r)
		})
	case strings.HasSuffix(name, ".tar.bz2"), strings.HasSuffix(name, ".tbz2"):
		err = f.extractTar(archive, destDir, func(r io.Reader) (io.Reader, error) {
			return bzip2.NewReader(r), nil
		})
	case strings.HasSuffix(name, ".tar"):
		err = f.extractTar(archive, destDir, func(r io.Reader) (io.Reader, error) {
			return r, nil
		})
	case strings.HasSuffix(name, ".zip"):
		err = f.extractZip(archive, destDir)
	default:
		return fmt.Errorf("unsupported archive format: %s", name)
	}
	if err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}
	f.logger.Info("Extracted", interfaces.F("archive", filepath.Base(archive)), interfaces.F("dest", destDir))
	return nil
}

// safeJoin resolves name under destDir and rejects paths escaping it
func safeJoin(destDir, name string) (string, error) {
	//nolint:gosec // G305: Path traversal validated below
	target := filepath.Join(destDir, name)
	root := filepath.Clean(destDir)
	if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
		return "", fmt.Errorf("invalid file path in archive: %s", name)
	}
	return target, nil
}

func (f *ArchiveFetcher) extractTar(archive, destDir string, decompress func(io.Reader) (io.Reader, error)) error {
	//nolint:gosec // G304: archive is a path under the downloads directory
	file, err := os.Open(archive)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer file.Close()

	r, err := decompress(file)
	if err != nil {
		return fmt.Errorf("failed to create decompressor: %w", err)
	}
	tr := tar.NewReader(r)

	if err := os.MkdirAll(destDir, 0o750); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	// Links are created after all regular files exist
	type linkInfo struct {
		target   string
		linkname string
		hard     bool
	}
	var links []linkInfo

	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("tar read error: %w", err)
		}

		target, err := safeJoin(destDir, header.Name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}

		case tar.TypeReg:
			//nolint:gosec // G115: Integer overflow from tar header mode is acceptable
			if err := writeFile(target, tr, os.FileMode(header.Mode).Perm()); err != nil {
				return err
			}

		case tar.TypeSymlink:
			links = append(links, linkInfo{target: target, linkname: header.Linkname})

		case tar.TypeLink:
			source, err := safeJoin(destDir, header.Linkname)
			if err != nil {
				return err
			}
			links = append(links, linkInfo{target: target, linkname: source, hard: true})

		case tar.TypeXGlobalHeader, tar.TypeXHeader:
			// pax metadata, handled by the reader

		default:
			f.logger.Warn("Ignoring unsupported tar entry",
				interfaces.F("type", string(header.Typeflag)), interfaces.F("name", header.Name))
		}
	}

	for _, link := range links {
		if err := os.MkdirAll(filepath.Dir(link.target), 0o750); err != nil {
			return fmt.Errorf("failed to create directory for link: %w", err)
		}
		_ = os.Remove(link.target)
		if link.hard {
			if err := os.Link(link.linkname, link.target); err != nil {
				return fmt.Errorf("failed to create hard link %s: %w", link.target, err)
			}
			continue
		}
		if err := os.Symlink(link.linkname, link.target); err != nil {
			// Some source tarballs ship dangling symlinks
			f.logger.Warn("Failed to create symlink",
				interfaces.F("link", link.target), interfaces.F("target", link.linkname), interfaces.F("error", err))
		}
	}
	return nil
}

func (f *ArchiveFetcher) extractZip(archive, destDir string) error {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return fmt.Errorf("failed to open zip: %w", err)
	}
	//nolint:errcheck // Defer close on read-only archive
	defer zr.Close()

	for _, entry := range zr.File {
		target, err := safeJoin(destDir, entry.Name)
		if err != nil {
			return err
		}
		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}
			continue
		}
		rc, err := entry.Open()
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", entry.Name, err)
		}
		err = writeFile(target, rc, entry.Mode().Perm())
		_ = rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func writeFile(target string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}
	if mode == 0 {
		mode = 0o644
	}
	//nolint:gosec // G304: target validated by safeJoin
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	n, err := io.Copy(out, io.LimitReader(r, maxEntrySize+1))
	if err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if n > maxEntrySize {
		_ = out.Close()
		return fmt.Errorf("%s exceeds the %d byte entry limit", filepath.Base(target), maxEntrySize)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	return nil
}
