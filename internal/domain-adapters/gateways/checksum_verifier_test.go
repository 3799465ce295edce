package gateways

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyChecksum(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "Python-3.9.1.tgz")
	require.NoError(t, os.WriteFile(testFile, []byte("Hello, World!"), 0o600))

	const sum = "dffd6021bb2bd5b0af676290809ec3a53191dd81c7f70a4b28688a362182986f"
	verifier := NewChecksumVerifier()

	tests := []struct {
		name    string
		file    string
		digest  string
		wantErr string
	}{
		{name: "valid", file: testFile, digest: sum},
		{name: "prefixed upper case", file: testFile, digest: "sha256:" + strings.ToUpper(sum)},
		{name: "mismatch", file: testFile, digest: strings.Repeat("0", 64), wantErr: "checksum mismatch"},
		{name: "malformed", file: testFile, digest: "abc", wantErr: "malformed"},
		{name: "missing file", file: "/nonexistent/file.tgz", digest: sum, wantErr: "failed to open"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := verifier.VerifyChecksum(context.Background(), tt.file, tt.digest)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCalculateChecksum(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "empty")
	require.NoError(t, os.WriteFile(testFile, nil, 0o600))

	sum, err := NewChecksumVerifier().CalculateChecksum(testFile)
	require.NoError(t, err)
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", sum)
}
