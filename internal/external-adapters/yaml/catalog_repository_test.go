package yaml

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ochairo/pybuild/internal/domain/services"
)

func TestCatalogRepository_EmbeddedOnly(t *testing.T) {
	repo, err := NewCatalogRepository("")
	require.NoError(t, err)

	product, err := repo.GetProduct(context.Background(), "PYTHON")
	require.NoError(t, err)
	assert.Equal(t, "Python", product.Name)
	assert.Equal(t, []string{"libpython{ver}.a"}, product.StaticLibs)
	assert.Empty(t, product.BuildDir)

	products, err := repo.ListProducts(context.Background())
	require.NoError(t, err)
	var names []string
	for _, p := range products {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"bzip2", "openssl", "Python", "xz"}, names)
}

func TestCatalogRepository_EmbeddedProductsHaveBuiltOracle(t *testing.T) {
	repo, err := NewCatalogRepository("")
	require.NoError(t, err)
	products, err := repo.ListProducts(context.Background())
	require.NoError(t, err)
	catalog := services.NewCatalog(products)

	for _, p := range products {
		t.Run(p.Name, func(t *testing.T) {
			resolved, err := catalog.Resolve(p.Name, "", nil)
			require.NoError(t, err)
			assert.NotEmpty(t, resolved.StaticLibs)
		})
	}

	xz, err := catalog.Resolve("xz", "", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"liblzma.a"}, xz.StaticLibs)
}

func TestCatalogRepository_GetProduct_NotFound(t *testing.T) {
	repo, err := NewCatalogRepository(t.TempDir())
	require.NoError(t, err)

	_, err = repo.GetProduct(context.Background(), "zlib")
	assert.Error(t, err)
}

func TestCatalogRepository_Overrides(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "openssl.yml"), []byte(`name: openssl
version: 1.1.1k
sha256: 892a0875b9872acd04a9fde79b1f943075d5ea162415de3047c327df33fbaee5
`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "zlib.yml"), []byte(`name: zlib
version: 1.2.11
url_template: https://zlib.net/{name}-{version}.tar.gz
build_steps:
  - ./configure --static --prefix={prefix}
  - "{make} install"
`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("not a product"), 0o600))

	repo, err := NewCatalogRepository(dir)
	require.NoError(t, err)
	ctx := context.Background()

	ssl, err := repo.GetProduct(ctx, "openssl")
	require.NoError(t, err)
	assert.Equal(t, "1.1.1k", ssl.Version)
	assert.Equal(t, "https://www.openssl.org/source/openssl-1.1.1k.tar.gz", ssl.URL())
	assert.Equal(t, []string{"libssl.a", "libcrypto.a"}, ssl.StaticLibs)
	assert.NotEmpty(t, ssl.SHA256)

	zlib, err := repo.GetProduct(ctx, "zlib")
	require.NoError(t, err)
	assert.Equal(t, "zlib-1.2.11", zlib.NameVersion())

	products, err := repo.ListProducts(ctx)
	require.NoError(t, err)
	assert.Len(t, products, 5)

	// the embedded default is untouched
	fresh, err := NewCatalogRepository("")
	require.NoError(t, err)
	embedded, err := fresh.GetProduct(ctx, "openssl")
	require.NoError(t, err)
	assert.Equal(t, "1.1.1g", embedded.Version)
}

func TestCatalogRepository_BadOverride(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "xz.yml"), []byte("name: lzma\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bzip2.yml"), []byte("name: [\n"), 0o600))

	repo, err := NewCatalogRepository(dir)
	require.NoError(t, err)

	_, err = repo.GetProduct(context.Background(), "xz")
	assert.ErrorContains(t, err, `describes product "lzma"`)

	_, err = repo.GetProduct(context.Background(), "bzip2")
	assert.ErrorContains(t, err, "failed to parse YAML")

	_, err = repo.ListProducts(context.Background())
	assert.Error(t, err)
}
