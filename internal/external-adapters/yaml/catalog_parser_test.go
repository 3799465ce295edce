package yaml

import (
	"strings"
	"testing"
)

func TestCatalogParser_Parse_Valid(t *testing.T) {
	parser := NewCatalogParser()
	yamlData := []byte(`name: openssl
version: 1.1.1g
url_template: https://www.openssl.org/source/{name}-{version}.tar.gz
sha256: ddb04774f1e32f0c49751e21b67216ac87852ceb056b75209af2443400636d46
static_libs:
  - libssl.a
  - libcrypto.a
build_steps:
  - ./config no-shared --prefix={prefix}
  - "{make} install_sw"
`)

	product, err := parser.Parse(yamlData)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if product.Name != "openssl" {
		t.Errorf("Name = %v, want openssl", product.Name)
	}
	if product.Version != "1.1.1g" {
		t.Errorf("Version = %v, want 1.1.1g", product.Version)
	}
	if product.URL() != "https://www.openssl.org/source/openssl-1.1.1g.tar.gz" {
		t.Errorf("URL() = %v", product.URL())
	}
	if len(product.StaticLibs) != 2 {
		t.Errorf("StaticLibs count = %d, want 2", len(product.StaticLibs))
	}
	if len(product.BuildSteps) != 2 || product.BuildSteps[1] != "{make} install_sw" {
		t.Errorf("BuildSteps = %v", product.BuildSteps)
	}
	if product.SHA256 == "" {
		t.Error("SHA256 should be set")
	}
}

func TestCatalogParser_Parse_MissingName(t *testing.T) {
	parser := NewCatalogParser()
	yamlData := []byte(`version: 1.0.8
url_template: https://sourceware.org/pub/bzip2/{name}-{version}.tar.gz
`)

	_, err := parser.Parse(yamlData)
	if err == nil {
		t.Error("Parse() should return error for missing name")
	}
	if err != nil && err.Error() != "product must have a name" {
		t.Errorf("Parse() error = %v, want 'product must have a name'", err)
	}
}

func TestCatalogParser_Parse_InvalidYAML(t *testing.T) {
	parser := NewCatalogParser()
	yamlData := []byte(`name: test
  invalid: [broken yaml
`)

	_, err := parser.Parse(yamlData)
	if err == nil {
		t.Error("Parse() should return error for invalid YAML")
	}
}

func TestCatalogParser_ParseCatalog(t *testing.T) {
	parser := NewCatalogParser()

	products, err := parser.ParseCatalog(defaultCatalog)
	if err != nil {
		t.Fatalf("ParseCatalog() error = %v", err)
	}
	if len(products) != 4 {
		t.Fatalf("products count = %d, want 4", len(products))
	}
	if products[0].Name != "Python" || products[0].NameVersion() != "Python-3.9.1" {
		t.Errorf("first product = %v, want Python-3.9.1", products[0].NameVersion())
	}
	for _, p := range products[1:] {
		if len(p.BuildSteps) == 0 {
			t.Errorf("dependency %s has no build steps", p.Name)
		}
	}
}

func TestCatalogParser_ParseCatalog_Errors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{
			name: "duplicate",
			data: `products:
  - name: xz
  - name: XZ
`,
			wantErr: "duplicate product",
		},
		{
			name: "unnamed",
			data: `products:
  - version: 1.0
`,
			wantErr: "product 0",
		},
		{
			name:    "not a list",
			data:    "products: xz\n",
			wantErr: "failed to parse YAML",
		},
	}

	parser := NewCatalogParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parser.ParseCatalog([]byte(tt.data))
			if err == nil {
				t.Fatal("ParseCatalog() should return error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("ParseCatalog() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}
