package entities

import (
	"path"
	"strings"
)

// Product describes one buildable native artifact with a versioned source archive.
// A Product is never mutated after it is resolved from the catalog.
type Product struct {
	Name        string
	Version     string
	BuildDir    string
	URLTemplate string
	StaticLibs  []string // relative to <prefix>/lib, the "already built" oracle
	BuildSteps  []string // compile command templates for dependency libraries

	SHA256               string // optional archive digest
	SignatureURLTemplate string // optional detached GPG signature
}

// Ver returns the major.minor version: 3.9.1 -> 3.9
func (p Product) Ver() string {
	parts := strings.Split(p.Version, ".")
	if len(parts) > 2 {
		parts = parts[:2]
	}
	return strings.Join(parts, ".")
}

// VerNoDot returns the major+minor version without separator: 3.9.1 -> 39
func (p Product) VerNoDot() string {
	return strings.ReplaceAll(p.Ver(), ".", "")
}

// NameVersion returns Python-3.9.1
func (p Product) NameVersion() string {
	return p.Name + "-" + p.Version
}

// NameVer returns python3.9
func (p Product) NameVer() string {
	return strings.ToLower(p.Name) + p.Ver()
}

// URL substitutes {name} and {version} into the URL template.
// Returns "" when the product has no template.
func (p Product) URL() string {
	return ExpandTemplate(p.URLTemplate, p.Name, p.Version)
}

// SignatureURL substitutes {name} and {version} into the signature template.
func (p Product) SignatureURL() string {
	return ExpandTemplate(p.SignatureURLTemplate, p.Name, p.Version)
}

// ArchiveName returns the file name of the downloaded source archive
func (p Product) ArchiveName() string {
	if u := p.URL(); u != "" {
		return path.Base(u)
	}
	return p.NameVersion() + ".tgz"
}

// Dylib returns the macOS dynamic library name: libpython3.9.dylib
func (p Product) Dylib() string {
	ver := p.Ver()
	if ver == "3.7" {
		ver = "3.7m"
	}
	return "lib" + strings.ToLower(p.Name) + ver + ".dylib"
}

// StaticLib returns the static library name: libpython3.9.a
func (p Product) StaticLib() string {
	return "lib" + strings.ToLower(p.Name) + p.Ver() + ".a"
}

// ExpandTemplate replaces the {name} and {version} placeholders.
func ExpandTemplate(template, name, version string) string {
	if template == "" {
		return ""
	}
	r := strings.NewReplacer("{name}", name, "{version}", version)
	return r.Replace(template)
}
