package entities

import "strings"

// Variant is the link style of the interpreter build
type Variant string

// Supported variants
const (
	VariantStatic    Variant = "static"
	VariantShared    Variant = "shared"
	VariantFramework Variant = "framework"
	VariantVanilla   Variant = "vanilla"
)

// Deployment is where the built runtime ends up
type Deployment string

// Supported deployments
const (
	DeploymentSystem  Deployment = "sys"
	DeploymentBundle  Deployment = "ext"
	DeploymentPackage Deployment = "pkg"
)

// RewriteProfile selects a row of the rewrite template table
type RewriteProfile string

// Rewrite profiles
const (
	RewriteBundleEmbedded     RewriteProfile = "bundle-embedded"
	RewriteRelocatablePackage RewriteProfile = "relocatable-package"
	RewriteFrameworkEmbedded  RewriteProfile = "framework-embedded"
)

// CleanLevel controls how much of an installed interpreter tree the strip pass removes
type CleanLevel string

// Clean levels
const (
	CleanNone    CleanLevel = ""
	CleanMinimal CleanLevel = "minimal" // bytecode and test suites only
	CleanFull    CleanLevel = "full"
)

// RewriteStep is one post-link fixup applied to a binary under the prefix.
type RewriteStep struct {
	Rule RewriteProfile

	// Target is the binary relative to the prefix and may use {dylib}, {name_ver} and {ver}.
	Target string

	// Name replaces the {name} placeholder of the self-id template.
	// Empty means the product NameVer.
	Name string

	// DependentOverride replaces the dependent template for this binary only.
	DependentOverride string
}

// Profile is the data that specializes a Builder for one variant and deployment.
// Profiles carry no behavior of their own.
type Profile struct {
	Name       string
	Variant    Variant
	Deployment Deployment

	BuildDir  string // prefix directory under build/lib, unused for framework layouts
	Framework bool   // prefix is build/lib/Python.framework/Versions/<ver>

	// ConfigureFlags are rendered as --flag or --key=value and may use
	// {prefix} and {build_lib}.
	ConfigureFlags []string
	SetupLocal     string // file under patch/<ver>/ copied to Modules/Setup.local
	Patch          string // file under patch/<ver>/ applied to configure

	StripPackages   []string // under lib/pythonX.Y
	StripExtensions []string // extension module names under lib-dynload
	StripBinaries   []string // under bin
	StripGlobs      []string // under lib
	Clean           CleanLevel

	ZipLib   bool
	Rewrites []RewriteStep

	// Marker is a file relative to the prefix that proves the build exists
	// when the static libraries do not apply. May use {dylib}.
	Marker string

	// SupportTarget is the directory under support/ the build is copied to.
	// May use {name_ver}. Empty means no copy.
	SupportTarget string

	SkipDependencyDownload bool
}

// Expand replaces {dylib}, {name_ver} and {ver} in s for product p
func (p Product) Expand(s string) string {
	r := strings.NewReplacer(
		"{dylib}", p.Dylib(),
		"{name_ver}", p.NameVer(),
		"{ver}", p.Ver(),
	)
	return r.Replace(s)
}

