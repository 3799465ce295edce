package services

import (
	"sort"

	"github.com/ochairo/pybuild/internal/domain/entities"
	domainerrors "github.com/ochairo/pybuild/internal/domain/errors"
)

var optimizedFlags = []string{
	"enable-ipv6",
	"enable-optimizations",
	"with-lto",
	"without-doc-strings",
	"without-ensurepip",
}

var stripPackages = []string{
	"config-{ver}-darwin",
	"idlelib",
	"lib2to3",
	"tkinter",
	"turtledemo",
	"turtle.py",
	"ctypes",
	"curses",
	"ensurepip",
	"venv",
}

// packages keep ensurepip so pip can be bootstrapped after relocation
var stripPackagesForPkg = []string{
	"config-{ver}-darwin",
	"idlelib",
	"lib2to3",
	"tkinter",
	"turtledemo",
	"turtle.py",
	"ctypes",
	"curses",
	"venv",
}

var stripExtensions = []string{
	"_tkinter",
	"_ctypes",
	"_multibytecodec",
	"_codecs_jp",
	"_codecs_hk",
	"_codecs_cn",
	"_codecs_kr",
	"_codecs_tw",
	"_codecs_iso2022",
	"_curses",
	"_curses_panel",
}

var stripBinaries = []string{
	"2to3-{ver}",
	"idle{ver}",
	"easy_install-{ver}",
	"pip{ver}",
	"pyvenv-{ver}",
	"pydoc{ver}",
}

var stripTkGlobs = []string{
	"Tk.*",
	"itcl*",
	"libformw.*",
	"libmenuw.*",
	"libpanelw.*",
	"libncurse*",
	"libtcl*",
	"libtclstub*",
	"sqlite3*",
	"libtk*",
	"tcl*",
	"tdbc*",
	"thread*",
	"tk*",
}

const pythonAppExecutable = "Resources/Python.app/Contents/MacOS/Python"

// framework rewrites shared by the framework and vanilla bundle profiles
var frameworkBundleRewrites = []entities.RewriteStep{
	{Rule: entities.RewriteFrameworkEmbedded, Target: "Python"},
	{Rule: entities.RewriteFrameworkEmbedded, Target: "bin/{name_ver}"},
	{
		Rule:              entities.RewriteFrameworkEmbedded,
		Target:            pythonAppExecutable,
		DependentOverride: "@executable_path/../../../../Python",
	},
}

var frameworkPackageRewrites = []entities.RewriteStep{
	{Rule: entities.RewriteRelocatablePackage, Target: "Python", Name: "Python.framework/Versions/{ver}"},
	{Rule: entities.RewriteFrameworkEmbedded, Target: "bin/{name_ver}"},
	{
		Rule:              entities.RewriteFrameworkEmbedded,
		Target:            pythonAppExecutable,
		DependentOverride: "@executable_path/../../../../Python",
	},
}

func withFlags(base []string, extra ...string) []string {
	out := make([]string, 0, len(base)+len(extra))
	out = append(out, base...)
	return append(out, extra...)
}

// profiles is the literal table of supported build profiles
var profiles = map[string]entities.Profile{
	"static": {
		Variant:         entities.VariantStatic,
		Deployment:      entities.DeploymentSystem,
		BuildDir:        "python-static",
		ConfigureFlags:  withFlags(optimizedFlags, "prefix={prefix}", "with-openssl={build_lib}/openssl"),
		SetupLocal:      "setup-static-min3.local",
		Patch:           "configure.patch",
		StripPackages:   stripPackages,
		StripExtensions: stripExtensions,
		StripBinaries:   stripBinaries,
		Clean:           entities.CleanFull,
		ZipLib:          true,
	},
	"shared": {
		Variant:         entities.VariantShared,
		Deployment:      entities.DeploymentSystem,
		BuildDir:        "python-shared",
		ConfigureFlags:  withFlags(optimizedFlags, "enable-shared", "prefix={prefix}", "with-openssl={build_lib}/openssl"),
		SetupLocal:      "setup-shared.local",
		Patch:           "configure.patch",
		StripPackages:   stripPackages,
		StripExtensions: stripExtensions,
		StripBinaries:   stripBinaries,
		Clean:           entities.CleanFull,
		ZipLib:          true,
		Marker:          "lib/{dylib}",
	},
	"shared-ext": {
		Variant:         entities.VariantShared,
		Deployment:      entities.DeploymentBundle,
		BuildDir:        "python-shared-ext",
		ConfigureFlags:  withFlags(optimizedFlags, "enable-shared", "prefix={prefix}", "with-openssl={build_lib}/openssl"),
		SetupLocal:      "setup-shared.local",
		Patch:           "configure.patch",
		StripPackages:   stripPackages,
		StripExtensions: stripExtensions,
		StripBinaries:   stripBinaries,
		Clean:           entities.CleanFull,
		ZipLib:          true,
		Rewrites: []entities.RewriteStep{
			{Rule: entities.RewriteBundleEmbedded, Target: "lib/{dylib}"},
		},
		Marker: "lib/{dylib}",
	},
	"shared-pkg": {
		Variant:         entities.VariantShared,
		Deployment:      entities.DeploymentPackage,
		BuildDir:        "python-shared-pkg",
		ConfigureFlags:  withFlags(optimizedFlags, "enable-shared", "prefix={prefix}", "with-openssl={build_lib}/openssl"),
		SetupLocal:      "setup-shared.local",
		Patch:           "configure.patch",
		StripPackages:   stripPackagesForPkg,
		StripExtensions: stripExtensions,
		StripBinaries:   stripBinaries,
		Clean:           entities.CleanFull,
		ZipLib:          true,
		Rewrites: []entities.RewriteStep{
			{Rule: entities.RewriteRelocatablePackage, Target: "bin/{name_ver}"},
			{Rule: entities.RewriteRelocatablePackage, Target: "lib/{dylib}", Name: "{name_ver}/lib"},
		},
		Marker:        "lib/{dylib}",
		SupportTarget: "{name_ver}",
	},
	"framework": {
		Variant:         entities.VariantFramework,
		Deployment:      entities.DeploymentSystem,
		Framework:       true,
		ConfigureFlags:  withFlags(optimizedFlags, "enable-framework={build_lib}", "with-openssl={build_lib}/openssl"),
		SetupLocal:      "setup-shared.local",
		Patch:           "configure.patch",
		StripPackages:   stripPackages,
		StripExtensions: stripExtensions,
		StripBinaries:   stripBinaries,
		Clean:           entities.CleanFull,
		ZipLib:          true,
		Marker:          "Python",
	},
	"framework-ext": {
		Variant:         entities.VariantFramework,
		Deployment:      entities.DeploymentBundle,
		Framework:       true,
		ConfigureFlags:  withFlags(optimizedFlags, "enable-framework={build_lib}", "with-openssl={build_lib}/openssl"),
		SetupLocal:      "setup-shared.local",
		Patch:           "configure.patch",
		StripPackages:   stripPackages,
		StripExtensions: stripExtensions,
		StripBinaries:   stripBinaries,
		Clean:           entities.CleanFull,
		ZipLib:          true,
		Rewrites:        frameworkBundleRewrites,
		Marker:          "Python",
	},
	"framework-pkg": {
		Variant:         entities.VariantFramework,
		Deployment:      entities.DeploymentPackage,
		Framework:       true,
		ConfigureFlags:  withFlags(optimizedFlags, "enable-framework={build_lib}", "with-openssl={build_lib}/openssl"),
		SetupLocal:      "setup-shared.local",
		Patch:           "configure.patch",
		StripPackages:   stripPackagesForPkg,
		StripExtensions: stripExtensions,
		StripBinaries:   stripBinaries,
		Clean:           entities.CleanFull,
		StripGlobs:      stripTkGlobs,
		ZipLib:          true,
		Rewrites:        frameworkPackageRewrites,
		Marker:          "Python",
		SupportTarget:   "Python.framework",
	},
	"vanilla": {
		Variant:                entities.VariantVanilla,
		Deployment:             entities.DeploymentSystem,
		Framework:              true,
		ConfigureFlags:         []string{"without-doc-strings", "enable-framework={build_lib}"},
		Clean:                  entities.CleanMinimal,
		Marker:                 "Python",
		SkipDependencyDownload: true,
	},
	"vanilla-ext": {
		Variant:                entities.VariantVanilla,
		Deployment:             entities.DeploymentBundle,
		Framework:              true,
		ConfigureFlags:         []string{"without-doc-strings", "enable-framework={build_lib}"},
		Clean:                  entities.CleanMinimal,
		Rewrites:               frameworkBundleRewrites,
		Marker:                 "Python",
		SkipDependencyDownload: true,
	},
	"vanilla-pkg": {
		Variant:                entities.VariantVanilla,
		Deployment:             entities.DeploymentPackage,
		Framework:              true,
		ConfigureFlags:         []string{"without-doc-strings", "enable-framework={build_lib}"},
		Clean:                  entities.CleanMinimal,
		Rewrites:               frameworkPackageRewrites,
		Marker:                 "Python",
		SupportTarget:          "Python.framework",
		SkipDependencyDownload: true,
	},
}

// LookupProfile returns a copy of the named build profile
func LookupProfile(name string) (entities.Profile, error) {
	p, ok := profiles[name]
	if !ok {
		return entities.Profile{}, domainerrors.Configurationf("unknown build profile %q", name)
	}
	p.Name = name
	p.ConfigureFlags = append([]string(nil), p.ConfigureFlags...)
	p.StripPackages = append([]string(nil), p.StripPackages...)
	p.StripExtensions = append([]string(nil), p.StripExtensions...)
	p.StripBinaries = append([]string(nil), p.StripBinaries...)
	p.StripGlobs = append([]string(nil), p.StripGlobs...)
	p.Rewrites = append([]entities.RewriteStep(nil), p.Rewrites...)
	return p, nil
}

// ProfileNames returns the names of all profiles, sorted
func ProfileNames() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DependencyProfileName names the profile of native dependency libraries
const DependencyProfileName = "dependency"

// DependencyProfile is the profile used for native dependency libraries.
// They are always static and never stripped or rewritten.
func DependencyProfile() entities.Profile {
	return entities.Profile{
		Name:       DependencyProfileName,
		Variant:    entities.VariantStatic,
		Deployment: entities.DeploymentSystem,
	}
}
