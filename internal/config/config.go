// Package config loads pybuild settings from defaults, pybuild.toml,
// PYBUILD_* environment variables and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/ochairo/pybuild/internal/domain/entities"
	"github.com/ochairo/pybuild/internal/domain/services"
)

// FileName is the project configuration file looked up in the root
const FileName = "pybuild.toml"

// EnvPrefix prefixes configuration environment variables
const EnvPrefix = "PYBUILD_"

// Config is the resolved configuration of one project checkout
type Config struct {
	Root     string         `koanf:"root"`
	Paths    PathsConfig    `koanf:"paths"`
	Versions VersionsConfig `koanf:"versions"`
	Build    BuildConfig    `koanf:"build"`
	Relink   RelinkConfig   `koanf:"relink"`
	Log      LogConfig      `koanf:"log"`
}

// PathsConfig holds the project directories; relative paths are resolved against Root
type PathsConfig struct {
	Build     string `koanf:"build"`
	Support   string `koanf:"support"`
	Externals string `koanf:"externals"`
	Patch     string `koanf:"patch"`
	Catalog   string `koanf:"catalog"` // optional directory of <name>.yml overrides
}

// VersionsConfig pins product versions
type VersionsConfig struct {
	Python  string `koanf:"python"`
	Bzip2   string `koanf:"bzip2"`
	OpenSSL string `koanf:"openssl"`
	Xz      string `koanf:"xz"`
}

// BuildConfig controls compile steps and download checks
type BuildConfig struct {
	DeploymentTarget string        `koanf:"deployment_target"`
	Jobs             int           `koanf:"jobs"`
	ToolTimeout      time.Duration `koanf:"tool_timeout"`
	Verify           bool          `koanf:"verify"`
	Keyring          string        `koanf:"keyring"`
	KeysURL          string        `koanf:"keys_url"`
}

// RelinkConfig controls the dependency rewriter
type RelinkConfig struct {
	ToolchainPrefixes []string `koanf:"toolchain_prefixes"`
	Tool              string   `koanf:"tool"` // "auto", "otool" or "macho"
}

// LogConfig controls logging
type LogConfig struct {
	Verbosity int `koanf:"verbosity"`
}

func defaults(root string) map[string]interface{} {
	return map[string]interface{}{
		"root":                      root,
		"paths.build":               "build",
		"paths.support":             "support",
		"paths.externals":           "externals",
		"paths.patch":               "patch",
		"paths.catalog":             "",
		"versions.python":           entities.DefaultPyVersion,
		"versions.bzip2":            entities.DefaultBz2Version,
		"versions.openssl":          entities.DefaultSSLVersion,
		"versions.xz":               entities.DefaultXzVersion,
		"build.deployment_target":   "",
		"build.jobs":                0,
		"build.tool_timeout":        "0s",
		"build.verify":              false,
		"build.keyring":             "",
		"build.keys_url":            "",
		"relink.toolchain_prefixes": services.DefaultToolchainPrefixes,
		"relink.tool":               "auto",
		"log.verbosity":             0,
	}
}

// Load resolves the configuration of the project at root.
// Precedence, lowest first: defaults, pybuild.toml, PYBUILD_* variables.
// A .env file in root is loaded into the process environment first and never
// overrides variables that are already set.
func Load(root string) (*Config, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root: %w", err)
	}

	if err := godotenv.Load(filepath.Join(root, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(defaults(root), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Project file
	path := filepath.Join(root, FileName)
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
		}
	}

	// 3. Environment: PYBUILD_BUILD_DEPLOYMENT_TARGET -> build.deployment_target
	err = k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".", 1)
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Unmarshal
	var cfg Config
	unmarshalConf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	}
	if err := k.UnmarshalWithConf("", &cfg, unmarshalConf); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	// 5. Post-process
	if err := cfg.postProcess(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) postProcess() error {
	root, err := filepath.Abs(c.Root)
	if err != nil {
		return fmt.Errorf("failed to resolve root: %w", err)
	}
	c.Root = root

	if c.Build.DeploymentTarget == "" {
		c.Build.DeploymentTarget = os.Getenv("MACOSX_DEPLOYMENT_TARGET")
	}
	if c.Build.Jobs < 0 {
		return fmt.Errorf("build.jobs must not be negative, got %d", c.Build.Jobs)
	}
	if c.Build.ToolTimeout < 0 {
		return fmt.Errorf("build.tool_timeout must not be negative, got %s", c.Build.ToolTimeout)
	}
	switch c.Relink.Tool {
	case "auto", "otool", "macho":
	default:
		return fmt.Errorf("relink.tool must be auto, otool or macho, got %q", c.Relink.Tool)
	}

	for _, p := range []*string{&c.Paths.Build, &c.Paths.Support, &c.Paths.Externals, &c.Paths.Patch, &c.Paths.Catalog, &c.Build.Keyring} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(c.Root, *p)
		}
	}
	return nil
}

// Layout returns the directory layout of the project
func (c *Config) Layout() entities.Layout {
	return entities.Layout{
		Root:      c.Root,
		Build:     c.Paths.Build,
		Support:   c.Paths.Support,
		Externals: c.Paths.Externals,
		Patch:     c.Paths.Patch,
	}
}

// Settings returns the recipe settings with the given overrides applied
func (c *Config) Settings(overrides map[string]string) (entities.Settings, error) {
	base, err := entities.ParseSettings(map[string]string{
		"py_version":        c.Versions.Python,
		"bz2_version":       c.Versions.Bzip2,
		"ssl_version":       c.Versions.OpenSSL,
		"xz_version":        c.Versions.Xz,
		"deployment_target": c.Build.DeploymentTarget,
		"jobs":              strconv.Itoa(c.Build.Jobs),
	})
	if err != nil {
		return entities.Settings{}, err
	}
	return base.Merge(overrides)
}

// ToolchainPrefixes returns the configured prefixes plus the local build/lib
func (c *Config) ToolchainPrefixes() []string {
	out := append([]string(nil), c.Relink.ToolchainPrefixes...)
	return append(out, c.Layout().Lib())
}
