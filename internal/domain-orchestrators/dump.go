package orchestrators

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/renameio"
	"gopkg.in/yaml.v3"

	domainerrors "github.com/ochairo/pybuild/internal/domain/errors"
)

// BuilderDump is the resolved state of one builder
type BuilderDump struct {
	Builder       string        `yaml:"builder" json:"builder"`
	Profile       string        `yaml:"profile" json:"profile"`
	Prefix        string        `yaml:"prefix" json:"prefix"`
	PrefixLib     string        `yaml:"prefix_lib" json:"prefix_lib"`
	PrefixBin     string        `yaml:"prefix_bin" json:"prefix_bin"`
	DownloadPath  string        `yaml:"download_path,omitempty" json:"download_path,omitempty"`
	SrcPath       string        `yaml:"src_path" json:"src_path"`
	URL           string        `yaml:"url,omitempty" json:"url,omitempty"`
	ProductExists bool          `yaml:"product_exists" json:"product_exists"`
	Product       ProductDump   `yaml:"product" json:"product"`
	Settings      SettingsDump  `yaml:"settings" json:"settings"`
	DependsOn     []string      `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`
	Rewrites      []RewriteDump `yaml:"rewrites,omitempty" json:"rewrites,omitempty"`
}

// ProductDump is the resolved product of a builder
type ProductDump struct {
	Name       string   `yaml:"name" json:"name"`
	Version    string   `yaml:"version" json:"version"`
	Ver        string   `yaml:"ver" json:"ver"`
	NameVer    string   `yaml:"name_ver" json:"name_ver"`
	Dylib      string   `yaml:"dylib" json:"dylib"`
	StaticLibs []string `yaml:"static_libs,omitempty" json:"static_libs,omitempty"`
}

// SettingsDump is the settings a builder was resolved with
type SettingsDump struct {
	PyVersion        string `yaml:"py_version" json:"py_version"`
	Bz2Version       string `yaml:"bz2_version" json:"bz2_version"`
	SSLVersion       string `yaml:"ssl_version" json:"ssl_version"`
	XzVersion        string `yaml:"xz_version" json:"xz_version"`
	DeploymentTarget string `yaml:"deployment_target,omitempty" json:"deployment_target,omitempty"`
	Jobs             int    `yaml:"jobs,omitempty" json:"jobs,omitempty"`
}

// RewriteDump is one rewrite step with its target resolved
type RewriteDump struct {
	Rule   string `yaml:"rule" json:"rule"`
	Target string `yaml:"target" json:"target"`
}

// RecipeDump is the document written by WriteDump
type RecipeDump struct {
	Recipe   string        `yaml:"recipe" json:"recipe"`
	Builders []BuilderDump `yaml:"builders" json:"builders"`
}

// Describe returns the resolved state of b
func (b *Builder) Describe() BuilderDump {
	d := BuilderDump{
		Builder:       b.String(),
		Profile:       b.Profile.Name,
		Prefix:        b.Prefix(),
		PrefixLib:     b.PrefixLib(),
		PrefixBin:     b.PrefixBin(),
		DownloadPath:  b.DownloadPath(),
		SrcPath:       b.SrcPath(),
		URL:           b.Product.URL(),
		ProductExists: b.ProductExists(),
		Product: ProductDump{
			Name:       b.Product.Name,
			Version:    b.Product.Version,
			Ver:        b.Product.Ver(),
			NameVer:    b.Product.NameVer(),
			Dylib:      b.Product.Dylib(),
			StaticLibs: b.Product.StaticLibs,
		},
		Settings: SettingsDump{
			PyVersion:        b.Settings.PyVersion,
			Bz2Version:       b.Settings.Bz2Version,
			SSLVersion:       b.Settings.SSLVersion,
			XzVersion:        b.Settings.XzVersion,
			DeploymentTarget: b.Settings.DeploymentTarget,
			Jobs:             b.Settings.Jobs,
		},
	}
	for _, dep := range b.DependsOn {
		d.DependsOn = append(d.DependsOn, dep.String())
	}
	for _, step := range b.Profile.Rewrites {
		d.Rewrites = append(d.Rewrites, RewriteDump{
			Rule:   string(step.Rule),
			Target: filepath.Join(b.Prefix(), b.Product.Expand(step.Target)),
		})
	}
	return d
}

// WriteDump writes every builder of recipe, dependencies first, to
// dump.yml or dump.json in dir. Format "all" writes both.
func WriteDump(recipe *Recipe, dir, format string) ([]string, error) {
	order, err := TopologicalOrder(recipe.Builders)
	if err != nil {
		return nil, err
	}
	doc := RecipeDump{Recipe: recipe.Name}
	for _, b := range order {
		doc.Builders = append(doc.Builders, b.Describe())
	}

	var formats []string
	switch strings.ToLower(format) {
	case "yml", "yaml":
		formats = []string{"yml"}
	case "json":
		formats = []string{"json"}
	case "all":
		formats = []string{"yml", "json"}
	default:
		return nil, domainerrors.Configurationf("unknown dump format %q (want yml, json or all)", format)
	}

	var files []string
	for _, f := range formats {
		var data []byte
		if f == "json" {
			data, err = json.MarshalIndent(doc, "", "    ")
		} else {
			data, err = yaml.Marshal(doc)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s dump: %w", f, err)
		}
		path := filepath.Join(dir, "dump."+f)
		if err := renameio.WriteFile(path, data, 0o644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", path, err)
		}
		files = append(files, path)
	}
	return files, nil
}
