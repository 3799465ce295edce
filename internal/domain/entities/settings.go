package entities

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	domainerrors "github.com/ochairo/pybuild/internal/domain/errors"
)

// Default product versions used when no override is supplied
const (
	DefaultPyVersion  = "3.9.1"
	DefaultBz2Version = "1.0.8"
	DefaultSSLVersion = "1.1.1g"
	DefaultXzVersion  = "5.2.5"
)

// Settings is the fixed set of options a recipe run is parameterized by.
// Values are copied on Merge; a Settings is never modified in place.
type Settings struct {
	PyVersion        string
	Bz2Version       string
	SSLVersion       string
	XzVersion        string
	DeploymentTarget string // MACOSX_DEPLOYMENT_TARGET, passed through verbatim
	Jobs             int    // parallel make jobs, 0 means make's default
}

// settingKeys maps recognized keys to setters
var settingKeys = map[string]func(*Settings, string) error{
	"py_version":        func(s *Settings, v string) error { s.PyVersion = v; return nil },
	"bz2_version":       func(s *Settings, v string) error { s.Bz2Version = v; return nil },
	"ssl_version":       func(s *Settings, v string) error { s.SSLVersion = v; return nil },
	"xz_version":        func(s *Settings, v string) error { s.XzVersion = v; return nil },
	"deployment_target": func(s *Settings, v string) error { s.DeploymentTarget = v; return nil },
	"jobs": func(s *Settings, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return fmt.Errorf("jobs must be a non-negative integer, got %q", v)
		}
		s.Jobs = n
		return nil
	},
}

// DefaultSettings returns settings populated with the default versions
func DefaultSettings() Settings {
	return Settings{
		PyVersion:  DefaultPyVersion,
		Bz2Version: DefaultBz2Version,
		SSLVersion: DefaultSSLVersion,
		XzVersion:  DefaultXzVersion,
	}
}

// ParseSettings builds Settings from defaults plus the given key/value pairs.
// Unknown keys are rejected with a CONFIGURATION error.
func ParseSettings(values map[string]string) (Settings, error) {
	return DefaultSettings().Merge(values)
}

// Merge returns a copy of s with values applied by key name.
// Empty values are treated as unset.
func (s Settings) Merge(values map[string]string) (Settings, error) {
	var unknown []string
	for k := range values {
		if _, ok := settingKeys[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return Settings{}, domainerrors.Configurationf("unknown setting(s): %s", strings.Join(unknown, ", "))
	}

	out := s
	for k, v := range values {
		if v == "" {
			continue
		}
		if err := settingKeys[k](&out, v); err != nil {
			return Settings{}, domainerrors.Wrap(err, domainerrors.ErrConfiguration, "invalid setting "+k)
		}
	}
	return out, nil
}

// VersionFor returns the configured version for a catalog product name,
// or "" when the product has no dedicated setting.
func (s Settings) VersionFor(product string) string {
	switch strings.ToLower(product) {
	case "python":
		return s.PyVersion
	case "bzip2":
		return s.Bz2Version
	case "openssl":
		return s.SSLVersion
	case "xz":
		return s.XzVersion
	}
	return ""
}

// Env returns the environment passed to compile steps.
// An empty deployment target is left to the inherited environment.
func (s Settings) Env() map[string]string {
	env := map[string]string{}
	if s.DeploymentTarget != "" {
		env["MACOSX_DEPLOYMENT_TARGET"] = s.DeploymentTarget
	}
	return env
}
