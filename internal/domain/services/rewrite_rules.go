package services

import (
	"path"
	"strings"

	"github.com/ochairo/pybuild/internal/domain/entities"
	domainerrors "github.com/ochairo/pybuild/internal/domain/errors"
)

// RewriteRole distinguishes a library's own install name from references to other libraries
type RewriteRole string

// Rewrite roles
const (
	RoleSelf      RewriteRole = "self"
	RoleDependent RewriteRole = "dependent"
)

type rewriteTemplates struct {
	self      string
	dependent string
}

// rewriteTable maps each rewrite profile to its loader-relative self-id
// template and executable-relative dependent template.
var rewriteTable = map[entities.RewriteProfile]rewriteTemplates{
	entities.RewriteBundleEmbedded: {
		self:      "@loader_path/{dylib}",
		dependent: "@executable_path/../{dylib}",
	},
	entities.RewriteRelocatablePackage: {
		self:      "@loader_path/../../../../support/{name}/{dylib}",
		dependent: "@executable_path/../lib/{dylib}",
	},
	entities.RewriteFrameworkEmbedded: {
		self:      "@loader_path/../Resources/{framework}",
		dependent: "@executable_path/../Python",
	},
}

// DefaultToolchainPrefixes are install locations of toolchains whose
// libraries must not be referenced by a relocated binary.
var DefaultToolchainPrefixes = []string{
	"/usr/local/Cellar/",
	"/usr/local/opt/",
	"/opt/homebrew/",
	"/Library/Frameworks/Python.framework/",
}

// RewriteVars supplies the placeholder values of the rewrite templates
type RewriteVars struct {
	Name      string // {name}
	Framework string // {framework}
}

// FrameworkPath returns Python.framework/Versions/<ver>/Python
func FrameworkPath(p entities.Product) string {
	return "Python.framework/Versions/" + p.Ver() + "/Python"
}

// RewriteTarget computes the new reference for ref under profile and role.
// Only the base name of ref is used, so applying the rule to its own
// output yields the same path.
func RewriteTarget(profile entities.RewriteProfile, role RewriteRole, ref string, vars RewriteVars) (string, error) {
	t, ok := rewriteTable[profile]
	if !ok {
		return "", domainerrors.Configurationf("unknown rewrite profile %q", profile)
	}
	template := t.dependent
	if role == RoleSelf {
		template = t.self
	}
	r := strings.NewReplacer(
		"{dylib}", path.Base(ref),
		"{name}", vars.Name,
		"{framework}", vars.Framework,
	)
	return r.Replace(template), nil
}

// RewriteProfiles returns the profiles of the rewrite table
func RewriteProfiles() []entities.RewriteProfile {
	return []entities.RewriteProfile{
		entities.RewriteBundleEmbedded,
		entities.RewriteRelocatablePackage,
		entities.RewriteFrameworkEmbedded,
	}
}

// Classifier decides which library references point into a source toolchain
type Classifier struct {
	prefixes []string
}

// NewClassifier creates a classifier matching the given path prefixes.
// Directory prefixes are matched on a path boundary.
func NewClassifier(prefixes ...string) *Classifier {
	c := &Classifier{}
	for _, p := range prefixes {
		if p == "" {
			continue
		}
		if !strings.HasSuffix(p, "/") {
			p += "/"
		}
		c.prefixes = append(c.prefixes, p)
	}
	return c
}

// Prefixes returns the configured prefixes
func (c *Classifier) Prefixes() []string {
	return append([]string(nil), c.prefixes...)
}

// Matches reports whether ref starts with a toolchain prefix
func (c *Classifier) Matches(ref string) bool {
	for _, p := range c.prefixes {
		if strings.HasPrefix(ref, p) {
			return true
		}
	}
	return false
}

// Classify builds the dependency record of a binary from its raw linkage
func (c *Classifier) Classify(binaryPath, selfID string, refs []string) entities.BinaryDependencyRecord {
	rec := entities.BinaryDependencyRecord{
		BinaryPath:    binaryPath,
		SelfID:        selfID,
		SelfIDMatched: selfID != "" && c.Matches(selfID),
	}
	for _, ref := range refs {
		rec.References = append(rec.References, entities.DependencyReference{
			Path:    ref,
			Matched: c.Matches(ref),
		})
	}
	return rec
}
