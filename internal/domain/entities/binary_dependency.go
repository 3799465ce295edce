package entities

// DependencyReference is one load-time library reference of a binary
type DependencyReference struct {
	Path    string
	Matched bool // starts with a source-toolchain prefix and needs rewriting
}

// BinaryDependencyRecord lists the references of one inspected binary.
// It is produced by analysis and consumed immediately by the rewriter.
type BinaryDependencyRecord struct {
	BinaryPath string

	// SelfID is the install name of a dynamic library, empty for executables
	SelfID        string
	SelfIDMatched bool

	References []DependencyReference
}

// MatchedCount returns how many entries (self-id included) need rewriting
func (r BinaryDependencyRecord) MatchedCount() int {
	n := 0
	if r.SelfIDMatched {
		n++
	}
	for _, ref := range r.References {
		if ref.Matched {
			n++
		}
	}
	return n
}

// MatchedReferences returns the dependent references that need rewriting, in order
func (r BinaryDependencyRecord) MatchedReferences() []string {
	var out []string
	for _, ref := range r.References {
		if ref.Matched {
			out = append(out, ref.Path)
		}
	}
	return out
}
