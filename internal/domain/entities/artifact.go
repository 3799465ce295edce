// Package entities defines core domain models and data structures.
package entities

// Artifact is a file produced or consumed by a pipeline phase.
type Artifact struct {
	Name    string
	Version string
	Path    string
	Type    string // "archive", "source", "stdlib-zip", "binary"
}
