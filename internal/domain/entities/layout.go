package entities

import "path/filepath"

// Layout is the persisted directory structure of a project checkout.
type Layout struct {
	Root      string
	Build     string // build/
	Support   string // support/
	Externals string // externals/
	Patch     string // patch/
}

// NewLayout derives the default layout under root
func NewLayout(root string) Layout {
	return Layout{
		Root:      root,
		Build:     filepath.Join(root, "build"),
		Support:   filepath.Join(root, "support"),
		Externals: filepath.Join(root, "externals"),
		Patch:     filepath.Join(root, "patch"),
	}
}

// Downloads returns build/downloads
func (l Layout) Downloads() string {
	return filepath.Join(l.Build, "downloads")
}

// Src returns build/src
func (l Layout) Src() string {
	return filepath.Join(l.Build, "src")
}

// Lib returns build/lib
func (l Layout) Lib() string {
	return filepath.Join(l.Build, "lib")
}

// Bundle returns externals/<name>.mxo/Contents and its MacOS and Resources subdirectories
func (l Layout) Bundle(name string) (contents, macos, resources string) {
	contents = filepath.Join(l.Externals, name+".mxo", "Contents")
	return contents, filepath.Join(contents, "MacOS"), filepath.Join(contents, "Resources")
}
