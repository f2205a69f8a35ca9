// Package component defines the unit of installation: a named bundle
// of files with dependency edges, registration metadata, and the
// install/uninstall/verify operations the orchestrator drives.
package component

import (
	"github.com/papapumpkin/starforge/internal/metastore"
)

// FileEntry is one manifest pair: a source path relative to the
// component's definition directory and a target path relative to the
// install root.
type FileEntry struct {
	Source string `toml:"source"`
	Target string `toml:"target"`
}

// Descriptor identifies a component and declares what it installs.
type Descriptor struct {
	Name        string      `toml:"name"`
	Version     string      `toml:"version"`
	Description string      `toml:"description"`
	Category    string      `toml:"category"`
	Priority    int         `toml:"priority"`
	DependsOn   []string    `toml:"depends_on"`
	Files       []FileEntry `toml:"-"`

	// Dir is the directory holding the component definition and its
	// payload files. Populated by catalog discovery.
	Dir string `toml:"-"`
}

// Context carries the per-run collaborators a component operates with.
// One Context is shared across a batch; components must not retain it.
type Context struct {
	// InstallDir is the install root all manifest targets resolve under.
	InstallDir string

	// Meta is the metadata store for the install root.
	Meta *metastore.Store

	// DryRun plans and validates without touching the filesystem.
	DryRun bool

	// Config holds the batch configuration mapping, including
	// component-specific extension keys.
	Config map[string]any
}

// ConfigBool reads a boolean extension key from the batch config.
func (c *Context) ConfigBool(key string) bool {
	if c == nil || c.Config == nil {
		return false
	}
	v, _ := c.Config[key].(bool)
	return v
}

// Component is the capability contract the installer orchestrates.
// Install must be safe to re-run: repeating it against the same target
// produces the same resulting files.
type Component interface {
	// Descriptor returns the component's identity and manifest.
	Descriptor() Descriptor

	// Validate checks prerequisites (manifest sources present, target
	// writable, paths inside the install root) without mutating
	// anything.
	Validate(ctx *Context) error

	// Install copies the manifest into the install root.
	Install(ctx *Context) error

	// Uninstall removes the manifest targets, conservatively: only
	// files named by the manifest, and a directory only once it is
	// empty.
	Uninstall(ctx *Context) error

	// Verify confirms the installed end state after Install reported
	// success.
	Verify(ctx *Context) error
}

// Factory builds a Component for a discovered descriptor. Categories
// map to factories through the catalog's registration table.
type Factory func(Descriptor) Component
