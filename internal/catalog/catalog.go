// Package catalog discovers available components from their on-disk
// definitions, instantiates them through an explicit factory table,
// and answers dependency-order questions over the resulting graph.
package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/papapumpkin/starforge/internal/component"
	"github.com/papapumpkin/starforge/internal/dag"
)

// DefinitionFileName is the per-component definition file discovery
// scans for.
const DefinitionFileName = "component.toml"

// definitionFile mirrors the component.toml layout.
type definitionFile struct {
	Component component.Descriptor  `toml:"component"`
	Files     []component.FileEntry `toml:"files"`
}

// Catalog holds the factory registration table and a descriptor cache
// for one components source directory. The cache fills on first use
// and survives until Reload; a mutex guards it so parallel level
// workers can instantiate components concurrently.
type Catalog struct {
	// SourceDir is the directory scanned for component definitions,
	// one subdirectory per component.
	SourceDir string

	// Warnf reports non-fatal discovery problems (a definition that
	// fails to parse is skipped, not fatal). Defaults to stderr.
	Warnf func(format string, args ...any)

	mu          sync.Mutex
	factories   map[string]component.Factory
	descriptors map[string]component.Descriptor
	components  map[string]component.Component
	loaded      bool
}

// New creates a Catalog over sourceDir with the default file-manifest
// factory registered for every category not claimed by RegisterFactory.
func New(sourceDir string) *Catalog {
	return &Catalog{
		SourceDir: sourceDir,
		factories: make(map[string]component.Factory),
	}
}

// RegisterFactory maps a category to a Component factory. Descriptors
// whose category has no registered factory fall back to the plain
// file-manifest component. Registration replaces any prior factory for
// the category.
func (c *Catalog) RegisterFactory(category string, f component.Factory) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.factories[category] = f
}

// Discover scans the source directory and returns every parseable
// component descriptor, keyed by name. The scan runs once and is
// cached; call Reload to force a fresh scan. A definition that fails
// to parse is warned about and skipped without aborting the rest.
func (c *Catalog) Discover() (map[string]component.Descriptor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.discover()
}

// discover is Discover with c.mu held.
func (c *Catalog) discover() (map[string]component.Descriptor, error) {
	if c.loaded {
		return c.descriptors, nil
	}

	entries, err := os.ReadDir(c.SourceDir)
	if err != nil {
		return nil, fmt.Errorf("reading components dir %s: %w", c.SourceDir, err)
	}

	c.descriptors = make(map[string]component.Descriptor)
	c.components = make(map[string]component.Component)
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(c.SourceDir, e.Name())
		desc, err := loadDefinition(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue // no definition file, not a component dir
			}
			c.warnf("skipping %s: %v", e.Name(), err)
			continue
		}
		if prior, dup := c.descriptors[desc.Name]; dup {
			c.warnf("skipping %s: name %q already defined in %s", e.Name(), desc.Name, prior.Dir)
			continue
		}
		c.descriptors[desc.Name] = desc
	}

	c.loaded = true
	return c.descriptors, nil
}

// Reload drops the descriptor cache so the next call re-scans.
func (c *Catalog) Reload() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loaded = false
	c.descriptors = nil
	c.components = nil
}

// Component instantiates (and caches) the Component for name through
// the factory table. Safe for concurrent use.
func (c *Catalog) Component(name string) (component.Component, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.discover(); err != nil {
		return nil, err
	}
	if comp, ok := c.components[name]; ok {
		return comp, nil
	}
	desc, ok := c.descriptors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", dag.ErrUnknown, name)
	}
	factory, ok := c.factories[desc.Category]
	if !ok {
		factory = component.NewFileComponent
	}
	comp := factory(desc)
	c.components[name] = comp
	return comp, nil
}

// Names returns every discovered component name, sorted.
func (c *Catalog) Names() ([]string, error) {
	descs, err := c.Discover()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(descs))
	for name := range descs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Resolve returns the requested components plus their transitive
// dependencies in installation order: every dependency strictly before
// its dependents, deterministic across calls. Cycles and unknown names
// surface as dag.ErrCycle and dag.ErrUnknown before any filesystem
// mutation happens.
func (c *Catalog) Resolve(names []string) ([]string, error) {
	g, err := c.graph()
	if err != nil {
		return nil, err
	}
	return g.Resolve(names)
}

// InstallationOrder is Resolve partitioned into dependency levels;
// consuming the flattened levels sequentially is identical to Resolve.
func (c *Catalog) InstallationOrder(names []string) ([][]string, error) {
	g, err := c.graph()
	if err != nil {
		return nil, err
	}
	return g.Levels(names)
}

// ValidateGraph diagnoses the whole catalog, reporting every missing
// dependency and cycle without failing. Intended for CI and tooling.
func (c *Catalog) ValidateGraph() ([]error, error) {
	g, err := c.graph()
	if err != nil {
		return nil, err
	}
	return g.Validate(), nil
}

// Dependents returns the names that transitively depend on name.
func (c *Catalog) Dependents(name string) ([]string, error) {
	g, err := c.graph()
	if err != nil {
		return nil, err
	}
	return g.Descendants(name), nil
}

// graph builds the dependency graph over all discovered descriptors.
func (c *Catalog) graph() (*dag.Graph, error) {
	descs, err := c.Discover()
	if err != nil {
		return nil, err
	}
	g := dag.New()
	for name, desc := range descs {
		if err := g.Add(name, desc.Priority); err != nil {
			return nil, err
		}
	}
	for name, desc := range descs {
		for _, dep := range desc.DependsOn {
			if err := g.AddEdge(name, dep); err != nil {
				// A self-edge is a malformed definition; drop the edge
				// so the rest of the catalog stays usable.
				c.warnf("component %s: %v", name, err)
			}
		}
	}
	return g, nil
}

func (c *Catalog) warnf(format string, args ...any) {
	if c.Warnf != nil {
		c.Warnf(format, args...)
		return
	}
	fmt.Fprintf(os.Stderr, "warning: "+format+"\n", args...)
}

// loadDefinition parses dir/component.toml into a Descriptor rooted at
// dir.
func loadDefinition(dir string) (component.Descriptor, error) {
	path := filepath.Join(dir, DefinitionFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return component.Descriptor{}, err
	}

	var def definitionFile
	if err := toml.Unmarshal(data, &def); err != nil {
		return component.Descriptor{}, fmt.Errorf("parsing %s: %w", path, err)
	}

	desc := def.Component
	desc.Files = def.Files
	desc.Dir = dir
	if desc.Name == "" {
		return component.Descriptor{}, fmt.Errorf("%s: component name is required", path)
	}
	return desc, nil
}
