// Package metastore persists the "what is installed" record for an
// install root. The store owns a single hidden TOML file, written with
// temp-file-plus-rename so a crash mid-write can never tear it, and is
// deliberately separate from any host application's own configuration.
package metastore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// FileName is the store file kept at the install root.
const FileName = ".starforge.toml"

// componentsKey is the namespace holding per-component registrations.
const componentsKey = "components"

// ErrCorrupt is returned when the store file exists but cannot be
// parsed. The caller decides whether to treat the store as empty; Load
// never guesses at partial content.
var ErrCorrupt = errors.New("metadata store is corrupt")

// Store reads and writes the installation metadata file. Each mutating
// method is a load → merge → save cycle serialized by an internal
// mutex, so concurrent goroutines in one process never lose each
// other's writes; concurrent processes against the same file are
// still not coordinated.
type Store struct {
	// Path is the full path of the store file.
	Path string

	// Now is an injectable clock for registration timestamps;
	// defaults to time.Now.
	Now func() time.Time

	mu sync.Mutex
}

// New returns a Store rooted at installDir using the conventional
// hidden file name.
func New(installDir string) *Store {
	return &Store{Path: filepath.Join(installDir, FileName)}
}

// Load reads the store file. A missing file yields an empty mapping; a
// present but unparsable file yields ErrCorrupt.
func (s *Store) Load() (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() (map[string]any, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("reading metadata store: %w", err)
	}

	var m map[string]any
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, s.Path, err)
	}
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}

// Save writes the full mapping atomically: marshal to a temp file in
// the same directory, then rename over the real file. The real file is
// either fully replaced or left exactly as it was.
func (s *Store) Save(data map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(data)
}

func (s *Store) save(data map[string]any) error {
	out, err := toml.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling metadata store: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return fmt.Errorf("creating metadata directory: %w", err)
	}

	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, out, 0o644); err != nil {
		return fmt.Errorf("writing temp metadata file: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming metadata file: %w", err)
	}
	return nil
}

// AddComponentRegistration records a component under the components
// namespace, stamping installed_at when the caller did not. Unrelated
// keys written by other components survive via deep merge.
func (s *Store) AddComponentRegistration(name string, info map[string]any) error {
	record := make(map[string]any, len(info)+1)
	for k, v := range info {
		record[k] = v
	}
	if _, ok := record["installed_at"]; !ok {
		record["installed_at"] = s.now().UTC().Format(time.RFC3339)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	current, err := s.load()
	if err != nil {
		return err
	}
	merged := DeepMerge(current, map[string]any{
		componentsKey: map[string]any{name: record},
	})
	return s.save(merged)
}

// RemoveComponentRegistration deletes a component's registration. A
// name that was never registered is a no-op.
func (s *Store) RemoveComponentRegistration(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, err := s.load()
	if err != nil {
		return err
	}
	comps, ok := current[componentsKey].(map[string]any)
	if !ok {
		return nil
	}
	if _, present := comps[name]; !present {
		return nil
	}
	delete(comps, name)
	return s.save(current)
}

// InstalledComponents returns every registration under the components
// namespace, keyed by name.
func (s *Store) InstalledComponents() (map[string]map[string]any, error) {
	current, err := s.Load()
	if err != nil {
		return nil, err
	}
	out := make(map[string]map[string]any)
	comps, ok := current[componentsKey].(map[string]any)
	if !ok {
		return out, nil
	}
	for name, v := range comps {
		if record, ok := v.(map[string]any); ok {
			out[name] = record
		}
	}
	return out, nil
}

// IsInstalled reports whether name has a registration.
func (s *Store) IsInstalled(name string) (bool, error) {
	comps, err := s.InstalledComponents()
	if err != nil {
		return false, err
	}
	_, ok := comps[name]
	return ok, nil
}

// ComponentVersion returns the registered version for name, or the
// empty string when name is not installed or carries no version.
func (s *Store) ComponentVersion(name string) (string, error) {
	comps, err := s.InstalledComponents()
	if err != nil {
		return "", err
	}
	record, ok := comps[name]
	if !ok {
		return "", nil
	}
	version, _ := record["version"].(string)
	return version, nil
}

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
