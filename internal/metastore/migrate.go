package metastore

import (
	"fmt"
	"os"

	toml "github.com/pelletier/go-toml/v2"
)

// legacyKeys are the well-known top-level keys older releases wrote
// into the host application's own configuration file. Migration moves
// exactly these; everything else in the host file is not ours to touch.
var legacyKeys = []string{
	"components",
	"installed_components",
	"component_versions",
	"install_history",
}

// MigrateLegacy moves legacy installation state out of a host-owned
// configuration file into this store. The host file is backed up
// beside itself before being rewritten without the migrated keys.
// Returns true when anything was migrated; a missing host file is a
// clean no-op.
func (s *Store) MigrateLegacy(hostConfigPath string) (bool, error) {
	data, err := os.ReadFile(hostConfigPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("reading host config: %w", err)
	}

	var host map[string]any
	if err := toml.Unmarshal(data, &host); err != nil {
		return false, fmt.Errorf("parsing host config %s: %w", hostConfigPath, err)
	}

	extracted := map[string]any{}
	for _, key := range legacyKeys {
		if v, ok := host[key]; ok {
			extracted[key] = v
			delete(host, key)
		}
	}
	if len(extracted) == 0 {
		return false, nil
	}

	// Normalize loose legacy layouts into the components namespace.
	if versions, ok := extracted["component_versions"].(map[string]any); ok {
		comps, _ := extracted[componentsKey].(map[string]any)
		if comps == nil {
			comps = map[string]any{}
		}
		for name, v := range versions {
			if _, present := comps[name]; !present {
				comps[name] = map[string]any{"version": v}
			}
		}
		extracted[componentsKey] = comps
		delete(extracted, "component_versions")
	}
	if names, ok := extracted["installed_components"].([]any); ok {
		comps, _ := extracted[componentsKey].(map[string]any)
		if comps == nil {
			comps = map[string]any{}
		}
		for _, n := range names {
			name, ok := n.(string)
			if !ok {
				continue
			}
			if _, present := comps[name]; !present {
				comps[name] = map[string]any{}
			}
		}
		extracted[componentsKey] = comps
		delete(extracted, "installed_components")
	}

	// Back up the host file before rewriting it.
	backupPath := fmt.Sprintf("%s.bak-%s", hostConfigPath, s.now().Format("20060102_150405"))
	if err := os.WriteFile(backupPath, data, 0o644); err != nil {
		return false, fmt.Errorf("backing up host config: %w", err)
	}

	current, err := s.Load()
	if err != nil {
		return false, err
	}
	if err := s.Save(DeepMerge(current, extracted)); err != nil {
		return false, err
	}

	rewritten, err := toml.Marshal(host)
	if err != nil {
		return false, fmt.Errorf("marshaling host config: %w", err)
	}
	tmp := hostConfigPath + ".tmp"
	if err := os.WriteFile(tmp, rewritten, 0o644); err != nil {
		return false, fmt.Errorf("writing host config: %w", err)
	}
	if err := os.Rename(tmp, hostConfigPath); err != nil {
		os.Remove(tmp)
		return false, fmt.Errorf("replacing host config: %w", err)
	}
	return true, nil
}
