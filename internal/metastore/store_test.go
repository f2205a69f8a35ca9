package metastore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := New(t.TempDir())
	s.Now = func() time.Time { return time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC) }
	return s
}

func TestLoad(t *testing.T) {
	t.Parallel()

	t.Run("missing file is empty mapping", func(t *testing.T) {
		t.Parallel()
		s := newTestStore(t)
		m, err := s.Load()
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if len(m) != 0 {
			t.Errorf("Load on missing file = %v, want empty", m)
		}
	})

	t.Run("corrupt file is a distinguishable error", func(t *testing.T) {
		t.Parallel()
		s := newTestStore(t)
		if err := os.WriteFile(s.Path, []byte("compon{{{ not toml"), 0o644); err != nil {
			t.Fatal(err)
		}
		_, err := s.Load()
		if !errors.Is(err, ErrCorrupt) {
			t.Errorf("Load on garbage = %v, want ErrCorrupt", err)
		}
	})
}

func TestSaveAtomicity(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	if err := s.Save(map[string]any{"schema": int64(1)}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Simulate a crash between writing the temp file and the rename:
	// a stale .tmp beside the store must not affect what Load sees.
	if err := os.WriteFile(s.Path+".tmp", []byte("half-writ"), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := s.Load()
	if err != nil {
		t.Fatalf("Load after simulated crash: %v", err)
	}
	if m["schema"] != int64(1) {
		t.Errorf("prior content lost: %v", m)
	}
}

func TestDeepMerge(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		base    map[string]any
		overlay map[string]any
		want    map[string]any
	}{
		{
			name:    "sibling keys survive",
			base:    map[string]any{"a": map[string]any{"x": 1}},
			overlay: map[string]any{"a": map[string]any{"y": 2}},
			want:    map[string]any{"a": map[string]any{"x": 1, "y": 2}},
		},
		{
			name:    "overlay scalar wins",
			base:    map[string]any{"v": "old", "keep": true},
			overlay: map[string]any{"v": "new"},
			want:    map[string]any{"v": "new", "keep": true},
		},
		{
			name:    "scalar replaced by mapping",
			base:    map[string]any{"a": 1},
			overlay: map[string]any{"a": map[string]any{"x": 1}},
			want:    map[string]any{"a": map[string]any{"x": 1}},
		},
		{
			name:    "deep nesting",
			base:    map[string]any{"c": map[string]any{"core": map[string]any{"version": "1.0"}}},
			overlay: map[string]any{"c": map[string]any{"cmds": map[string]any{"version": "2.0"}}},
			want: map[string]any{"c": map[string]any{
				"core": map[string]any{"version": "1.0"},
				"cmds": map[string]any{"version": "2.0"},
			}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := DeepMerge(tc.base, tc.overlay)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("DeepMerge = %v, want %v", got, tc.want)
			}
		})
	}

	t.Run("inputs not mutated", func(t *testing.T) {
		t.Parallel()
		base := map[string]any{"a": map[string]any{"x": 1}}
		DeepMerge(base, map[string]any{"a": map[string]any{"y": 2}})
		inner := base["a"].(map[string]any)
		if _, leaked := inner["y"]; leaked {
			t.Error("DeepMerge mutated its base argument")
		}
	})
}

func TestComponentRegistrations(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	if err := s.AddComponentRegistration("core", map[string]any{
		"version":  "1.2.0",
		"category": "runtime",
	}); err != nil {
		t.Fatalf("AddComponentRegistration: %v", err)
	}
	if err := s.AddComponentRegistration("commands", map[string]any{
		"version":  "0.9.1",
		"category": "extras",
	}); err != nil {
		t.Fatalf("AddComponentRegistration: %v", err)
	}

	installed, err := s.InstalledComponents()
	if err != nil {
		t.Fatalf("InstalledComponents: %v", err)
	}
	if len(installed) != 2 {
		t.Fatalf("InstalledComponents = %v, want 2 entries", installed)
	}
	if installed["core"]["installed_at"] != "2026-03-14T09:26:53Z" {
		t.Errorf("installed_at = %v, want injected clock value", installed["core"]["installed_at"])
	}

	if v, err := s.ComponentVersion("core"); err != nil || v != "1.2.0" {
		t.Errorf("ComponentVersion(core) = %q, %v", v, err)
	}
	if v, _ := s.ComponentVersion("ghost"); v != "" {
		t.Errorf("ComponentVersion(ghost) = %q, want empty", v)
	}

	ok, err := s.IsInstalled("commands")
	if err != nil || !ok {
		t.Errorf("IsInstalled(commands) = %v, %v", ok, err)
	}

	if err := s.RemoveComponentRegistration("commands"); err != nil {
		t.Fatalf("RemoveComponentRegistration: %v", err)
	}
	if ok, _ := s.IsInstalled("commands"); ok {
		t.Error("commands still installed after removal")
	}
	// Sibling registration untouched.
	if ok, _ := s.IsInstalled("core"); !ok {
		t.Error("core registration clobbered by removing commands")
	}

	// Removing an unknown name is a no-op.
	if err := s.RemoveComponentRegistration("never-there"); err != nil {
		t.Errorf("RemoveComponentRegistration(unknown) = %v, want nil", err)
	}
}

func TestConcurrentRegistrations(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	const writers = 16
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.AddComponentRegistration(fmt.Sprintf("comp-%02d", i), map[string]any{
				"version": "1.0.0",
			})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("writer %d: %v", i, err)
		}
	}
	installed, err := s.InstalledComponents()
	if err != nil {
		t.Fatalf("InstalledComponents: %v", err)
	}
	if len(installed) != writers {
		t.Fatalf("registrations = %d, want %d (concurrent writers lost)", len(installed), writers)
	}
}

func TestMigrateLegacy(t *testing.T) {
	t.Parallel()

	t.Run("missing host file is a no-op", func(t *testing.T) {
		t.Parallel()
		s := newTestStore(t)
		migrated, err := s.MigrateLegacy(filepath.Join(t.TempDir(), "settings.toml"))
		if err != nil || migrated {
			t.Errorf("MigrateLegacy = %v, %v; want false, nil", migrated, err)
		}
	})

	t.Run("extracts legacy keys and rewrites host", func(t *testing.T) {
		t.Parallel()
		s := newTestStore(t)
		hostDir := t.TempDir()
		hostPath := filepath.Join(hostDir, "settings.toml")
		hostBody := []byte("theme = \"dark\"\n\n[component_versions]\ncore = \"0.4.0\"\n")
		if err := os.WriteFile(hostPath, hostBody, 0o644); err != nil {
			t.Fatal(err)
		}

		migrated, err := s.MigrateLegacy(hostPath)
		if err != nil {
			t.Fatalf("MigrateLegacy: %v", err)
		}
		if !migrated {
			t.Fatal("MigrateLegacy = false, want true")
		}

		// Store picked up the component version.
		if v, _ := s.ComponentVersion("core"); v != "0.4.0" {
			t.Errorf("ComponentVersion(core) after migration = %q, want 0.4.0", v)
		}

		// Host file keeps its own keys and loses ours.
		rewritten, err := os.ReadFile(hostPath)
		if err != nil {
			t.Fatal(err)
		}
		if !containsLine(rewritten, "theme = 'dark'") && !containsLine(rewritten, "theme = \"dark\"") {
			t.Errorf("host file lost its own key:\n%s", rewritten)
		}
		if containsLine(rewritten, "[component_versions]") {
			t.Errorf("legacy key survived in host file:\n%s", rewritten)
		}

		// A backup of the original host file exists.
		entries, err := os.ReadDir(hostDir)
		if err != nil {
			t.Fatal(err)
		}
		var sawBackup bool
		for _, e := range entries {
			if strings.HasPrefix(e.Name(), "settings.toml.bak-") {
				sawBackup = true
			}
		}
		if !sawBackup {
			t.Errorf("no host backup written; dir: %v", entries)
		}
	})

	t.Run("host without legacy keys untouched", func(t *testing.T) {
		t.Parallel()
		s := newTestStore(t)
		hostPath := filepath.Join(t.TempDir(), "settings.toml")
		if err := os.WriteFile(hostPath, []byte("theme = \"dark\"\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		migrated, err := s.MigrateLegacy(hostPath)
		if err != nil || migrated {
			t.Errorf("MigrateLegacy = %v, %v; want false, nil", migrated, err)
		}
	})
}

func containsLine(data []byte, line string) bool {
	for _, l := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(l) == line {
			return true
		}
	}
	return false
}
