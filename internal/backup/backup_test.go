package backup

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/papapumpkin/starforge/internal/metastore"
)

func testManager(t *testing.T, at time.Time) *Manager {
	t.Helper()
	return &Manager{
		Warnf: t.Logf,
		Now:   func() time.Time { return at },
	}
}

// populateTarget lays out an install root with a couple of component
// files and a metadata store.
func populateTarget(t *testing.T) string {
	t.Helper()
	target := t.TempDir()
	for rel, content := range map[string]string{
		"components/core/init.lua": "print('core')",
		"components/cmds/cmd.lua":  "print('cmds')",
	} {
		path := filepath.Join(target, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	store := metastore.New(target)
	if err := store.AddComponentRegistration("core", map[string]any{"version": "1.2.0"}); err != nil {
		t.Fatal(err)
	}
	return target
}

func TestCreate(t *testing.T) {
	t.Parallel()

	t.Run("missing target has nothing to protect", func(t *testing.T) {
		t.Parallel()
		m := testManager(t, time.Now())
		path, err := m.Create(filepath.Join(t.TempDir(), "never-installed"))
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if path != "" {
			t.Errorf("Create on absent target = %q, want empty", path)
		}
	})

	t.Run("archives tree with metadata", func(t *testing.T) {
		t.Parallel()
		at := time.Date(2026, 5, 2, 11, 30, 0, 0, time.UTC)
		m := testManager(t, at)
		target := populateTarget(t)

		path, err := m.Create(target)
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if !strings.HasSuffix(path, "starforge_20260502_113000.tar.gz") {
			t.Errorf("archive name = %s", path)
		}

		info, err := Read(path)
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if info.FileCount != 3 { // two component files + the store file
			t.Errorf("FileCount = %d, want 3", info.FileCount)
		}
		if info.Components["core"] != "1.2.0" {
			t.Errorf("snapshot versions = %v", info.Components)
		}
		if !info.CreatedAt.Equal(at) {
			t.Errorf("CreatedAt = %v, want %v", info.CreatedAt, at)
		}

		// No partial archive left behind.
		entries, _ := os.ReadDir(filepath.Join(target, DirName))
		for _, e := range entries {
			if strings.HasSuffix(e.Name(), ".tmp") {
				t.Errorf("stale temp archive: %s", e.Name())
			}
		}
	})

	t.Run("empty target still leaves an observable archive", func(t *testing.T) {
		t.Parallel()
		m := testManager(t, time.Now())
		target := t.TempDir() // exists, zero copyable files

		path, err := m.Create(target)
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		info, err := Read(path)
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if info.FileCount != 0 {
			t.Errorf("FileCount = %d, want 0", info.FileCount)
		}
	})

	t.Run("backups dir is not re-archived", func(t *testing.T) {
		t.Parallel()
		m := testManager(t, time.Date(2026, 5, 2, 11, 0, 0, 0, time.UTC))
		target := populateTarget(t)
		if _, err := m.Create(target); err != nil {
			t.Fatal(err)
		}

		m2 := testManager(t, time.Date(2026, 5, 2, 12, 0, 0, 0, time.UTC))
		second, err := m2.Create(target)
		if err != nil {
			t.Fatalf("second Create: %v", err)
		}
		info, err := Read(second)
		if err != nil {
			t.Fatal(err)
		}
		if info.FileCount != 3 {
			t.Errorf("second archive staged %d files, want 3 (backups dir excluded)", info.FileCount)
		}
	})
}

func TestListAndRestore(t *testing.T) {
	t.Parallel()

	t.Run("list newest first", func(t *testing.T) {
		t.Parallel()
		target := populateTarget(t)
		for hour := 9; hour <= 11; hour++ {
			m := testManager(t, time.Date(2026, 5, 2, hour, 0, 0, 0, time.UTC))
			if _, err := m.Create(target); err != nil {
				t.Fatal(err)
			}
		}
		infos, err := List(filepath.Join(target, DirName))
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(infos) != 3 {
			t.Fatalf("List = %d archives, want 3", len(infos))
		}
		if !strings.Contains(infos[0].Path, "110000") {
			t.Errorf("newest archive not first: %s", infos[0].Path)
		}
	})

	t.Run("missing backups dir lists empty", func(t *testing.T) {
		t.Parallel()
		infos, err := List(filepath.Join(t.TempDir(), DirName))
		if err != nil || infos != nil {
			t.Errorf("List = %v, %v; want nil, nil", infos, err)
		}
	})

	t.Run("restore skips existing unless overwrite", func(t *testing.T) {
		t.Parallel()
		m := testManager(t, time.Now())
		target := populateTarget(t)
		path, err := m.Create(target)
		if err != nil {
			t.Fatal(err)
		}

		// Restore into a fresh dir: everything lands.
		fresh := t.TempDir()
		res, err := Restore(path, fresh, false)
		if err != nil {
			t.Fatalf("Restore: %v", err)
		}
		if res.Restored != 3 || res.Skipped != 0 {
			t.Errorf("Restore = %+v, want 3 restored", res)
		}
		if _, err := os.Stat(filepath.Join(fresh, MetadataFileName)); !os.IsNotExist(err) {
			t.Error("metadata record extracted into target")
		}

		// Change one file, restore without overwrite: per-entry skip.
		changed := filepath.Join(fresh, "components", "core", "init.lua")
		if err := os.WriteFile(changed, []byte("edited"), 0o644); err != nil {
			t.Fatal(err)
		}
		res, err = Restore(path, fresh, false)
		if err != nil {
			t.Fatalf("Restore: %v", err)
		}
		if res.Restored != 0 || res.Skipped != 3 {
			t.Errorf("Restore = %+v, want all skipped", res)
		}
		got, _ := os.ReadFile(changed)
		if string(got) != "edited" {
			t.Error("existing file clobbered without overwrite")
		}

		// With overwrite the edit is rolled back.
		res, err = Restore(path, fresh, true)
		if err != nil {
			t.Fatalf("Restore: %v", err)
		}
		if res.Restored != 3 {
			t.Errorf("Restore with overwrite = %+v", res)
		}
		got, _ = os.ReadFile(changed)
		if string(got) != "print('core')" {
			t.Errorf("file not restored: %q", got)
		}
	})
}

func TestPrune(t *testing.T) {
	t.Parallel()

	makeArchives := func(t *testing.T) (string, string) {
		t.Helper()
		target := populateTarget(t)
		for day := 1; day <= 4; day++ {
			m := testManager(t, time.Date(2026, 5, day, 10, 0, 0, 0, time.UTC))
			if _, err := m.Create(target); err != nil {
				t.Fatal(err)
			}
		}
		return target, filepath.Join(target, DirName)
	}

	t.Run("count policy keeps newest", func(t *testing.T) {
		t.Parallel()
		_, backupDir := makeArchives(t)
		m := testManager(t, time.Date(2026, 5, 5, 0, 0, 0, 0, time.UTC))
		actions, err := m.Prune(backupDir, PrunePolicy{Keep: 2})
		if err != nil {
			t.Fatalf("Prune: %v", err)
		}
		if len(actions) != 2 {
			t.Fatalf("Prune = %v, want 2 removals", actions)
		}
		infos, _ := List(backupDir)
		if len(infos) != 2 {
			t.Errorf("%d archives remain, want 2", len(infos))
		}
		for _, info := range infos {
			if strings.Contains(info.Path, "20260501") || strings.Contains(info.Path, "20260502") {
				t.Errorf("oldest archive survived: %s", info.Path)
			}
		}
	})

	t.Run("age policy", func(t *testing.T) {
		t.Parallel()
		_, backupDir := makeArchives(t)
		m := testManager(t, time.Date(2026, 5, 5, 0, 0, 0, 0, time.UTC))
		actions, err := m.Prune(backupDir, PrunePolicy{MaxAge: 48 * time.Hour})
		if err != nil {
			t.Fatalf("Prune: %v", err)
		}
		for _, a := range actions {
			if a.Reason != "age" {
				t.Errorf("action reason = %s, want age", a.Reason)
			}
		}
		if len(actions) != 2 {
			t.Errorf("Prune = %v, want archives from May 1-2 removed", actions)
		}
	})

	t.Run("dry run removes nothing", func(t *testing.T) {
		t.Parallel()
		_, backupDir := makeArchives(t)
		m := testManager(t, time.Date(2026, 5, 5, 0, 0, 0, 0, time.UTC))
		actions, err := m.Prune(backupDir, PrunePolicy{Keep: 1, DryRun: true})
		if err != nil {
			t.Fatalf("Prune: %v", err)
		}
		if len(actions) != 3 {
			t.Errorf("dry run reported %d, want 3", len(actions))
		}
		infos, _ := List(backupDir)
		if len(infos) != 4 {
			t.Errorf("dry run removed archives: %d remain", len(infos))
		}
	})
}
