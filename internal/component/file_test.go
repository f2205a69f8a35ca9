package component

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeComponentPayload lays out a component definition directory with
// the given relative files and returns a matching descriptor.
func writeComponentPayload(t *testing.T, name string, files map[string]string) Descriptor {
	t.Helper()
	dir := t.TempDir()
	desc := Descriptor{
		Name:     name,
		Version:  "1.0.0",
		Category: "runtime",
		Dir:      dir,
	}
	for rel, content := range files {
		src := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(src), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(src, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		desc.Files = append(desc.Files, FileEntry{
			Source: rel,
			Target: filepath.Join("components", name, filepath.Base(rel)),
		})
	}
	return desc
}

func newCtx(t *testing.T) *Context {
	t.Helper()
	return &Context{InstallDir: t.TempDir(), Config: map[string]any{}}
}

func TestFileComponentValidate(t *testing.T) {
	t.Parallel()

	t.Run("good manifest passes", func(t *testing.T) {
		t.Parallel()
		desc := writeComponentPayload(t, "core", map[string]string{"init.lua": "core"})
		c := NewFileComponent(desc)
		if err := c.Validate(newCtx(t)); err != nil {
			t.Errorf("Validate: %v", err)
		}
	})

	t.Run("missing source fails", func(t *testing.T) {
		t.Parallel()
		desc := writeComponentPayload(t, "core", map[string]string{"init.lua": "core"})
		desc.Files = append(desc.Files, FileEntry{Source: "ghost.lua", Target: "components/core/ghost.lua"})
		c := NewFileComponent(desc)
		if err := c.Validate(newCtx(t)); err == nil {
			t.Error("Validate passed with a missing manifest source")
		}
	})

	t.Run("escaping target fails", func(t *testing.T) {
		t.Parallel()
		desc := writeComponentPayload(t, "core", map[string]string{"init.lua": "core"})
		desc.Files[0].Target = "../outside/init.lua"
		c := NewFileComponent(desc)
		err := c.Validate(newCtx(t))
		if err == nil || !strings.Contains(err.Error(), "escapes") {
			t.Errorf("Validate = %v, want path escape rejection", err)
		}
	})

	t.Run("empty manifest fails", func(t *testing.T) {
		t.Parallel()
		c := NewFileComponent(Descriptor{Name: "hollow", Dir: t.TempDir()})
		if err := c.Validate(newCtx(t)); err == nil {
			t.Error("Validate passed with no manifest entries")
		}
	})
}

func TestFileComponentInstall(t *testing.T) {
	t.Parallel()

	t.Run("copies manifest and is idempotent", func(t *testing.T) {
		t.Parallel()
		desc := writeComponentPayload(t, "core", map[string]string{
			"init.lua":    "print('core')",
			"lib/util.go": "package util",
		})
		c := NewFileComponent(desc)
		ctx := newCtx(t)

		for run := 0; run < 2; run++ {
			if err := c.Install(ctx); err != nil {
				t.Fatalf("Install run %d: %v", run, err)
			}
		}
		got, err := os.ReadFile(filepath.Join(ctx.InstallDir, "components", "core", "init.lua"))
		if err != nil {
			t.Fatalf("target missing: %v", err)
		}
		if string(got) != "print('core')" {
			t.Errorf("target content = %q", got)
		}
		if err := c.Verify(ctx); err != nil {
			t.Errorf("Verify after install: %v", err)
		}
	})

	t.Run("dry run touches nothing", func(t *testing.T) {
		t.Parallel()
		desc := writeComponentPayload(t, "core", map[string]string{"init.lua": "x"})
		c := NewFileComponent(desc)
		ctx := newCtx(t)
		ctx.DryRun = true
		if err := c.Install(ctx); err != nil {
			t.Fatalf("Install: %v", err)
		}
		if _, err := os.Stat(filepath.Join(ctx.InstallDir, "components")); !os.IsNotExist(err) {
			t.Error("dry run created files")
		}
	})

	t.Run("file_backup preserves changed target", func(t *testing.T) {
		t.Parallel()
		desc := writeComponentPayload(t, "core", map[string]string{"init.lua": "v2"})
		c := NewFileComponent(desc)
		ctx := newCtx(t)
		ctx.Config["file_backup"] = true

		target := filepath.Join(ctx.InstallDir, "components", "core", "init.lua")
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(target, []byte("v1"), 0o644); err != nil {
			t.Fatal(err)
		}

		if err := c.Install(ctx); err != nil {
			t.Fatalf("Install: %v", err)
		}
		bak, err := os.ReadFile(target + ".bak")
		if err != nil {
			t.Fatalf("no .bak written: %v", err)
		}
		if string(bak) != "v1" {
			t.Errorf(".bak content = %q, want prior version", bak)
		}
	})
}

func TestFileComponentUninstall(t *testing.T) {
	t.Parallel()

	t.Run("removes targets and emptied directory", func(t *testing.T) {
		t.Parallel()
		desc := writeComponentPayload(t, "core", map[string]string{"init.lua": "x"})
		c := NewFileComponent(desc)
		ctx := newCtx(t)
		if err := c.Install(ctx); err != nil {
			t.Fatal(err)
		}
		if err := c.Uninstall(ctx); err != nil {
			t.Fatalf("Uninstall: %v", err)
		}
		if _, err := os.Stat(filepath.Join(ctx.InstallDir, "components", "core")); !os.IsNotExist(err) {
			t.Error("emptied component directory not removed")
		}
		// Install root itself survives.
		if _, err := os.Stat(ctx.InstallDir); err != nil {
			t.Errorf("install root removed: %v", err)
		}
	})

	t.Run("spares directories holding foreign files", func(t *testing.T) {
		t.Parallel()
		desc := writeComponentPayload(t, "core", map[string]string{"init.lua": "x"})
		c := NewFileComponent(desc)
		ctx := newCtx(t)
		if err := c.Install(ctx); err != nil {
			t.Fatal(err)
		}

		foreign := filepath.Join(ctx.InstallDir, "components", "core", "user-notes.txt")
		if err := os.WriteFile(foreign, []byte("mine"), 0o644); err != nil {
			t.Fatal(err)
		}

		if err := c.Uninstall(ctx); err != nil {
			t.Fatalf("Uninstall: %v", err)
		}
		if _, err := os.Stat(foreign); err != nil {
			t.Errorf("foreign file removed: %v", err)
		}
		if _, err := os.Stat(filepath.Join(ctx.InstallDir, "components", "core")); err != nil {
			t.Errorf("directory with foreign file removed: %v", err)
		}
	})

	t.Run("missing targets are tolerated", func(t *testing.T) {
		t.Parallel()
		desc := writeComponentPayload(t, "core", map[string]string{"init.lua": "x"})
		c := NewFileComponent(desc)
		if err := c.Uninstall(newCtx(t)); err != nil {
			t.Errorf("Uninstall on clean tree: %v", err)
		}
	})
}
