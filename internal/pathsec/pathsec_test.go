package pathsec

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidatePath(t *testing.T) {
	t.Parallel()

	base := t.TempDir()

	cases := []struct {
		name string
		path string
		ok   bool
	}{
		{"simple relative", "components/core/init.lua", true},
		{"dot segment inside", "components/./core", true},
		{"empty", "", false},
		{"parent escape", "../outside", false},
		{"deep escape", "components/../../outside", false},
		{"absolute inside", filepath.Join(base, "sub", "file"), true},
		{"absolute outside", filepath.Join(os.TempDir(), "elsewhere"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			ok, reason := ValidatePath(tc.path, base)
			if ok != tc.ok {
				t.Errorf("ValidatePath(%q) = %v (%s), want %v", tc.path, ok, reason, tc.ok)
			}
			if !ok && reason == "" {
				t.Error("rejection carried no reason")
			}
		})
	}
}

func TestCheckPermissions(t *testing.T) {
	t.Parallel()

	t.Run("missing path fails all", func(t *testing.T) {
		t.Parallel()
		ok, missing := CheckPermissions(filepath.Join(t.TempDir(), "nope"), []Perm{PermRead, PermWrite})
		if ok || len(missing) != 2 {
			t.Errorf("CheckPermissions on missing path = %v, missing %v", ok, missing)
		}
	})

	t.Run("writable directory", func(t *testing.T) {
		t.Parallel()
		ok, missing := CheckPermissions(t.TempDir(), []Perm{PermRead, PermWrite})
		if !ok {
			t.Errorf("CheckPermissions on temp dir: missing %v", missing)
		}
	})

	t.Run("readable file", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "f.txt")
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		ok, missing := CheckPermissions(path, []Perm{PermRead, PermWrite})
		if !ok {
			t.Errorf("CheckPermissions on regular file: missing %v", missing)
		}
	})

	t.Run("execute bit", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "plain.txt")
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		ok, missing := CheckPermissions(path, []Perm{PermExecute})
		if ok || len(missing) != 1 || missing[0] != PermExecute {
			t.Errorf("CheckPermissions execute on 0644 file = %v, missing %v", ok, missing)
		}
	})
}
