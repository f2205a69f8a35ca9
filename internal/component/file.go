package component

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/papapumpkin/starforge/internal/pathsec"
)

// FileComponent is the default manifest-driven component: every file
// pair in the descriptor is copied under the install root on install
// and removed again on uninstall. Custom categories wrap or replace it
// through the catalog's factory table.
type FileComponent struct {
	desc Descriptor
}

// NewFileComponent is the Factory for plain file-manifest components.
func NewFileComponent(desc Descriptor) Component {
	return &FileComponent{desc: desc}
}

// Descriptor returns the component's identity and manifest.
func (f *FileComponent) Descriptor() Descriptor {
	return f.desc
}

// Validate checks every manifest source exists, every target resolves
// inside the install root, and the install root (when it exists) is
// writable. It never mutates the filesystem beyond the write probe.
func (f *FileComponent) Validate(ctx *Context) error {
	if len(f.desc.Files) == 0 {
		return fmt.Errorf("component %s declares no manifest entries", f.desc.Name)
	}
	for _, entry := range f.desc.Files {
		src := filepath.Join(f.desc.Dir, entry.Source)
		if _, err := os.Stat(src); err != nil {
			return fmt.Errorf("manifest source %s: %w", entry.Source, err)
		}
		if ok, reason := pathsec.ValidatePath(entry.Target, ctx.InstallDir); !ok {
			return fmt.Errorf("manifest target %s: %s", entry.Target, reason)
		}
	}
	if _, err := os.Stat(ctx.InstallDir); err == nil {
		if ok, missing := pathsec.CheckPermissions(ctx.InstallDir, []pathsec.Perm{pathsec.PermWrite}); !ok {
			return fmt.Errorf("install dir %s: missing %v permission", ctx.InstallDir, missing)
		}
	}
	return nil
}

// Install copies each manifest entry under the install root. Re-running
// against an already-installed tree rewrites the same bytes to the same
// paths, so the end state is idempotent. With the file_backup extension
// key set, a target about to change is first copied aside to
// <target>.bak.
func (f *FileComponent) Install(ctx *Context) error {
	for _, entry := range f.desc.Files {
		src := filepath.Join(f.desc.Dir, entry.Source)
		dst := filepath.Join(ctx.InstallDir, entry.Target)

		if ctx.DryRun {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", filepath.Dir(dst), err)
		}
		if ctx.ConfigBool("file_backup") {
			if err := backupChangedTarget(src, dst); err != nil {
				return err
			}
		}
		if err := copyFile(src, dst); err != nil {
			return fmt.Errorf("copying %s: %w", entry.Target, err)
		}
	}
	return nil
}

// Uninstall removes the manifest targets. Only files the manifest
// names are deleted, and a parent directory is removed only once it is
// empty, so files this system did not place are never swept away.
func (f *FileComponent) Uninstall(ctx *Context) error {
	if ctx.DryRun {
		return nil
	}
	dirs := make(map[string]bool)
	for _, entry := range f.desc.Files {
		dst := filepath.Join(ctx.InstallDir, entry.Target)
		if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing %s: %w", entry.Target, err)
		}
		dirs[filepath.Dir(dst)] = true
	}
	removeEmptyDirs(dirs, ctx.InstallDir)
	return nil
}

// Verify confirms every manifest target exists after an install.
func (f *FileComponent) Verify(ctx *Context) error {
	if ctx.DryRun {
		return nil
	}
	for _, entry := range f.desc.Files {
		dst := filepath.Join(ctx.InstallDir, entry.Target)
		if _, err := os.Stat(dst); err != nil {
			return fmt.Errorf("expected target missing after install: %s", entry.Target)
		}
	}
	return nil
}

// backupChangedTarget copies dst aside to dst.bak when it exists and
// its content differs from what src is about to write.
func backupChangedTarget(src, dst string) error {
	existing, err := os.ReadFile(dst)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading %s for backup: %w", dst, err)
	}
	incoming, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("reading %s: %w", src, err)
	}
	if bytes.Equal(existing, incoming) {
		return nil
	}
	if err := os.WriteFile(dst+".bak", existing, 0o644); err != nil {
		return fmt.Errorf("writing %s.bak: %w", dst, err)
	}
	return nil
}

// copyFile copies src to dst, preserving the source's permission bits.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// removeEmptyDirs removes the given directories when empty, deepest
// first, then walks toward the install root pruning parents that the
// removals emptied. The install root itself is never removed.
func removeEmptyDirs(dirs map[string]bool, installDir string) {
	root := filepath.Clean(installDir)
	ordered := make([]string, 0, len(dirs))
	for d := range dirs {
		ordered = append(ordered, d)
	}
	sort.Slice(ordered, func(i, j int) bool { return len(ordered[i]) > len(ordered[j]) })

	for _, dir := range ordered {
		for d := filepath.Clean(dir); d != root && len(d) > len(root); d = filepath.Dir(d) {
			entries, err := os.ReadDir(d)
			if err != nil || len(entries) > 0 {
				break
			}
			if err := os.Remove(d); err != nil {
				break
			}
		}
	}
}
