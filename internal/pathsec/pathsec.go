// Package pathsec guards filesystem mutation against path traversal and
// missing permissions. Every manifest target is validated here before
// the installer copies anything.
package pathsec

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Perm identifies a permission to probe with CheckPermissions.
type Perm string

const (
	PermRead    Perm = "read"
	PermWrite   Perm = "write"
	PermExecute Perm = "execute"
)

// ValidatePath reports whether path stays inside baseDir once resolved.
// Absolute paths are accepted only when they are lexically under
// baseDir; relative paths are joined onto baseDir and must not climb
// out through dot-segments. The returned reason is empty on success.
func ValidatePath(path, baseDir string) (bool, string) {
	if path == "" {
		return false, "empty path"
	}
	base, err := filepath.Abs(baseDir)
	if err != nil {
		return false, fmt.Sprintf("resolving base directory: %v", err)
	}

	candidate := path
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(base, candidate)
	}
	candidate = filepath.Clean(candidate)

	rel, err := filepath.Rel(base, candidate)
	if err != nil {
		return false, fmt.Sprintf("resolving %q against %q: %v", path, baseDir, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false, fmt.Sprintf("%q escapes base directory %q", path, baseDir)
	}
	return true, ""
}

// CheckPermissions probes the requested permissions on path and returns
// whether all hold, plus the subset that do not. A missing path fails
// every requested permission.
func CheckPermissions(path string, perms []Perm) (bool, []Perm) {
	info, err := os.Stat(path)
	if err != nil {
		return false, append([]Perm(nil), perms...)
	}

	var missing []Perm
	for _, p := range perms {
		switch p {
		case PermRead:
			if !probeRead(path, info.IsDir()) {
				missing = append(missing, p)
			}
		case PermWrite:
			if !probeWrite(path, info.IsDir()) {
				missing = append(missing, p)
			}
		case PermExecute:
			if info.Mode().Perm()&0o111 == 0 {
				missing = append(missing, p)
			}
		}
	}
	return len(missing) == 0, missing
}

// probeRead opens the path (or lists the directory) to confirm the
// current user can actually read it; mode bits alone lie under ACLs
// and root squashing.
func probeRead(path string, isDir bool) bool {
	if isDir {
		_, err := os.ReadDir(path)
		return err == nil
	}
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	f.Close()
	return true
}

// probeWrite confirms writability. Directories get a create-then-remove
// marker probe; files are opened for append without truncation.
func probeWrite(path string, isDir bool) bool {
	if isDir {
		marker, err := os.CreateTemp(path, ".perm-probe-*")
		if err != nil {
			return false
		}
		name := marker.Name()
		marker.Close()
		os.Remove(name)
		return true
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return false
	}
	f.Close()
	return true
}
