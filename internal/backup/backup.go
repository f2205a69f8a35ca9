// Package backup snapshots an install root into timestamped gzip tar
// archives before any mutating batch, and restores or prunes them.
// Archives are staged in a private temp directory and finalized with a
// rename, so an interrupted run leaves either a complete archive or
// none.
package backup

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/papapumpkin/starforge/internal/metastore"
)

// DirName is the backups directory kept under the install root.
const DirName = "backups"

// MetadataFileName is the record embedded in every archive.
const MetadataFileName = "backup_metadata.toml"

// archivePrefix and archiveSuffix frame the timestamped archive name.
const (
	archivePrefix = "starforge_"
	archiveSuffix = ".tar.gz"
)

// Metadata is the record embedded in each archive.
type Metadata struct {
	CreatedAt  time.Time         `toml:"created_at"`
	SourceDir  string            `toml:"source_dir"`
	FileCount  int               `toml:"file_count"`
	Components map[string]string `toml:"components,omitempty"`
}

// Info describes one archive on disk.
type Info struct {
	Path string
	Size int64
	Metadata
}

// Manager creates and reads backup archives for install roots.
type Manager struct {
	// Exclude lists root-level names skipped while staging, beyond the
	// backups directory itself. Transient state does not belong in a
	// snapshot.
	Exclude []string

	// Warnf reports per-item staging failures, which are tolerated.
	// Defaults to stderr.
	Warnf func(format string, args ...any)

	// Now is an injectable clock for archive naming. Defaults to
	// time.Now.
	Now func() time.Time
}

// Create snapshots targetDir into a new archive under
// targetDir/backups and returns the archive path. A target that does
// not exist yet has nothing to protect: the result is "" with no
// error. Any staging or compression failure is returned, and the caller
// must treat it as fatal to the enclosing batch, because proceeding
// without restorability defeats the point of the backup.
//
// Items that individually fail to stage are skipped with a warning;
// when nothing at all could be staged the archive still gets written
// with just its metadata record, so "a backup was attempted" is always
// observable on disk.
func (m *Manager) Create(targetDir string) (string, error) {
	if _, err := os.Stat(targetDir); err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("stat %s: %w", targetDir, err)
	}

	staging, err := os.MkdirTemp("", "starforge-backup-*")
	if err != nil {
		return "", fmt.Errorf("creating staging dir: %w", err)
	}
	defer os.RemoveAll(staging)

	count := m.stageTree(targetDir, staging)

	meta := Metadata{
		CreatedAt:  m.now(),
		SourceDir:  targetDir,
		FileCount:  count,
		Components: snapshotVersions(targetDir),
	}
	if err := writeMetadata(filepath.Join(staging, MetadataFileName), meta); err != nil {
		return "", err
	}

	backupDir := filepath.Join(targetDir, DirName)
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return "", fmt.Errorf("creating backups dir: %w", err)
	}

	name := archivePrefix + meta.CreatedAt.Format("20060102_150405") + archiveSuffix
	final := filepath.Join(backupDir, name)
	tmp := filepath.Join(backupDir, "."+name+".tmp")
	if err := writeArchive(tmp, staging); err != nil {
		os.Remove(tmp)
		return "", err
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("finalizing archive: %w", err)
	}
	return final, nil
}

// stageTree copies targetDir's contents into staging, skipping the
// backups directory and configured exclusions. Per-item failures are
// warned about and skipped; the return value is the number of files
// staged successfully.
func (m *Manager) stageTree(targetDir, staging string) int {
	count := 0
	filepath.Walk(targetDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			m.warnf("skipping %s: %v", path, err)
			if info != nil && info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		rel, rerr := filepath.Rel(targetDir, path)
		if rerr != nil || rel == "." {
			return nil
		}
		if m.excluded(rel) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		dst := filepath.Join(staging, rel)
		if info.IsDir() {
			if err := os.MkdirAll(dst, 0o755); err != nil {
				m.warnf("skipping %s: %v", rel, err)
				return filepath.SkipDir
			}
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		if err := copyFile(path, dst, info.Mode().Perm()); err != nil {
			m.warnf("skipping %s: %v", rel, err)
			return nil
		}
		count++
		return nil
	})
	return count
}

// excluded reports whether a root-relative staging path is skipped.
func (m *Manager) excluded(rel string) bool {
	top := rel
	if i := strings.IndexByte(rel, filepath.Separator); i >= 0 {
		top = rel[:i]
	}
	if top == DirName {
		return true
	}
	if strings.HasSuffix(rel, ".tmp") {
		return true
	}
	for _, ex := range m.Exclude {
		if top == ex || rel == ex {
			return true
		}
	}
	return false
}

// snapshotVersions records installed component versions from the
// metadata store, best effort: a missing or corrupt store just leaves
// the archive record without versions.
func snapshotVersions(targetDir string) map[string]string {
	store := metastore.New(targetDir)
	installed, err := store.InstalledComponents()
	if err != nil || len(installed) == 0 {
		return nil
	}
	versions := make(map[string]string, len(installed))
	for name, record := range installed {
		v, _ := record["version"].(string)
		versions[name] = v
	}
	return versions
}

func (m *Manager) warnf(format string, args ...any) {
	if m.Warnf != nil {
		m.Warnf(format, args...)
		return
	}
	fmt.Fprintf(os.Stderr, "warning: "+format+"\n", args...)
}

func (m *Manager) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
