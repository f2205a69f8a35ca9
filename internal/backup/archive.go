package backup

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/papapumpkin/starforge/internal/pathsec"
)

// ErrNoMetadata is returned when an archive carries no embedded
// metadata record.
var ErrNoMetadata = errors.New("archive has no metadata record")

// RestoreResult counts the outcome of a Restore call.
type RestoreResult struct {
	Restored int
	Skipped  int
}

// List returns every archive under backupDir, newest first. A missing
// backups directory yields an empty list.
func List(backupDir string) ([]Info, error) {
	entries, err := os.ReadDir(backupDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading backups dir: %w", err)
	}

	var infos []Info
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, archivePrefix) || !strings.HasSuffix(name, archiveSuffix) {
			continue
		}
		info, err := Read(filepath.Join(backupDir, name))
		if err != nil {
			// An unreadable archive still shows up, with zero metadata,
			// so operators can see and remove it.
			fi, serr := e.Info()
			if serr != nil {
				continue
			}
			infos = append(infos, Info{Path: filepath.Join(backupDir, name), Size: fi.Size()})
			continue
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Path > infos[j].Path })
	return infos, nil
}

// Read opens one archive and returns its embedded metadata record.
func Read(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return Info{}, err
	}
	info := Info{Path: path, Size: stat.Size()}

	gz, err := gzip.NewReader(f)
	if err != nil {
		return Info{}, fmt.Errorf("reading archive %s: %w", path, err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return Info{}, fmt.Errorf("%w: %s", ErrNoMetadata, path)
		}
		if err != nil {
			return Info{}, fmt.Errorf("reading archive %s: %w", path, err)
		}
		if filepath.Base(hdr.Name) != MetadataFileName || filepath.Dir(hdr.Name) != "." {
			continue
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return Info{}, fmt.Errorf("reading metadata record: %w", err)
		}
		if err := toml.Unmarshal(data, &info.Metadata); err != nil {
			return Info{}, fmt.Errorf("parsing metadata record: %w", err)
		}
		return info, nil
	}
}

// Restore extracts every archived entry except the metadata record
// into targetDir. An entry whose target already exists is skipped
// unless overwrite is set; the skip is per entry, never
// all-or-nothing. Entry names are validated against targetDir so a
// crafted archive cannot write outside it.
func Restore(path, targetDir string, overwrite bool) (RestoreResult, error) {
	var res RestoreResult

	f, err := os.Open(path)
	if err != nil {
		return res, fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return res, fmt.Errorf("reading archive %s: %w", path, err)
	}
	defer gz.Close()

	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return res, fmt.Errorf("creating %s: %w", targetDir, err)
	}

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return res, nil
		}
		if err != nil {
			return res, fmt.Errorf("reading archive %s: %w", path, err)
		}
		name := filepath.FromSlash(hdr.Name)
		if name == MetadataFileName {
			continue
		}
		if ok, reason := pathsec.ValidatePath(name, targetDir); !ok {
			return res, fmt.Errorf("archive entry %s: %s", hdr.Name, reason)
		}
		dst := filepath.Join(targetDir, name)

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(dst, os.FileMode(hdr.Mode).Perm()|0o700); err != nil {
				return res, fmt.Errorf("creating %s: %w", name, err)
			}
		case tar.TypeReg:
			if _, err := os.Stat(dst); err == nil && !overwrite {
				res.Skipped++
				if _, err := io.Copy(io.Discard, tr); err != nil {
					return res, fmt.Errorf("reading archive %s: %w", path, err)
				}
				continue
			}
			if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
				return res, fmt.Errorf("creating %s: %w", filepath.Dir(name), err)
			}
			out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode).Perm())
			if err != nil {
				return res, fmt.Errorf("restoring %s: %w", name, err)
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return res, fmt.Errorf("restoring %s: %w", name, err)
			}
			if err := out.Close(); err != nil {
				return res, fmt.Errorf("restoring %s: %w", name, err)
			}
			res.Restored++
		}
	}
}

// writeMetadata marshals the metadata record into the staging area.
func writeMetadata(path string, meta Metadata) error {
	data, err := toml.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshaling backup metadata: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing backup metadata: %w", err)
	}
	return nil
}

// writeArchive compresses the staging tree into a gzip tar at dst.
// Entry names are slash-separated and relative to the staging root.
func writeArchive(dst, staging string) error {
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("creating archive: %w", err)
	}
	gz := gzip.NewWriter(out)
	tw := tar.NewWriter(gz)

	walkErr := filepath.Walk(staging, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(staging, path)
		if err != nil || rel == "." {
			return err
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})

	if walkErr != nil {
		tw.Close()
		gz.Close()
		out.Close()
		return fmt.Errorf("compressing backup: %w", walkErr)
	}
	if err := tw.Close(); err != nil {
		gz.Close()
		out.Close()
		return fmt.Errorf("compressing backup: %w", err)
	}
	if err := gz.Close(); err != nil {
		out.Close()
		return fmt.Errorf("compressing backup: %w", err)
	}
	return out.Close()
}
