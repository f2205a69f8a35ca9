package installer

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultMinFreeMB is the free-disk floor applied when the installer
// is not configured with one.
const DefaultMinFreeMB = 500

// ValidateSystemRequirements checks the environment before a mutating
// batch: free disk space on the volume holding targetDir against the
// configured minimum, and write permission on the target (probed by
// creating and removing a marker file). Both checks are advisory; the
// caller may proceed anyway under a force flag.
func (ins *Installer) ValidateSystemRequirements(targetDir string) (bool, []error) {
	var problems []error

	minMB := ins.MinFreeMB
	if minMB <= 0 {
		minMB = DefaultMinFreeMB
	}

	probe := nearestExisting(targetDir)
	free, err := freeBytes(probe)
	if err != nil {
		problems = append(problems, fmt.Errorf("checking free disk space on %s: %w", probe, err))
	} else if free < uint64(minMB)*1024*1024 {
		problems = append(problems, fmt.Errorf("insufficient disk space: %d MB free, need %d MB", free/(1024*1024), minMB))
	}

	if err := probeWritable(probe); err != nil {
		problems = append(problems, fmt.Errorf("target %s not writable: %w", targetDir, err))
	}

	return len(problems) == 0, problems
}

// nearestExisting walks up from path to the closest directory that
// exists, so a not-yet-created install root is judged by where it
// would be created.
func nearestExisting(path string) string {
	dir := filepath.Clean(path)
	for {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}

// probeWritable creates and removes a marker file in dir.
func probeWritable(dir string) error {
	marker, err := os.CreateTemp(dir, ".starforge-probe-*")
	if err != nil {
		return err
	}
	name := marker.Name()
	marker.Close()
	return os.Remove(name)
}
