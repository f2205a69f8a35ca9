package backup

import (
	"fmt"
	"os"
	"time"
)

// PruneAction describes one archive removed (or that would be removed)
// by Prune.
type PruneAction struct {
	Path   string
	Reason string // "age" or "count"
}

// PrunePolicy bounds how many archives are retained. Zero values
// disable the corresponding limit.
type PrunePolicy struct {
	// Keep retains at most this many archives (newest first).
	Keep int
	// MaxAge removes archives whose embedded creation time is older.
	MaxAge time.Duration
	// DryRun reports what would be removed without removing it.
	DryRun bool
}

// Prune applies the retention policy to backupDir and reports every
// archive it removed. Age is judged by the archive's embedded creation
// time, falling back to never-pruned when the record is unreadable:
// a backup of unknown age is not one to delete.
func (m *Manager) Prune(backupDir string, policy PrunePolicy) ([]PruneAction, error) {
	infos, err := List(backupDir)
	if err != nil {
		return nil, err
	}

	now := m.now()
	doomed := make(map[string]string)

	if policy.MaxAge > 0 {
		for _, info := range infos {
			if info.CreatedAt.IsZero() {
				continue
			}
			if now.Sub(info.CreatedAt) > policy.MaxAge {
				doomed[info.Path] = "age"
			}
		}
	}
	if policy.Keep > 0 && len(infos) > policy.Keep {
		// List is newest first; everything past Keep goes.
		for _, info := range infos[policy.Keep:] {
			if _, already := doomed[info.Path]; !already {
				doomed[info.Path] = "count"
			}
		}
	}

	var actions []PruneAction
	for _, info := range infos {
		reason, ok := doomed[info.Path]
		if !ok {
			continue
		}
		if !policy.DryRun {
			if err := os.Remove(info.Path); err != nil {
				return actions, fmt.Errorf("pruning %s: %w", info.Path, err)
			}
		}
		actions = append(actions, PruneAction{Path: info.Path, Reason: reason})
	}
	return actions, nil
}
