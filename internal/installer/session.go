package installer

import "sort"

// Component states within one batch. A component moves
// notAttempted → validating → installing → registered, or drops to
// failed from either working state; failed is terminal for the run.
const (
	StateNotAttempted = "not_attempted"
	StateValidating   = "validating"
	StateInstalling   = "installing"
	StateRegistered   = "registered"
	StateFailed       = "failed"
)

// Summary is the caller-facing reflection of one orchestration run.
// Batches report partial failure here instead of through their error
// return.
type Summary struct {
	Installed []string
	Failed    []string
	Skipped   []string

	// Problems maps a failed or skipped component to the reason.
	Problems map[string]string

	// Verification lists post-install validation findings. They are
	// reported, never acted on retroactively.
	Verification []string

	// BackupPath is the archive created for this run, if any.
	BackupPath string
}

// session tracks ephemeral per-run state. It is owned by the Installer
// and protected by the Installer's mutex when a level executes in
// parallel; nothing here is persisted.
type session struct {
	installed map[string]bool
	failed    map[string]bool
	skipped   map[string]bool
	problems  map[string]string
	verify    []string
	backup    string
}

func newSession() *session {
	return &session{
		installed: make(map[string]bool),
		failed:    make(map[string]bool),
		skipped:   make(map[string]bool),
		problems:  make(map[string]string),
	}
}

func (s *session) summary() Summary {
	sum := Summary{
		Installed:    sortedSet(s.installed),
		Failed:       sortedSet(s.failed),
		Skipped:      sortedSet(s.skipped),
		Problems:     make(map[string]string, len(s.problems)),
		Verification: append([]string(nil), s.verify...),
		BackupPath:   s.backup,
	}
	for k, v := range s.problems {
		sum.Problems[k] = v
	}
	return sum
}

func sortedSet(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
