package ui

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/papapumpkin/starforge/internal/backup"
	"github.com/papapumpkin/starforge/internal/component"
	"github.com/papapumpkin/starforge/internal/history"
	"github.com/papapumpkin/starforge/internal/installer"
)

// ANSI color codes.
const (
	reset  = "\033[0m"
	bold   = "\033[1m"
	dim    = "\033[2m"
	blue   = "\033[34m"
	yellow = "\033[33m"
	green  = "\033[32m"
	red    = "\033[31m"
	cyan   = "\033[36m"
)

type Printer struct{}

func New() *Printer {
	return &Printer{}
}

func (p *Printer) Error(msg string) {
	fmt.Fprintf(os.Stderr, red+bold+"error: "+reset+"%s\n", msg)
}

func (p *Printer) Warn(msg string) {
	fmt.Fprintf(os.Stderr, yellow+"warning: "+reset+"%s\n", msg)
}

func (p *Printer) Info(msg string) {
	fmt.Fprintf(os.Stderr, dim+"%s"+reset+"\n", msg)
}

func (p *Printer) BatchStart(kind string, names []string) {
	fmt.Fprintf(os.Stderr, bold+cyan+"▶ %s"+reset+" %s\n", kind, strings.Join(names, ", "))
}

// Plan renders the resolved installation order grouped by dependency
// level. Members of one level share no ordering constraint.
func (p *Printer) Plan(levels [][]string) {
	fmt.Fprintf(os.Stderr, "\n"+bold+cyan+"installation plan"+reset+"\n")
	if len(levels) == 0 {
		fmt.Fprintln(os.Stderr, dim+"  (nothing to install)"+reset)
		return
	}
	for i, level := range levels {
		fmt.Fprintf(os.Stderr, "  "+dim+"level %d"+reset+"  %s\n", i+1, strings.Join(level, ", "))
	}
	fmt.Fprintln(os.Stderr)
}

// Summary prints the outcome of a batch.
func (p *Printer) Summary(sum installer.Summary) {
	for _, name := range sum.Installed {
		fmt.Fprintf(os.Stderr, "  "+green+"✓ %s"+reset+"\n", name)
	}
	for _, name := range sum.Skipped {
		reason := sum.Problems[name]
		if reason == "" {
			fmt.Fprintf(os.Stderr, "  "+dim+"- %s skipped"+reset+"\n", name)
		} else {
			fmt.Fprintf(os.Stderr, "  "+dim+"- %s skipped (%s)"+reset+"\n", name, reason)
		}
	}
	for _, name := range sum.Failed {
		fmt.Fprintf(os.Stderr, "  "+red+"✗ %s"+reset+" — %s\n", name, sum.Problems[name])
	}
	for _, v := range sum.Verification {
		fmt.Fprintf(os.Stderr, "  "+yellow+"⚠ %s"+reset+"\n", v)
	}
	if sum.BackupPath != "" {
		fmt.Fprintf(os.Stderr, dim+"  backup: %s"+reset+"\n", sum.BackupPath)
	}

	if len(sum.Failed) == 0 {
		fmt.Fprintf(os.Stderr, green+bold+"✓ done"+reset+" — %d installed, %d skipped\n",
			len(sum.Installed), len(sum.Skipped))
	} else {
		fmt.Fprintf(os.Stderr, red+bold+"✗ completed with failures"+reset+" — %d installed, %d failed, %d skipped\n",
			len(sum.Installed), len(sum.Failed), len(sum.Skipped))
	}
}

// ComponentList renders the catalog with installed state markers.
func (p *Printer) ComponentList(descs map[string]component.Descriptor, installed map[string]string) {
	names := make([]string, 0, len(descs))
	for name := range descs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		d := descs[name]
		marker := dim + "·" + reset
		state := ""
		if v, ok := installed[name]; ok {
			marker = green + "✓" + reset
			state = dim + " installed"
			if v != "" && v != d.Version {
				state = yellow + " installed " + v + reset
			}
			state += reset
		}
		var deps string
		if len(d.DependsOn) > 0 {
			deps = dim + " depends:[" + strings.Join(d.DependsOn, ",") + "]" + reset
		}
		fmt.Fprintf(os.Stderr, "  %s %-20s %-10s %s%s%s\n", marker, name, d.Version, d.Description, deps, state)
	}
}

// CheckReport renders catalog validation findings.
func (p *Printer) CheckReport(problems []error) {
	if len(problems) == 0 {
		fmt.Fprintln(os.Stderr, green+bold+"✓ catalog ok"+reset)
		return
	}
	fmt.Fprintf(os.Stderr, red+bold+"✗ %d problem(s):"+reset+"\n", len(problems))
	for _, e := range problems {
		fmt.Fprintf(os.Stderr, "  "+red+"• "+reset+"%s\n", e.Error())
	}
}

// BackupList renders backup archives, newest first.
func (p *Printer) BackupList(infos []backup.Info) {
	if len(infos) == 0 {
		fmt.Fprintln(os.Stderr, dim+"(no backups)"+reset)
		return
	}
	for _, info := range infos {
		stamp := dim + "(unreadable metadata)" + reset
		if !info.Metadata.CreatedAt.IsZero() {
			stamp = info.Metadata.CreatedAt.Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(os.Stderr, "  %-50s %s  %d file(s)  %s\n",
			info.Path, stamp, info.Metadata.FileCount, formatSize(info.Size))
	}
}

// BackupDetail renders one archive's metadata including the component
// versions captured at backup time.
func (p *Printer) BackupDetail(info backup.Info) {
	fmt.Fprintf(os.Stderr, bold+cyan+"%s"+reset+"\n", info.Path)
	fmt.Fprintf(os.Stderr, "  created:    %s\n", info.Metadata.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(os.Stderr, "  source:     %s\n", info.Metadata.SourceDir)
	fmt.Fprintf(os.Stderr, "  files:      %d\n", info.Metadata.FileCount)
	fmt.Fprintf(os.Stderr, "  size:       %s\n", formatSize(info.Size))
	if len(info.Metadata.Components) > 0 {
		fmt.Fprintln(os.Stderr, "  components:")
		names := make([]string, 0, len(info.Metadata.Components))
		for name := range info.Metadata.Components {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(os.Stderr, "    %-20s %s\n", name, info.Metadata.Components[name])
		}
	}
}

func (p *Printer) RestoreDone(res backup.RestoreResult) {
	fmt.Fprintf(os.Stderr, green+bold+"✓ restore complete"+reset+" — %d restored, %d skipped\n",
		res.Restored, res.Skipped)
}

func (p *Printer) PruneReport(actions []backup.PruneAction, dryRun bool) {
	if len(actions) == 0 {
		fmt.Fprintln(os.Stderr, dim+"(nothing to prune)"+reset)
		return
	}
	verb := "removed"
	if dryRun {
		verb = "would remove"
	}
	for _, a := range actions {
		fmt.Fprintf(os.Stderr, "  "+yellow+"× %s"+reset+dim+" (%s)"+reset+"\n", a.Path, a.Reason)
	}
	fmt.Fprintf(os.Stderr, "%s %d archive(s)\n", verb, len(actions))
}

// HistoryList renders recent batches from the journal.
func (p *Printer) HistoryList(batches []history.Batch) {
	if len(batches) == 0 {
		fmt.Fprintln(os.Stderr, dim+"(no history)"+reset)
		return
	}
	for _, b := range batches {
		status := green + "ok" + reset
		if !b.OK {
			status = red + "failed" + reset
		}
		fmt.Fprintf(os.Stderr, "  #%-4d %-10s %s  %s\n",
			b.ID, b.Kind, b.StartedAt.Format("2006-01-02 15:04:05"), status)
		if b.BackupPath != "" {
			fmt.Fprintf(os.Stderr, "        "+dim+"backup: %s"+reset+"\n", b.BackupPath)
		}
	}
}

func (p *Printer) WatchEvent(kind, name string) {
	var color, symbol string
	switch kind {
	case "added":
		color, symbol = green, "+"
	case "removed":
		color, symbol = red, "×"
	default:
		color, symbol = yellow, "~"
	}
	fmt.Fprintf(os.Stderr, color+symbol+" %s"+reset+"\n", name)
}

// formatSize renders a byte count in the nearest binary unit.
func formatSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

