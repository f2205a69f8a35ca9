// Package installer orchestrates component batches: it resolves the
// requested set through the catalog, gates on system requirements and
// a fresh backup, then walks the resolved order invoking each
// component, continuing past individual failures and reporting the
// aggregate in a session summary.
package installer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/papapumpkin/starforge/internal/backup"
	"github.com/papapumpkin/starforge/internal/catalog"
	"github.com/papapumpkin/starforge/internal/component"
	"github.com/papapumpkin/starforge/internal/history"
	"github.com/papapumpkin/starforge/internal/metastore"
	"github.com/papapumpkin/starforge/internal/telemetry"
)

// Installer drives one orchestration run against a single install
// root. Create a fresh Installer per run; the session state it
// accumulates is never persisted.
type Installer struct {
	Catalog    *catalog.Catalog
	InstallDir string
	Meta       *metastore.Store

	// Backups creates the pre-mutation snapshot. Defaults to a plain
	// manager excluding the history journal.
	Backups *backup.Manager

	// Audit receives structured events for the run; nil disables
	// auditing.
	Audit *telemetry.Emitter

	// Journal records batch outcomes in the local history database;
	// nil disables journaling.
	Journal *history.Store

	// MinFreeMB overrides the free-disk floor (default 500).
	MinFreeMB int64

	// Parallel executes each dependency level's members concurrently.
	// Ordering between levels is always preserved.
	Parallel bool

	// Warnf reports non-fatal conditions. Defaults to stderr.
	Warnf func(format string, args ...any)

	mu      sync.Mutex
	sess    *session
	batchID int64
}

// New builds an Installer over cat targeting installDir, with the
// metadata store and backup manager wired to the same root.
func New(cat *catalog.Catalog, installDir string) *Installer {
	return &Installer{
		Catalog:    cat,
		InstallDir: installDir,
		Meta:       metastore.New(installDir),
		Backups:    &backup.Manager{Exclude: []string{history.FileName}},
	}
}

// Summary returns the session's aggregate result so far.
func (ins *Installer) Summary() Summary {
	ins.mu.Lock()
	defer ins.mu.Unlock()
	return ins.currentSession().summary()
}

// InstallComponents resolves names, validates the environment, snapshots
// the target, then installs each resolved component in dependency
// order. One bad component does not block the rest (fail-soft); only
// graph errors, failed system requirements (unless cfg["force"]), and
// backup failures abort the whole call. The boolean reports whether
// every attempted component succeeded; per-component detail is in
// Summary.
func (ins *Installer) InstallComponents(ctx context.Context, names []string, cfg map[string]any) (bool, error) {
	return ins.runBatch(ctx, "install", names, cfg)
}

// UpdateComponents re-installs the named components in dependency
// order. The default strategy is overwrite-in-place; the per-file
// backup-before-overwrite extension is enabled unless the caller set
// it explicitly.
func (ins *Installer) UpdateComponents(ctx context.Context, names []string, cfg map[string]any) (bool, error) {
	cfg = cloneConfig(cfg)
	if _, set := cfg["file_backup"]; !set {
		cfg["file_backup"] = true
	}
	return ins.runBatch(ctx, "update", names, cfg)
}

func (ins *Installer) runBatch(ctx context.Context, kind string, names []string, cfg map[string]any) (ok bool, err error) {
	order, err := ins.Catalog.Resolve(names)
	if err != nil {
		return false, kindErr(KindGraph, "", err)
	}

	ins.beginJournal(ctx, kind)
	ins.emit(telemetry.Event{Kind: telemetry.KindBatchStart, Batch: kind, Data: map[string]any{"requested": names, "order": order}})
	defer func() { ins.finishJournal(ctx, ok) }()

	if sysOK, problems := ins.ValidateSystemRequirements(ins.InstallDir); !sysOK {
		if !configBool(cfg, "force") {
			return false, kindErr(KindPrerequisite, "", errors.Join(problems...))
		}
		for _, p := range problems {
			ins.warnf("forced past failed system check: %v", p)
		}
	}

	if err := ins.maybeBackup(cfg); err != nil {
		return false, err
	}

	if ins.Parallel {
		levels, err := ins.Catalog.InstallationOrder(names)
		if err != nil {
			return false, kindErr(KindGraph, "", err)
		}
		for _, level := range levels {
			var wg sync.WaitGroup
			for _, name := range level {
				wg.Add(1)
				go func(name string) {
					defer wg.Done()
					ins.InstallComponent(ctx, name, cfg)
				}(name)
			}
			wg.Wait()
		}
	} else {
		for _, name := range order {
			ins.InstallComponent(ctx, name, cfg)
		}
	}

	ins.verifyInstalled(cfg)

	sum := ins.Summary()
	ok = len(sum.Failed) == 0
	ins.emit(telemetry.Event{Kind: telemetry.KindBatchDone, Batch: kind, Data: map[string]any{
		"ok": ok, "installed": sum.Installed, "failed": sum.Failed, "skipped": sum.Skipped,
	}})
	return ok, nil
}

// InstallComponent installs a single component. A name already
// installed in this session is a no-op success; the short-circuit is
// session-scoped only and deliberately ignores persisted metadata, so
// a re-run re-attempts installation; end-state idempotence is each
// component's own contract. Prerequisite validation runs before any
// filesystem mutation; on failure the component is recorded failed and
// the batch moves on.
func (ins *Installer) InstallComponent(ctx context.Context, name string, cfg map[string]any) bool {
	ins.mu.Lock()
	sess := ins.currentSession()
	if sess.installed[name] {
		ins.mu.Unlock()
		return true
	}
	ins.mu.Unlock()

	comp, err := ins.Catalog.Component(name)
	if err != nil {
		ins.fail(ctx, name, kindErr(KindGraph, name, err))
		return false
	}

	cctx := &component.Context{
		InstallDir: ins.InstallDir,
		Meta:       ins.Meta,
		DryRun:     configBool(cfg, "dry_run"),
		Config:     cfg,
	}

	ins.setState(ctx, name, StateValidating)
	if err := comp.Validate(cctx); err != nil {
		ins.fail(ctx, name, kindErr(KindPrerequisite, name, err))
		return false
	}

	ins.setState(ctx, name, StateInstalling)
	if err := comp.Install(cctx); err != nil {
		// Files copied before the failure stay in place; partial
		// rollback of a single component is a documented limitation.
		ins.fail(ctx, name, kindErr(KindIO, name, err))
		return false
	}

	if !cctx.DryRun {
		desc := comp.Descriptor()
		if err := ins.Meta.AddComponentRegistration(name, map[string]any{
			"version":  desc.Version,
			"category": desc.Category,
		}); err != nil {
			ins.fail(ctx, name, ins.wrapMetaErr(name, err))
			return false
		}
	}

	ins.mu.Lock()
	ins.currentSession().installed[name] = true
	ins.mu.Unlock()
	ins.setState(ctx, name, StateRegistered)
	return true
}

// verifyInstalled runs the post-install validation pass over
// everything this session installed. Findings are reported in the
// summary; nothing is undone retroactively.
func (ins *Installer) verifyInstalled(cfg map[string]any) {
	sum := ins.Summary()
	for _, name := range sum.Installed {
		comp, err := ins.Catalog.Component(name)
		if err != nil {
			continue
		}
		cctx := &component.Context{
			InstallDir: ins.InstallDir,
			Meta:       ins.Meta,
			DryRun:     configBool(cfg, "dry_run"),
			Config:     cfg,
		}
		if err := comp.Verify(cctx); err != nil {
			verr := kindErr(KindValidation, name, err)
			ins.mu.Lock()
			ins.currentSession().verify = append(ins.currentSession().verify, verr.Error())
			ins.mu.Unlock()
		}
	}
}

// maybeBackup snapshots the install root when it already exists and
// the batch did not opt out. A backup failure aborts the batch: the
// point of the snapshot is restorability, and mutating without it
// forfeits that.
func (ins *Installer) maybeBackup(cfg map[string]any) error {
	if !configBool(cfg, "backup", true) || configBool(cfg, "dry_run") {
		return nil
	}
	path, err := ins.Backups.Create(ins.InstallDir)
	if err != nil {
		return kindErr(KindBackup, "", err)
	}
	if path == "" {
		return nil
	}
	ins.mu.Lock()
	ins.currentSession().backup = path
	ins.mu.Unlock()
	ins.emit(telemetry.Event{Kind: telemetry.KindBackupCreated, Data: map[string]string{"path": path}})
	return nil
}

// wrapMetaErr distinguishes a corrupt store from other registration
// failures.
func (ins *Installer) wrapMetaErr(name string, err error) *Error {
	if errors.Is(err, metastore.ErrCorrupt) {
		return kindErr(KindMetadata, name, err)
	}
	return kindErr(KindIO, name, err)
}

func (ins *Installer) fail(ctx context.Context, name string, err *Error) {
	ins.mu.Lock()
	sess := ins.currentSession()
	sess.failed[name] = true
	sess.problems[name] = err.Error()
	ins.mu.Unlock()
	ins.warnf("%v", err)
	ins.recordOutcome(ctx, name, StateFailed, err.Error())
	ins.emit(telemetry.Event{Kind: telemetry.KindComponentState, Component: name, Data: map[string]string{
		"state": StateFailed, "error": err.Err.Error(), "kind": string(err.Kind),
	}})
}

func (ins *Installer) setState(ctx context.Context, name, state string) {
	if state == StateRegistered {
		ins.recordOutcome(ctx, name, state, "")
	}
	ins.emit(telemetry.Event{Kind: telemetry.KindComponentState, Component: name, Data: map[string]string{"state": state}})
}

func (ins *Installer) currentSession() *session {
	if ins.sess == nil {
		ins.sess = newSession()
	}
	return ins.sess
}

func (ins *Installer) emit(evt telemetry.Event) {
	if err := ins.Audit.Emit(evt); err != nil {
		ins.warnf("audit: %v", err)
	}
}

func (ins *Installer) beginJournal(ctx context.Context, kind string) {
	if ins.Journal == nil {
		return
	}
	id, err := ins.Journal.BeginBatch(ctx, kind)
	if err != nil {
		ins.warnf("history: %v", err)
		return
	}
	ins.mu.Lock()
	ins.batchID = id
	ins.mu.Unlock()
}

func (ins *Installer) finishJournal(ctx context.Context, ok bool) {
	if ins.Journal == nil || ins.batchID == 0 {
		return
	}
	if err := ins.Journal.FinishBatch(ctx, ins.batchID, ok, ins.Summary().BackupPath); err != nil {
		ins.warnf("history: %v", err)
	}
}

func (ins *Installer) recordOutcome(ctx context.Context, name, state, detail string) {
	if ins.Journal == nil || ins.batchID == 0 {
		return
	}
	if err := ins.Journal.RecordOutcome(ctx, ins.batchID, name, state, detail); err != nil {
		ins.warnf("history: %v", err)
	}
}

func (ins *Installer) warnf(format string, args ...any) {
	if ins.Warnf != nil {
		ins.Warnf(format, args...)
		return
	}
	fmt.Fprintf(os.Stderr, "warning: "+format+"\n", args...)
}

// configBool reads a boolean key from the batch config, with an
// optional default when the key is absent.
func configBool(cfg map[string]any, key string, def ...bool) bool {
	if cfg != nil {
		if v, ok := cfg[key].(bool); ok {
			return v
		}
	}
	if len(def) > 0 {
		return def[0]
	}
	return false
}

func cloneConfig(cfg map[string]any) map[string]any {
	out := make(map[string]any, len(cfg)+1)
	for k, v := range cfg {
		out[k] = v
	}
	return out
}
