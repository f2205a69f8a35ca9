package installer

import (
	"context"
	"fmt"

	"github.com/papapumpkin/starforge/internal/component"
	"github.com/papapumpkin/starforge/internal/telemetry"
)

// StateRemoved is the terminal state of a successful uninstall.
const StateRemoved = "removed"

// UninstallComponents removes the named components in reverse
// dependency order (dependents before their dependencies). A component
// that another installed component still requires is skipped unless
// that dependent is part of the same batch or cfg["force"] is set.
// Removal is conservative throughout: only manifest-named files go,
// and a directory survives while anything else lives in it. Each
// successful removal drops the component's registration from the
// metadata store.
func (ins *Installer) UninstallComponents(ctx context.Context, names []string, cfg map[string]any) (ok bool, err error) {
	order, err := ins.Catalog.Resolve(names)
	if err != nil {
		return false, kindErr(KindGraph, "", err)
	}

	// Resolve pulls in transitive dependencies; uninstall only what
	// was asked for, dependents first.
	requested := make(map[string]bool, len(names))
	for _, name := range names {
		requested[name] = true
	}
	var targets []string
	for i := len(order) - 1; i >= 0; i-- {
		if requested[order[i]] {
			targets = append(targets, order[i])
		}
	}

	ins.beginJournal(ctx, "uninstall")
	ins.emit(telemetry.Event{Kind: telemetry.KindBatchStart, Batch: "uninstall", Data: map[string]any{"order": targets}})
	defer func() { ins.finishJournal(ctx, ok) }()

	if err := ins.maybeBackup(cfg); err != nil {
		return false, err
	}

	for _, name := range targets {
		ins.uninstallOne(ctx, name, requested, cfg)
	}

	sum := ins.Summary()
	ok = len(sum.Failed) == 0
	ins.emit(telemetry.Event{Kind: telemetry.KindBatchDone, Batch: "uninstall", Data: map[string]any{
		"ok": ok, "removed": sum.Installed, "failed": sum.Failed, "skipped": sum.Skipped,
	}})
	return ok, nil
}

func (ins *Installer) uninstallOne(ctx context.Context, name string, batch map[string]bool, cfg map[string]any) {
	if !configBool(cfg, "force") {
		if blocker := ins.installedDependent(name, batch); blocker != "" {
			reason := fmt.Sprintf("still required by installed component %s", blocker)
			ins.mu.Lock()
			sess := ins.currentSession()
			sess.skipped[name] = true
			sess.problems[name] = reason
			ins.mu.Unlock()
			ins.recordOutcome(ctx, name, "skipped", reason)
			return
		}
	}

	comp, err := ins.Catalog.Component(name)
	if err != nil {
		ins.fail(ctx, name, kindErr(KindGraph, name, err))
		return
	}
	cctx := &component.Context{
		InstallDir: ins.InstallDir,
		Meta:       ins.Meta,
		DryRun:     configBool(cfg, "dry_run"),
		Config:     cfg,
	}
	if err := comp.Uninstall(cctx); err != nil {
		ins.fail(ctx, name, kindErr(KindIO, name, err))
		return
	}
	if !cctx.DryRun {
		if err := ins.Meta.RemoveComponentRegistration(name); err != nil {
			ins.fail(ctx, name, ins.wrapMetaErr(name, err))
			return
		}
	}

	ins.mu.Lock()
	ins.currentSession().installed[name] = true
	ins.mu.Unlock()
	ins.recordOutcome(ctx, name, StateRemoved, "")
	ins.emit(telemetry.Event{Kind: telemetry.KindComponentState, Component: name, Data: map[string]string{"state": StateRemoved}})
}

// installedDependent returns the name of a component registered in the
// metadata store that transitively depends on name and is not part of
// the current batch, or "" when none blocks removal.
func (ins *Installer) installedDependent(name string, batch map[string]bool) string {
	dependents, err := ins.Catalog.Dependents(name)
	if err != nil {
		return ""
	}
	for _, dep := range dependents {
		if batch[dep] {
			continue
		}
		installed, err := ins.Meta.IsInstalled(dep)
		if err == nil && installed {
			return dep
		}
	}
	return ""
}
