package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/starforge/internal/catalog"
	"github.com/papapumpkin/starforge/internal/config"
	"github.com/papapumpkin/starforge/internal/history"
	"github.com/papapumpkin/starforge/internal/installer"
	"github.com/papapumpkin/starforge/internal/telemetry"
	"github.com/papapumpkin/starforge/internal/ui"
)

// auditFileName is the JSONL event log kept next to the install root's
// metadata.
const auditFileName = ".starforge-audit.jsonl"

// loadConfig merges the viper config with the persistent flag
// overrides shared by every subcommand.
func loadConfig(cmd *cobra.Command) config.Config {
	cfg := config.Load()
	if v, _ := cmd.Flags().GetString("install-dir"); v != "" {
		cfg.InstallDir = v
	}
	if v, _ := cmd.Flags().GetString("components-dir"); v != "" {
		cfg.ComponentsDir = v
	}
	if v, _ := cmd.Flags().GetBool("verbose"); v {
		cfg.Verbose = true
	}
	return cfg
}

// resolveInstallDir returns an absolute install target, defaulting to
// the current working directory.
func resolveInstallDir(cfg config.Config) (string, error) {
	dir := cfg.InstallDir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get working directory: %w", err)
		}
		dir = wd
	}
	return filepath.Abs(dir)
}

// buildCatalog constructs the catalog over the configured source
// directory, routing parse warnings through the printer.
func buildCatalog(cfg config.Config, printer *ui.Printer) *catalog.Catalog {
	cat := catalog.New(cfg.ComponentsDir)
	cat.Warnf = func(format string, args ...any) {
		printer.Warn(fmt.Sprintf(format, args...))
	}
	return cat
}

// buildInstaller wires an installer with the audit log and history
// journal enabled per config. The returned cleanup closes both.
func buildInstaller(ctx context.Context, cfg config.Config, printer *ui.Printer) (*installer.Installer, func(), error) {
	installDir, err := resolveInstallDir(cfg)
	if err != nil {
		return nil, nil, err
	}

	ins := installer.New(buildCatalog(cfg, printer), installDir)
	ins.MinFreeMB = cfg.MinFreeMB
	ins.Parallel = cfg.Parallel
	ins.Warnf = func(format string, args ...any) {
		printer.Warn(fmt.Sprintf(format, args...))
	}
	ins.Backups.Warnf = ins.Warnf

	// Audit and journal are best-effort; a read-only volume must not
	// block a dry run.
	if emitter, err := telemetry.NewEmitter(filepath.Join(installDir, auditFileName)); err == nil {
		ins.Audit = emitter
	} else if cfg.Verbose {
		printer.Warn(fmt.Sprintf("audit log unavailable: %v", err))
	}

	if cfg.History {
		if journal, err := history.Open(ctx, filepath.Join(installDir, history.FileName)); err == nil {
			ins.Journal = journal
		} else if cfg.Verbose {
			printer.Warn(fmt.Sprintf("history journal unavailable: %v", err))
		}
	}

	cleanup := func() {
		ins.Audit.Close()
		ins.Journal.Close()
	}
	return ins, cleanup, nil
}

// setupSignalContext returns a context that is canceled on SIGINT or SIGTERM.
func setupSignalContext(printer *ui.Printer) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		printer.Info("\nshutting down...")
		cancel()
	}()
	return ctx, cancel
}
