package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/starforge/internal/config"
	"github.com/papapumpkin/starforge/internal/installer"
	"github.com/papapumpkin/starforge/internal/ui"
)

var installCmd = &cobra.Command{
	Use:   "install <component>...",
	Short: "Install components and their dependencies",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatchCommand(cmd, args, "install",
			func(ctx context.Context, ins *installer.Installer, names []string, opts map[string]any) (bool, error) {
				return ins.InstallComponents(ctx, names, opts)
			})
	},
}

var updateCmd = &cobra.Command{
	Use:   "update <component>...",
	Short: "Re-install components in place, backing up changed files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatchCommand(cmd, args, "update",
			func(ctx context.Context, ins *installer.Installer, names []string, opts map[string]any) (bool, error) {
				return ins.UpdateComponents(ctx, names, opts)
			})
	},
}

var uninstallCmd = &cobra.Command{
	Use:   "uninstall <component>...",
	Short: "Remove components, dependents first",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatchCommand(cmd, args, "uninstall",
			func(ctx context.Context, ins *installer.Installer, names []string, opts map[string]any) (bool, error) {
				return ins.UninstallComponents(ctx, names, opts)
			})
	},
}

func init() {
	for _, c := range []*cobra.Command{installCmd, updateCmd, uninstallCmd} {
		c.Flags().Bool("force", false, "proceed past failed system requirement checks")
		c.Flags().Bool("no-backup", false, "skip the pre-run backup")
		c.Flags().Bool("dry-run", false, "resolve and validate without touching the target")
		rootCmd.AddCommand(c)
	}
}

// runBatchCommand is the shared driver behind install, update, and
// uninstall: load config, wire the installer, run the batch, render
// the summary. A batch that completes with component failures exits
// non-zero without a duplicate error line.
func runBatchCommand(cmd *cobra.Command, names []string, kind string,
	run func(context.Context, *installer.Installer, []string, map[string]any) (bool, error)) error {

	cfg := loadConfig(cmd)
	printer := ui.New()

	applyBatchFlags(cmd, &cfg)

	ins, cleanup, err := buildInstaller(cmd.Context(), cfg, printer)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := setupSignalContext(printer)
	defer cancel()

	printer.BatchStart(kind, names)
	ok, err := run(ctx, ins, names, cfg.Options())
	if err != nil {
		return err
	}

	printer.Summary(ins.Summary())
	if !ok {
		return fmt.Errorf("%s completed with failures", kind)
	}
	return nil
}

func applyBatchFlags(cmd *cobra.Command, cfg *config.Config) {
	if v, _ := cmd.Flags().GetBool("force"); v {
		cfg.Force = true
	}
	if v, _ := cmd.Flags().GetBool("no-backup"); v {
		cfg.Backup = false
	}
	if v, _ := cmd.Flags().GetBool("dry-run"); v {
		cfg.DryRun = true
	}
}
