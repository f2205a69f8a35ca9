package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/starforge/internal/backup"
	"github.com/papapumpkin/starforge/internal/config"
	"github.com/papapumpkin/starforge/internal/history"
	"github.com/papapumpkin/starforge/internal/ui"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Manage target directory backups",
}

var backupCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Snapshot the install target into the backup store",
	RunE:  runBackupCreate,
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List backup archives, newest first",
	RunE:  runBackupList,
}

var backupShowCmd = &cobra.Command{
	Use:   "show <archive>",
	Short: "Show one archive's metadata",
	Args:  cobra.ExactArgs(1),
	RunE:  runBackupShow,
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore <archive>",
	Short: "Restore an archive into the install target",
	Args:  cobra.ExactArgs(1),
	RunE:  runBackupRestore,
}

var backupPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove old archives by count or age",
	RunE:  runBackupPrune,
}

func init() {
	backupRestoreCmd.Flags().Bool("overwrite", false, "replace files that already exist in the target")

	backupPruneCmd.Flags().Int("keep", 0, "keep at most this many archives (0 = unlimited)")
	backupPruneCmd.Flags().Int("max-age-days", 0, "remove archives older than this (0 = unlimited)")
	backupPruneCmd.Flags().Bool("dry-run", false, "report what would be removed without removing it")

	backupCmd.AddCommand(backupCreateCmd, backupListCmd, backupShowCmd, backupRestoreCmd, backupPruneCmd)
	rootCmd.AddCommand(backupCmd)
}

// backupDir is where archives live, inside the install target.
func backupDir(cfg config.Config) (string, error) {
	installDir, err := resolveInstallDir(cfg)
	if err != nil {
		return "", err
	}
	return filepath.Join(installDir, backup.DirName), nil
}

func runBackupCreate(cmd *cobra.Command, _ []string) error {
	cfg := loadConfig(cmd)
	printer := ui.New()

	installDir, err := resolveInstallDir(cfg)
	if err != nil {
		return err
	}

	mgr := &backup.Manager{
		Exclude: []string{history.FileName},
		Warnf: func(format string, args ...any) {
			printer.Warn(fmt.Sprintf(format, args...))
		},
	}
	path, err := mgr.Create(installDir)
	if err != nil {
		return err
	}
	if path == "" {
		printer.Info("nothing to back up")
		return nil
	}
	printer.Info("created " + path)
	return nil
}

func runBackupList(cmd *cobra.Command, _ []string) error {
	cfg := loadConfig(cmd)
	printer := ui.New()

	dir, err := backupDir(cfg)
	if err != nil {
		return err
	}
	infos, err := backup.List(dir)
	if err != nil {
		return err
	}
	printer.BackupList(infos)
	return nil
}

func runBackupShow(cmd *cobra.Command, args []string) error {
	printer := ui.New()

	info, err := backup.Read(args[0])
	if err != nil {
		return err
	}
	printer.BackupDetail(info)
	return nil
}

func runBackupRestore(cmd *cobra.Command, args []string) error {
	cfg := loadConfig(cmd)
	printer := ui.New()

	installDir, err := resolveInstallDir(cfg)
	if err != nil {
		return err
	}
	overwrite, _ := cmd.Flags().GetBool("overwrite")

	res, err := backup.Restore(args[0], installDir, overwrite)
	if err != nil {
		return err
	}
	printer.RestoreDone(res)
	return nil
}

func runBackupPrune(cmd *cobra.Command, _ []string) error {
	cfg := loadConfig(cmd)
	printer := ui.New()

	policy := backup.PrunePolicy{
		Keep:   cfg.BackupKeep,
		MaxAge: time.Duration(cfg.BackupMaxAgeDays) * 24 * time.Hour,
	}
	if v, _ := cmd.Flags().GetInt("keep"); v > 0 {
		policy.Keep = v
	}
	if v, _ := cmd.Flags().GetInt("max-age-days"); v > 0 {
		policy.MaxAge = time.Duration(v) * 24 * time.Hour
	}
	policy.DryRun, _ = cmd.Flags().GetBool("dry-run")

	dir, err := backupDir(cfg)
	if err != nil {
		return err
	}
	mgr := &backup.Manager{Warnf: func(format string, args ...any) {
		printer.Warn(fmt.Sprintf(format, args...))
	}}
	actions, err := mgr.Prune(dir, policy)
	if err != nil {
		return err
	}
	printer.PruneReport(actions, policy.DryRun)
	return nil
}
