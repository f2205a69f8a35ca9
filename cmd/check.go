package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/starforge/internal/installer"
	"github.com/papapumpkin/starforge/internal/ui"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the catalog graph and the target environment",
	Long: `Reports every problem it can find instead of stopping at the first:
missing dependencies, dependency cycles, and failed system requirement
checks on the install target.`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, _ []string) error {
	cfg := loadConfig(cmd)
	printer := ui.New()

	problems, err := buildCatalog(cfg, printer).ValidateGraph()
	if err != nil {
		return err
	}

	if installDir, err := resolveInstallDir(cfg); err == nil {
		ins := installer.New(buildCatalog(cfg, printer), installDir)
		ins.MinFreeMB = cfg.MinFreeMB
		if ok, sysProblems := ins.ValidateSystemRequirements(installDir); !ok {
			problems = append(problems, sysProblems...)
		}
	}

	printer.CheckReport(problems)
	if len(problems) > 0 {
		return fmt.Errorf("%d problem(s) found", len(problems))
	}
	return nil
}
