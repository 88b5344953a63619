package commands

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/xtxerr/rcaeda/internal/loader"
	"github.com/xtxerr/rcaeda/internal/logging"
	"github.com/xtxerr/rcaeda/internal/pipeline"
	"github.com/xtxerr/rcaeda/internal/printer"
)

var runCmd = &cobra.Command{
	Use:   "run [s3://bucket/key]",
	Short: "Run the stage once and print the report",
	Long: `Run the stage once. The exit status is non-zero only when the run
failed (connect, load, imputation or write-back). A partial run, where
an analyzer failed but the dataset was processed, exits zero.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, args)
		if err != nil {
			return err
		}
		logging.Component("edad").Info("configuration loaded", loader.Summary(cfg)...)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		runner, err := newRunner(ctx, cfg)
		if err != nil {
			return err
		}

		rep := runner.Run(ctx)
		printer.Report(cmd.OutOrStdout(), rep)
		if rep.Status == pipeline.StatusFailed {
			return fmt.Errorf("run %s failed: %w", rep.RunID, rep.Err)
		}
		return nil
	},
}
