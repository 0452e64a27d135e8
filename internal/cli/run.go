package cli

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/orchestrator/kernel/internal/kernel"
	"github.com/orchestrator/kernel/internal/kernlog"
	"github.com/orchestrator/kernel/internal/pathkey"
)

func init() {
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the orchestrator daemon",
	Long: `run starts the event loop and the MCP tool server, and blocks until
SIGINT or SIGTERM (spec.md §4.9 "Termination").`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		repoDir, err := resolveRepoDir()
		if err != nil {
			return err
		}
		cfg, err := loadConfig(repoDir)
		if err != nil {
			return err
		}

		logPath := pathkey.RunLogPath(repoDir, time.Now().UTC().Format("20060102T150405Z"))
		logger, err := kernlog.New(logPath, kernlog.Info)
		if err != nil {
			return fmt.Errorf("run: %w", err)
		}
		defer logger.Close()

		k, err := kernel.New(repoDir, cfg, logger)
		if err != nil {
			return fmt.Errorf("run: %w", err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		fmt.Fprintf(cmd.OutOrStdout(), "kernel daemon started (tick interval %s)\n", kernel.TickInterval)
		fmt.Fprintf(cmd.OutOrStdout(), "agent logs: %s\n", logPath)

		if err := k.Run(ctx); err != nil {
			return fmt.Errorf("run: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "kernel daemon stopped")
		return nil
	},
}
