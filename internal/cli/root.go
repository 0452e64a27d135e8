// Package cli is the orchestrator's command-line front-end (spec.md §1's
// "CLI front-end" collaborator): argument parsing and process wiring for
// --init, run, status, plan, plan <prompt>, and worktrees. It never
// mutates the plan branch itself — every command either calls Gateway.Init
// once, only reads, or hands off into internal/kernel (run) or
// internal/planning (plan), which make the plan-branch commits.
//
// Grounded on the teacher's cobra-based internal/cli package (a
// rootCmd with persistent flags, one file per subcommand, each
// registering itself via an init() AddCommand call).
package cli

import (
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags.
var Version = "dev"

var (
	repoFlag   string
	configFlag string
)

var rootCmd = &cobra.Command{
	Use:   "kernel",
	Short: "Orchestrate coding agents against a git-native plan branch",
	Long: `kernel is a git-native agent orchestrator: a daemon that decomposes a
human-authored specification into areas and tickets, assigns each ticket to
a coding-agent subprocess in an isolated git worktree, and gates every
resulting change through a serial merge queue that keeps master green.

All persistent state -- specification, plan decomposition, ticket lifecycle,
merge queue, and audit history -- lives in git commits on a dedicated
planning branch; there is no separate database.`,
	Version: Version,
	RunE: func(cmd *cobra.Command, args []string) error {
		if initFlag {
			return runInit(cmd)
		}
		return cmd.Help()
	},
}

var initFlag bool

func init() {
	rootCmd.PersistentFlags().StringVar(&repoFlag, "repo", ".", "Path to the git repository to orchestrate")
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "kernel.json", "Path to the JSON config file, relative to --repo")
	rootCmd.Flags().BoolVar(&initFlag, "init", false, "Create the orphan plan branch and directory skeleton, then exit")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
