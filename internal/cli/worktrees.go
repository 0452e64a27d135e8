package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/orchestrator/kernel/internal/gitutil"
	"github.com/orchestrator/kernel/internal/pathkey"
)

func init() {
	rootCmd.AddCommand(worktreesCmd)
}

var worktreesCmd = &cobra.Command{
	Use:   "worktrees",
	Short: "List every git worktree registered under the managed root",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		repoDir, err := resolveRepoDir()
		if err != nil {
			return err
		}
		entries, err := gitutil.NewRepo(repoDir).ListWorktrees()
		if err != nil {
			return fmt.Errorf("worktrees: %w", err)
		}

		root := pathkey.Root(repoDir)
		out := cmd.OutOrStdout()
		found := false
		for _, e := range entries {
			if len(e.Path) < len(root) || e.Path[:len(root)] != root {
				continue
			}
			found = true
			fmt.Fprintf(out, "%s\t%s\n", e.Branch, e.Path)
		}
		if !found {
			fmt.Fprintln(out, "no managed worktrees registered")
		}
		return nil
	},
}
