package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/orchestrator/kernel/internal/health"
	"github.com/orchestrator/kernel/internal/planstore"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print a snapshot of the plan branch and master-health gate",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		repoDir, err := resolveRepoDir()
		if err != nil {
			return err
		}
		gw := planstore.NewGateway(repoDir)

		var (
			specPlaceholder          bool
			areaCount                int
			openCount, inProg, done  int
			pendingMerges            int
			active                   string
		)
		err = gw.WithPlanWorktree(func(planPath string) error {
			spec, rerr := readFile(planPath + "/spec.md")
			if rerr != nil {
				return rerr
			}
			specPlaceholder = planstore.IsPlaceholderSpec(spec)

			areas, rerr := listMarkdown(planPath + "/areas")
			if rerr != nil {
				return rerr
			}
			areaCount = len(areas)

			for _, state := range []struct {
				dir   planstore.TicketState
				count *int
			}{
				{planstore.StateOpen, &openCount},
				{planstore.StateInProgress, &inProg},
				{planstore.StateDone, &done},
			} {
				names, lerr := listMarkdown(planPath + "/" + state.dir.Dir())
				if lerr != nil {
					return lerr
				}
				*state.count = len(names)
			}

			pending, lerr := listMarkdown(planPath + "/queue/merge/pending")
			if lerr != nil {
				return lerr
			}
			pendingMerges = len(pending)

			activeContent, rerr := readFile(planPath + "/queue/merge/active.md")
			if rerr != nil {
				return rerr
			}
			active = planstore.ParseActiveMarker(activeContent)
			return nil
		})
		if err != nil {
			if _, ok := err.(*planstore.ErrPlanBranchMissing); ok {
				fmt.Fprintln(cmd.OutOrStdout(), "plan branch not initialized; run with --init first")
				return nil
			}
			return err
		}

		gate := health.RunMakeTest(repoDir)
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "plan branch: %s\n", planstore.Branch)
		if specPlaceholder {
			fmt.Fprintln(out, "spec:        WAITING (placeholder, run `plan` to populate it)")
		} else {
			fmt.Fprintln(out, "spec:        written")
		}
		fmt.Fprintf(out, "areas:       %d\n", areaCount)
		fmt.Fprintf(out, "tickets:     %d open, %d in-progress, %d done\n", openCount, inProg, done)
		fmt.Fprintf(out, "merge queue: %d pending", pendingMerges)
		if active != "" {
			fmt.Fprintf(out, " (active: %s)", active)
		}
		fmt.Fprintln(out)
		if gate.Pass {
			fmt.Fprintln(out, "master:      green")
		} else {
			fmt.Fprintln(out, "master:      RED")
		}
		return nil
	},
}
