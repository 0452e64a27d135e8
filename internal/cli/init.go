package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/orchestrator/kernel/internal/planstore"
)

// runInit creates the orphan plan branch, the directory skeleton, and a
// placeholder spec.md, committing it (spec.md §6 "--init creates the
// orphan plan branch..."). It is idempotent: Gateway.Init is a no-op if
// the plan branch already exists.
func runInit(cmd *cobra.Command) error {
	repoDir, err := resolveRepoDir()
	if err != nil {
		return err
	}
	gw := planstore.NewGateway(repoDir)
	if err := gw.Init(planstore.PlaceholderSpec); err != nil {
		return fmt.Errorf("init: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "initialized plan branch %q in %s\n", planstore.Branch, repoDir)
	return nil
}
