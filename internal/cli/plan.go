package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/orchestrator/kernel/internal/kernlog"
	"github.com/orchestrator/kernel/internal/planning"
	"github.com/orchestrator/kernel/internal/planstore"
)

func init() {
	rootCmd.AddCommand(planCmd)
}

var planCmd = &cobra.Command{
	Use:   "plan [prompt]",
	Short: "Run the Architect against spec.md, once or interactively",
	Long: `With no arguments, plan starts an interactive session: each line you
type is sent to the Architect as a turn, and spec.md is committed whenever
it changes (spec.md §4.8). With an argument, plan runs exactly one
Architect attempt carrying that prompt as the update directive, then
exits (spec.md §6 "plan <prompt>").

Commands prefixed with "/" (/show, /help, /quit) are handled locally and
never invoke the agent.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repoDir, err := resolveRepoDir()
		if err != nil {
			return err
		}
		cfg, err := loadConfig(repoDir)
		if err != nil {
			return err
		}
		gw := planstore.NewGateway(repoDir)
		if err := gw.Init(planstore.PlaceholderSpec); err != nil {
			return fmt.Errorf("plan: %w", err)
		}

		logger, err := kernlog.New("", kernlog.Info)
		if err != nil {
			return err
		}
		driver := planning.NewDriver(repoDir, gw, cfg, logger.With("planning"))

		if len(args) == 1 {
			return runPlanOneShot(cmd, driver, args[0])
		}
		return runPlanSession(cmd, driver)
	},
}

func runPlanOneShot(cmd *cobra.Command, driver *planning.Driver, prompt string) error {
	changed, err := driver.RunSpecOneShot(prompt)
	if err != nil {
		return fmt.Errorf("plan: %w", err)
	}
	out := cmd.OutOrStdout()
	if changed {
		fmt.Fprintln(out, "spec.md updated")
	} else {
		fmt.Fprintln(out, "spec.md unchanged")
	}
	return nil
}

func runPlanSession(cmd *cobra.Command, driver *planning.Driver) error {
	session := planning.NewSession(driver)
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "interactive planning session; /show, /help, /quit, or Ctrl-D to exit")

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil && err != io.EOF {
				return err
			}
			fmt.Fprintln(out)
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			switch line {
			case "/quit":
				return nil
			case "/help":
				fmt.Fprintln(out, "/show  print the current spec.md")
				fmt.Fprintln(out, "/help  print this message")
				fmt.Fprintln(out, "/quit  exit the session")
			case "/show":
				content, err := session.ShowSpec()
				if err != nil {
					fmt.Fprintf(out, "error: %v\n", err)
					continue
				}
				fmt.Fprintln(out, content)
			default:
				fmt.Fprintf(out, "unknown command %q (try /help)\n", line)
			}
			continue
		}

		response, err := session.Turn(line)
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		fmt.Fprintln(out, response)
	}
}
