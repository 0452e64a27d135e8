// Package planning implements the Architect and Manager planning drivers
// (C8): both run the Agent Harness (internal/harness) with
// workingDir set to the managed plan worktree, and both are gated by a
// write-scope guard that rejects any commit whose run touched files
// outside the driver's declared allowed set.
//
// Grounded on internal/engine/engine.go's invokeAgent (shared plumbing
// with internal/harness) and internal/cli/init.go's idempotent
// check-then-act style for the guard's "detect and reject" shape. The
// write-scope guard itself is expressed as compiled go-gitignore patterns
// (see guard.go) per spec.md §4.8 and SPEC_FULL.md's domain-stack note
// reusing github.com/sabhiram/go-gitignore for this rather than
// hand-rolled prefix checks.
package planning

import (
	"time"

	"github.com/orchestrator/kernel/internal/config"
	"github.com/orchestrator/kernel/internal/harness"
	"github.com/orchestrator/kernel/internal/kernlog"
	"github.com/orchestrator/kernel/internal/planstore"
)

// agentCommand is the coding-agent CLI binary invoked by the harness.
// Only the codex-like backend is implemented (spec.md §4.4, §9), so this
// is the one binary name the kernel ever shells out to for planning and
// coding runs alike.
const agentCommand = "codex"

const (
	defaultNoOutputTimeout = 2 * time.Minute
	defaultHardTimeout     = 15 * time.Minute
)

// AgentRunner is the seam between a planning driver and the Agent
// Harness, factored out so tests can substitute a deterministic
// generator instead of spawning a real subprocess (spec.md §4.8 "Area and
// ticket generators are factored behind injectable interfaces").
type AgentRunner interface {
	Run(cfg harness.Config, prompt string) (*harness.Result, error)
}

// harnessRunner is the production AgentRunner, wired straight to
// internal/harness.Run.
type harnessRunner struct{}

func (harnessRunner) Run(cfg harness.Config, prompt string) (*harness.Result, error) {
	return harness.Run(cfg, prompt)
}

// Driver runs the Architect and Manager against a single repository's
// plan branch.
type Driver struct {
	RepoDir string
	Gateway *planstore.Gateway
	Config  *config.Config
	Runner  AgentRunner
	Log     *kernlog.Component
}

// NewDriver builds a production Driver wired to the real agent harness.
func NewDriver(repoDir string, gw *planstore.Gateway, cfg *config.Config, log *kernlog.Component) *Driver {
	return &Driver{RepoDir: repoDir, Gateway: gw, Config: cfg, Runner: harnessRunner{}, Log: log}
}

func (d *Driver) runner() AgentRunner {
	if d.Runner != nil {
		return d.Runner
	}
	return harnessRunner{}
}

// harnessConfig builds the shared harness.Config fields for a planning
// run, given the role ("architect" or "manager") that selects model and
// reasoning-effort overrides (spec.md §6).
func (d *Driver) harnessConfig(role, workingDir, ticketStem string) harness.Config {
	var model string
	var effort config.ReasoningEffort
	if d.Config != nil {
		model = d.Config.ResolvedModel(role)
		effort = d.Config.ResolvedEffort(role)
	}
	return harness.Config{
		Command:         agentCommand,
		Model:           model,
		ReasoningEffort: string(effort),
		WorkingDir:      workingDir,
		RepoRoot:        d.RepoDir,
		NoOutputTimeout: defaultNoOutputTimeout,
		HardTimeout:     defaultHardTimeout,
		MaxAttempts:     1,
		TicketStem:      ticketStem,
	}
}

func (d *Driver) infof(format string, args ...any) {
	if d.Log != nil {
		d.Log.Infof(format, args...)
	}
}

func (d *Driver) warnf(format string, args ...any) {
	if d.Log != nil {
		d.Log.Warnf(format, args...)
	}
}
