// Package health implements the master-health gate (C7): a thin wrapper
// around the project's fixed test command, invoked against a worktree of
// master before any ticket assignment or merge processing, plus the
// per-tick result cache so a tick that needs the gate twice (assignment
// and merge) does not run the test suite twice.
//
// Grounded on internal/cli/gate.go's style of wrapping an external check
// command. A failing gate is logged as WARN (non-fatal), and a command
// that cannot even start counts as a failing gate, not a separate ERROR
// case (see RunMakeTest); the command itself (`make test`) is
// fixed by spec.md §6 rather than configured, so there is no equivalent
// of the teacher's per-concern command table here.
package health

import (
	"os/exec"
	"strings"

	"github.com/orchestrator/kernel/internal/kernlog"
)

// Result is the outcome of one test-command invocation.
type Result struct {
	Pass   bool
	Output string
}

// RunMakeTest runs "make test" in dir and reports whether it passed,
// along with its combined output. A failure to even start the command
// (e.g. make missing) is reported as a failing Result, not a Go error —
// callers treat both the same way: halt progress, log, move on.
func RunMakeTest(dir string) Result {
	cmd := exec.Command("make", "test")
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	return Result{Pass: err == nil, Output: strings.TrimSpace(string(out))}
}

// Gate caches one tick's gate result so repeated callers within the same
// tick (assignment, then merge processing) do not re-run the test suite.
type Gate struct {
	masterDir string
	log       *kernlog.Component
	evaluated bool
	result    Result
}

// NewGate returns a Gate bound to a worktree checked out at master.
func NewGate(masterDir string, log *kernlog.Component) *Gate {
	return &Gate{masterDir: masterDir, log: log}
}

// Reset clears the cached result, to be called once at the start of every
// tick before any caller consults Check.
func (g *Gate) Reset() {
	g.evaluated = false
}

// Check runs the gate at most once per tick (per Reset), logging a WARN
// (not an ERROR — spec.md §7's "halts but is not fatal") on failure.
func (g *Gate) Check() bool {
	if !g.evaluated {
		g.result = RunMakeTest(g.masterDir)
		g.evaluated = true
		if !g.result.Pass && g.log != nil {
			g.log.Warnf("master-health gate failed, halting assignment and merge progress this tick:\n%s", g.result.Output)
		}
	}
	return g.result.Pass
}
