// Package kernel implements the event loop and scheduler (C9): the
// single-threaded loop that is the sole writer of the plan branch and
// the sole mover of ticket state, driving every other component through
// one fixed-interval tick (spec.md §4.9).
//
// Grounded on internal/engine/engine.go's Run loop: a ticker-driven
// reconciliation pass generalized from "process every concern with file
// changes" to the eight-step plan-branch reconciliation spec.md §4.9
// spells out. The second thread — the MCP HTTP server — follows the
// broader retrieval pack's http.Server-in-a-goroutine-plus-context-Shutdown
// convention (wingedpig-trellis's router/server split), since the teacher
// itself never ran a server of its own.
package kernel

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/orchestrator/kernel/internal/config"
	"github.com/orchestrator/kernel/internal/harness"
	"github.com/orchestrator/kernel/internal/health"
	"github.com/orchestrator/kernel/internal/kernlog"
	"github.com/orchestrator/kernel/internal/mcpserver"
	"github.com/orchestrator/kernel/internal/mergequeue"
	"github.com/orchestrator/kernel/internal/planning"
	"github.com/orchestrator/kernel/internal/planstore"
	"github.com/orchestrator/kernel/internal/worktree"
)

// TickInterval is the loop's fixed idle interval (spec.md §4.9).
const TickInterval = 200 * time.Millisecond

// codingNoOutputTimeout and codingHardTimeout bound the coding agent's
// execution step (spec.md §4.4); the planning drivers use their own,
// shorter defaults (internal/planning/driver.go).
const (
	codingNoOutputTimeout = 5 * time.Minute
	codingHardTimeout     = 30 * time.Minute
	codingMaxAttempts     = 2
)

// Kernel wires every component (C1-C8) behind the single event loop that
// owns the plan branch (T1 in spec.md §5's two-thread model). The MCP
// server (T2) runs independently and only ever forwards tool-triggered
// mutations onto Tasks, never writing to git itself.
type Kernel struct {
	RepoDir string
	Config  *config.Config

	Gateway    *planstore.Gateway
	Worktrees  *worktree.Manager
	MergeQueue *mergequeue.Processor
	Health     *health.Gate
	Driver     *planning.Driver
	MCP        *mcpserver.Server
	Tasks      *mcpserver.TaskQueue

	Log *kernlog.Component

	// CodingRunner overrides how the coding agent is invoked for a ticket;
	// nil uses the real harness. Tests substitute a deterministic runner
	// (spec.md §4.8's injectable-generator pattern, extended to C4's
	// execution step).
	CodingRunner planning.AgentRunner
}

// New builds a production Kernel rooted at repoDir, with the MCP server
// bound to cfg's configured loopback endpoint.
func New(repoDir string, cfg *config.Config, logger *kernlog.Logger) (*Kernel, error) {
	addr, err := bindAddr(cfg.Endpoints.Local)
	if err != nil {
		return nil, fmt.Errorf("kernel: %w", err)
	}

	gw := planstore.NewGateway(repoDir)
	tasks := mcpserver.NewTaskQueue()
	mcpLog := logger.With("mcpserver")
	mcp := mcpserver.New(mcpserver.Config{Addr: addr, Queue: tasks, Log: mcpLog})

	k := &Kernel{
		RepoDir:    repoDir,
		Config:     cfg,
		Gateway:    gw,
		Worktrees:  worktree.NewManager(repoDir),
		MergeQueue: &mergequeue.Processor{RepoDir: repoDir, Gateway: gw, Log: logger.With("mergequeue")},
		Health:     health.NewGate(masterWorktreeDir(repoDir), logger.With("health")),
		Driver:     planning.NewDriver(repoDir, gw, cfg, logger.With("planning")),
		MCP:        mcp,
		Tasks:      tasks,
		Log:        logger.With("kernel"),
	}
	return k, nil
}

// bindAddr extracts the host:port pair http.Server.Addr expects from a
// configured endpoint URL (spec.md §6 "endpoints.local").
func bindAddr(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return "", &planstore.ErrBadEndpointURL{URL: endpoint}
	}
	return u.Host, nil
}

// Run starts the MCP server in the background, reaps stale ticket
// worktrees left by a previous run once, and then ticks the event loop
// at TickInterval until ctx is cancelled (spec.md §4.9 "Termination" —
// SIGINT/SIGTERM are the caller's responsibility, via
// signal.NotifyContext, matching this package's preference for a
// context-cancellation flag over a hand-rolled volatile bool).
func (k *Kernel) Run(ctx context.Context) error {
	serveErrs := make(chan error, 1)
	go func() { serveErrs <- k.MCP.ListenAndServe() }()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := k.MCP.Shutdown(shutdownCtx); err != nil {
			k.Log.Warnf("mcp server shutdown: %v", err)
		}
	}()

	if err := k.cleanupWorktrees(); err != nil {
		k.Log.Warnf("startup worktree cleanup: %v", err)
	}

	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-serveErrs:
			if err != nil {
				return fmt.Errorf("mcp server: %w", err)
			}
		case <-ticker.C:
			if err := k.Tick(); err != nil {
				k.Log.Errorf("tick failed: %v", err)
			}
		}
	}
}

// RunTicks runs the event loop exactly n times with no sleeping between
// ticks, for the bounded-tick-count scenarios spec.md §4.9 and §8
// describe ("used by tests").
func (k *Kernel) RunTicks(n int) error {
	for i := 0; i < n; i++ {
		if err := k.Tick(); err != nil {
			return fmt.Errorf("tick %d: %w", i+1, err)
		}
	}
	return nil
}

func masterWorktreeDir(repoDir string) string {
	return repoDir
}

func (k *Kernel) codingRunner() planning.AgentRunner {
	if k.CodingRunner != nil {
		return k.CodingRunner
	}
	return harnessCodingRunner{}
}

// harnessCodingRunner is the production coding-agent runner, wired
// straight to internal/harness.Run with the coding role's longer
// timeouts and retry budget.
type harnessCodingRunner struct{}

func (harnessCodingRunner) Run(cfg harness.Config, prompt string) (*harness.Result, error) {
	return harness.Run(cfg, prompt)
}
