package kernel

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/orchestrator/kernel/internal/config"
	"github.com/orchestrator/kernel/internal/gitutil"
	"github.com/orchestrator/kernel/internal/harness"
	"github.com/orchestrator/kernel/internal/kernlog"
	"github.com/orchestrator/kernel/internal/planstore"
)

func mustGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git %v: %s: %v", args, out, err)
	}
}

// newTestKernel builds a Kernel against a freshly initialized outer
// project repo (master branch, a passing Makefile) and its plan branch,
// with the MCP server bound to an ephemeral loopback port so the fake
// coding runner can place a real submit_pr call through it, exactly as a
// spawned agent would (spec.md §4.5, §9's "timeouts without signals").
func newTestKernel(t *testing.T) *Kernel {
	t.Helper()
	repoDir := t.TempDir()
	mustGit(t, repoDir, "init", "-q", "-b", "master")
	mustGit(t, repoDir, "config", "user.name", "tester")
	mustGit(t, repoDir, "config", "user.email", "tester@example.com")
	if err := os.WriteFile(filepath.Join(repoDir, "Makefile"), []byte("test:\n\t@echo PASS\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	mustGit(t, repoDir, "add", "-A")
	mustGit(t, repoDir, "commit", "-q", "-m", "initial")

	gw := planstore.NewGateway(repoDir)
	if err := gw.Init(planstore.PlaceholderSpec); err != nil {
		t.Fatalf("Init: %v", err)
	}

	logger, err := kernlog.New("", kernlog.Warn)
	if err != nil {
		t.Fatalf("kernlog.New: %v", err)
	}

	cfg := &config.Config{Endpoints: config.Endpoints{Local: "http://127.0.0.1:0"}}
	k, err := New(repoDir, cfg, logger)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := k.MCP.ListenAndServeBackground(); err != nil {
		t.Fatalf("ListenAndServeBackground: %v", err)
	}
	t.Cleanup(func() { _ = k.MCP.Shutdown(context.Background()) })
	return k
}

// fakeAgentRunner substitutes for the Agent Harness in both the planning
// and coding seams, writing files directly into the working directory it
// is given instead of spawning a subprocess (mirrors
// internal/planning/planning_test.go's fakeRunner).
type fakeAgentRunner struct {
	write func(cfg harness.Config) error
}

func (f fakeAgentRunner) Run(cfg harness.Config, prompt string) (*harness.Result, error) {
	if f.write != nil {
		if err := f.write(cfg); err != nil {
			return nil, err
		}
	}
	return &harness.Result{ExitCode: 0, LastMessage: "done"}, nil
}

func callSubmitPR(t *testing.T, mcpURL, summary string) {
	t.Helper()
	body, _ := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params": map[string]any{
			"name":      "submit_pr",
			"arguments": map[string]any{"summary": summary},
		},
	})
	resp, err := http.Post(mcpURL, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("submit_pr POST: %v", err)
	}
	defer resp.Body.Close()
	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decoding submit_pr response: %v", err)
	}
	if decoded["error"] != nil {
		t.Fatalf("submit_pr returned an error: %v", decoded["error"])
	}
}

// TestTickHappyPathFlowsTicketFromOpenToDone exercises spec.md §8's S1
// end to end through the kernel's own Tick, across the areas/tickets
// planning steps, assignment, coding-agent execution, submit_pr, and
// merge-queue completion.
func TestTickHappyPathFlowsTicketFromOpenToDone(t *testing.T) {
	k := newTestKernel(t)

	k.Driver.Runner = fakeAgentRunner{write: func(cfg harness.Config) error {
		switch cfg.TicketStem {
		case "architect-areas":
			return os.WriteFile(filepath.Join(cfg.WorkingDir, "areas", "01-e2e.md"),
				[]byte("# Area 01\n\n## Goal\n- Full flow.\n"), 0o644)
		default:
			return os.WriteFile(filepath.Join(cfg.WorkingDir, "tickets", "open", "0001-e2e-happy-path.md"),
				[]byte("**Area:** 01-e2e\n\n## Goal\n- Ship one ticket end to end.\n"), 0o644)
		}
	}}
	k.CodingRunner = fakeAgentRunner{write: func(cfg harness.Config) error {
		if err := os.WriteFile(filepath.Join(cfg.WorkingDir, "feature.txt"), []byte("shipped\n"), 0o644); err != nil {
			return err
		}
		mustGit(t, cfg.WorkingDir, "add", "-A")
		mustGit(t, cfg.WorkingDir, "-c", "user.name=agent", "-c", "user.email=agent@example.com", "commit", "-q", "-m", "ship feature")
		callSubmitPR(t, cfg.MCPURL, "ship e2e")
		return nil
	}}

	// First: write a real spec so the loop moves past the WAITING check.
	if err := k.Driver.Gateway.WithPlanWorktree(func(planPath string) error {
		if err := os.WriteFile(planPath+"/spec.md", []byte("# Spec\n\nDeliver one full-flow ticket.\n"), 0o644); err != nil {
			return err
		}
		_, err := k.Driver.Gateway.Commit(planPath, []string{"spec.md"}, planstore.MsgUpdateSpec)
		return err
	}); err != nil {
		t.Fatalf("writing spec: %v", err)
	}

	// Tick 1: areas run. Tick 2: tickets run, then the same tick assigns,
	// executes and enqueues the merge request. Tick 3: process the merge
	// queue. Tick 4: nothing left to move.
	if err := k.RunTicks(4); err != nil {
		t.Fatalf("RunTicks: %v", err)
	}

	assertTicketState(t, k, "tickets/done/0001-e2e-happy-path.md")
	assertTicketAbsent(t, k, "tickets/open/0001-e2e-happy-path.md")
	assertTicketAbsent(t, k, "tickets/in-progress/0001-e2e-happy-path.md")

	pending, err := listPendingQueue(t, k)
	if err != nil {
		t.Fatalf("listPendingQueue: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected an empty merge queue, got %v", pending)
	}

	if _, err := os.Stat(filepath.Join(k.RepoDir, "feature.txt")); err != nil {
		t.Fatalf("expected feature.txt on master after ff-merge: %v", err)
	}
}

// TestTickHaltsAssignmentOnRedMaster exercises spec.md §8's S3 (partial):
// a failing master test target halts ticket assignment for the tick.
func TestTickHaltsAssignmentOnRedMaster(t *testing.T) {
	k := newTestKernel(t)
	if err := os.WriteFile(filepath.Join(k.RepoDir, "Makefile"), []byte("test:\n\t@echo FAIL && exit 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	mustGit(t, k.RepoDir, "add", "-A")
	mustGit(t, k.RepoDir, "commit", "-q", "-m", "break the build")

	k.Driver.Runner = fakeAgentRunner{write: func(cfg harness.Config) error {
		t.Fatal("architect/manager must not run while master is red")
		return nil
	}}

	if err := k.Driver.Gateway.WithPlanWorktree(func(planPath string) error {
		if err := os.WriteFile(planPath+"/spec.md", []byte("# Spec\n\nwork\n"), 0o644); err != nil {
			return err
		}
		_, err := k.Driver.Gateway.Commit(planPath, []string{"spec.md"}, planstore.MsgUpdateSpec)
		return err
	}); err != nil {
		t.Fatalf("writing spec: %v", err)
	}

	if err := k.Tick(); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	areas, err := k.Driver.ListAreas()
	if err != nil {
		t.Fatalf("ListAreas: %v", err)
	}
	if len(areas) != 0 {
		t.Fatalf("expected no areas to be created while master is red, got %v", areas)
	}
}

// TestTickHaltsMergeQueueOnRedMasterThenResumes exercises spec.md §8's S3
// merge-queue half: a merge request enqueued while master is green sits
// untouched while master is red, then drains on the first tick after
// master is fixed.
func TestTickHaltsMergeQueueOnRedMasterThenResumes(t *testing.T) {
	k := newTestKernel(t)

	// The ticket is already assigned and enqueued, so this test only needs
	// the Architect step (run once, producing the ticket's area) to stay
	// out of the way rather than spawn a real subprocess.
	k.Driver.Runner = fakeAgentRunner{write: func(cfg harness.Config) error {
		return os.WriteFile(filepath.Join(cfg.WorkingDir, "areas", "01-e2e.md"),
			[]byte("# Area 01\n\n## Goal\n- Full flow.\n"), 0o644)
	}}

	if err := k.Driver.Gateway.WithPlanWorktree(func(planPath string) error {
		if err := os.WriteFile(planPath+"/spec.md", []byte("# Spec\n\nwork\n"), 0o644); err != nil {
			return err
		}
		_, err := k.Driver.Gateway.Commit(planPath, []string{"spec.md"}, planstore.MsgUpdateSpec)
		return err
	}); err != nil {
		t.Fatalf("writing spec: %v", err)
	}

	ticketBranch := "kernel/ticket-0001"
	ticketWorktree := t.TempDir()
	repo := gitutil.NewRepo(k.RepoDir)
	if err := repo.AddWorktreeNewBranch(ticketWorktree, ticketBranch, "master"); err != nil {
		t.Fatalf("AddWorktreeNewBranch: %v", err)
	}
	if err := os.WriteFile(filepath.Join(ticketWorktree, "feature.txt"), []byte("shipped\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	mustGit(t, ticketWorktree, "add", "-A")
	mustGit(t, ticketWorktree, "-c", "user.name=agent", "-c", "user.email=agent@example.com", "commit", "-q", "-m", "ship feature")

	ticketBody := "**Area:** 01-e2e\n**Worktree:** " + ticketWorktree + "\n\n## Goal\n- Ship one ticket end to end.\n"
	mr := &planstore.MergeRequest{
		QueueID:    1,
		TicketID:   1,
		TicketPath: "tickets/in-progress/0001-red-master.md",
		Branch:     ticketBranch,
		Worktree:   ticketWorktree,
		Summary:    "ship e2e",
	}
	if err := k.Gateway.WithPlanWorktree(func(planPath string) error {
		if err := os.MkdirAll(filepath.Join(planPath, "tickets", "in-progress"), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(planPath, "tickets", "in-progress", "0001-red-master.md"), []byte(ticketBody), 0o644); err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Join(planPath, "queue", "merge", "pending"), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(planPath, "queue", "merge", "pending", "0001-0001.md"), []byte(planstore.RenderMergeRequest(mr)), 0o644); err != nil {
			return err
		}
		_, err := k.Gateway.Commit(planPath, []string{
			"tickets/in-progress/0001-red-master.md",
			"queue/merge/pending/0001-0001.md",
		}, planstore.MsgCreateTickets)
		return err
	}); err != nil {
		t.Fatalf("seeding in-progress ticket and merge request: %v", err)
	}

	// Break master's test target, then tick: the gate must halt before the
	// merge queue ever runs, so the queued item and the ticket are both
	// untouched.
	if err := os.WriteFile(filepath.Join(k.RepoDir, "Makefile"), []byte("test:\n\t@echo FAIL && exit 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	mustGit(t, k.RepoDir, "add", "-A")
	mustGit(t, k.RepoDir, "commit", "-q", "-m", "break the build")

	if err := k.Tick(); err != nil {
		t.Fatalf("Tick (red master): %v", err)
	}

	assertTicketState(t, k, "tickets/in-progress/0001-red-master.md")
	pending, err := listPendingQueue(t, k)
	if err != nil {
		t.Fatalf("listPendingQueue: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected merge queue untouched at length 1, got %v", pending)
	}

	// Restore the passing Makefile, tick again: the merge request drains.
	if err := os.WriteFile(filepath.Join(k.RepoDir, "Makefile"), []byte("test:\n\t@echo PASS\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	mustGit(t, k.RepoDir, "add", "-A")
	mustGit(t, k.RepoDir, "commit", "-q", "-m", "fix the build")

	if err := k.Tick(); err != nil {
		t.Fatalf("Tick (green master): %v", err)
	}

	assertTicketState(t, k, "tickets/done/0001-red-master.md")
	assertTicketAbsent(t, k, "tickets/in-progress/0001-red-master.md")
	pending, err = listPendingQueue(t, k)
	if err != nil {
		t.Fatalf("listPendingQueue: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected an empty merge queue after recovery, got %v", pending)
	}
}

func assertTicketState(t *testing.T, k *Kernel, relPath string) {
	t.Helper()
	err := k.Gateway.WithPlanWorktree(func(planPath string) error {
		_, err := os.Stat(planPath + "/" + relPath)
		return err
	})
	if err != nil {
		t.Fatalf("expected %s to exist: %v", relPath, err)
	}
}

func assertTicketAbsent(t *testing.T, k *Kernel, relPath string) {
	t.Helper()
	err := k.Gateway.WithPlanWorktree(func(planPath string) error {
		_, statErr := os.Stat(planPath + "/" + relPath)
		if statErr == nil {
			t.Fatalf("expected %s to not exist", relPath)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithPlanWorktree: %v", err)
	}
}

func listPendingQueue(t *testing.T, k *Kernel) ([]string, error) {
	t.Helper()
	var names []string
	err := k.Gateway.WithPlanWorktree(func(planPath string) error {
		n, err := listMarkdown(planPath + "/queue/merge/pending")
		names = n
		return err
	})
	return names, err
}
