// Package worktree manages per-ticket code worktrees and branches (C3).
//
// Generalizes internal/git/git.go's WorktreePath helper and
// internal/engine/engine.go's processConcern worktree-creation block
// (stat-then-create, idempotent against a stale path) from "one worktree
// per concern" to "one worktree per in-progress ticket." Process-tree
// reaping (go-ps) happens in internal/harness, which holds the agent's
// actual PID; this package only needs git's own --force worktree removal,
// since by the time a worktree is reclaimed here its owning agent attempt
// has already been killed by the harness's watchdog.
package worktree

import (
	"fmt"

	"github.com/orchestrator/kernel/internal/gitutil"
	"github.com/orchestrator/kernel/internal/pathkey"
	"github.com/orchestrator/kernel/internal/planstore"
)

// Manager creates, locates, and reaps per-ticket code worktrees.
type Manager struct {
	repoDir string
	repo    *gitutil.Repo
}

// NewManager creates a Manager rooted at the project's repository.
func NewManager(repoDir string) *Manager {
	return &Manager{repoDir: repoDir, repo: gitutil.NewRepo(repoDir)}
}

// Handle describes a ticket's assigned worktree.
type Handle struct {
	Path   string
	Branch string
}

// Path returns the managed worktree path for a ticket's file stem
// (e.g. "0007-add-retry-support").
func (m *Manager) Path(ticketStem string) string {
	return pathkey.TicketWorktreeDir(m.repoDir, ticketStem)
}

// EnsureWorktreeCreated is idempotent (spec.md §4.3): it force-removes
// any stale entry at the target path, then adds a worktree on the
// ticket's branch, checking it out if it exists or creating it from
// master otherwise.
func (m *Manager) EnsureWorktreeCreated(ticketID int, ticketStem, masterBranch string) (*Handle, error) {
	branch := planstore.TicketBranch(ticketID)
	path := m.Path(ticketStem)

	entries, err := m.repo.ListWorktrees()
	if err != nil {
		return nil, fmt.Errorf("listing worktrees: %w", err)
	}
	for _, e := range entries {
		if e.Path == path {
			if err := m.repo.RemoveWorktree(path, true); err != nil {
				return nil, fmt.Errorf("removing stale worktree %s: %w", path, err)
			}
			break
		}
	}
	if err := pathkey.EnsureDir(parentOf(path)); err != nil {
		return nil, fmt.Errorf("creating worktree parent dir: %w", err)
	}

	if m.repo.BranchExists(branch) {
		if err := m.repo.AddWorktree(path, branch); err != nil {
			return nil, fmt.Errorf("adding worktree on existing branch %s: %w", branch, err)
		}
	} else {
		if err := m.repo.AddWorktreeNewBranch(path, branch, masterBranch); err != nil {
			return nil, fmt.Errorf("adding worktree on new branch %s: %w", branch, err)
		}
	}
	return &Handle{Path: path, Branch: branch}, nil
}

// Remove force-removes a ticket's worktree.
func (m *Manager) Remove(path string) error {
	return m.repo.RemoveWorktree(path, true)
}

// CleanupStale walks the registered worktrees and force-removes any that
// sit under this repo's managed root but are not named in
// inUseByStem — e.g. because the in-progress ticket that owned them has
// since been completed or reopened (spec.md §4.3).
func (m *Manager) CleanupStale(inUseByStem map[string]bool) ([]string, error) {
	entries, err := m.repo.ListWorktrees()
	if err != nil {
		return nil, fmt.Errorf("listing worktrees: %w", err)
	}
	root := pathkey.Root(m.repoDir) + "/worktrees/tickets/"
	var removed []string
	for _, e := range entries {
		if len(e.Path) <= len(root) || e.Path[:len(root)] != root {
			continue
		}
		stem := e.Path[len(root):]
		if inUseByStem[stem] {
			continue
		}
		if err := m.repo.RemoveWorktree(e.Path, true); err != nil {
			return removed, fmt.Errorf("removing stale ticket worktree %s: %w", e.Path, err)
		}
		removed = append(removed, e.Path)
	}
	return removed, nil
}

func parentOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}
