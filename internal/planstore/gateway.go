// Package planstore implements the plan branch gateway (C1) and the
// ticket/area/queue document model (C2): every piece of persistent
// orchestrator state, stored purely as markdown files on an orphan git
// branch.
//
// Grounded on internal/git/git.go's Repo.CreateWorktree/Repo.Rebase pair
// and internal/cli/init.go's idempotent check-then-act style. withPlanWorktree
// wraps gitutil.ListWorktrees (detect a stale managed worktree or a busy
// non-managed checkout), gitutil.AddWorktree, the caller's mutation
// function, and a deferred gitutil.RemoveWorktree that runs on every exit
// path — the same defer-cleanup shape as the teacher's LogManager.Close.
package planstore

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/orchestrator/kernel/internal/gitutil"
	"github.com/orchestrator/kernel/internal/pathkey"
)

// Branch is the orphan plan branch name (spec.md §3).
const Branch = pathkey.ToolName + "/plan"

// PlaceholderSpec is the spec.md content written by Init before any
// Architect run has ever touched it (spec.md §4.9 item 2: "spec.md is
// empty or the init placeholder").
const PlaceholderSpec = "# Spec\n\n(no spec written yet — run `plan` to populate it)\n"

// IsPlaceholderSpec reports whether content is empty or still the
// unmodified Init placeholder, the condition the event loop checks every
// tick before doing any planning or execution work.
func IsPlaceholderSpec(content string) bool {
	trimmed := strings.TrimSpace(content)
	return trimmed == "" || trimmed == strings.TrimSpace(PlaceholderSpec)
}

// Reserved commit-message subjects (spec.md §6, invariant I5).
const (
	MsgInitPlanBranch   = pathkey.ToolName + ": initialize plan branch"
	MsgUpdateSpec       = pathkey.ToolName + ": update spec from architect"
	MsgUpdateAreas      = pathkey.ToolName + ": update areas from spec"
	MsgCreateTickets    = pathkey.ToolName + ": create tickets from areas"
	MsgInitMergeQueue   = pathkey.ToolName + ": initialize merge queue"
	MsgPlanSessionTurn  = pathkey.ToolName + ": plan session turn"
)

// MsgAssignTicket returns the reserved subject for assigning a ticket.
func MsgAssignTicket(stem string) string { return fmt.Sprintf("%s: assign ticket %s", pathkey.ToolName, stem) }

// MsgRecordAgentRun returns the reserved subject for recording an agent run.
func MsgRecordAgentRun(stem string) string {
	return fmt.Sprintf("%s: record agent run %s", pathkey.ToolName, stem)
}

// MsgEnqueueMergeRequest returns the reserved subject for enqueueing a merge request.
func MsgEnqueueMergeRequest(ticketID string) string {
	return fmt.Sprintf("%s: enqueue merge request %s", pathkey.ToolName, ticketID)
}

// MsgCompleteTicket returns the reserved subject for a successful merge.
func MsgCompleteTicket(ticketID string) string {
	return fmt.Sprintf("%s: complete ticket %s", pathkey.ToolName, ticketID)
}

// MsgReopenTicket returns the reserved subject for a failed merge.
func MsgReopenTicket(ticketID string) string {
	return fmt.Sprintf("%s: reopen ticket %s", pathkey.ToolName, ticketID)
}

// MsgAddNote returns the subject for an MCP add_note task applied to a
// ticket (spec.md §4.5's "append to the ticket document" — not one of
// §6's literally reserved subjects since the tool postdates that list,
// but following the same "<tool>: <verb> <object>" convention).
func MsgAddNote(stem string) string {
	return fmt.Sprintf("%s: add note %s", pathkey.ToolName, stem)
}

// Gateway serializes all reads and writes to the plan branch through
// ephemeral managed worktrees.
type Gateway struct {
	repoDir string
	repo    *gitutil.Repo
}

// NewGateway creates a Gateway rooted at the outer project's repository
// directory (not the plan worktree itself).
func NewGateway(repoDir string) *Gateway {
	return &Gateway{repoDir: repoDir, repo: gitutil.NewRepo(repoDir)}
}

// WorktreePath returns the managed plan worktree path for this repo.
func (g *Gateway) WorktreePath() string {
	return pathkey.PlanWorktreeDir(g.repoDir)
}

// Init creates the orphan plan branch, directory skeleton, and a
// placeholder spec.md, committing with MsgInitPlanBranch. It is a no-op
// if the branch already exists.
func (g *Gateway) Init(placeholderSpec string) error {
	if g.repo.BranchExists(Branch) {
		return nil
	}
	path := g.WorktreePath()
	if err := reapStaleManagedWorktree(g.repo, path); err != nil {
		return &ErrIO{Cause: err}
	}
	if err := pathkey.EnsureDir(path); err != nil {
		return &ErrIO{Cause: err}
	}
	if err := g.repo.CreateOrphanBranch(path, Branch); err != nil {
		return &ErrIO{Cause: err}
	}
	defer func() { _ = g.repo.RemoveWorktree(path, true) }()

	wt := gitutil.NewRepo(path)
	wt.EnsureIdentity()
	for _, dir := range []string{"areas", "tickets/open", "tickets/in-progress", "tickets/done", "decisions"} {
		if err := pathkey.EnsureDir(joinPath(path, dir)); err != nil {
			return &ErrIO{Cause: err}
		}
		if err := ensureGitkeep(joinPath(path, dir)); err != nil {
			return &ErrIO{Cause: err}
		}
	}
	if err := writeFile(joinPath(path, "spec.md"), placeholderSpec); err != nil {
		return &ErrIO{Cause: err}
	}
	if _, err := wt.CommitIfChanged(MsgInitPlanBranch); err != nil {
		return &ErrIO{Cause: err}
	}

	// The merge queue's own skeleton lands as a second, separately
	// reserved transition (spec.md §6's "initialize merge queue" subject),
	// since it is a logically distinct piece of state from the plan
	// skeleton above even though both happen during the same Init call.
	if err := pathkey.EnsureDir(joinPath(path, "queue/merge/pending")); err != nil {
		return &ErrIO{Cause: err}
	}
	if err := ensureGitkeep(joinPath(path, "queue/merge/pending")); err != nil {
		return &ErrIO{Cause: err}
	}
	if err := writeFile(joinPath(path, "queue/merge/active.md"), ""); err != nil {
		return &ErrIO{Cause: err}
	}
	if err := writeFile(joinPath(path, QueueCounterPath), "0\n"); err != nil {
		return &ErrIO{Cause: err}
	}
	if _, err := wt.CommitIfChanged(MsgInitMergeQueue); err != nil {
		return &ErrIO{Cause: err}
	}
	return nil
}

// reapStaleManagedWorktree force-removes a prior managed plan worktree
// left behind by a crashed run, and errors if the path is instead held by
// a non-managed checkout of the plan branch.
func reapStaleManagedWorktree(repo *gitutil.Repo, managedPath string) error {
	entries, err := repo.ListWorktrees()
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Path == managedPath {
			return repo.RemoveWorktree(managedPath, true)
		}
		if e.Branch == Branch {
			return &ErrPlanWorktreeBusy{Path: e.Path}
		}
	}
	return nil
}

// WithPlanWorktree opens the managed plan worktree, calls fn(planPath),
// and cleans up on every exit path (success, error, or panic). It does
// not commit; callers pass changed relative paths to Commit themselves
// once fn returns successfully, so that an error from fn never produces
// a partially staged transition.
func (g *Gateway) WithPlanWorktree(fn func(planPath string) error) error {
	if !g.repo.BranchExists(Branch) {
		return &ErrPlanBranchMissing{Branch: Branch}
	}
	path := g.WorktreePath()
	if err := reapStaleManagedWorktree(g.repo, path); err != nil {
		if _, busy := err.(*ErrPlanWorktreeBusy); busy {
			return err
		}
		return &ErrIO{Cause: err}
	}
	if err := pathkey.EnsureDir(parentDir(path)); err != nil {
		return &ErrIO{Cause: err}
	}
	if err := g.repo.AddWorktree(path, Branch); err != nil {
		return &ErrIO{Cause: err}
	}
	defer func() { _ = g.repo.RemoveWorktree(path, true) }()

	return fn(path)
}

// Commit stages the given plan-relative paths and commits with message,
// as a no-op when the index ends up clean. planPath is the plan
// worktree's absolute path, as passed to the WithPlanWorktree callback.
func (g *Gateway) Commit(planPath string, paths []string, message string) (bool, error) {
	wt := gitutil.NewRepo(planPath)
	wt.EnsureIdentity()
	if len(paths) == 0 {
		return wt.CommitIfChanged(message)
	}
	if err := wt.Add(paths...); err != nil {
		return false, &ErrIO{Cause: err}
	}
	changed, err := wt.HasChanges()
	if err != nil {
		return false, &ErrIO{Cause: err}
	}
	if !changed {
		return false, nil
	}
	if err := wt.Commit(message); err != nil {
		return false, &ErrIO{Cause: err}
	}
	return true, nil
}

func joinPath(parts ...string) string { return strings.Join(parts, "/") }

func parentDir(path string) string {
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return "."
	}
	return path[:idx]
}

func ensureGitkeep(dir string) error {
	return writeFileIfAbsent(joinPath(dir, ".gitkeep"), "")
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}

func writeFileIfAbsent(path, content string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return writeFile(path, content)
}

// NextTicketNumber computes the next monotonic 4-digit ticket ID given
// the numeric prefixes already present across all three state
// directories (spec.md §4.2, invariant P4).
func NextTicketNumber(existing []int) int {
	max := 0
	for _, n := range existing {
		if n > max {
			max = n
		}
	}
	return max + 1
}

// FormatTicketNumber zero-pads a ticket number to four digits.
func FormatTicketNumber(n int) string {
	return fmt.Sprintf("%04d", n)
}

// ParseTicketNumber parses a zero-padded numeric ticket prefix.
func ParseTicketNumber(prefix string) (int, error) {
	n, err := strconv.Atoi(prefix)
	if err != nil || n <= 0 {
		return 0, &ErrInvalidTicketPrefix{Prefix: prefix}
	}
	return n, nil
}
