// Package gitutil wraps the git CLI for the kernel's plan-branch, worktree,
// and merge-queue operations.
//
// Grounded on internal/git/git.go's Repo type: the exec.Command wrapper,
// transient-error retry loop, and the rebase/reset-fallback pattern are
// carried over largely verbatim. The API is widened with worktree
// lifecycle operations (AddWorktree/RemoveWorktree/ListWorktrees),
// merge-queue operations (MergeNoEdit/MergeFFOnly), and read helpers
// (RevParse/DiffNameOnly) that the concern-pipeline teacher did not need
// but a multi-worktree orchestrator does.
package gitutil

import (
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const (
	retryInitialDelay = 200 * time.Millisecond
	retryMaxAttempts  = 6
	retryMultiplier   = 2
)

var transientPatterns = []string{
	"index file open failed",
	"index.lock",
	"cannot lock ref",
}

func isTransient(errMsg string) bool {
	for _, p := range transientPatterns {
		if strings.Contains(errMsg, p) {
			return true
		}
	}
	return false
}

// ErrNotAClean indicates an operation that requires a clean worktree found
// uncommitted changes instead.
var ErrNotAClean = errors.New("gitutil: worktree is not clean")

// Repo wraps git operations rooted at Dir, which may be the main repository
// or any of its linked worktrees.
type Repo struct {
	Dir string
}

// NewRepo creates a Repo for the given directory.
func NewRepo(dir string) *Repo {
	return &Repo{Dir: dir}
}

// sleepFunc is replaced in tests to avoid real delays.
var sleepFunc = time.Sleep

// run executes a git command in the repo directory, retrying transient
// lock-contention failures with exponential backoff.
func (r *Repo) run(args ...string) (string, error) {
	delay := retryInitialDelay
	for attempt := 0; attempt < retryMaxAttempts; attempt++ {
		cmd := exec.Command("git", args...)
		cmd.Dir = r.Dir
		out, err := cmd.CombinedOutput()
		if err == nil {
			return strings.TrimSpace(string(out)), nil
		}
		errMsg := strings.TrimSpace(string(out))
		if !isTransient(errMsg) || attempt == retryMaxAttempts-1 {
			return "", fmt.Errorf("git %s: %s: %w", strings.Join(args, " "), errMsg, err)
		}
		sleepFunc(delay)
		delay *= retryMultiplier
	}
	return "", nil
}

// RevParse resolves a ref (branch, tag, or symbolic name) to a commit hash.
func (r *Repo) RevParse(ref string) (string, error) {
	return r.run("rev-parse", ref)
}

// BranchExists reports whether a branch ref exists.
func (r *Repo) BranchExists(branch string) bool {
	_, err := r.run("rev-parse", "--verify", "refs/heads/"+branch)
	return err == nil
}

// CreateBranch creates a new branch from a starting point.
func (r *Repo) CreateBranch(name, from string) error {
	_, err := r.run("branch", name, from)
	return err
}

// DeleteBranch force-deletes a local branch. The merge queue does not
// call it: a landed ticket's branch is left in place.
func (r *Repo) DeleteBranch(name string) error {
	_, err := r.run("branch", "-D", name)
	return err
}

// CreateOrphanBranch creates a branch with no parent history, checked out
// in a fresh worktree at path. Used once to bootstrap the plan branch
// (spec.md §3 — the plan branch shares no history with application
// branches).
func (r *Repo) CreateOrphanBranch(path, branch string) error {
	_, err := r.run("worktree", "add", "--orphan", "-b", branch, path)
	return err
}

// AddWorktree creates a linked worktree at path checked out to branch.
func (r *Repo) AddWorktree(path, branch string) error {
	_, err := r.run("worktree", "add", path, branch)
	return err
}

// AddWorktreeNewBranch creates a linked worktree at path on a new branch
// cut from startPoint, in one step.
func (r *Repo) AddWorktreeNewBranch(path, branch, startPoint string) error {
	_, err := r.run("worktree", "add", "-b", branch, path, startPoint)
	return err
}

// RemoveWorktree removes a linked worktree. If force is true, uncommitted
// changes in the worktree are discarded rather than blocking removal —
// used when reaping a worktree left behind by a crashed or timed-out
// agent attempt (spec.md §4.3 stale-worktree reaping).
func (r *Repo) RemoveWorktree(path string, force bool) error {
	args := []string{"worktree", "remove"}
	if force {
		args = append(args, "--force")
	}
	args = append(args, path)
	_, err := r.run(args...)
	return err
}

// PruneWorktrees removes administrative files for worktrees whose
// directories have been deleted out from under git (e.g. by a reboot
// clearing the temp root).
func (r *Repo) PruneWorktrees() error {
	_, err := r.run("worktree", "prune")
	return err
}

// WorktreeEntry describes one row of `git worktree list --porcelain`.
type WorktreeEntry struct {
	Path   string
	Head   string
	Branch string // empty when detached
	Locked bool
}

// ListWorktrees parses `git worktree list --porcelain` into structured
// entries.
func (r *Repo) ListWorktrees() ([]WorktreeEntry, error) {
	out, err := r.run("worktree", "list", "--porcelain")
	if err != nil {
		return nil, err
	}
	var entries []WorktreeEntry
	var cur *WorktreeEntry
	flush := func() {
		if cur != nil {
			entries = append(entries, *cur)
			cur = nil
		}
	}
	for _, line := range strings.Split(out, "\n") {
		switch {
		case strings.HasPrefix(line, "worktree "):
			flush()
			cur = &WorktreeEntry{Path: strings.TrimPrefix(line, "worktree ")}
		case cur == nil:
			continue
		case strings.HasPrefix(line, "HEAD "):
			cur.Head = strings.TrimPrefix(line, "HEAD ")
		case strings.HasPrefix(line, "branch "):
			cur.Branch = strings.TrimPrefix(strings.TrimPrefix(line, "branch "), "refs/heads/")
		case strings.HasPrefix(line, "locked"):
			cur.Locked = true
		}
	}
	flush()
	return entries, nil
}

// CommitsBetween returns commit hashes between two refs (exclusive of
// from, inclusive of to), oldest first. If from is empty, returns all
// ancestors of to.
func (r *Repo) CommitsBetween(from, to string) ([]string, error) {
	rangeSpec := to
	if from != "" {
		rangeSpec = from + ".." + to
	}
	out, err := r.run("rev-list", "--reverse", rangeSpec)
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// CommitMessage returns the full commit message for a given hash.
func (r *Repo) CommitMessage(hash string) (string, error) {
	return r.run("log", "-1", "--format=%B", hash)
}

// AddNote adds a git note to a commit under the kernel's notes namespace.
func (r *Repo) AddNote(commit, message string) error {
	_, err := r.run("notes", "--ref=kernel", "add", "-f", "-m", message, commit)
	return err
}

// EnsureIdentity sets user.name and user.email in the repo's local config
// if they are not already resolvable, so commits made on the kernel's
// behalf never fail with "Author identity unknown" in CI environments.
func (r *Repo) EnsureIdentity() {
	if _, err := r.run("config", "user.name"); err != nil {
		_, _ = r.run("config", "user.name", "kernel")
	}
	if _, err := r.run("config", "user.email"); err != nil {
		_, _ = r.run("config", "user.email", "kernel@localhost")
	}
}

// FilesChangedInCommit returns the file paths changed in a single commit.
// Uses diff-tree, which works correctly for root commits (no parent).
func (r *Repo) FilesChangedInCommit(hash string) ([]string, error) {
	out, err := r.run("diff-tree", "--no-commit-id", "-r", "--name-only", hash)
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// DiffNameOnly returns the file paths that differ between two refs. The
// write-scope guard does not use it; it checks uncommitted changes with
// ChangedPaths.
func (r *Repo) DiffNameOnly(from, to string) ([]string, error) {
	out, err := r.run("diff", "--name-only", from, to)
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// HasChanges reports whether the worktree has uncommitted changes
// (tracked or untracked).
func (r *Repo) HasChanges() (bool, error) {
	out, err := r.run("status", "--porcelain")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) != "", nil
}

// ChangedPaths returns every path with uncommitted changes, tracked or
// untracked, relative to Dir. Used by the planning drivers' write-scope
// guard (spec.md §4.8) to see exactly what an agent touched before it is
// committed.
func (r *Repo) ChangedPaths() ([]string, error) {
	out, err := r.run("status", "--porcelain", "--untracked-files=all")
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(out) == "" {
		return nil, nil
	}
	var paths []string
	for _, line := range strings.Split(out, "\n") {
		if len(line) < 4 {
			continue
		}
		path := strings.TrimSpace(line[3:])
		if idx := strings.Index(path, " -> "); idx >= 0 {
			path = path[idx+4:]
		}
		path = strings.Trim(path, `"`)
		paths = append(paths, path)
	}
	return paths, nil
}

// StageAll stages all changes, including untracked files.
func (r *Repo) StageAll() error {
	_, err := r.run("add", "-A")
	return err
}

// Add stages specific paths (relative to Dir), including untracked files.
func (r *Repo) Add(paths ...string) error {
	args := append([]string{"add", "--"}, paths...)
	_, err := r.run(args...)
	return err
}

// Commit creates a commit with the given message, skipping hooks: the
// kernel commits on the plan branch after an agent or driver process has
// already exited, so there is nothing left running that could act on a
// failed hook.
func (r *Repo) Commit(message string) error {
	_, err := r.run("commit", "--no-verify", "-m", message)
	return err
}

// CommitIfChanged commits staged and unstaged changes if any exist,
// returning false with no error if the worktree was already clean — the
// no-op half of the commit-per-transition contract (spec.md §3).
func (r *Repo) CommitIfChanged(message string) (bool, error) {
	changed, err := r.HasChanges()
	if err != nil {
		return false, err
	}
	if !changed {
		return false, nil
	}
	if err := r.StageAll(); err != nil {
		return false, err
	}
	if err := r.Commit(message); err != nil {
		return false, err
	}
	return true, nil
}

// ResetSoft performs a soft reset to ref, preserving working-tree changes.
func (r *Repo) ResetSoft(ref string) error {
	_, err := r.run("reset", "--soft", ref)
	return err
}

func (r *Repo) abortRebase() {
	_, _ = r.run("rebase", "--abort")
}

// Rebase rebases the current branch onto targetBranch. On conflict, the
// rebase is aborted and the branch is hard-reset to targetBranch: ticket
// branches are agent-generated and disposable, so a conflicting stale
// attempt is discarded rather than fought through — the next attempt
// regenerates from a clean base.
func (r *Repo) Rebase(targetBranch string) error {
	r.abortRebase()
	_, err := r.run("rebase", targetBranch)
	if err != nil {
		r.abortRebase()
		if _, resetErr := r.run("reset", "--hard", targetBranch); resetErr != nil {
			return fmt.Errorf("rebase %s failed and reset also failed: %w", targetBranch, resetErr)
		}
	}
	return nil
}

// MergeFFOnly fast-forwards the current branch to other, failing if a
// fast-forward is not possible. Used to advance master onto a landed
// ticket branch (spec.md §4.6): the merge queue has already merged current
// master into the ticket branch, so the landing merge must always be a
// pure fast-forward.
func (r *Repo) MergeFFOnly(other string) error {
	_, err := r.run("merge", "--ff-only", other)
	return err
}

// MergeNoEdit merges other into the current branch with the default
// merge commit message, failing on conflict without leaving a
// half-finished merge state behind (--abort is run on failure).
func (r *Repo) MergeNoEdit(other string) error {
	_, err := r.run("merge", "--no-edit", other)
	if err != nil {
		_, _ = r.run("merge", "--abort")
		return err
	}
	return nil
}

// CheckoutNew creates and checks out a new branch from startPoint in the
// current worktree (no linked worktree involved).
func (r *Repo) CheckoutNew(branch, startPoint string) error {
	_, err := r.run("checkout", "-b", branch, startPoint)
	return err
}

// Checkout switches the current worktree to an existing branch.
func (r *Repo) Checkout(branch string) error {
	_, err := r.run("checkout", branch)
	return err
}

// Fetch fetches from every configured remote, pruning deleted remote
// refs. The master-health gate does not call it: it tests the local
// master as it stands.
func (r *Repo) Fetch() error {
	_, err := r.run("fetch", "--all", "--prune")
	return err
}

// LogCount returns the number of commits reachable from ref.
func (r *Repo) LogCount(ref string) (int, error) {
	out, err := r.run("rev-list", "--count", ref)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(out)
}

// ShowFile returns the contents of a path as of ref, as recorded in the
// plan branch's tree — used to read plan documents without a worktree
// checkout when only a snapshot is needed.
func (r *Repo) ShowFile(ref, path string) (string, error) {
	return r.run("show", ref+":"+path)
}
