// Package mergequeue implements the serial merge queue (C6): a FIFO over
// queue/merge/pending/* processed one item per tick, merging master into
// the ticket's branch, running the project's test command, and
// fast-forwarding master on success.
//
// Grounded on internal/engine/engine.go's rebaseWorktree/commitChanges
// pair — the abort-stale-rebase-then-retry and hard-reset-on-conflict
// shapes there are generalized from "rebase a concern branch onto the
// watched branch" to "merge master into a ticket branch, test, then
// fast-forward master", using gitutil.MergeNoEdit/MergeFFOnly in place of
// the teacher's raw git-rebase exec.Command calls. The whole pipeline
// runs inside a single plan worktree session so it produces exactly one
// commit, per spec.md's invariant that every transition is one commit:
// the active-marker write that opens the session is visible to anything
// inspecting the live worktree but is only made durable by the success
// or failure commit that closes it.
package mergequeue

import (
	"sort"

	"github.com/orchestrator/kernel/internal/gitutil"
	"github.com/orchestrator/kernel/internal/health"
	"github.com/orchestrator/kernel/internal/kernlog"
	"github.com/orchestrator/kernel/internal/pathkey"
	"github.com/orchestrator/kernel/internal/planstore"
)

const outputTailBytes = 2000

// Processor drives one merge-queue tick (ProcessOne) against the outer
// project repository, reading and writing plan-branch state through the
// given Gateway.
type Processor struct {
	RepoDir string
	Gateway *planstore.Gateway
	Log     *kernlog.Component
}

// ProcessOne processes at most the head item of the pending queue (spec.md
// §4.6). Returns false, nil if the queue was empty.
func (p *Processor) ProcessOne() (bool, error) {
	processed := false

	err := p.Gateway.WithPlanWorktree(func(planPath string) error {
		mr, pendingPath, err := popHead(planPath)
		if err != nil {
			return err
		}
		if mr == nil {
			return nil
		}
		processed = true

		if err := writeFile(planPath+"/"+planstore.ActiveMarkerPath, planstore.RenderActiveMarker(pendingPath)); err != nil {
			return &planstore.ErrIO{Cause: err}
		}

		summary, mergeOutput, testOutput, ok := p.runPipeline(mr)

		ticket, statePath, err := loadTicket(planPath, mr.TicketID)
		if err != nil {
			return err
		}

		var newPath, heading, note, msg string
		if ok {
			newPath = planstore.TicketPath(planstore.StateDone, mr.TicketID, ticket.Slug)
			heading = "Merge Queue Success"
			note = planstore.MergeQueueSuccessSection(mr.Summary)
			msg = planstore.MsgCompleteTicket(planstore.FormatTicketNumber(mr.TicketID))
		} else {
			newPath = planstore.TicketPath(planstore.StateOpen, mr.TicketID, ticket.Slug)
			heading = "Merge Queue Failure"
			note = planstore.MergeQueueFailureSection(mr.Summary+" ("+summary+")", planstore.TailString(mergeOutput, outputTailBytes), planstore.TailString(testOutput, outputTailBytes))
			msg = planstore.MsgReopenTicket(planstore.FormatTicketNumber(mr.TicketID))
		}

		if err := removeFile(planPath + "/" + statePath); err != nil {
			return &planstore.ErrIO{Cause: err}
		}
		if err := writeFile(planPath+"/"+newPath, planstore.AppendSection(ticket.Body, heading, note)); err != nil {
			return &planstore.ErrIO{Cause: err}
		}
		if err := removeFile(planPath + "/" + pendingPath); err != nil {
			return &planstore.ErrIO{Cause: err}
		}
		if err := writeFile(planPath+"/"+planstore.ActiveMarkerPath, ""); err != nil {
			return &planstore.ErrIO{Cause: err}
		}

		_, err = p.Gateway.Commit(planPath, nil, msg)
		return err
	})

	return processed, err
}

// popHead reads and parses the lexically-first pending queue item,
// without removing it from disk (removal happens once the pipeline
// outcome is known, in the same commit).
func popHead(planPath string) (*planstore.MergeRequest, string, error) {
	names, err := listMarkdown(planPath + "/queue/merge/pending")
	if err != nil {
		return nil, "", &planstore.ErrIO{Cause: err}
	}
	if len(names) == 0 {
		return nil, "", nil
	}
	sort.Strings(names)
	name := names[0]

	queueID, _, err := planstore.ParseQueueFilename(name)
	if err != nil {
		return nil, "", err
	}
	content, err := readFile(planPath + "/queue/merge/pending/" + name)
	if err != nil {
		return nil, "", &planstore.ErrIO{Cause: err}
	}
	mr, err := planstore.ParseMergeRequest(queueID, content)
	if err != nil {
		return nil, "", err
	}
	return mr, "queue/merge/pending/" + name, nil
}

// runPipeline executes spec.md §4.6 steps 2-4 outside the plan worktree,
// against the ticket's own worktree and a master worktree. It returns
// (summary, mergeOutputTail, testOutputTail, ok); ok is true only if every
// step succeeded.
func (p *Processor) runPipeline(mr *planstore.MergeRequest) (summary, mergeOutput, testOutput string, ok bool) {
	ticketRepo := gitutil.NewRepo(mr.Worktree)
	ticketRepo.EnsureIdentity()

	if err := ticketRepo.MergeNoEdit("master"); err != nil {
		return "git merge --no-edit master failed", err.Error(), "", false
	}

	testResult := health.RunMakeTest(mr.Worktree)
	if !testResult.Pass {
		return "test suite failed after merge", "", testResult.Output, false
	}

	masterDir, cleanup, err := resolveMasterWorktree(p.RepoDir)
	if err != nil {
		return "could not obtain a master worktree", err.Error(), "", false
	}
	defer cleanup()

	masterRepo := gitutil.NewRepo(masterDir)
	if err := masterRepo.MergeFFOnly(mr.Branch); err != nil {
		return "git merge --ff-only " + mr.Branch + " failed", err.Error(), "", false
	}

	return "", "", "", true
}

// resolveMasterWorktree returns an existing worktree checked out at
// master if one is registered, otherwise creates a temporary managed one
// and returns a cleanup func to remove it.
func resolveMasterWorktree(repoDir string) (dir string, cleanup func(), err error) {
	repo := gitutil.NewRepo(repoDir)
	entries, lerr := repo.ListWorktrees()
	if lerr == nil {
		for _, e := range entries {
			if e.Branch == "master" {
				return e.Path, func() {}, nil
			}
		}
	}

	path := pathkey.MasterWorktreeDir(repoDir)
	if err := pathkey.EnsureDir(parentOf(path)); err != nil {
		return "", nil, err
	}
	if err := repo.AddWorktree(path, "master"); err != nil {
		return "", nil, err
	}
	return path, func() { _ = repo.RemoveWorktree(path, true) }, nil
}

func parentOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}
