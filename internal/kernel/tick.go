package kernel

import (
	"errors"

	"github.com/orchestrator/kernel/internal/planning"
	"github.com/orchestrator/kernel/internal/planstore"
)

// Tick runs one pass of the event loop's eight-step reconciliation
// (spec.md §4.9). Each step that can fail for a transient, environmental
// reason (a contended planner lock, a busy plan worktree) is logged and
// skipped rather than propagated, per spec.md §7's "transient
// environmental; kernel logs and continues next tick" policy; only a
// genuine programming error bubbles up to the caller.
func (k *Kernel) Tick() error {
	k.Health.Reset()

	specContent, err := k.readSpec()
	if err != nil {
		if isPlanBranchMissing(err) {
			k.Log.Warnf("plan branch missing, skipping tick")
			return nil
		}
		if transient(err) {
			k.Log.Warnf("tick skipped: %v", err)
			return nil
		}
		return err
	}
	if planstore.IsPlaceholderSpec(specContent) {
		k.Log.Infof("WAITING: no spec written yet")
		return nil
	}

	if err := k.drainTasks(); err != nil && !transient(err) {
		return err
	}

	if !k.Health.Check() {
		return nil
	}

	if err := k.runPlanningStep(); err != nil && !transient(err) {
		return err
	}

	if _, err := k.MergeQueue.ProcessOne(); err != nil {
		k.Log.Warnf("merge queue: %v", err)
	}

	if _, err := k.AssignAndRun(); err != nil && !transient(err) {
		return err
	}

	if err := k.cleanupWorktrees(); err != nil {
		k.Log.Warnf("worktree cleanup: %v", err)
	}

	return nil
}

// readSpec fetches the current spec.md content through a throwaway plan
// worktree session.
func (k *Kernel) readSpec() (string, error) {
	var content string
	err := k.Gateway.WithPlanWorktree(func(planPath string) error {
		c, rerr := readFile(planPath + "/spec.md")
		if rerr != nil {
			return &planstore.ErrIO{Cause: rerr}
		}
		content = c
		return nil
	})
	return content, err
}

// runPlanningStep covers spec.md §4.9 items 4 and 5: decomposing the
// spec into areas when none exist yet, then decomposing every
// not-yet-ticketed area into tickets. Both calls are serialized behind
// the planner lock, since either may invoke the Agent Harness against
// the shared plan worktree.
func (k *Kernel) runPlanningStep() error {
	release, err := planning.AcquireLock(k.RepoDir)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := release(); rerr != nil {
			k.Log.Warnf("releasing planner lock: %v", rerr)
		}
	}()

	areas, err := k.Driver.ListAreas()
	if err != nil {
		return err
	}
	if len(areas) == 0 {
		if err := k.Driver.RunAreas(); err != nil {
			return err
		}
		return nil
	}

	for _, area := range areas {
		hasWork, herr := k.Driver.AreaHasOpenWork(area.AreaID())
		if herr != nil {
			return herr
		}
		if hasWork {
			continue
		}
		if err := k.Driver.RunTickets(area); err != nil {
			k.Log.Warnf("manager run for area %s: %v", area.AreaID(), err)
		}
	}
	return nil
}

// cleanupWorktrees removes any registered ticket worktree that no longer
// belongs to an in-progress ticket (spec.md §4.9 item 8).
func (k *Kernel) cleanupWorktrees() error {
	inUse := map[string]bool{}
	err := k.Gateway.WithPlanWorktree(func(planPath string) error {
		names, lerr := listMarkdown(planPath + "/" + planstore.StateInProgress.Dir())
		if lerr != nil {
			return lerr
		}
		for _, name := range names {
			number, slug, perr := planstore.ParseTicketFilename(name)
			if perr != nil {
				continue
			}
			inUse[ticketStem(number, slug)] = true
		}
		return nil
	})
	if err != nil {
		return err
	}
	_, err = k.Worktrees.CleanupStale(inUse)
	return err
}

func isPlanBranchMissing(err error) bool {
	var target *planstore.ErrPlanBranchMissing
	return errors.As(err, &target)
}

// transient reports whether err is one of the environmental conditions
// spec.md §7 says the loop should log and retry next tick rather than
// treat as fatal: a contended planner lock or a plan worktree already
// held by a non-managed checkout.
func transient(err error) bool {
	var lockErr *planstore.ErrLockContended
	if errors.As(err, &lockErr) {
		return true
	}
	var busyErr *planstore.ErrPlanWorktreeBusy
	if errors.As(err, &busyErr) {
		return true
	}
	return false
}
