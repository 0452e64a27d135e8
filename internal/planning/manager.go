package planning

import (
	"github.com/orchestrator/kernel/internal/planstore"
)

// AreaHasOpenWork reports whether any ticket currently on the plan branch
// references the given area and sits in open or in-progress (spec.md
// §4.9 item 5: "For each area with no open or in-progress ticket...").
func (d *Driver) AreaHasOpenWork(areaID string) (bool, error) {
	has := false
	err := d.Gateway.WithPlanWorktree(func(planPath string) error {
		for _, state := range []planstore.TicketState{planstore.StateOpen, planstore.StateInProgress} {
			names, lerr := listMarkdown(planPath + "/" + state.Dir())
			if lerr != nil {
				return lerr
			}
			for _, name := range names {
				number, slug, perr := planstore.ParseTicketFilename(name)
				if perr != nil {
					continue
				}
				body, rerr := readFile(planPath + "/" + state.Dir() + "/" + name)
				if rerr != nil {
					return &planstore.ErrIO{Cause: rerr}
				}
				ticket, terr := planstore.ParseTicket(state, number, slug, body)
				if terr != nil {
					continue
				}
				if ticket.Area == areaID {
					has = true
					return nil
				}
			}
		}
		return nil
	})
	return has, err
}

// nextTicketNumberIn scans every ticket state directory in the plan
// worktree for the current maximum numeric prefix (spec.md §4.2 "next
// monotonic ticket ID").
func nextTicketNumberIn(planPath string) (int, error) {
	var nums []int
	for _, state := range []planstore.TicketState{planstore.StateOpen, planstore.StateInProgress, planstore.StateDone} {
		names, err := listMarkdown(planPath + "/" + state.Dir())
		if err != nil {
			return 0, err
		}
		for _, name := range names {
			n, _, perr := planstore.ParseTicketFilename(name)
			if perr == nil {
				nums = append(nums, n)
			}
		}
	}
	return planstore.NextTicketNumber(nums), nil
}

// RunTickets runs the Manager to decompose one area into tickets under
// tickets/open/ (spec.md §4.9 item 5). The Manager is told exactly which
// ticket number to start from; any ticket file it writes with a
// different or malformed numeric prefix fails the write-scope guard,
// since invariant P4 (ticket IDs strictly monotonic) cannot be left to
// the agent's own arithmetic.
func (d *Driver) RunTickets(area *planstore.Area) error {
	return d.Gateway.WithPlanWorktree(func(planPath string) error {
		startAt, nerr := nextTicketNumberIn(planPath)
		if nerr != nil {
			return nerr
		}

		prompt := buildManagerPrompt(d.RepoDir, area.AreaID(), area.Body, startAt)
		if _, rerr := d.runner().Run(d.harnessConfig("manager", planPath, "manager-"+area.AreaID()), prompt); rerr != nil {
			return rerr
		}

		if gerr := guardOuterRepoUntouched("manager", d.RepoDir); gerr != nil {
			return gerr
		}
		changedPaths, cerr := changedPathsIn(planPath)
		if cerr != nil {
			return cerr
		}
		if gerr := guardScope("manager", scopeTicketsOpen, changedPaths); gerr != nil {
			return gerr
		}
		if gerr := guardTicketNumbering(changedPaths, startAt); gerr != nil {
			return gerr
		}
		if len(changedPaths) == 0 {
			d.warnf("manager run for area %s produced no ticket files", area.AreaID())
			return nil
		}

		_, cerr = d.Gateway.Commit(planPath, changedPaths, planstore.MsgCreateTickets)
		return cerr
	})
}

// guardTicketNumbering enforces that the new ticket files are numbered
// consecutively from startAt (the number the Manager was told to start
// from): each prefix lies in [startAt, startAt+len(changedPaths)) and no
// two changed files reuse the same number.
func guardTicketNumbering(changedPaths []string, startAt int) error {
	seen := map[int]bool{}
	var bad []string
	for _, p := range changedPaths {
		name := p
		if idx := lastSlash(p); idx >= 0 {
			name = p[idx+1:]
		}
		n, _, err := planstore.ParseTicketFilename(name)
		if err != nil || n < startAt || n >= startAt+len(changedPaths) || seen[n] {
			bad = append(bad, p)
			continue
		}
		seen[n] = true
	}
	if len(bad) > 0 {
		return &planstore.ErrWriteGuardViolation{Driver: "manager", Paths: bad}
	}
	return nil
}

func lastSlash(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '/' {
			return i
		}
	}
	return -1
}
