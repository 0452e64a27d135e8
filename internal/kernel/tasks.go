package kernel

import (
	"fmt"
	"sort"

	"github.com/orchestrator/kernel/internal/mcpserver"
	"github.com/orchestrator/kernel/internal/planstore"
)

// drainTasks applies every task the MCP tool server has queued since the
// previous tick (spec.md §4.5's "alternative path" into §4.8, §9's
// single-writer discipline: tool calls only ever enqueue, the event loop
// is the only thing that ever turns one into a plan-branch commit). Each
// task becomes its own commit, preserving invariant I5's "one transition,
// one reserved-subject commit" even when several tasks drain in the same
// tick.
func (k *Kernel) drainTasks() error {
	tasks := k.Tasks.DrainAll()
	if len(tasks) == 0 {
		return nil
	}
	return k.Gateway.WithPlanWorktree(func(planPath string) error {
		for _, t := range tasks {
			var err error
			switch t.Kind {
			case mcpserver.TaskCreateArea:
				err = applyCreateArea(k.Gateway, planPath, t)
			case mcpserver.TaskCreateTicket:
				err = applyCreateTicket(k.Gateway, planPath, t)
			case mcpserver.TaskAddNote:
				err = applyAddNote(k.Gateway, planPath, t)
			default:
				err = fmt.Errorf("kernel: unknown task kind %q", t.Kind)
			}
			if err != nil {
				k.Log.Warnf("dropping task %s: %v", t.Kind, err)
			}
		}
		return nil
	})
}

func applyCreateArea(gw *planstore.Gateway, planPath string, t mcpserver.Task) error {
	names, err := listMarkdown(planPath + "/areas")
	if err != nil {
		return err
	}
	var existing []int
	for _, name := range names {
		if n, _, perr := planstore.ParseAreaFilename(name); perr == nil {
			existing = append(existing, n)
		}
	}
	slug, err := planstore.NormalizeTicketSlug(t.Title)
	if err != nil {
		return err
	}
	number := planstore.NextAreaNumber(existing)
	body := fmt.Sprintf("# Area %02d\n\n## Summary\n%s\n\n## Scope\n%s\n\n## Out of scope\n%s\n",
		number, t.Summary, t.Scope, t.OutOfScope)
	path := planstore.AreaPath(number, slug)
	if err := writeFile(planPath+"/"+path, body); err != nil {
		return err
	}
	_, err = gw.Commit(planPath, []string{path}, planstore.MsgUpdateAreas)
	return err
}

func applyCreateTicket(gw *planstore.Gateway, planPath string, t mcpserver.Task) error {
	areaNames, err := listMarkdown(planPath + "/areas")
	if err != nil {
		return err
	}
	known := map[string]bool{}
	for _, name := range areaNames {
		n, slug, perr := planstore.ParseAreaFilename(name)
		if perr == nil {
			known[(&planstore.Area{Number: n, Slug: slug}).AreaID()] = true
		}
	}
	if err := planstore.ValidateAreaReference(t.Area, known); err != nil {
		return err
	}

	var existing []int
	for _, state := range []planstore.TicketState{planstore.StateOpen, planstore.StateInProgress, planstore.StateDone} {
		names, lerr := listMarkdown(planPath + "/" + state.Dir())
		if lerr != nil {
			return lerr
		}
		for _, name := range names {
			if n, _, perr := planstore.ParseTicketFilename(name); perr == nil {
				existing = append(existing, n)
			}
		}
	}
	slug, err := planstore.NormalizeTicketSlug(t.Title)
	if err != nil {
		return err
	}
	number := planstore.NextTicketNumber(existing)
	body := fmt.Sprintf("**Area:** %s\n\n## Goal\n%s\n\n## Acceptance Criteria\n%s\n",
		t.Area, t.Goal, t.AcceptanceCriteria)
	if t.Notes != "" {
		body = planstore.AppendSection(body, "Notes", t.Notes)
	}
	path := planstore.TicketPath(planstore.StateOpen, number, slug)
	if err := writeFile(planPath+"/"+path, body); err != nil {
		return err
	}
	_, err = gw.Commit(planPath, []string{path}, planstore.MsgCreateTickets)
	return err
}

func applyAddNote(gw *planstore.Gateway, planPath string, t mcpserver.Task) error {
	number, err := planstore.ParseTicketNumber(t.TicketID)
	if err != nil {
		return err
	}
	ticket, path, err := findTicket(planPath, number)
	if err != nil {
		return err
	}
	updated := planstore.AppendSection(ticket.Body, "Note", t.Note)
	if err := writeFile(planPath+"/"+path, updated); err != nil {
		return err
	}
	_, err = gw.Commit(planPath, []string{path}, planstore.MsgAddNote(ticketStem(number, ticket.Slug)))
	return err
}

// findTicket locates a ticket by numeric ID across all three state
// directories, mirroring internal/mergequeue/fileops.go's loadTicket.
func findTicket(planPath string, ticketID int) (*planstore.Ticket, string, error) {
	for _, state := range []planstore.TicketState{planstore.StateOpen, planstore.StateInProgress, planstore.StateDone} {
		names, err := listMarkdown(planPath + "/" + state.Dir())
		if err != nil {
			return nil, "", err
		}
		sort.Strings(names)
		for _, name := range names {
			number, slug, perr := planstore.ParseTicketFilename(name)
			if perr != nil || number != ticketID {
				continue
			}
			path := state.Dir() + "/" + name
			content, rerr := readFile(planPath + "/" + path)
			if rerr != nil {
				return nil, "", rerr
			}
			ticket, terr := planstore.ParseTicket(state, number, slug, content)
			if terr != nil {
				return nil, "", terr
			}
			return ticket, path, nil
		}
	}
	return nil, "", &planstore.ErrInvalidTicketPrefix{Prefix: planstore.FormatTicketNumber(ticketID)}
}

func ticketStem(number int, slug string) string {
	return planstore.FormatTicketNumber(number) + "-" + slug
}
