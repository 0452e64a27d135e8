package kernel

import (
	"fmt"

	"github.com/orchestrator/kernel/internal/config"
	"github.com/orchestrator/kernel/internal/harness"
	"github.com/orchestrator/kernel/internal/planstore"
)

// AssignAndRun picks the oldest open ticket, moves it to in-progress with
// a fresh code worktree, runs the coding agent against it, and enqueues a
// merge request if the agent calls submit_pr (spec.md §4.9 item 7). It
// returns false, nil if no open ticket exists.
func (k *Kernel) AssignAndRun() (bool, error) {
	var ticket *planstore.Ticket
	err := k.Gateway.WithPlanWorktree(func(planPath string) error {
		names, lerr := listMarkdown(planPath + "/" + planstore.StateOpen.Dir())
		if lerr != nil {
			return lerr
		}
		var candidates []*planstore.Ticket
		for _, name := range names {
			number, slug, perr := planstore.ParseTicketFilename(name)
			if perr != nil {
				continue
			}
			body, rerr := readFile(planPath + "/" + planstore.TicketPath(planstore.StateOpen, number, slug))
			if rerr != nil {
				return &planstore.ErrIO{Cause: rerr}
			}
			t, terr := planstore.ParseTicket(planstore.StateOpen, number, slug, body)
			if terr != nil {
				k.Log.Warnf("skipping unparseable ticket %s: %v", name, terr)
				continue
			}
			candidates = append(candidates, t)
		}
		ticket = planstore.OldestOpen(candidates)
		return nil
	})
	if err != nil || ticket == nil {
		return false, err
	}

	stem := ticketStem(ticket.Number, ticket.Slug)
	handle, err := k.Worktrees.EnsureWorktreeCreated(ticket.Number, stem, "master")
	if err != nil {
		return false, fmt.Errorf("kernel: creating worktree for %s: %w", stem, err)
	}

	err = k.Gateway.WithPlanWorktree(func(planPath string) error {
		oldPath := planstore.TicketPath(planstore.StateOpen, ticket.Number, ticket.Slug)
		newPath := planstore.TicketPath(planstore.StateInProgress, ticket.Number, ticket.Slug)
		body := ticket.WithWorktree(handle.Path)
		if err := writeFile(planPath+"/"+newPath, body); err != nil {
			return &planstore.ErrIO{Cause: err}
		}
		if err := removeFile(planPath + "/" + oldPath); err != nil {
			return &planstore.ErrIO{Cause: err}
		}
		ticket.Body = body
		ticket.Worktree = handle.Path
		ticket.State = planstore.StateInProgress
		_, cerr := k.Gateway.Commit(planPath, []string{oldPath, newPath}, planstore.MsgAssignTicket(stem))
		return cerr
	})
	if err != nil {
		return true, err
	}

	k.runTicket(ticket, stem, handle.Path)
	return true, nil
}

// runTicket executes the coding agent against an already-assigned
// ticket's worktree, records the run, and enqueues a merge request on a
// successful submit_pr call. Failures here are logged, not returned: a
// bad agent run is recorded on the ticket, not a reason to stop the tick
// (spec.md §7 "agent failures are recorded, never fatal to the loop").
func (k *Kernel) runTicket(ticket *planstore.Ticket, stem, workingDir string) {
	var model string
	var effort config.ReasoningEffort
	if k.Config != nil {
		model = k.Config.ResolvedModel("coding")
		effort = k.Config.ResolvedEffort("coding")
	}
	cfg := harness.Config{
		Command:         "codex",
		Model:           model,
		ReasoningEffort: string(effort),
		WorkingDir:      workingDir,
		RepoRoot:        k.RepoDir,
		MCPURL:          "http://" + k.MCP.Addr() + "/",
		SessionToken:    k.MCP.Token(),
		NoOutputTimeout: codingNoOutputTimeout,
		HardTimeout:     codingHardTimeout,
		MaxAttempts:     codingMaxAttempts,
		TicketStem:      stem,
	}
	prompt := buildCodingPrompt(ticket)

	result, err := k.codingRunner().Run(cfg, prompt)
	if err != nil {
		k.Log.Warnf("coding agent run for %s failed to start: %v", stem, err)
		return
	}

	if cerr := k.recordAgentRun(stem, ticket, result); cerr != nil {
		k.Log.Warnf("recording agent run for %s: %v", stem, cerr)
		return
	}

	summary, ok := k.MCP.ConsumeSubmission(k.MCP.Token())
	if !ok {
		k.Log.Infof("ticket %s: agent run ended without calling submit_pr", stem)
		return
	}
	if eerr := k.enqueueMergeRequest(ticket, stem, workingDir, summary); eerr != nil {
		k.Log.Warnf("enqueueing merge request for %s: %v", stem, eerr)
	}
}

func (k *Kernel) recordAgentRun(stem string, ticket *planstore.Ticket, result *harness.Result) error {
	return k.Gateway.WithPlanWorktree(func(planPath string) error {
		path := planstore.TicketPath(planstore.StateInProgress, ticket.Number, ticket.Slug)
		body, rerr := readFile(planPath + "/" + path)
		if rerr != nil {
			return &planstore.ErrIO{Cause: rerr}
		}
		note := planstore.AgentRunSection(result.Attempt, result.AttemptCount, result.ExitCode, result.TimeoutKind, result.LastMessage)
		updated := planstore.AppendSection(body, "Agent Run", note)
		if err := writeFile(planPath+"/"+path, updated); err != nil {
			return &planstore.ErrIO{Cause: err}
		}
		_, err := k.Gateway.Commit(planPath, []string{path}, planstore.MsgRecordAgentRun(stem))
		return err
	})
}

func (k *Kernel) enqueueMergeRequest(ticket *planstore.Ticket, stem, workingDir, summary string) error {
	return k.Gateway.WithPlanWorktree(func(planPath string) error {
		counterContent, rerr := readFile(planPath + "/" + planstore.QueueCounterPath)
		if rerr != nil {
			return &planstore.ErrIO{Cause: rerr}
		}
		queueID := planstore.NextQueueNumber(planstore.ParseQueueCounter(counterContent))

		mr := &planstore.MergeRequest{
			QueueID:    queueID,
			TicketID:   ticket.Number,
			TicketPath: planstore.TicketPath(planstore.StateInProgress, ticket.Number, ticket.Slug),
			Branch:     planstore.TicketBranch(ticket.Number),
			Worktree:   workingDir,
			Summary:    summary,
		}
		queuePath := planstore.QueuePath(queueID, ticket.Number)
		if err := writeFile(planPath+"/"+queuePath, planstore.RenderMergeRequest(mr)); err != nil {
			return &planstore.ErrIO{Cause: err}
		}
		if err := writeFile(planPath+"/"+planstore.QueueCounterPath, planstore.RenderQueueCounter(queueID)); err != nil {
			return &planstore.ErrIO{Cause: err}
		}
		_, err := k.Gateway.Commit(planPath, []string{queuePath, planstore.QueueCounterPath}, planstore.MsgEnqueueMergeRequest(planstore.FormatTicketNumber(ticket.Number)))
		return err
	})
}

// buildCodingPrompt assembles the coding agent's directive from the
// ticket's own body (goal, acceptance criteria, notes already recorded
// on the document), the same "hand the agent the document it must
// satisfy" shape internal/planning's prompt builders use for the
// Architect and Manager.
func buildCodingPrompt(ticket *planstore.Ticket) string {
	return fmt.Sprintf(
		"You are the coding agent assigned to ticket %s. Implement the ticket below, "+
			"then call submit_pr with a one-paragraph summary once the work is complete and "+
			"the local test suite passes. Only touch files within this worktree.\n\n%s",
		ticketStem(ticket.Number, ticket.Slug), ticket.Body)
}
