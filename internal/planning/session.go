package planning

import (
	"fmt"

	"github.com/orchestrator/kernel/internal/planstore"
)

// Turn is one exchange in an interactive planning session's history.
type Turn struct {
	Role string // "user" or "assistant"
	Text string
}

// Session drives an interactive planning REPL: one Architect attempt per
// user turn, sharing the managed plan worktree with any concurrently
// running kernel event loop (spec.md §4.8, §9 Open Question (ii) — a
// known, intentionally accepted race per DESIGN.md's decision record).
type Session struct {
	driver  *Driver
	history []Turn
	turn    int
}

// NewSession starts an interactive planning session against driver.
func NewSession(driver *Driver) *Session {
	return &Session{driver: driver}
}

// History returns the turns recorded so far, oldest first.
func (s *Session) History() []Turn {
	return s.history
}

// Turn runs one Architect attempt for a non-command user message,
// committing spec.md iff it changed, and recording both sides of the
// exchange in history (spec.md §4.8). Slash commands are not routed
// through this method — the caller (internal/cli's REPL shell) is
// expected to intercept "/show", "/help", "/quit" itself, since those
// never invoke the agent.
func (s *Session) Turn(userMessage string) (response string, err error) {
	s.turn++
	turnNumber := s.turn
	msg := fmt.Sprintf("%s %d", planstore.MsgPlanSessionTurn, turnNumber)

	err = s.driver.Gateway.WithPlanWorktree(func(planPath string) error {
		before, rerr := readFile(planPath + "/spec.md")
		if rerr != nil {
			return &planstore.ErrIO{Cause: rerr}
		}

		prompt := buildInteractivePrompt(s.driver.RepoDir, before, s.history, userMessage)
		result, rerr := s.driver.runner().Run(s.driver.harnessConfig("architect", planPath, "plan-session"), prompt)
		if rerr != nil {
			return rerr
		}

		if gerr := guardOuterRepoUntouched("architect", s.driver.RepoDir); gerr != nil {
			return gerr
		}
		changed, cerr := changedPathsIn(planPath)
		if cerr != nil {
			return cerr
		}
		if gerr := guardScope("architect", scopeSpecOnly, changed); gerr != nil {
			return gerr
		}

		response = result.LastMessage
		if response == "" {
			response = result.Stdout
		}

		after, rerr := readFile(planPath + "/spec.md")
		if rerr != nil {
			return &planstore.ErrIO{Cause: rerr}
		}
		if after == before {
			return nil
		}
		_, cerr = s.driver.Gateway.Commit(planPath, []string{"spec.md"}, msg)
		return cerr
	})
	if err != nil {
		return "", err
	}

	s.history = append(s.history, Turn{Role: "user", Text: userMessage}, Turn{Role: "assistant", Text: response})
	return response, nil
}

// ShowSpec reads the current spec.md, for the REPL's local "/show"
// command (never invokes the agent).
func (s *Session) ShowSpec() (string, error) {
	var content string
	err := s.driver.Gateway.WithPlanWorktree(func(planPath string) error {
		var rerr error
		content, rerr = readFile(planPath + "/spec.md")
		return rerr
	})
	return content, err
}
