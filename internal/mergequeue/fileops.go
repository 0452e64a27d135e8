package mergequeue

import (
	"os"
	"strings"

	"github.com/orchestrator/kernel/internal/planstore"
)

// listMarkdown returns the .md filenames directly under dir, sorted
// ascending by the caller (queue filenames are fixed-width so lexical
// order matches numeric order).
func listMarkdown(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".md") {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func readFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	return string(data), err
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}

func removeFile(path string) error {
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// loadTicket finds a ticket by numeric ID across the three state
// directories (its current state is not known ahead of time — the merge
// queue only remembers the ticket ID and branch) and returns it along
// with the plan-relative path it was found at.
func loadTicket(planPath string, ticketID int) (*planstore.Ticket, string, error) {
	for _, state := range []planstore.TicketState{planstore.StateInProgress, planstore.StateOpen, planstore.StateDone} {
		names, err := listMarkdown(planPath + "/" + state.Dir())
		if err != nil {
			return nil, "", err
		}
		for _, name := range names {
			number, slug, err := planstore.ParseTicketFilename(name)
			if err != nil || number != ticketID {
				continue
			}
			path := state.Dir() + "/" + name
			content, err := readFile(planPath + "/" + path)
			if err != nil {
				return nil, "", err
			}
			ticket, err := planstore.ParseTicket(state, number, slug, content)
			if err != nil {
				return nil, "", err
			}
			return ticket, path, nil
		}
	}
	return nil, "", &planstore.ErrInvalidTicketPrefix{Prefix: planstore.FormatTicketNumber(ticketID)}
}
