package planstore

import (
	"fmt"
	"regexp"
	"strings"
)

// TicketState is one of the three state directories a ticket occupies
// (spec.md §3 invariant I1).
type TicketState string

const (
	StateOpen        TicketState = "open"
	StateInProgress  TicketState = "in-progress"
	StateDone        TicketState = "done"
)

// Dir returns the plan-relative directory for a state.
func (s TicketState) Dir() string { return "tickets/" + string(s) }

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// NormalizeTicketSlug lowercases and validates a ticket slug: alphanumeric
// segments joined by single hyphens, no leading/trailing/double hyphens.
func NormalizeTicketSlug(raw string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, " ", "-")
	s = strings.ReplaceAll(s, "_", "-")
	if !slugPattern.MatchString(s) {
		return "", &ErrInvalidTicketSlug{Slug: raw}
	}
	return s, nil
}

// TicketFilename builds the <NNNN>-<slug>.md filename for a ticket.
func TicketFilename(number int, slug string) string {
	return fmt.Sprintf("%s-%s.md", FormatTicketNumber(number), slug)
}

// TicketPath builds the full plan-relative path for a ticket in a state.
func TicketPath(state TicketState, number int, slug string) string {
	return state.Dir() + "/" + TicketFilename(number, slug)
}

// ParseTicketFilename splits "<NNNN>-<slug>.md" into its number and slug.
func ParseTicketFilename(name string) (number int, slug string, err error) {
	name = strings.TrimSuffix(name, ".md")
	idx := strings.Index(name, "-")
	if idx < 0 {
		return 0, "", &ErrInvalidTicketSlug{Slug: name}
	}
	n, perr := ParseTicketNumber(name[:idx])
	if perr != nil {
		return 0, "", perr
	}
	return n, name[idx+1:], nil
}

// Ticket is the in-memory representation of a ticket document: a header
// block of "**Field:** value" lines followed by free-form markdown body.
type Ticket struct {
	Number int
	Slug   string
	State  TicketState
	Area   string // area identifier, from the "**Area:**" header field
	Worktree string // absolute path, from the "**Worktree:**" header field; empty if unset
	Body   string // full document body, including the header block
}

const (
	fieldArea     = "**Area:**"
	fieldWorktree = "**Worktree:**"
)

// ParseTicket parses a ticket document's raw content, given the
// (state, number, slug) derived from its path.
func ParseTicket(state TicketState, number int, slug string, content string) (*Ticket, error) {
	if strings.TrimSpace(content) == "" {
		return nil, &ErrEmptyTicketContent{}
	}
	t := &Ticket{Number: number, Slug: slug, State: state, Body: content}
	t.Area = extractField(content, fieldArea)
	t.Worktree = extractField(content, fieldWorktree)
	return t, nil
}

// extractField returns the value following the first line that starts
// with prefix (e.g. "**Area:** backend" -> "backend"), or "" if absent.
// A small line-oriented scan, not a regex, matching the teacher's
// preference for straightforward string scanning over custom unmarshalers.
func extractField(content, prefix string) string {
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(trimmed, prefix))
		}
	}
	return ""
}

// setField replaces an existing "**Field:** value" line in content, or
// appends a new one at the end separated by a blank line if absent
// (spec.md §4.2 "field update" policy).
func setField(content, prefix, value string) string {
	lines := strings.Split(content, "\n")
	newLine := prefix + " " + value
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), prefix) {
			lines[i] = newLine
			return strings.Join(lines, "\n")
		}
	}
	trimmed := strings.TrimRight(content, "\n")
	return trimmed + "\n\n" + newLine + "\n"
}

// WithWorktree returns a copy of the ticket body with **Worktree:** set.
func (t *Ticket) WithWorktree(path string) string {
	return setField(t.Body, fieldWorktree, path)
}

// WithArea returns a copy of the ticket body with **Area:** set.
func (t *Ticket) WithArea(areaID string) string {
	return setField(t.Body, fieldArea, areaID)
}

// AppendSection appends a new "## <heading>" section to the ticket body,
// concatenated with a blank-line separator; pre-existing content is
// preserved verbatim (spec.md §4.2 "append-only body" policy).
func AppendSection(body, heading, section string) string {
	trimmed := strings.TrimRight(body, "\n")
	return trimmed + "\n\n## " + heading + "\n" + strings.TrimRight(section, "\n") + "\n"
}

// AgentRunSection renders the structured "## Agent Run" note (spec.md
// §3, §4.9 item 7).
func AgentRunSection(attempt, attemptCount, exitCode int, timeoutKind, lastMessage string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "- Attempt: %d\n", attempt)
	fmt.Fprintf(&b, "- Attempt count: %d\n", attemptCount)
	fmt.Fprintf(&b, "- Exit code: %d\n", exitCode)
	fmt.Fprintf(&b, "- Timeout: %s\n", timeoutKind)
	if lastMessage != "" {
		fmt.Fprintf(&b, "\n%s\n", lastMessage)
	}
	return b.String()
}

// MergeQueueSuccessSection renders the "## Merge Queue Success" note.
func MergeQueueSuccessSection(summary string) string {
	return fmt.Sprintf("- Summary: %s\n", summary)
}

// MergeQueueFailureSection renders the "## Merge Queue Failure" note
// (spec.md §4.6 item 6): a summary plus truncated tails of merge and
// test output.
func MergeQueueFailureSection(summary, mergeOutputTail, testOutputTail string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "- Summary: %s\n", summary)
	if mergeOutputTail != "" {
		fmt.Fprintf(&b, "\n### Merge output\n```\n%s\n```\n", mergeOutputTail)
	}
	if testOutputTail != "" {
		fmt.Fprintf(&b, "\n### Test output\n```\n%s\n```\n", testOutputTail)
	}
	return b.String()
}

// OldestOpen picks the ticket with the numerically smallest ID among
// candidates, ties broken lexicographically by full relative path
// (spec.md §4.2 "oldest open" policy — also property P6: deterministic).
func OldestOpen(candidates []*Ticket) *Ticket {
	var best *Ticket
	var bestPath string
	for _, t := range candidates {
		path := TicketPath(t.State, t.Number, t.Slug)
		if best == nil || t.Number < best.Number || (t.Number == best.Number && path < bestPath) {
			best = t
			bestPath = path
		}
	}
	return best
}

// TailString returns the last n bytes of s, or all of s if shorter.
func TailString(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
