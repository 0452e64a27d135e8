package planstore

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/orchestrator/kernel/internal/pathkey"
)

// MergeRequest is a pending merge-queue document (spec.md §3).
type MergeRequest struct {
	QueueID      int
	TicketID     int
	TicketPath   string
	Branch       string
	Worktree     string
	Summary      string
}

// QueueFilename builds "<QQQQ>-<NNNN>.md" for a merge request.
func QueueFilename(queueID, ticketID int) string {
	return fmt.Sprintf("%s-%s.md", formatQueueID(queueID), FormatTicketNumber(ticketID))
}

// QueuePath builds the plan-relative pending-queue path for a merge
// request.
func QueuePath(queueID, ticketID int) string {
	return "queue/merge/pending/" + QueueFilename(queueID, ticketID)
}

func formatQueueID(n int) string { return fmt.Sprintf("%04d", n) }

// ParseQueueFilename splits "<QQQQ>-<NNNN>.md" into queue and ticket IDs.
func ParseQueueFilename(name string) (queueID, ticketID int, err error) {
	name = strings.TrimSuffix(name, ".md")
	parts := strings.SplitN(name, "-", 2)
	if len(parts) != 2 {
		return 0, 0, &ErrInvalidQueueItem{Name: name}
	}
	q, qerr := strconv.Atoi(parts[0])
	if qerr != nil || q <= 0 {
		return 0, 0, &ErrInvalidQueueItem{Name: name}
	}
	t, terr := strconv.Atoi(parts[1])
	if terr != nil || t <= 0 {
		return 0, 0, &ErrInvalidQueueItem{Name: name}
	}
	return q, t, nil
}

// NextQueueNumber computes the next monotonic queue ID over the lifetime
// of the plan branch, given every queue ID that has ever been assigned
// (tracked via a running counter file, not just the currently pending
// set, since completed/reopened items leave the pending directory).
func NextQueueNumber(highestSeen int) int {
	return highestSeen + 1
}

// QueueCounterPath is the plan-relative path of the durable monotonic
// queue-ID counter. The pending directory alone cannot serve this role:
// a processed item (success or failure) is removed from queue/merge/pending
// in the same commit that resolves it, so the highest filename currently
// on disk understates how many queue IDs have ever been handed out.
const QueueCounterPath = "queue/merge/.counter"

// ParseQueueCounter parses the counter file's contents, defaulting to 0
// for an empty or unreadable value (e.g. a plan branch from before this
// file existed).
func ParseQueueCounter(content string) int {
	n, err := strconv.Atoi(strings.TrimSpace(content))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// RenderQueueCounter serializes a counter value back to the file's
// on-disk form.
func RenderQueueCounter(n int) string {
	return fmt.Sprintf("%d\n", n)
}

const mergeRequestTemplate = `**Ticket path:** %s
**Ticket ID:** %s
**Branch:** %s
**Worktree:** %s
**Summary:** %s
`

// RenderMergeRequest serializes a MergeRequest to its document form.
func RenderMergeRequest(m *MergeRequest) string {
	return fmt.Sprintf(mergeRequestTemplate,
		m.TicketPath, FormatTicketNumber(m.TicketID), m.Branch, m.Worktree, m.Summary)
}

// ParseMergeRequest parses a merge-request document's content. queueID
// and ticketIDFromName come from the filename, and are cross-checked
// against the body's own **Ticket ID:** field.
func ParseMergeRequest(queueID int, content string) (*MergeRequest, error) {
	m := &MergeRequest{QueueID: queueID}
	m.TicketPath = extractField(content, "**Ticket path:**")
	ticketIDStr := extractField(content, "**Ticket ID:**")
	m.Branch = extractField(content, "**Branch:**")
	m.Worktree = extractField(content, "**Worktree:**")
	m.Summary = extractField(content, "**Summary:**")

	if m.TicketPath == "" || ticketIDStr == "" || m.Branch == "" {
		return nil, &ErrInvalidQueueItem{Name: QueueFilename(queueID, 0)}
	}
	n, err := ParseTicketNumber(ticketIDStr)
	if err != nil {
		return nil, err
	}
	m.TicketID = n
	return m, nil
}

// ActiveMarkerPath is the fixed crash-recovery marker path (spec.md §3).
const ActiveMarkerPath = "queue/merge/active.md"

// RenderActiveMarker returns the active.md contents for a given pending
// queue-relative path (or "" to clear it).
func RenderActiveMarker(pendingPath string) string {
	return pendingPath
}

// ParseActiveMarker trims the active.md contents to the bare relative
// path it names, or "" if none is active.
func ParseActiveMarker(content string) string {
	return strings.TrimSpace(content)
}

// TicketBranch returns the branch name for a ticket ID (spec.md §3
// invariant I4): "<tool>/ticket-<id>".
func TicketBranch(ticketID int) string {
	return fmt.Sprintf("%s/ticket-%s", pathkey.ToolName, FormatTicketNumber(ticketID))
}
