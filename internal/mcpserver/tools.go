package mcpserver

import (
	"encoding/json"
	"net/http"
	"sync"
)

// TaskKind enumerates the plan-mutation tasks a tool call can enqueue
// (spec.md §4.5's "alternative path" into §4.8's planning surface).
type TaskKind string

const (
	TaskCreateArea   TaskKind = "create_area"
	TaskCreateTicket TaskKind = "create_ticket"
	TaskAddNote      TaskKind = "add_note"
)

// Task is one plan-mutation request routed from an HTTP tool call into
// the kernel's single-writer event loop (C9 owns the actual git commit;
// handlers here are stateless beyond the submission slot, per spec.md
// §4.5 "Concurrency").
type Task struct {
	Kind TaskKind

	// create_area
	Title, Summary, Scope, OutOfScope string

	// create_ticket
	Area, Goal, AcceptanceCriteria, Notes string

	// add_note
	TicketID string
	Note     string
}

// TaskQueue is a thread-safe FIFO of pending tasks awaiting the kernel's
// next tick. Enqueue is called from HTTP handler goroutines; DrainAll is
// called from the single event-loop goroutine.
type TaskQueue struct {
	mu    sync.Mutex
	items []Task
}

// NewTaskQueue returns an empty queue.
func NewTaskQueue() *TaskQueue { return &TaskQueue{} }

// Enqueue appends a task, safe for concurrent callers.
func (q *TaskQueue) Enqueue(t Task) {
	q.mu.Lock()
	q.items = append(q.items, t)
	q.mu.Unlock()
}

// DrainAll removes and returns every currently queued task, in FIFO order.
func (q *TaskQueue) DrainAll() []Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	drained := q.items
	q.items = nil
	return drained
}

type toolDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

func toolsListResult() map[string]any {
	return map[string]any{"tools": []toolDef{
		{
			Name:        "submit_pr",
			Description: "Submit the completed ticket's change for the merge queue.",
			InputSchema: objectSchema(map[string]string{"summary": "string"}, "summary"),
		},
		{
			Name:        "create_area",
			Description: "Propose a new work area.",
			InputSchema: objectSchema(map[string]string{
				"title": "string", "summary": "string", "scope": "string", "out_of_scope": "string",
			}, "title", "summary"),
		},
		{
			Name:        "create_ticket",
			Description: "Propose a new ticket under an existing area.",
			InputSchema: objectSchema(map[string]string{
				"title": "string", "area": "string", "goal": "string", "acceptance_criteria": "string", "notes": "string",
			}, "title", "area", "goal"),
		},
		{
			Name:        "add_note",
			Description: "Append a note to an existing ticket.",
			InputSchema: objectSchema(map[string]string{
				"ticket_id": "string", "note": "string",
			}, "ticket_id", "note"),
		},
	}}
}

func objectSchema(props map[string]string, required ...string) map[string]any {
	p := map[string]any{}
	for k, t := range props {
		p[k] = map[string]string{"type": t}
	}
	return map[string]any{"type": "object", "properties": p, "required": required}
}

type toolCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

func (s *Server) handleToolsCall(w http.ResponseWriter, req rpcRequest) {
	var p toolCallParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		writeRPCError(w, req.ID, rpcInvalidParams, "bad tools/call params: "+err.Error())
		return
	}

	switch p.Name {
	case "submit_pr":
		var args struct {
			Summary string `json:"summary"`
		}
		if err := json.Unmarshal(p.Arguments, &args); err != nil || args.Summary == "" {
			writeRPCError(w, req.ID, rpcInvalidParams, "submit_pr requires a non-empty summary")
			return
		}
		s.submissions.set(s.token, args.Summary)
		writeToolResult(w, req.ID, "Merge request enqueued.")

	case "create_area":
		var args struct {
			Title      string `json:"title"`
			Summary    string `json:"summary"`
			Scope      string `json:"scope"`
			OutOfScope string `json:"out_of_scope"`
		}
		if err := json.Unmarshal(p.Arguments, &args); err != nil {
			writeRPCError(w, req.ID, rpcInvalidParams, "bad create_area arguments")
			return
		}
		s.queue.Enqueue(Task{Kind: TaskCreateArea, Title: args.Title, Summary: args.Summary, Scope: args.Scope, OutOfScope: args.OutOfScope})
		writeToolResult(w, req.ID, "Area proposal queued.")

	case "create_ticket":
		var args struct {
			Title              string `json:"title"`
			Area               string `json:"area"`
			Goal               string `json:"goal"`
			AcceptanceCriteria string `json:"acceptance_criteria"`
			Notes              string `json:"notes"`
		}
		if err := json.Unmarshal(p.Arguments, &args); err != nil || args.Area == "" {
			writeRPCError(w, req.ID, rpcInvalidParams, "create_ticket requires title, area, and goal")
			return
		}
		s.queue.Enqueue(Task{Kind: TaskCreateTicket, Title: args.Title, Area: args.Area, Goal: args.Goal, AcceptanceCriteria: args.AcceptanceCriteria, Notes: args.Notes})
		writeToolResult(w, req.ID, "Ticket proposal queued.")

	case "add_note":
		var args struct {
			TicketID string `json:"ticket_id"`
			Note     string `json:"note"`
		}
		if err := json.Unmarshal(p.Arguments, &args); err != nil || args.TicketID == "" {
			writeRPCError(w, req.ID, rpcInvalidParams, "add_note requires ticket_id")
			return
		}
		s.queue.Enqueue(Task{Kind: TaskAddNote, TicketID: args.TicketID, Note: args.Note})
		writeToolResult(w, req.ID, "Note queued.")

	default:
		writeRPCError(w, req.ID, rpcMethodNotFound, "unknown tool "+p.Name)
	}
}

func writeToolResult(w http.ResponseWriter, id json.RawMessage, text string) {
	writeRPCResult(w, id, map[string]any{
		"content": []map[string]string{{"type": "text", "text": text}},
	})
}
