package harness

import "encoding/json"

// EventKind is one of the five stream event kinds the harness normalizes
// JSONL output lines into (spec.md §4.4 item 4).
type EventKind string

const (
	EventHeartbeat EventKind = "heartbeat"
	EventReasoning EventKind = "reasoning"
	EventTool      EventKind = "tool"
	EventStatus    EventKind = "status"
	EventMessage   EventKind = "message"
)

// Event is a normalized stream event. Raw carries the original decoded
// JSON object for callers that need fields beyond Kind/Text.
type Event struct {
	Kind EventKind
	Text string
	Raw  map[string]any
}

// classifyEventKind maps a raw JSON object's own "type"/"kind" field (or,
// failing that, the shape of its keys) to one of the five kinds. Unknown
// shapes default to EventMessage, since an agent's final answer is the
// most common unrecognized shape and the harness must not drop it.
func classifyEventKind(raw map[string]any) EventKind {
	for _, key := range []string{"type", "kind", "event"} {
		if v, ok := raw[key]; ok {
			if s, ok := v.(string); ok {
				switch s {
				case "heartbeat", "reasoning", "tool", "status", "message":
					return EventKind(s)
				}
			}
		}
	}
	if _, ok := raw["tool_name"]; ok {
		return EventTool
	}
	if _, ok := raw["reasoning"]; ok {
		return EventReasoning
	}
	if _, ok := raw["status"]; ok {
		return EventStatus
	}
	return EventMessage
}

func textOf(raw map[string]any) string {
	for _, key := range []string{"text", "message", "content", "summary"} {
		if v, ok := raw[key]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return ""
}

// ParseLine attempts to parse one complete output line as a JSON object
// and normalize it to an Event. Non-JSON lines return ok=false: they are
// preserved in the byte log but not emitted as stream events (spec.md
// §4.4 item 4).
func ParseLine(line []byte) (Event, bool) {
	var raw map[string]any
	if err := json.Unmarshal(line, &raw); err != nil {
		return Event{}, false
	}
	return Event{Kind: classifyEventKind(raw), Text: textOf(raw), Raw: raw}, true
}

// SyntheticHeartbeat builds a heartbeat event the harness emits itself
// when no output has arrived for the configured heartbeat interval
// (spec.md §4.4 item 6).
func SyntheticHeartbeat() Event {
	return Event{Kind: EventHeartbeat, Text: "", Raw: map[string]any{"type": "heartbeat", "synthetic": true}}
}
