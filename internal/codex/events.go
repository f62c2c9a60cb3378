// Package codex models the codex exec --json event stream and builds the
// final invocation for it.
package codex

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Event is one line of codex exec --json output. It is a tagged union:
// either a structured JSON record, preserved verbatim, or a fallback text
// record for lines that are not well-formed JSON.
type Event struct {
	structured json.RawMessage
	text       string
}

// ParseLine classifies a trimmed output line. Lines decoding as a single
// JSON object become structured events; everything else becomes a text
// fallback event. Callers must skip blank lines before calling.
func ParseLine(line string) Event {
	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, "{") {
		var probe map[string]json.RawMessage
		if err := json.Unmarshal([]byte(trimmed), &probe); err == nil {
			raw := make(json.RawMessage, len(trimmed))
			copy(raw, trimmed)
			return Event{structured: raw}
		}
	}
	return Event{text: trimmed}
}

// IsStructured reports whether the event decoded as a JSON record.
func (e Event) IsStructured() bool {
	return e.structured != nil
}

// Text returns the raw line for fallback text events, or "".
func (e Event) Text() string {
	return e.text
}

// Raw returns the verbatim JSON for structured events, or nil.
func (e Event) Raw() json.RawMessage {
	return e.structured
}

// Type returns the self-described type of a structured event
// (e.g. "thread.started", "item.completed"), or "text" for fallbacks.
func (e Event) Type() string {
	if e.structured == nil {
		return "text"
	}
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(e.structured, &probe); err != nil {
		return ""
	}
	return probe.Type
}

// MarshalJSON serializes the union for the persisted event log: structured
// events verbatim, text events as {"type":"text","value":<line>}.
func (e Event) MarshalJSON() ([]byte, error) {
	if e.structured != nil {
		return e.structured, nil
	}
	return json.Marshal(struct {
		Type  string `json:"type"`
		Value string `json:"value"`
	}{Type: "text", Value: e.text})
}

// PrettyJSON returns an indented rendering of a structured event for live
// echo, or the raw line for text events.
func (e Event) PrettyJSON() string {
	if e.structured == nil {
		return e.text
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, e.structured, "", "  "); err != nil {
		return string(e.structured)
	}
	return buf.String()
}

// eventRecord carries the structured fields needed to pull the final agent
// message out of the stream.
type eventRecord struct {
	Type string `json:"type"`
	Item *struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"item"`
}

// LastMessage returns the text of the final agent_message item in the
// event sequence, or "" when the stream contained none.
func LastMessage(events []Event) string {
	for i := len(events) - 1; i >= 0; i-- {
		if !events[i].IsStructured() {
			continue
		}
		var rec eventRecord
		if err := json.Unmarshal(events[i].Raw(), &rec); err != nil {
			continue
		}
		if rec.Type == "item.completed" && rec.Item != nil && rec.Item.Type == "agent_message" {
			return rec.Item.Text
		}
	}
	return ""
}
