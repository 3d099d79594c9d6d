package renderer

import (
	"bytes"
	"encoding/json"
)

// Event types the monitor acts on. Anything else decodes as EventOther.
const (
	EventExecuting      = "executing"
	EventExecutionError = "execution_error"
	EventOther          = ""
)

// Frame is one message read from the event stream.
type Frame struct {
	Binary bool
	Data   []byte
}

// Event is a decoded text frame.
type Event struct {
	Type     string
	PromptID string
	// Node is nil when the engine reports no active node, which on an
	// "executing" event means the whole graph finished.
	Node             *string
	NodeID           string
	NodeType         string
	ExceptionMessage string
}

type wireEvent struct {
	Type string `json:"type"`
	Data struct {
		PromptID         string          `json:"prompt_id"`
		Node             json.RawMessage `json:"node"`
		NodeID           json.RawMessage `json:"node_id"`
		NodeType         string          `json:"node_type"`
		ExceptionMessage string          `json:"exception_message"`
	} `json:"data"`
}

// DecodeEvent parses a text frame. Binary frames (previews) and frames
// that are not JSON objects report false.
func DecodeEvent(f Frame) (Event, bool) {
	if f.Binary {
		return Event{}, false
	}

	var w wireEvent
	if err := json.Unmarshal(f.Data, &w); err != nil {
		return Event{}, false
	}

	ev := Event{
		PromptID:         w.Data.PromptID,
		Node:             nodeID(w.Data.Node),
		NodeType:         w.Data.NodeType,
		ExceptionMessage: w.Data.ExceptionMessage,
	}
	if id := nodeID(w.Data.NodeID); id != nil {
		ev.NodeID = *id
	}

	switch w.Type {
	case EventExecuting, EventExecutionError:
		ev.Type = w.Type
	default:
		ev.Type = EventOther
	}
	return ev, true
}

// nodeID accepts string or numeric node ids; null or absent yields nil.
func nodeID(raw json.RawMessage) *string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return &s
	}
	s = string(raw)
	return &s
}
