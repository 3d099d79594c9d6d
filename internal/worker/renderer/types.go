package renderer

import (
	"encoding/json"
	"fmt"
)

// PromptRequest is the body of POST /prompt.
type PromptRequest struct {
	Prompt    json.RawMessage `json:"prompt"`
	ClientID  string          `json:"client_id"`
	ExtraData *ExtraData      `json:"extra_data,omitempty"`
}

// ExtraData carries execution-time settings; the API key is used by
// Comfy.org API nodes and must never be logged.
type ExtraData struct {
	APIKeyComfyOrg string `json:"api_key_comfy_org,omitempty"`
}

// PromptResponse is the success body of POST /prompt.
type PromptResponse struct {
	PromptID   string                     `json:"prompt_id"`
	Number     int                        `json:"number"`
	NodeErrors map[string]json.RawMessage `json:"node_errors,omitempty"`
}

// History is the body of GET /history/{prompt_id}, keyed by prompt id.
type History map[string]HistoryEntry

type HistoryEntry struct {
	Outputs map[string]NodeOutput `json:"outputs"`
}

// UnmarshalJSON decodes outputs node by node. Nodes whose output does not
// match NodeOutput (text, latents, custom node payloads) are dropped.
func (e *HistoryEntry) UnmarshalJSON(data []byte) error {
	var raw struct {
		Outputs map[string]json.RawMessage `json:"outputs"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	e.Outputs = make(map[string]NodeOutput, len(raw.Outputs))
	for nodeID, msg := range raw.Outputs {
		var out NodeOutput
		if err := json.Unmarshal(msg, &out); err != nil {
			continue
		}
		e.Outputs[nodeID] = out
	}
	return nil
}

type NodeOutput struct {
	Images []ImageRef `json:"images"`
}

// ImageRef points at an artifact produced by the engine.
type ImageRef struct {
	Filename  string `json:"filename"`
	Subfolder string `json:"subfolder"`
	Type      string `json:"type"`
}

// Temp reports whether the image is an intermediate preview.
func (r ImageRef) Temp() bool {
	return r.Type == "temp"
}

// ObjectInfo is the body of GET /object_info, keyed by node class.
type ObjectInfo map[string]json.RawMessage

// Checkpoints lists the ckpt_name options of CheckpointLoaderSimple.
func (o ObjectInfo) Checkpoints() []string {
	raw, ok := o["CheckpointLoaderSimple"]
	if !ok {
		return nil
	}

	var node struct {
		Input struct {
			Required map[string][]json.RawMessage `json:"required"`
		} `json:"input"`
	}
	if err := json.Unmarshal(raw, &node); err != nil {
		return nil
	}

	opts := node.Input.Required["ckpt_name"]
	if len(opts) == 0 {
		return nil
	}

	// ckpt_name is [["a.safetensors", "b.safetensors"], {...}]
	var names []string
	if err := json.Unmarshal(opts[0], &names); err != nil {
		return nil
	}
	return names
}

// StatusError is returned for non-2xx engine responses.
type StatusError struct {
	Op         string
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: engine http %d: %s", e.Op, e.StatusCode, string(e.Body))
}
