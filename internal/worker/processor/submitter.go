package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"comfyworker/internal/pkg/errors"
	"comfyworker/internal/pkg/logger"
	"comfyworker/internal/worker/renderer"
)

const defaultValidationMessage = "Workflow validation failed"

// QueuedExecution correlates a submitted workflow with its events and history.
type QueuedExecution struct {
	PromptID string
	ClientID string
}

// Submitter queues workflows on the engine.
type Submitter struct {
	client        renderer.Client
	defaultAPIKey string
	log           *logger.Logger
}

// NewSubmitter builds a submitter; defaultAPIKey is used when a job has none.
func NewSubmitter(client renderer.Client, defaultAPIKey string, log *logger.Logger) *Submitter {
	if log == nil {
		log = logger.NewDefault()
	}
	return &Submitter{
		client:        client,
		defaultAPIKey: defaultAPIKey,
		log:           log.WithComponent("submitter"),
	}
}

// Submit posts the workflow under clientID. A job-level apiKey takes
// precedence over the process-wide one.
func (s *Submitter) Submit(ctx context.Context, workflow json.RawMessage, clientID, apiKey string) (*QueuedExecution, error) {
	req := renderer.PromptRequest{Prompt: workflow, ClientID: clientID}

	key := apiKey
	if key == "" {
		key = s.defaultAPIKey
	}
	if key != "" {
		req.ExtraData = &renderer.ExtraData{APIKeyComfyOrg: key}
	}

	s.log.Debug("queuing workflow", "client_id", clientID, "api_key_set", key != "")

	resp, err := s.client.QueuePrompt(ctx, req)
	if err != nil {
		var se *renderer.StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusBadRequest {
			return nil, s.validationError(ctx, se.Body)
		}
		return nil, errors.WrapWithCode(err, errors.CodeSubmission, "submitter.queue",
			fmt.Sprintf("Error queuing workflow: %v", err))
	}

	if resp.PromptID == "" {
		return nil, errors.New(errors.CodeSubmission, "Missing 'prompt_id' in queue response").WithOp("submitter.queue")
	}

	s.log.Info("workflow queued", "prompt_id", resp.PromptID, "number", resp.Number)
	return &QueuedExecution{PromptID: resp.PromptID, ClientID: clientID}, nil
}

// validationError renders a 400 answer into a readable message:
//
//	<message>:
//	• Node <id> (<type>): <msg>
//
//	Available checkpoint models: a, b
func (s *Submitter) validationError(ctx context.Context, body []byte) error {
	var payload struct {
		Error      json.RawMessage            `json:"error"`
		NodeErrors map[string]json.RawMessage `json:"node_errors"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return errors.New(errors.CodeValidation, "ComfyUI validation failed: "+string(body)).WithOp("submitter.validate")
	}

	message := defaultValidationMessage
	var info struct {
		Message string `json:"message"`
	}
	if len(payload.Error) > 0 && json.Unmarshal(payload.Error, &info) == nil && info.Message != "" {
		message = info.Message
	}

	details := nodeErrorDetails(payload.NodeErrors)
	if len(details) > 0 {
		message += ":\n• " + strings.Join(details, "\n• ")
	}

	if models := s.availableCheckpoints(ctx); len(models) > 0 {
		message += "\n\nAvailable checkpoint models: " + strings.Join(models, ", ")
	}

	s.log.Warn("workflow rejected by engine", "node_errors", len(details))
	return errors.New(errors.CodeValidation, message).WithOp("submitter.validate")
}

// availableCheckpoints is best effort; a failure only logs.
func (s *Submitter) availableCheckpoints(ctx context.Context) []string {
	info, err := s.client.ObjectInfo(ctx)
	if err != nil {
		s.log.Warn("could not fetch available models", "error", err.Error())
		return nil
	}
	return info.Checkpoints()
}

// nodeErrorDetails flattens node_errors into "Node <id> (<type>): <msg>" lines.
// Both the flat {"field": "msg"} shape and the engine's {"errors": [...]}
// shape are understood.
func nodeErrorDetails(nodeErrors map[string]json.RawMessage) []string {
	var details []string
	for _, id := range sortedKeys(nodeErrors) {
		var fields map[string]json.RawMessage
		if json.Unmarshal(nodeErrors[id], &fields) != nil {
			continue
		}

		for _, key := range sortedKeys(fields) {
			switch key {
			case "dependent_outputs", "class_type":
				continue
			case "errors":
				var items []struct {
					Type    string `json:"type"`
					Message string `json:"message"`
					Details string `json:"details"`
				}
				if json.Unmarshal(fields[key], &items) == nil {
					for _, it := range items {
						line := fmt.Sprintf("Node %s (%s): %s", id, it.Type, it.Message)
						if it.Details != "" {
							line += ": " + it.Details
						}
						details = append(details, line)
					}
					continue
				}
			}
			details = append(details, fmt.Sprintf("Node %s (%s): %s", id, key, renderValue(fields[key])))
		}
	}
	return details
}

func renderValue(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	return string(raw)
}
