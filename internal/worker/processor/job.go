package processor

import (
	"bytes"
	"encoding/json"
	"strings"

	"comfyworker/internal/pkg/errors"
)

// Job is one unit of work as delivered by the queue.
type Job struct {
	ID    string          `json:"id"`
	Input json.RawMessage `json:"input"`
}

// ImageInput is a caller-supplied image, base64 with an optional data-URI prefix.
type ImageInput struct {
	Name  string `json:"name"`
	Image string `json:"image"`
}

// JobInput is the normalized job payload. Unknown fields are dropped.
type JobInput struct {
	Workflow json.RawMessage
	Images   []ImageInput
	APIKey   string
}

// ValidateInput normalizes the raw job input. A JSON string holding a
// JSON document is accepted and parsed once more.
func ValidateInput(raw json.RawMessage) (*JobInput, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, errors.New(errors.CodeInvalidInput, "Please provide input")
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil || !json.Valid([]byte(s)) {
			return nil, errors.New(errors.CodeInvalidInput, "Invalid JSON format in input")
		}
		raw = bytes.TrimSpace([]byte(s))
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return nil, errors.New(errors.CodeInvalidInput, "Invalid JSON format in input")
	}

	workflow, ok := fields["workflow"]
	if !ok || isNull(workflow) {
		return nil, errors.New(errors.CodeMissingField, "Missing 'workflow' parameter")
	}

	in := &JobInput{Workflow: workflow}

	if rawImages, ok := fields["images"]; ok && !isNull(rawImages) {
		images, err := parseImages(rawImages)
		if err != nil {
			return nil, err
		}
		in.Images = images
	}

	if rawKey, ok := fields["comfy_org_api_key"]; ok {
		// a non-string key is ignored
		_ = json.Unmarshal(rawKey, &in.APIKey)
	}

	return in, nil
}

func parseImages(raw json.RawMessage) ([]ImageInput, error) {
	shapeErr := errors.New(errors.CodeInvalidShape, "'images' must be a list of objects with 'name' and 'image' keys")

	var items []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, shapeErr
	}

	images := make([]ImageInput, 0, len(items))
	for _, item := range items {
		rawName, hasName := item["name"]
		rawImage, hasImage := item["image"]
		if !hasName || !hasImage {
			return nil, shapeErr
		}

		var img ImageInput
		if isNull(rawName) || isNull(rawImage) ||
			json.Unmarshal(rawName, &img.Name) != nil || json.Unmarshal(rawImage, &img.Image) != nil {
			return nil, shapeErr
		}
		if strings.TrimSpace(img.Name) == "" || strings.TrimSpace(img.Image) == "" {
			return nil, shapeErr
		}
		images = append(images, img)
	}
	return images, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
