package processor

import (
	"comfyworker/internal/pkg/errors"
)

// Artifact encodings.
const (
	ArtifactBase64 = "base64"
	ArtifactURL    = "s3_url"
)

// Artifact is one produced image in the job response.
type Artifact struct {
	Filename string `json:"filename"`
	Type     string `json:"type"`
	Data     string `json:"data"`
}

// Output is a successful job result; Errors holds soft per-artifact failures.
type Output struct {
	Images []Artifact
	Errors []string
}

// Response is the external job result shape. Exactly one of the success
// fields (Images, Errors) or the failure fields (Error, Details) is set.
type Response struct {
	Images        []Artifact `json:"images,omitempty"`
	Errors        []string   `json:"errors,omitempty"`
	Error         string     `json:"error,omitempty"`
	Details       []string   `json:"details,omitempty"`
	RefreshWorker bool       `json:"refresh_worker,omitempty"`
}

// Failed reports whether the response carries a job failure.
func (r Response) Failed() bool {
	return r.Error != ""
}

// NewResponse converts a pipeline outcome into the response shape. Coded
// errors keep their message and details; anything else is unexpected.
func NewResponse(out *Output, err error) Response {
	if err != nil {
		var e *errors.Error
		if errors.As(err, &e) {
			return Response{Error: e.Message, Details: e.Details}
		}
		return Response{Error: "Unexpected error: " + err.Error()}
	}
	if out == nil {
		return Response{}
	}
	return Response{Images: out.Images, Errors: out.Errors}
}
