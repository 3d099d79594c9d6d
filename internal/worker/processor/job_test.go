package processor

import (
	"encoding/json"
	"testing"

	"comfyworker/internal/pkg/errors"
)

func TestValidateInput(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantCode errors.Code
		wantMsg  string
		images   int
		apiKey   string
	}{
		{name: "absent", raw: ``, wantCode: errors.CodeInvalidInput, wantMsg: "Please provide input"},
		{name: "null", raw: `null`, wantCode: errors.CodeInvalidInput, wantMsg: "Please provide input"},
		{name: "bad json string", raw: `"{not json"`, wantCode: errors.CodeInvalidInput, wantMsg: "Invalid JSON format in input"},
		{name: "not an object", raw: `[1,2]`, wantCode: errors.CodeInvalidInput, wantMsg: "Invalid JSON format in input"},
		{name: "missing workflow", raw: `{"images":[]}`, wantCode: errors.CodeMissingField, wantMsg: "Missing 'workflow' parameter"},
		{name: "null workflow", raw: `{"workflow":null}`, wantCode: errors.CodeMissingField, wantMsg: "Missing 'workflow' parameter"},
		{name: "images not a list", raw: `{"workflow":{},"images":"a.png"}`, wantCode: errors.CodeInvalidShape},
		{name: "image without name", raw: `{"workflow":{},"images":[{"image":"aGk="}]}`, wantCode: errors.CodeInvalidShape},
		{name: "image without payload", raw: `{"workflow":{},"images":[{"name":"a.png"}]}`, wantCode: errors.CodeInvalidShape},
		{name: "null image payload", raw: `{"workflow":{},"images":[{"name":"a.png","image":null}]}`, wantCode: errors.CodeInvalidShape},
		{name: "empty image payload", raw: `{"workflow":{},"images":[{"name":"a.png","image":""}]}`, wantCode: errors.CodeInvalidShape},
		{name: "null image name", raw: `{"workflow":{},"images":[{"name":null,"image":"aGk="}]}`, wantCode: errors.CodeInvalidShape},
		{name: "workflow only", raw: `{"workflow":{"3":{"class_type":"KSampler"}}}`},
		{name: "null images", raw: `{"workflow":{},"images":null}`},
		{name: "with images", raw: `{"workflow":{},"images":[{"name":"a.png","image":"aGk="},{"name":"b.png","image":"data:image/png;base64,aGk="}]}`, images: 2},
		{name: "json string input", raw: `"{\"workflow\":{}}"`},
		{name: "with api key", raw: `{"workflow":{},"comfy_org_api_key":"secret"}`, apiKey: "secret"},
		{name: "extra fields ignored", raw: `{"workflow":{},"seed":42}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := ValidateInput(json.RawMessage(tt.raw))

			if tt.wantCode != "" {
				if err == nil {
					t.Fatalf("expected %s error, got nil", tt.wantCode)
				}
				if !errors.IsCode(err, tt.wantCode) {
					t.Errorf("code = %s, want %s", errors.GetCode(err), tt.wantCode)
				}
				var e *errors.Error
				if tt.wantMsg != "" && errors.As(err, &e) && e.Message != tt.wantMsg {
					t.Errorf("message = %q, want %q", e.Message, tt.wantMsg)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(in.Workflow) == 0 {
				t.Error("expected workflow to be kept")
			}
			if len(in.Images) != tt.images {
				t.Errorf("images = %d, want %d", len(in.Images), tt.images)
			}
			if in.APIKey != tt.apiKey {
				t.Errorf("api key = %q, want %q", in.APIKey, tt.apiKey)
			}
		})
	}
}
