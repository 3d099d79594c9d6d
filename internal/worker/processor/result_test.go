package processor

import (
	"encoding/json"
	"fmt"
	"testing"

	"comfyworker/internal/pkg/errors"
)

func TestNewResponse(t *testing.T) {
	tests := []struct {
		name string
		out  *Output
		err  error
		want string
	}{
		{
			name: "success",
			out:  &Output{Images: []Artifact{{Filename: "out.png", Type: ArtifactBase64, Data: "aGk="}}},
			want: `{"images":[{"filename":"out.png","type":"base64","data":"aGk="}]}`,
		},
		{
			name: "partial success",
			out:  &Output{Images: []Artifact{{Filename: "a.png", Type: ArtifactURL, Data: "https://x/a.png"}}, Errors: []string{"Failed to fetch b.png"}},
			want: `{"images":[{"filename":"a.png","type":"s3_url","data":"https://x/a.png"}],"errors":["Failed to fetch b.png"]}`,
		},
		{
			name: "empty success",
			out:  &Output{},
			want: `{}`,
		},
		{
			name: "coded failure",
			err:  errors.New(errors.CodeExecution, "Job failed").WithDetails("Execution error: Node: X, Message: Y"),
			want: `{"error":"Job failed","details":["Execution error: Node: X, Message: Y"]}`,
		},
		{
			name: "unexpected failure",
			err:  fmt.Errorf("nil map write"),
			want: `{"error":"Unexpected error: nil map write"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := NewResponse(tt.out, tt.err)
			b, err := json.Marshal(resp)
			if err != nil {
				t.Fatal(err)
			}
			if string(b) != tt.want {
				t.Errorf("got  %s\nwant %s", b, tt.want)
			}
			if resp.Failed() != (tt.err != nil) {
				t.Errorf("Failed() = %v", resp.Failed())
			}
		})
	}
}
