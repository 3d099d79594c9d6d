package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(CodeMissingField, "Missing 'workflow' parameter")

	if err.Code != CodeMissingField {
		t.Errorf("expected code=%s, got %s", CodeMissingField, err.Code)
	}
	if err.Message != "Missing 'workflow' parameter" {
		t.Errorf("unexpected message %q", err.Message)
	}
	if len(err.Stack) == 0 {
		t.Error("expected stack trace to be captured")
	}
}

func TestNewf(t *testing.T) {
	err := Newf(CodeHistoryMissing, "Prompt %s not found in history", "p-1")

	if err.Message != "Prompt p-1 not found in history" {
		t.Errorf("expected formatted message, got %s", err.Message)
	}
}

func TestErrorString(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name:     "simple error",
			err:      New(CodeValidation, "invalid"),
			contains: []string{"VALIDATION_ERROR", "invalid"},
		},
		{
			name: "error with op",
			err: &Error{
				Code:    CodeSubmission,
				Message: "queue failed",
				Op:      "submitter.queue",
			},
			contains: []string{"submitter.queue", "SUBMISSION_ERROR", "queue failed"},
		},
		{
			name: "error with underlying",
			err: &Error{
				Code:    CodeConnection,
				Message: "stream lost",
				Err:     fmt.Errorf("EOF"),
			},
			contains: []string{"stream lost", "EOF"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			str := tt.err.Error()
			for _, c := range tt.contains {
				if !strings.Contains(str, c) {
					t.Errorf("expected error string to contain %q, got: %s", c, str)
				}
			}
		})
	}
}

func TestWrap(t *testing.T) {
	original := fmt.Errorf("original error")
	wrapped := Wrap(original, "collector.history", "history lookup failed")

	if wrapped == nil {
		t.Fatal("expected wrapped error to be non-nil")
	}
	if wrapped.Code != CodeInternal {
		t.Errorf("expected code=%s, got %s", CodeInternal, wrapped.Code)
	}
	if wrapped.Op != "collector.history" {
		t.Errorf("expected op='collector.history', got %s", wrapped.Op)
	}
	if errors.Unwrap(wrapped) != original {
		t.Error("Unwrap should return original error")
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, "op", "message") != nil {
		t.Error("Wrap(nil) should return nil")
	}
	if WrapWithCode(nil, CodeFetch, "op", "message") != nil {
		t.Error("WrapWithCode(nil) should return nil")
	}
}

func TestWrapPreservesCodeAndDetails(t *testing.T) {
	original := New(CodeUpload, "Failed to upload input images").WithDetails("Error uploading a.png: boom")
	wrapped := Wrap(original, "processor.upload", "Failed to upload input images")

	if wrapped.Code != CodeUpload {
		t.Errorf("expected code to be preserved as %s, got %s", CodeUpload, wrapped.Code)
	}
	if len(wrapped.Details) != 1 {
		t.Errorf("expected details to be preserved, got %v", wrapped.Details)
	}
}

func TestWrapWithCode(t *testing.T) {
	wrapped := WrapWithCode(fmt.Errorf("dial tcp: refused"), CodeConnection, "monitor.connect", "WebSocket error")

	if wrapped.Code != CodeConnection {
		t.Errorf("expected code=%s, got %s", CodeConnection, wrapped.Code)
	}
}

func TestWithDetails(t *testing.T) {
	err := New(CodeExecution, "Job failed").
		WithDetails("first").
		WithDetails("second", "third")

	if got := strings.Join(err.Details, ","); got != "first,second,third" {
		t.Errorf("unexpected details %q", got)
	}
	if got := GetDetails(err); len(got) != 3 {
		t.Errorf("GetDetails returned %v", got)
	}
	if GetDetails(fmt.Errorf("plain")) != nil {
		t.Error("expected nil details for standard error")
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code   Code
		status int
	}{
		{CodeInvalidInput, 400},
		{CodeMissingField, 400},
		{CodeInvalidShape, 400},
		{CodeValidation, 400},
		{CodeBadRequest, 400},
		{CodeNotFound, 404},
		{CodeHistoryMissing, 404},
		{CodeUpload, 502},
		{CodeSubmission, 502},
		{CodeExecution, 502},
		{CodeEngineUnreachable, 503},
		{CodeConnection, 503},
		{CodeUnavailable, 503},
		{CodeProtocol, 500},
		{CodeInternal, 500},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			err := New(tt.code, "test")
			if err.HTTPStatus() != tt.status {
				t.Errorf("expected status=%d, got %d", tt.status, err.HTTPStatus())
			}
		})
	}
}

func TestNotFound(t *testing.T) {
	err := NotFound("job", "123")
	if err.Code != CodeNotFound {
		t.Errorf("expected code=%s, got %s", CodeNotFound, err.Code)
	}
	if err.Fields["resource"] != "job" || err.Fields["id"] != "123" {
		t.Errorf("unexpected fields %v", err.Fields)
	}
}

func TestGetCode(t *testing.T) {
	t.Run("from coded error", func(t *testing.T) {
		if GetCode(New(CodeProtocol, "x")) != CodeProtocol {
			t.Error("expected protocol code")
		}
	})

	t.Run("from standard error", func(t *testing.T) {
		if GetCode(fmt.Errorf("standard error")) != CodeInternal {
			t.Error("expected internal code")
		}
	})

	t.Run("from wrapped error", func(t *testing.T) {
		wrapped := fmt.Errorf("outer: %w", New(CodeInvalidShape, "bad"))
		if !IsCode(wrapped, CodeInvalidShape) {
			t.Errorf("expected code=%s, got %s", CodeInvalidShape, GetCode(wrapped))
		}
	})
}

func TestGetHTTPStatus(t *testing.T) {
	if GetHTTPStatus(New(CodeNotFound, "not found")) != 404 {
		t.Error("expected 404")
	}
	if GetHTTPStatus(fmt.Errorf("standard")) != 500 {
		t.Error("expected 500 for standard error")
	}
}

func TestStackTrace(t *testing.T) {
	stack := New(CodeInternal, "test error").StackTrace()
	if !strings.Contains(stack, ".go:") {
		t.Errorf("expected stack trace to contain file references, got: %s", stack)
	}
}

func TestErrorIs(t *testing.T) {
	err1 := New(CodeConnection, "error 1")
	err2 := New(CodeConnection, "error 2")
	err3 := New(CodeValidation, "error 3")

	if !errors.Is(err1, err2) {
		t.Error("expected errors with same code to match with Is")
	}
	if errors.Is(err1, err3) {
		t.Error("expected errors with different codes to not match")
	}
}

func TestAsAndIs(t *testing.T) {
	original := New(CodeHistoryMissing, "missing")
	wrapped := fmt.Errorf("wrapped: %w", original)

	var target *Error
	if !As(wrapped, &target) {
		t.Fatal("expected As to find Error in chain")
	}
	if target.Code != CodeHistoryMissing {
		t.Errorf("expected code=%s, got %s", CodeHistoryMissing, target.Code)
	}
	if !Is(wrapped, original) {
		t.Error("expected Is to match original error")
	}
}
