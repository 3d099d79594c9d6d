// Package errors provides the error taxonomy of the ComfyUI worker.
// Every fatal job failure is an *Error carrying a Code, a caller-facing
// Message and optional itemized Details.
package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// Code represents an error code for categorization.
type Code string

// Job pipeline codes.
const (
	CodeInvalidInput      Code = "INVALID_INPUT"
	CodeMissingField      Code = "MISSING_FIELD"
	CodeInvalidShape      Code = "INVALID_SHAPE"
	CodeEngineUnreachable Code = "ENGINE_UNREACHABLE"
	CodeUpload            Code = "UPLOAD_ERROR"
	CodeValidation        Code = "VALIDATION_ERROR"
	CodeSubmission        Code = "SUBMISSION_ERROR"
	CodeConnection        Code = "CONNECTION_ERROR"
	CodeProtocol          Code = "PROTOCOL_VIOLATION"
	CodeHistoryMissing    Code = "HISTORY_MISSING"
	CodeFetch             Code = "FETCH_ERROR"
	CodeExecution         Code = "EXECUTION_FAILED"
	CodeInternal          Code = "INTERNAL_ERROR"
)

// HTTP surface codes.
const (
	CodeNotFound    Code = "NOT_FOUND"
	CodeBadRequest  Code = "BAD_REQUEST"
	CodeUnavailable Code = "UNAVAILABLE"
)

// Error is a custom error type with additional context.
type Error struct {
	// Code is the error code for categorization.
	Code Code
	// Message is the caller-facing message, reported as-is in job output.
	Message string
	// Op is the operation that failed (e.g., "submitter.queue").
	Op string
	// Err is the underlying error.
	Err error
	// Details lists itemized causes (per image, per node, per event).
	Details []string
	// Fields contains additional logging context.
	Fields map[string]any
	// Stack contains the stack trace at error creation.
	Stack []Frame
}

// Frame represents a single stack frame.
type Frame struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Function string `json:"function"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder

	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}

	if e.Code != "" {
		b.WriteString("[")
		b.WriteString(string(e.Code))
		b.WriteString("] ")
	}

	b.WriteString(e.Message)

	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}

	return b.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target has the same code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WithField adds a field to the error.
func (e *Error) WithField(key string, value any) *Error {
	if e.Fields == nil {
		e.Fields = make(map[string]any)
	}
	e.Fields[key] = value
	return e
}

// WithDetails appends itemized details.
func (e *Error) WithDetails(details ...string) *Error {
	e.Details = append(e.Details, details...)
	return e
}

// WithOp sets the failing operation.
func (e *Error) WithOp(op string) *Error {
	e.Op = op
	return e
}

// HTTPStatus returns the HTTP status used by the job API for this error.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case CodeInvalidInput, CodeMissingField, CodeInvalidShape, CodeBadRequest, CodeValidation:
		return 400
	case CodeNotFound, CodeHistoryMissing:
		return 404
	case CodeEngineUnreachable, CodeUnavailable, CodeConnection:
		return 503
	case CodeUpload, CodeSubmission, CodeFetch, CodeExecution:
		return 502
	default:
		return 500
	}
}

// StackTrace returns the stack trace as a formatted string.
func (e *Error) StackTrace() string {
	if len(e.Stack) == 0 {
		return ""
	}

	var b strings.Builder
	for _, f := range e.Stack {
		fmt.Fprintf(&b, "  %s:%d %s\n", f.File, f.Line, f.Function)
	}
	return b.String()
}

// New creates a new error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Newf creates a new error with formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error. An *Error keeps its code, message and details.
func Wrap(err error, op string, message string) *Error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return &Error{
			Code:    e.Code,
			Message: message,
			Op:      op,
			Err:     err,
			Details: e.Details,
			Fields:  e.Fields,
			Stack:   captureStack(2),
		}
	}

	return &Error{
		Code:    CodeInternal,
		Message: message,
		Op:      op,
		Err:     err,
		Stack:   captureStack(2),
	}
}

// WrapWithCode wraps an error with a specific code.
func WrapWithCode(err error, code Code, op string, message string) *Error {
	if err == nil {
		return nil
	}

	return &Error{
		Code:    code,
		Message: message,
		Op:      op,
		Err:     err,
		Stack:   captureStack(2),
	}
}

// Internalf creates an internal error with formatted message.
func Internalf(format string, args ...any) *Error {
	return Newf(CodeInternal, format, args...)
}

// NotFound creates a not found error.
func NotFound(resource string, id string) *Error {
	return New(CodeNotFound, fmt.Sprintf("%s not found: %s", resource, id)).
		WithField("resource", resource).
		WithField("id", id)
}

// GetCode extracts the error code from an error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// GetHTTPStatus extracts the HTTP status from an error.
func GetHTTPStatus(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.HTTPStatus()
	}
	return 500
}

// GetDetails extracts itemized details from an error.
func GetDetails(err error) []string {
	var e *Error
	if errors.As(err, &e) {
		return e.Details
	}
	return nil
}

// IsCode checks if an error has a specific code.
func IsCode(err error, code Code) bool {
	return GetCode(err) == code
}

// captureStack captures the current stack trace.
func captureStack(skip int) []Frame {
	const maxDepth = 32
	var pcs [maxDepth]uintptr
	n := runtime.Callers(skip+1, pcs[:])

	frames := make([]Frame, 0, n)
	callersFrames := runtime.CallersFrames(pcs[:n])

	for {
		frame, more := callersFrames.Next()

		if strings.Contains(frame.File, "runtime/") {
			if !more {
				break
			}
			continue
		}

		frames = append(frames, Frame{
			File:     frame.File,
			Line:     frame.Line,
			Function: frame.Function,
		})

		if !more || len(frames) >= 10 {
			break
		}
	}

	return frames
}

// As is a convenience wrapper for errors.As.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Is is a convenience wrapper for errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
