// Package middleware provides HTTP middleware for the job API.
package middleware

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"runtime/debug"
	"time"

	"comfyworker/internal/pkg/errors"
	"comfyworker/internal/pkg/logger"
)

// RequestIDHeader is the header name for request IDs.
const RequestIDHeader = "X-Request-ID"

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	size        int
}

func wrapResponseWriter(w http.ResponseWriter) *responseWriter {
	if rw, ok := w.(*responseWriter); ok {
		return rw
	}
	return &responseWriter{ResponseWriter: w, status: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.status = code
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.size += n
	return n, err
}

// RequestID adds a unique request ID to each request.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = generateRequestID()
		}

		w.Header().Set(RequestIDHeader, requestID)

		ctx := logger.ContextWithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Logging logs HTTP requests with structured logging.
func Logging(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := wrapResponseWriter(w)
			reqLog := log.FromContext(r.Context())

			reqLog.Debug("request started",
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
				"user_agent", r.UserAgent(),
			)

			next.ServeHTTP(wrapped, r)

			logFn := reqLog.Info
			if wrapped.status >= 500 {
				logFn = reqLog.Error
			} else if wrapped.status >= 400 {
				logFn = reqLog.Warn
			}

			logFn("request completed",
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.status,
				"size", wrapped.size,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}

// Recovery recovers from panics and logs them.
func Recovery(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.FromContext(r.Context()).Error("panic recovered",
						"panic", rec,
						"stack", string(debug.Stack()),
						"method", r.Method,
						"path", r.URL.Path,
					)
					WriteErrorResponse(w, errors.CodeInternal, "internal server error", nil)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// ErrorHandlerFunc is a handler that reports failures by returning them.
type ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request) error

// WrapHandler wraps a handler function that returns an error.
func WrapHandler(log *logger.Logger, fn ErrorHandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			HandleError(w, r, log, err)
		}
	}
}

// HandleError logs err and writes the matching error envelope.
func HandleError(w http.ResponseWriter, r *http.Request, log *logger.Logger, err error) {
	reqLog := log.FromContext(r.Context())

	code := errors.GetCode(err)
	status := errors.GetHTTPStatus(err)

	logFields := []any{
		"error", err.Error(),
		"code", string(code),
		"status", status,
		"method", r.Method,
		"path", r.URL.Path,
	}

	message := "internal server error"
	var details []string
	var coded *errors.Error
	if errors.As(err, &coded) {
		message = coded.Message
		details = coded.Details
		for k, v := range coded.Fields {
			logFields = append(logFields, k, v)
		}
	}

	if status >= 500 {
		if coded != nil && len(coded.Stack) > 0 {
			logFields = append(logFields, "stack", coded.StackTrace())
		}
		reqLog.Error("request failed", logFields...)
	} else {
		reqLog.Warn("request error", logFields...)
	}

	WriteErrorResponse(w, code, message, details)
}

type errorBody struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

// WriteErrorResponse writes a JSON error envelope.
func WriteErrorResponse(w http.ResponseWriter, code errors.Code, message string, details []string) {
	status := (&errors.Error{Code: code}).HTTPStatus()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]errorBody{
		"error": {Code: string(code), Message: message, Details: details},
	})
}

// generateRequestID generates a unique request ID.
func generateRequestID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
