package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError is the unified application error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Retryable: IsRetryableCode(code),
	}
}

// --- Constructors ---

// MissingCredential reports a backend whose API key is not configured.
func MissingCredential(backend string) *AppError {
	return &AppError{
		Code:    ErrCodeMissingCredential,
		Message: fmt.Sprintf("no API key configured for %s", backend),
		Details: map[string]any{"backend": backend},
	}
}

// InvalidEndpoint reports a URL that cannot be used to reach a backend.
func InvalidEndpoint(endpoint, reason string) *AppError {
	return &AppError{
		Code:    ErrCodeInvalidEndpoint,
		Message: fmt.Sprintf("invalid endpoint %q: %s", endpoint, reason),
		Details: map[string]any{"endpoint": endpoint},
	}
}

// InvalidInput creates a new AppError for invalid input.
func InvalidInput(field, reason string) *AppError {
	details := make(map[string]any)
	if field != "" {
		details["field"] = field
	}
	return &AppError{
		Code:    ErrCodeInvalidInput,
		Message: fmt.Sprintf("invalid input: %s", reason),
		Details: details,
	}
}

// Validation creates a new AppError for validation errors.
func Validation(message string) *AppError {
	return &AppError{Code: ErrCodeInvalidInput, Message: message}
}

// NetworkTransient wraps a timeout, dropped connection or DNS failure.
func NetworkTransient(operation string, cause error) *AppError {
	return &AppError{
		Code:      ErrCodeNetworkTransient,
		Message:   fmt.Sprintf("%s failed on a transient network error", operation),
		Retryable: true,
		Details:   map[string]any{"operation": operation},
		Cause:     cause,
	}
}

// RateLimited reports a 429 from the upstream.
func RateLimited(service string) *AppError {
	return &AppError{
		Code:      ErrCodeRateLimited,
		Message:   fmt.Sprintf("%s is rate limiting requests", service),
		Retryable: true,
		Details:   map[string]any{"service": service},
	}
}

// UpstreamRejected reports a non-retryable non-2xx answer with its body.
func UpstreamRejected(service string, status int, body string) *AppError {
	return &AppError{
		Code:    ErrCodeUpstreamRejected,
		Message: fmt.Sprintf("%s rejected the request with status %d", service, status),
		Details: map[string]any{"service": service, "status": status, "body": body},
	}
}

// DecodingFailed reports a response that could not be decoded.
func DecodingFailed(what string, cause error) *AppError {
	return &AppError{
		Code:    ErrCodeDecodingFailed,
		Message: fmt.Sprintf("could not decode %s", what),
		Cause:   cause,
	}
}

// SessionAborted reports a session cancelled by the user.
func SessionAborted() *AppError {
	return &AppError{Code: ErrCodeSessionAborted, Message: "session aborted"}
}

// InvalidState reports an operation attempted in the wrong state.
func InvalidState(op, state string) *AppError {
	return &AppError{
		Code:    ErrCodeInvalidState,
		Message: fmt.Sprintf("cannot %s while %s", op, state),
		Details: map[string]any{"operation": op, "state": state},
	}
}

// Internal creates a new AppError for an unexpected failure.
func Internal(cause error) *AppError {
	return &AppError{
		Code:    ErrCodeInternal,
		Message: "an unexpected error occurred",
		Cause:   cause,
	}
}

// --- Inspection ---

// IsAppError checks if an error is an AppError.
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// AsAppError converts an error to an AppError if possible.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err is an AppError carrying code.
func HasCode(err error, code ErrorCode) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == code
}

// IsAborted reports whether err signals a user cancellation, which callers
// treat as silent.
func IsAborted(err error) bool {
	return HasCode(err, ErrCodeSessionAborted)
}
