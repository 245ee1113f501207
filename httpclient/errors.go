package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"
	"time"

	apperrors "github.com/kbukum/wonderwhisper/errors"
)

// ErrorCode classifies HTTP client errors.
type ErrorCode int

const (
	// ErrCodeTimeout indicates an attempt that ran past its deadline.
	ErrCodeTimeout ErrorCode = iota
	// ErrCodeConnection indicates a refused, reset or dropped connection.
	ErrCodeConnection
	// ErrCodeDNS indicates a failed host lookup.
	ErrCodeDNS
	// ErrCodeAuth indicates an authentication/authorization failure (401/403).
	ErrCodeAuth
	// ErrCodeNotFound indicates the resource was not found (404).
	ErrCodeNotFound
	// ErrCodeRateLimit indicates rate limiting (429).
	ErrCodeRateLimit
	// ErrCodeValidation indicates a client-side or 4xx error.
	ErrCodeValidation
	// ErrCodeServer indicates a server-side error (5xx).
	ErrCodeServer
)

// String returns the error code name.
func (c ErrorCode) String() string {
	switch c {
	case ErrCodeTimeout:
		return "timeout"
	case ErrCodeConnection:
		return "connection"
	case ErrCodeDNS:
		return "dns"
	case ErrCodeAuth:
		return "auth"
	case ErrCodeNotFound:
		return "not_found"
	case ErrCodeRateLimit:
		return "rate_limit"
	case ErrCodeValidation:
		return "validation"
	case ErrCodeServer:
		return "server"
	default:
		return "unknown"
	}
}

// Error is a structured HTTP client error with classification.
type Error struct {
	// StatusCode is the HTTP status code (0 for connection-level errors).
	StatusCode int
	Code       ErrorCode
	Message    string
	// Retryable is true only for timeouts, connection and DNS failures, and 429.
	Retryable bool
	// RetryAfter is the server-requested wait on a 429, zero if absent.
	RetryAfter time.Duration
	// Body is the original response body (may be nil).
	Body []byte
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("httpclient: %s (HTTP %d): %s", e.Code, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("httpclient: %s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewTimeoutError creates a timeout error.
func NewTimeoutError(err error) *Error {
	return &Error{Code: ErrCodeTimeout, Message: err.Error(), Retryable: true, Err: err}
}

// NewConnectionError creates a connection error.
func NewConnectionError(err error) *Error {
	return &Error{Code: ErrCodeConnection, Message: err.Error(), Retryable: true, Err: err}
}

// NewDNSError creates a host lookup error.
func NewDNSError(err error) *Error {
	return &Error{Code: ErrCodeDNS, Message: err.Error(), Retryable: true, Err: err}
}

// NewValidationError creates a client-side validation error.
func NewValidationError(msg string) *Error {
	return &Error{Code: ErrCodeValidation, Message: msg}
}

// ClassifyStatusCode converts an HTTP status code into a typed error.
// Returns nil for 2xx status codes. Only 429 is retryable.
func ClassifyStatusCode(statusCode int, header http.Header, body []byte) *Error {
	e := &Error{
		StatusCode: statusCode,
		Message:    fmt.Sprintf("HTTP %d", statusCode),
		Body:       body,
	}
	switch {
	case statusCode >= 200 && statusCode < 300:
		return nil
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		e.Code = ErrCodeAuth
	case statusCode == http.StatusNotFound:
		e.Code = ErrCodeNotFound
	case statusCode == http.StatusTooManyRequests:
		e.Code = ErrCodeRateLimit
		e.Retryable = true
		if header != nil {
			e.RetryAfter, _ = ParseRetryAfter(header.Get("Retry-After"), time.Now())
		}
	case statusCode >= 400 && statusCode < 500:
		e.Code = ErrCodeValidation
	default:
		e.Code = ErrCodeServer
	}
	return e
}

// ParseRetryAfter reads a Retry-After value given as delay-seconds or an
// HTTP date. Dates in the past yield zero.
func ParseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	if t, err := http.ParseTime(value); err == nil {
		if d := t.Sub(now); d > 0 {
			return d, true
		}
		return 0, true
	}
	return 0, false
}

// classifyTransportError maps a transport failure to a typed error.
// Cancellation by the caller is returned unchanged so it is never retried.
func classifyTransportError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && !dnsErr.IsTimeout {
		return NewDNSError(err)
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return NewTimeoutError(err)
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return NewConnectionError(fmt.Errorf("connection refused: %w", err))
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return NewConnectionError(fmt.Errorf("connection lost: %w", err))
	}
	return NewConnectionError(err)
}

// IsTimeout checks if an error is a timeout error.
func IsTimeout(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == ErrCodeTimeout
}

// IsConnection checks if an error is a connection error.
func IsConnection(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == ErrCodeConnection
}

// IsDNS checks if an error is a host lookup failure.
func IsDNS(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == ErrCodeDNS
}

// IsRateLimit checks if an error is a rate-limit error.
func IsRateLimit(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == ErrCodeRateLimit
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Retryable
}

// IsStatus reports whether err carries an HTTP status, meaning the
// upstream answered and the connection path itself is healthy.
func IsStatus(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.StatusCode > 0
}

// ToAppError maps a client error into the shared taxonomy. Context errors
// and nil pass through unchanged.
func ToAppError(service string, err error) error {
	var e *Error
	if err == nil || !errors.As(err, &e) {
		return err
	}
	switch e.Code {
	case ErrCodeTimeout, ErrCodeConnection, ErrCodeDNS:
		return apperrors.NetworkTransient(service, e).WithDetail("kind", e.Code.String())
	case ErrCodeRateLimit:
		return apperrors.RateLimited(service).WithCause(e)
	case ErrCodeValidation:
		if e.StatusCode == 0 {
			return apperrors.InvalidInput("request", e.Message).WithCause(e)
		}
	}
	return apperrors.UpstreamRejected(service, e.StatusCode, string(e.Body)).WithCause(e)
}
