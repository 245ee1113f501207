package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Configuration errors
const (
	// ErrCodeMissingCredential indicates a backend needs an API key that is not configured.
	ErrCodeMissingCredential ErrorCode = "MISSING_CREDENTIAL"
	// ErrCodeInvalidEndpoint indicates a malformed or unsupported endpoint URL.
	ErrCodeInvalidEndpoint ErrorCode = "INVALID_ENDPOINT"
	// ErrCodeInvalidInput indicates the input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// Network errors
const (
	// ErrCodeNetworkTransient covers timeouts, dropped connections and DNS failures.
	ErrCodeNetworkTransient ErrorCode = "NETWORK_TRANSIENT"
	// ErrCodeRateLimited indicates the upstream answered 429.
	ErrCodeRateLimited ErrorCode = "RATE_LIMITED"
	// ErrCodeUpstreamRejected indicates any other non-2xx answer.
	ErrCodeUpstreamRejected ErrorCode = "UPSTREAM_REJECTED"
	// ErrCodeDecodingFailed indicates a response body that could not be parsed.
	ErrCodeDecodingFailed ErrorCode = "DECODING_FAILED"
)

// Session errors
const (
	// ErrCodeSessionAborted indicates the user cancelled the session.
	ErrCodeSessionAborted ErrorCode = "SESSION_ABORTED"
	// ErrCodeInvalidState indicates an operation not allowed in the current state.
	ErrCodeInvalidState ErrorCode = "INVALID_STATE"
	// ErrCodeInternal indicates an unexpected failure.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeNetworkTransient: true,
	ErrCodeRateLimited:      true,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
