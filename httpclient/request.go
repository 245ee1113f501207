package httpclient

import (
	"net/http"
	"time"
)

// Request describes an outbound HTTP request.
type Request struct {
	// Method defaults to POST when a body is present, GET otherwise.
	Method string
	// Path is appended to the client's BaseURL. Can be a full URL.
	Path string
	// Headers are request-specific headers (merged with client defaults).
	Headers map[string]string
	// Query are URL query parameters.
	Query map[string]string
	// Body accepts []byte, string, *MultipartBody, or any value that
	// will be JSON-encoded.
	Body any
	// Race sends the request over every healthy path at once.
	Race bool
	// Timeout overrides the client's per-attempt timeout.
	Timeout time.Duration
}

// Response is the result of an HTTP request.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// Path names the connection path that produced the response.
	Path string
}

// IsSuccess returns true if the status code is 2xx.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// outbound is a fully-resolved request that any path can send. Body is
// encoded once so retries and racing paths reuse the same bytes.
type outbound struct {
	Method    string
	URL       string
	Header    http.Header
	Body      []byte
	Multipart *MultipartBody
}
