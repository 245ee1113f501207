package httpclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/http2"
)

// Path names.
const (
	PathPriority = "priority"
	PathStandard = "standard"
	PathCurl     = "curl"
)

// path sends one resolved request over a single connection route.
type path interface {
	name() string
	send(ctx context.Context, out *outbound) (*Response, error)
}

// httpPath sends over its own *http.Client and therefore its own pool.
type httpPath struct {
	label  string
	client *http.Client
}

func (p *httpPath) name() string { return p.label }

func (p *httpPath) send(ctx context.Context, out *outbound) (*Response, error) {
	var body io.Reader
	if out.Body != nil {
		body = bytes.NewReader(out.Body)
	}
	req, err := http.NewRequestWithContext(ctx, out.Method, out.URL, body)
	if err != nil {
		return nil, NewValidationError("create request: " + err.Error())
	}
	req.Header = out.Header.Clone()

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}
	result := &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data, Path: p.label}
	if classErr := ClassifyStatusCode(resp.StatusCode, resp.Header, data); classErr != nil {
		return result, classErr
	}
	return result, nil
}

func (p *httpPath) closeIdle() {
	p.client.CloseIdleConnections()
}

func baseTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          16,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
}

// newPriorityPath builds the HTTP/2 pool. Health-check pings keep a warm
// connection alive between dictations and detect dead ones early.
func newPriorityPath() (*httpPath, error) {
	t1 := baseTransport()
	t2, err := http2.ConfigureTransports(t1)
	if err != nil {
		return nil, err
	}
	t2.ReadIdleTimeout = 15 * time.Second
	t2.PingTimeout = 5 * time.Second
	return &httpPath{label: PathPriority, client: &http.Client{Transport: t1}}, nil
}

// newStandardPath builds an HTTP/1.1-only pool, independent of the priority pool.
func newStandardPath() *httpPath {
	t := baseTransport()
	t.ForceAttemptHTTP2 = false
	t.TLSNextProto = map[string]func(string, *tls.Conn) http.RoundTripper{}
	return &httpPath{label: PathStandard, client: &http.Client{Transport: t}}
}

func asError(err error, target **Error) bool {
	return errors.As(err, target)
}
