package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/kbukum/wonderwhisper/errors"
	"github.com/kbukum/wonderwhisper/logger"
	"github.com/kbukum/wonderwhisper/observability"
	"github.com/kbukum/wonderwhisper/process"
	"github.com/kbukum/wonderwhisper/resilience"
)

// Client sends requests with per-attempt timeouts, classified retries and,
// for requests marked Race, parallel delivery over independent paths.
type Client struct {
	config  Config
	primary path
	pools   []*httpPath
	racers  []*racer
	prewarm *resilience.RateLimiter
	log     *logger.Logger
	metrics *observability.Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client logger. Defaults to logger.Get("httpclient").
func WithLogger(l *logger.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithMetrics records attempt outcomes and race winners.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// withPaths replaces the connection paths. The first one is primary.
func withPaths(paths ...path) Option {
	return func(c *Client) {
		c.primary = paths[0]
		c.racers = c.racers[:0]
		for _, p := range paths {
			c.racers = append(c.racers, c.newRacer(p))
		}
	}
}

// New creates a new HTTP client with the given configuration.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	priority, err := newPriorityPath()
	if err != nil {
		return nil, fmt.Errorf("httpclient: configure http2: %w", err)
	}
	standard := newStandardPath()

	c := &Client{
		config:  cfg,
		primary: priority,
		pools:   []*httpPath{priority, standard},
		prewarm: resilience.NewRateLimiter(resilience.RateLimiterConfig{
			Name:  "httpclient.prewarm",
			Rate:  cfg.Prewarm.Rate,
			Burst: 1,
		}),
		log: logger.Get("httpclient"),
	}
	c.racers = []*racer{c.newRacer(priority), c.newRacer(standard)}
	if cfg.Race.Curl && process.Available(cfg.Race.CurlBinary) {
		c.racers = append(c.racers, c.newRacer(&curlPath{binary: cfg.Race.CurlBinary}))
	}

	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Config returns the effective configuration.
func (c *Client) Config() Config { return c.config }

// Paths lists the racing path names in launch order.
func (c *Client) Paths() []string {
	names := make([]string, len(c.racers))
	for i, r := range c.racers {
		names[i] = r.path.name()
	}
	return names
}

// Do executes the request with retries. Only timeouts, connection and DNS
// failures, and 429 responses are retried. A 429 waits for Retry-After.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	out, err := c.buildOutbound(req)
	if err != nil {
		return nil, err
	}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.config.AttemptTimeout
	}
	race := req.Race && c.config.Race.Enabled && len(c.racers) > 1

	rc := c.config.retryConfig()
	rc.OnRetry = func(attempt int, err error, backoff time.Duration) {
		c.log.Warn("retrying request", logger.Fields(
			logger.FieldAttempt, attempt,
			logger.FieldURL, out.URL,
			logger.FieldError, err.Error(),
			"backoff_ms", backoff.Milliseconds(),
		))
	}

	return resilience.Retry(ctx, rc, func(attempt int) (*Response, error) {
		start := time.Now()
		resp, err := c.attempt(ctx, out, timeout, race)
		c.metrics.RecordHTTPAttempt(ctx, attemptOutcome(err))
		if err != nil {
			c.log.Debug("attempt failed", logger.Fields(
				logger.FieldAttempt, attempt,
				logger.FieldURL, out.URL,
				logger.FieldError, err.Error(),
				logger.FieldDuration, time.Since(start).Milliseconds(),
			))
			return nil, err
		}
		c.log.Debug("attempt succeeded", logger.Fields(
			logger.FieldAttempt, attempt,
			logger.FieldPath, resp.Path,
			logger.FieldStatus, resp.StatusCode,
			logger.FieldDuration, time.Since(start).Milliseconds(),
		))
		return resp, nil
	})
}

// PostMultipart uploads a multipart form, racing it when enabled.
func (c *Client) PostMultipart(ctx context.Context, path string, body *MultipartBody) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body, Race: true})
}

// PostJSON sends in as JSON and decodes the response into out when non-nil.
func (c *Client) PostJSON(ctx context.Context, path string, in, out any) error {
	resp, err := c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: in})
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return apperrors.DecodingFailed("json response", err)
	}
	return nil
}

// Close releases idle pooled connections.
func (c *Client) Close() {
	for _, p := range c.pools {
		p.closeIdle()
	}
}

// attempt sends once, bounded by timeout. The send runs on its own
// context so the timer can abandon it even if a path ignores cancellation.
func (c *Client) attempt(ctx context.Context, out *outbound, timeout time.Duration, race bool) (*Response, error) {
	actx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		resp *Response
		err  error
	}
	done := make(chan result, 1)
	go func() {
		var r result
		if race {
			r.resp, r.err = c.race(actx, out)
		} else {
			r.resp, r.err = c.primary.send(actx, out)
		}
		done <- r
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-done:
		return r.resp, r.err
	case <-timer.C:
		cancel()
		return nil, NewTimeoutError(fmt.Errorf("attempt exceeded %s", timeout))
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Client) buildOutbound(req Request) (*outbound, error) {
	target, err := c.resolveURL(req.Path, req.Query)
	if err != nil {
		return nil, err
	}

	header := make(http.Header)
	for k, v := range c.config.Headers {
		header.Set(k, v)
	}
	for k, v := range req.Headers {
		header.Set(k, v)
	}
	c.config.Auth.Apply(header)

	out := &outbound{Method: req.Method, URL: target, Header: header}
	switch b := req.Body.(type) {
	case nil:
	case []byte:
		out.Body = b
	case string:
		out.Body = []byte(b)
	case *MultipartBody:
		data, contentType, err := b.encode()
		if err != nil {
			return nil, NewValidationError("encode multipart: " + err.Error())
		}
		out.Body = data
		out.Multipart = b
		header.Set("Content-Type", contentType)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, NewValidationError("encode json: " + err.Error())
		}
		out.Body = data
		if header.Get("Content-Type") == "" {
			header.Set("Content-Type", "application/json")
		}
	}

	if out.Method == "" {
		if req.Body != nil {
			out.Method = http.MethodPost
		} else {
			out.Method = http.MethodGet
		}
	}
	return out, nil
}

func (c *Client) resolveURL(p string, query map[string]string) (string, error) {
	var raw string
	switch {
	case strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://"):
		raw = p
	case c.config.BaseURL == "":
		return "", NewValidationError("relative path " + p + " without base_url")
	case p == "":
		raw = c.config.BaseURL
	default:
		raw = strings.TrimRight(c.config.BaseURL, "/") + "/" + strings.TrimLeft(p, "/")
	}
	if len(query) == 0 {
		return raw, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", NewValidationError("parse url: " + err.Error())
	}
	q := u.Query()
	for k, v := range query {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func attemptOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case IsTimeout(err):
		return "timeout"
	case IsRateLimit(err):
		return "rate_limited"
	case IsStatus(err):
		return "rejected"
	case IsDNS(err), IsConnection(err):
		return "network"
	default:
		return "error"
	}
}
