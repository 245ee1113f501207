package httpclient

import (
	"context"
	"net/http"
	"sync"

	"github.com/kbukum/wonderwhisper/logger"
)

// Prewarm opens a connection on every in-process pool by sending HEAD to
// the base URL, so the next upload skips DNS, TCP and TLS setup. Calls
// beyond the configured rate are dropped and report false. Any HTTP
// answer, including an error status, counts as warm.
func (c *Client) Prewarm(ctx context.Context) bool {
	if c.config.BaseURL == "" || !c.prewarm.Allow() {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, c.config.Prewarm.Timeout)
	defer cancel()

	header := make(http.Header)
	for k, v := range c.config.Headers {
		header.Set(k, v)
	}
	c.config.Auth.Apply(header)

	var wg sync.WaitGroup
	for _, p := range c.pools {
		wg.Add(1)
		go func(p *httpPath) {
			defer wg.Done()
			out := &outbound{Method: http.MethodHead, URL: c.config.BaseURL, Header: header}
			if _, err := p.send(ctx, out); err != nil && !IsStatus(err) {
				c.log.Debug("prewarm failed", logger.Fields(
					logger.FieldPath, p.name(),
					logger.FieldError, err.Error(),
				))
			}
		}(p)
	}
	wg.Wait()
	return true
}
