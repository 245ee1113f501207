package httpclient

import (
	"context"
	"time"

	"github.com/kbukum/wonderwhisper/logger"
	"github.com/kbukum/wonderwhisper/resilience"
)

// racer pairs a path with the breaker tracking its health.
type racer struct {
	path    path
	breaker *resilience.CircuitBreaker
}

func (c *Client) newRacer(p path) *racer {
	return &racer{
		path: p,
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:        "httpclient." + p.name(),
			MaxFailures: c.config.Breaker.MaxFailures,
			Timeout:     c.config.Breaker.Cooldown,
			OnStateChange: func(name string, from, to resilience.State) {
				c.log.Info("path health changed", logger.Fields(
					logger.FieldPath, name,
					"from", from.String(),
					"to", to.String(),
				))
			},
		}),
	}
}

// candidates returns the racers whose breaker admits a request. When every
// breaker is open all paths are used.
func (c *Client) candidates() []*racer {
	var healthy []*racer
	for _, r := range c.racers {
		if r.breaker.Allow() {
			healthy = append(healthy, r)
		}
	}
	if len(healthy) == 0 {
		return c.racers
	}
	return healthy
}

type raceResult struct {
	racer *racer
	resp  *Response
	err   error
}

// race launches the paths one stagger apart and returns the first success.
// A failed path launches the next one immediately. A status response ends
// the race because the upstream itself answered.
func (c *Client) race(ctx context.Context, out *outbound) (*Response, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	paths := c.candidates()
	results := make(chan raceResult, len(paths))
	launched, pending := 0, 0
	launch := func() {
		r := paths[launched]
		launched++
		pending++
		go func() {
			resp, err := r.path.send(ctx, out)
			results <- raceResult{racer: r, resp: resp, err: err}
		}()
	}

	launch()
	stagger := time.NewTimer(c.config.Race.Stagger)
	defer stagger.Stop()

	var lastErr error
	for {
		select {
		case res := <-results:
			pending--
			res.racer.breaker.Record(pathErr(res.err))
			if res.err == nil || IsStatus(res.err) {
				if res.err == nil {
					c.metrics.RecordRaceWinner(ctx, res.racer.path.name())
					c.log.Debug("race won", logger.Fields(logger.FieldPath, res.racer.path.name()))
				}
				go drain(results, pending)
				return res.resp, res.err
			}
			lastErr = res.err
			if launched < len(paths) {
				launch()
				stagger.Reset(c.config.Race.Stagger)
			} else if pending == 0 {
				return nil, lastErr
			}
		case <-stagger.C:
			if launched < len(paths) {
				launch()
				stagger.Reset(c.config.Race.Stagger)
			}
		case <-ctx.Done():
			go drain(results, pending)
			return nil, ctx.Err()
		}
	}
}

// pathErr is what a path's breaker sees: a status answer means the path works.
func pathErr(err error) error {
	if IsStatus(err) {
		return nil
	}
	return err
}

// drain records the outcome of paths still running after the race ended.
// They are cancelled, so their breakers release probe slots without failing.
func drain(results <-chan raceResult, pending int) {
	for ; pending > 0; pending-- {
		res := <-results
		res.racer.breaker.Record(pathErr(res.err))
	}
}
