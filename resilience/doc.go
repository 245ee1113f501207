// Package resilience provides the fault-tolerance primitives the network
// and transcription layers are built from.
//
//   - Retry: bounded attempts with exponential backoff, jitter and a
//     per-error delay override (used for Retry-After)
//   - Bulkhead: caps concurrent uploads, callers block for a slot
//   - RateLimiter: token bucket, throttles connection pre-warming
//   - CircuitBreaker: tracks health of each racing upload path
//
//	bh := resilience.NewBulkhead(resilience.BulkheadConfig{Name: "chunks", MaxConcurrent: 3, MaxWait: -1})
//	text, err := resilience.ExecuteWithResult(bh, ctx, func() (string, error) {
//	    return resilience.Retry(ctx, resilience.DefaultRetryConfig(), func(attempt int) (string, error) {
//	        return upload(ctx)
//	    })
//	})
package resilience
