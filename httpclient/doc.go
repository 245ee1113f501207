// Package httpclient is the network layer every backend talks through.
//
// A Client owns up to three independent connection paths to one upstream:
//
//   - priority: a dedicated HTTP/2 pool with health-check pings
//   - standard: a separate HTTP/1.1 pool
//   - curl: a curl subprocess forced to HTTP/1.1 (optional)
//
// Plain requests use the priority path. Requests marked Race start every
// healthy path with a stagger; the first success wins and the others are
// cancelled. Every attempt is raced against its own timer, and retryable
// failures (timeouts, dropped connections, DNS errors, 429) are retried
// with exponential backoff, honoring Retry-After.
//
//	client, err := httpclient.New(httpclient.Config{
//	    BaseURL: "https://api.openai.com/v1",
//	    Auth:    httpclient.BearerAuth(apiKey),
//	    Race:    httpclient.RaceConfig{Enabled: true},
//	})
//	resp, err := client.PostMultipart(ctx, "/audio/transcriptions", &httpclient.MultipartBody{...})
package httpclient
