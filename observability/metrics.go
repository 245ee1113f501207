package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the instruments recorded by the dictation pipeline.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	cacheLookups  metric.Int64Counter
	httpAttempts  metric.Int64Counter
	raceWinners   metric.Int64Counter
	chunkUploads  metric.Int64Counter
	sessions      metric.Int64Counter
	stageDuration metric.Float64Histogram
}

// NewMetrics creates metric instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	var (
		m   Metrics
		err error
	)
	if m.cacheLookups, err = meter.Int64Counter("cache.lookups",
		metric.WithDescription("Result cache lookups by outcome")); err != nil {
		return nil, fmt.Errorf("creating cache.lookups counter: %w", err)
	}
	if m.httpAttempts, err = meter.Int64Counter("http.attempts",
		metric.WithDescription("Outbound HTTP attempts by outcome")); err != nil {
		return nil, fmt.Errorf("creating http.attempts counter: %w", err)
	}
	if m.raceWinners, err = meter.Int64Counter("upload.race.winner",
		metric.WithDescription("Racing upload path that answered first")); err != nil {
		return nil, fmt.Errorf("creating upload.race.winner counter: %w", err)
	}
	if m.chunkUploads, err = meter.Int64Counter("chunk.uploads",
		metric.WithDescription("Chunked-stream uploads by outcome")); err != nil {
		return nil, fmt.Errorf("creating chunk.uploads counter: %w", err)
	}
	if m.sessions, err = meter.Int64Counter("dictation.sessions",
		metric.WithDescription("Finished dictation sessions by outcome")); err != nil {
		return nil, fmt.Errorf("creating dictation.sessions counter: %w", err)
	}
	if m.stageDuration, err = meter.Float64Histogram("dictation.stage.duration",
		metric.WithDescription("Duration of each pipeline stage"),
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("creating dictation.stage.duration histogram: %w", err)
	}
	return &m, nil
}

// RecordCacheLookup counts a cache hit or miss.
func (m *Metrics) RecordCacheLookup(ctx context.Context, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// RecordHTTPAttempt counts one attempt; outcome is "ok" or an error code name.
func (m *Metrics) RecordHTTPAttempt(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.httpAttempts.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordRaceWinner counts the path that won an upload race.
func (m *Metrics) RecordRaceWinner(ctx context.Context, path string) {
	if m == nil {
		return
	}
	m.raceWinners.Add(ctx, 1, metric.WithAttributes(attribute.String("path", path)))
}

// RecordChunkUpload counts one chunked-stream window upload.
func (m *Metrics) RecordChunkUpload(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.chunkUploads.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordSession counts a finished session by backend and outcome.
func (m *Metrics) RecordSession(ctx context.Context, backend, outcome string) {
	if m == nil {
		return
	}
	m.sessions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("backend", backend),
		attribute.String("outcome", outcome),
	))
}

// RecordStage records how long a pipeline stage took.
func (m *Metrics) RecordStage(ctx context.Context, stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("stage", stage)))
}
