// Package observability wires OpenTelemetry metrics and tracing into the
// dictation pipeline.
//
// Without Init the global otel providers are no-ops, so instruments
// created through Meter and spans started through StartSpan cost nothing.
//
//	shutdown, err := observability.Init(ctx, cfg)
//	defer shutdown(ctx)
//
//	metrics, err := observability.NewMetrics(observability.Meter("wonderwhisper"))
//	metrics.RecordCacheLookup(ctx, hit)
//
//	ctx, span := observability.StartSpan(ctx, "dictation.transcribe")
//	defer span.End()
package observability
