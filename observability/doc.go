// Package observability wires OpenTelemetry tracing and metrics.
//
// The Component installs OTLP/HTTP exporters when enabled; otherwise the
// global no-op providers stay in place. Domain code records through a
// *Metrics (nil-safe) and opens spans with StartSpan:
//
//	ctx, span := observability.StartSpan(ctx, observability.SpanLevel,
//	    observability.AttrLevel.Int(k))
//	defer func() { observability.EndSpan(span, err) }()
package observability
