// Package provider defines generic interaction shapes for external models
// and sinks, plus composable middleware.
//
// Sidecar clients (comparators, transcribers) implement RequestResponse;
// notifiers implement Sink. Cross-cutting behavior is layered with Chain:
//
//	cmp := provider.Chain(
//	    provider.WithTracing[verify.Pair, float64](observability.SpanCompare),
//	    provider.WithLogging[verify.Pair, float64](log),
//	    provider.WithResilience[verify.Pair, float64](provider.ResilienceConfig{
//	        CircuitBreaker: &cbCfg,
//	    }),
//	)(client)
//
// Chain(a, b, c)(p) is a(b(c(p))): the first middleware runs outermost.
package provider
