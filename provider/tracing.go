package provider

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/701789262a/backend-dailychat/observability"
)

// WithTracing opens a span named spanName around each Execute call.
func WithTracing[I, O any](spanName string) Middleware[I, O] {
	return func(inner RequestResponse[I, O]) RequestResponse[I, O] {
		return &tracingRR[I, O]{inner: inner, spanName: spanName}
	}
}

type tracingRR[I, O any] struct {
	inner    RequestResponse[I, O]
	spanName string
}

func (t *tracingRR[I, O]) Name() string                         { return t.inner.Name() }
func (t *tracingRR[I, O]) IsAvailable(ctx context.Context) bool { return t.inner.IsAvailable(ctx) }

func (t *tracingRR[I, O]) Execute(ctx context.Context, input I) (O, error) {
	ctx, span := observability.StartSpan(ctx, t.spanName, attribute.String("provider", t.inner.Name()))
	output, err := t.inner.Execute(ctx, input)
	observability.EndSpan(span, err)
	return output, err
}
