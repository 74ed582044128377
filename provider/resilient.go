package provider

import (
	"context"

	"github.com/701789262a/backend-dailychat/resilience"
)

// ResilienceConfig bundles optional policies. Nil fields are skipped.
type ResilienceConfig struct {
	CircuitBreaker *resilience.CircuitBreakerConfig
	Retry          *resilience.RetryConfig
	Bulkhead       *resilience.BulkheadConfig
}

func (c ResilienceConfig) IsEmpty() bool {
	return c.CircuitBreaker == nil && c.Retry == nil && c.Bulkhead == nil
}

// WithResilience applies the configured policies around Execute, in the
// order Bulkhead, CircuitBreaker, Retry. An empty config is a passthrough.
func WithResilience[I, O any](cfg ResilienceConfig) Middleware[I, O] {
	return func(inner RequestResponse[I, O]) RequestResponse[I, O] {
		if cfg.IsEmpty() {
			return inner
		}
		r := &resilientRR[I, O]{inner: inner, retry: cfg.Retry}
		if cfg.CircuitBreaker != nil {
			r.cb = resilience.NewCircuitBreaker(*cfg.CircuitBreaker)
		}
		if cfg.Bulkhead != nil {
			r.bh = resilience.NewBulkhead(*cfg.Bulkhead)
		}
		return r
	}
}

type resilientRR[I, O any] struct {
	inner RequestResponse[I, O]
	cb    *resilience.CircuitBreaker
	bh    *resilience.Bulkhead
	retry *resilience.RetryConfig
}

func (r *resilientRR[I, O]) Name() string { return r.inner.Name() }

func (r *resilientRR[I, O]) IsAvailable(ctx context.Context) bool {
	if r.cb != nil && r.cb.State() == resilience.StateOpen {
		return false
	}
	return r.inner.IsAvailable(ctx)
}

func (r *resilientRR[I, O]) Execute(ctx context.Context, input I) (O, error) {
	call := func() (O, error) { return r.inner.Execute(ctx, input) }

	if r.retry != nil {
		retryCfg := *r.retry
		base := call
		call = func() (O, error) { return resilience.Retry(ctx, retryCfg, base) }
	}
	if r.cb != nil {
		base := call
		call = func() (O, error) {
			var out O
			err := r.cb.Execute(func() error {
				var err error
				out, err = base()
				return err
			})
			return out, err
		}
	}
	if r.bh != nil {
		return resilience.ExecuteWithResult(ctx, r.bh, call)
	}
	return call()
}
