package provider

import "context"

// RequestResponse takes one input and returns one output. Comparators and
// transcription sidecars are RequestResponse providers.
type RequestResponse[I, O any] interface {
	Provider
	Execute(ctx context.Context, input I) (O, error)
}

// Sink accepts input with no meaningful output, e.g. a Kafka produce or a
// push notification.
type Sink[I any] interface {
	Provider
	Send(ctx context.Context, input I) error
}

// Func adapts a plain function to RequestResponse.
type Func[I, O any] struct {
	ProviderName string
	Fn           func(ctx context.Context, input I) (O, error)
}

func (f Func[I, O]) Name() string                       { return f.ProviderName }
func (f Func[I, O]) IsAvailable(_ context.Context) bool { return f.Fn != nil }

func (f Func[I, O]) Execute(ctx context.Context, input I) (O, error) {
	return f.Fn(ctx, input)
}
