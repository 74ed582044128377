// Package transcription defines the speech-to-text provider contract used
// to split clips into speaker-homogeneous segments.
package transcription

import (
	"context"

	"github.com/701789262a/backend-dailychat/provider"
)

// Provider is implemented by transcription backends.
type Provider interface {
	provider.Provider

	// Transcribe segments the audio. When req.Cut is set the backend also
	// returns the audio of every segment.
	Transcribe(ctx context.Context, req Request) (*Response, error)
}

// AsRequestResponse exposes p through the generic interaction shape so
// provider middleware can wrap it.
func AsRequestResponse(p Provider) provider.RequestResponse[Request, *Response] {
	return rrAdapter{p}
}

// FromRequestResponse turns a (possibly wrapped) RequestResponse back into
// a Provider.
func FromRequestResponse(rr provider.RequestResponse[Request, *Response]) Provider {
	return providerAdapter{rr}
}

type rrAdapter struct{ Provider }

func (a rrAdapter) Execute(ctx context.Context, req Request) (*Response, error) {
	return a.Transcribe(ctx, req)
}

type providerAdapter struct {
	provider.RequestResponse[Request, *Response]
}

func (a providerAdapter) Transcribe(ctx context.Context, req Request) (*Response, error) {
	return a.Execute(ctx, req)
}
