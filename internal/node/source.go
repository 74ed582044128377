package node

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/701789262a/backend-dailychat/httpclient"
)

// Source yields an ordered snapshot of known nodes.
type Source interface {
	Snapshot(ctx context.Context) ([]Record, error)
}

// Local serves snapshots straight from an in-process Registry.
type Local struct{ Registry *Registry }

func (l Local) Snapshot(context.Context) ([]Record, error) {
	return l.Registry.Snapshot(), nil
}

// URLResolver returns the base URL of the registry service.
type URLResolver func(ctx context.Context) (string, error)

// StaticURL always resolves to url.
func StaticURL(url string) URLResolver {
	return func(context.Context) (string, error) { return url, nil }
}

// Remote fetches snapshots from a registry service over HTTP.
type Remote struct {
	resolve URLResolver
	client  *httpclient.Client
}

// NewRemote builds a Remote source. timeout bounds each fetch.
func NewRemote(resolve URLResolver, timeout time.Duration) (*Remote, error) {
	client, err := httpclient.New(httpclient.Config{Timeout: timeout})
	if err != nil {
		return nil, err
	}
	return &Remote{resolve: resolve, client: client}, nil
}

// Snapshot performs GET / against the registry.
func (r *Remote) Snapshot(ctx context.Context) ([]Record, error) {
	base, err := r.resolve(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve registry: %w", err)
	}
	resp, err := r.client.Do(ctx, httpclient.Request{Method: http.MethodGet, Path: base + "/"})
	if err != nil {
		return nil, httpclient.ToAppError("registry", err)
	}
	var m StatusMap
	if err := resp.JSON(&m); err != nil {
		return nil, err
	}
	return m.Records(), nil
}
