package worker

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/701789262a/backend-dailychat/httpclient"
	"github.com/701789262a/backend-dailychat/internal/node"
)

// Releaser tells the dispatcher this node is idle again.
type Releaser interface {
	Release(ctx context.Context) error
}

// HTTPReleaser calls GET /unbusy on the dispatcher, or on a registry that
// relays it. Without an advertised address the receiver uses the
// connection's source address.
type HTTPReleaser struct {
	resolve   node.URLResolver
	advertise string
	client    *httpclient.Client
}

func NewHTTPReleaser(resolve node.URLResolver, advertise string, timeout time.Duration) (*HTTPReleaser, error) {
	client, err := httpclient.New(httpclient.Config{Timeout: timeout, Retry: httpclient.DefaultRetryConfig()})
	if err != nil {
		return nil, err
	}
	return &HTTPReleaser{resolve: resolve, advertise: advertise, client: client}, nil
}

func (r *HTTPReleaser) Release(ctx context.Context) error {
	base, err := r.resolve(ctx)
	if err != nil {
		return err
	}
	req := httpclient.Request{Method: http.MethodGet, Path: strings.TrimRight(base, "/") + "/unbusy"}
	if r.advertise != "" {
		req.Query = map[string]string{"ip": r.advertise}
	}
	_, err = r.client.Do(ctx, req)
	return err
}
