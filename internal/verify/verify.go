// Package verify talks to the speaker-verification sidecar, which scores
// how likely two recordings share a speaker.
package verify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/701789262a/backend-dailychat/httpclient"
	"github.com/701789262a/backend-dailychat/provider"
)

// ProviderName is the registered name of the HTTP sidecar provider.
const ProviderName = "verify-http"

const (
	defaultURL     = "http://localhost:8388"
	defaultTimeout = 60 * time.Second
)

type Config struct {
	URL     string        `yaml:"url" mapstructure:"url"`
	Device  string        `yaml:"device" mapstructure:"device"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

func (c *Config) ApplyDefaults() {
	if c.URL == "" {
		c.URL = defaultURL
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
}

// Pair is one comparison request.
type Pair struct {
	Query     []byte
	Reference []byte
}

// Result is the sidecar's verdict. Score is in [0,1].
type Result struct {
	Score      float64 `json:"score"`
	Prediction bool    `json:"prediction"`
}

// Client implements provider.RequestResponse[Pair, Result] over HTTP.
type Client struct {
	cfg    Config
	client *httpclient.Client
}

var _ provider.RequestResponse[Pair, Result] = (*Client)(nil)

func New(cfg Config) (*Client, error) {
	cfg.ApplyDefaults()
	client, err := httpclient.New(httpclient.Config{BaseURL: cfg.URL, Timeout: cfg.Timeout})
	if err != nil {
		return nil, fmt.Errorf("verify client: %w", err)
	}
	return &Client{cfg: cfg, client: client}, nil
}

func (c *Client) Name() string { return ProviderName }

func (c *Client) IsAvailable(ctx context.Context) bool {
	resp, err := c.client.Do(ctx, httpclient.Request{Method: http.MethodGet, Path: "/health"})
	return err == nil && resp.StatusCode == http.StatusOK
}

// Execute posts both recordings to /verify.
func (c *Client) Execute(ctx context.Context, pair Pair) (Result, error) {
	if len(pair.Query) == 0 || len(pair.Reference) == 0 {
		return Result{}, fmt.Errorf("verify: empty recording")
	}
	fields := map[string]string{}
	if c.cfg.Device != "" {
		fields["device"] = c.cfg.Device
	}
	resp, err := c.client.Do(ctx, httpclient.Request{
		Method: http.MethodPost,
		Path:   "/verify",
		Body: &httpclient.MultipartBody{
			Fields: fields,
			Files: []httpclient.FileField{
				{FieldName: "query", FileName: "query.wav", ContentType: "audio/wav", Data: pair.Query},
				{FieldName: "reference", FileName: "reference.wav", ContentType: "audio/wav", Data: pair.Reference},
			},
		},
	})
	if err != nil {
		return Result{}, fmt.Errorf("verify request: %w", err)
	}
	var out Result
	if err := resp.JSON(&out); err != nil {
		return Result{}, fmt.Errorf("verify: %w", err)
	}
	if out.Score < 0 || out.Score > 1 {
		return Result{}, fmt.Errorf("verify: score %v out of range", out.Score)
	}
	return out, nil
}

// Factory builds Clients from a generic config map.
func Factory() provider.Factory[provider.RequestResponse[Pair, Result]] {
	return func(cfg map[string]any) (provider.RequestResponse[Pair, Result], error) {
		var vc Config
		if v, ok := cfg["url"].(string); ok {
			vc.URL = v
		}
		if v, ok := cfg["device"].(string); ok {
			vc.Device = v
		}
		if v, ok := cfg["timeout"].(time.Duration); ok {
			vc.Timeout = v
		}
		c, err := New(vc)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// Comparer adapts a (possibly wrapped) verification provider to the plain
// score function the identification engine calls.
type Comparer struct {
	rr provider.RequestResponse[Pair, Result]
}

func NewComparer(rr provider.RequestResponse[Pair, Result]) *Comparer {
	return &Comparer{rr: rr}
}

func (c *Comparer) Compare(ctx context.Context, query, reference []byte) (float64, error) {
	res, err := c.rr.Execute(ctx, Pair{Query: query, Reference: reference})
	if err != nil {
		return 0, err
	}
	return res.Score, nil
}
