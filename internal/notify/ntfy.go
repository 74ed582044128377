package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/701789262a/backend-dailychat/httpclient"
	"github.com/701789262a/backend-dailychat/provider"
)

type NtfyConfig struct {
	URL     string        `yaml:"url" mapstructure:"url"`
	Topic   string        `yaml:"topic" mapstructure:"topic"`
	Token   string        `yaml:"token" mapstructure:"token"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

func (c *NtfyConfig) ApplyDefaults() {
	if c.Topic == "" {
		c.Topic = "voiceid"
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
}

// NtfySink pushes a short human-readable summary to an ntfy server.
type NtfySink struct {
	client *httpclient.Client
	cfg    NtfyConfig
}

var _ provider.Sink[Event] = (*NtfySink)(nil)

func NewNtfySink(cfg NtfyConfig) (*NtfySink, error) {
	cfg.ApplyDefaults()
	if cfg.URL == "" {
		return nil, fmt.Errorf("ntfy: url is required")
	}
	headers := map[string]string{}
	if cfg.Token != "" {
		headers["Authorization"] = "Bearer " + cfg.Token
	}
	client, err := httpclient.New(httpclient.Config{
		BaseURL: strings.TrimRight(cfg.URL, "/"),
		Timeout: cfg.Timeout,
		Headers: headers,
		Retry:   httpclient.DefaultRetryConfig(),
	})
	if err != nil {
		return nil, fmt.Errorf("ntfy client: %w", err)
	}
	return &NtfySink{client: client, cfg: cfg}, nil
}

func (n *NtfySink) Name() string                       { return "ntfy" }
func (n *NtfySink) IsAvailable(_ context.Context) bool { return true }

func (n *NtfySink) Send(ctx context.Context, ev Event) error {
	title, tags, priority := "Clip identified", "white_check_mark", "default"
	if ev.Status == StatusFailed {
		title, tags, priority = "Identification failed", "warning", "high"
	}
	_, err := n.client.Do(ctx, httpclient.Request{
		Method: http.MethodPost,
		Path:   "/" + n.cfg.Topic,
		Headers: map[string]string{
			"Title":    title,
			"Tags":     tags,
			"Priority": priority,
		},
		Body: summary(ev),
	})
	return err
}

func summary(ev Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "clip %s: %s in %dms", short(ev.Clip), ev.Status, ev.DurationMS)
	if ev.Error != "" {
		fmt.Fprintf(&b, " (%s)", ev.Error)
	}
	for _, r := range ev.Subclips {
		switch {
		case r.Decision == nil:
			fmt.Fprintf(&b, "\n%s: %s", short(r.Subclip), r.Error)
		case !r.Decision.Known():
			fmt.Fprintf(&b, "\n%s: unknown speaker", short(r.Subclip))
		default:
			fmt.Fprintf(&b, "\n%s: speaker %d score %.2f", short(r.Subclip), r.Decision.SpeakerID, r.Decision.Score)
		}
	}
	return b.String()
}

func short(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
